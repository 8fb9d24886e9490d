package debugsrv

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeQueue struct{ depth int }

func (f *fakeQueue) Len() int { return f.depth }

func TestHandleQueueReportsDepth(t *testing.T) {
	s := New(&fakeQueue{depth: 3}, nil)
	req := httptest.NewRequest(http.MethodGet, "/debug/queue", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != `{"depth":3}`+"\n" {
		t.Fatalf("body = %q", got)
	}
}

func TestHandleQueueUninitialized(t *testing.T) {
	s := New(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/debug/queue", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandleChannelsUninitialized(t *testing.T) {
	s := New(&fakeQueue{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/debug/channels", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
