// Package debugsrv implements a small introspection HTTP endpoint:
// queue depth and the channel map, for operators diagnosing a running
// dispatcher. It has no bearing on simulation correctness and is never
// on the dispatch hot path.
//
// Grounded on the teacher's main.go /debug exposition pattern, enriched
// with ClusterCockpit-cc-backend's router wiring
// (github.com/gorilla/mux, `mux.NewRouter()` / `r.HandleFunc`) since the
// teacher itself only ever exposes metrics, not a routed JSON API.
package debugsrv

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dispatchlab/simterm/internal/channel"
)

// QueueInspector is the minimal boundary the /queue endpoint needs.
type QueueInspector interface {
	Len() int
}

// Server serves the introspection endpoints over an http.Handler the
// caller mounts (or runs standalone via ListenAndServe).
type Server struct {
	queue QueueInspector
	chmap *channel.ChannelMap
	mux   *mux.Router
}

// New builds the router. queue and chmap may be nil if not yet
// constructed; handlers report a 503 in that case.
func New(queue QueueInspector, chmap *channel.ChannelMap) *Server {
	s := &Server{queue: queue, chmap: chmap, mux: mux.NewRouter()}
	s.mux.HandleFunc("/debug/queue", s.handleQueue).Methods(http.MethodGet)
	s.mux.HandleFunc("/debug/channels", s.handleChannels).Methods(http.MethodGet)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		http.Error(w, "queue not yet initialized", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"depth": s.queue.Len()})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if s.chmap == nil {
		http.Error(w, "channel map not yet initialized", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(s.chmap.Describe()))
}
