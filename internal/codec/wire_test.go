package codec

import (
	"math"
	"testing"

	"github.com/go-test/deep"

	"github.com/dispatchlab/simterm/internal/variable"
)

// dblEpsilon mirrors C's DBL_EPSILON (2^-52), used by spec.md §8's
// boundary scenarios.
var dblEpsilon = math.Ldexp(1, -52)

func TestEncodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		wire WireType
		val  variable.Value
		want []byte
	}{
		{"real", REAL, variable.RealValue(math.Pi), nil},
		{"lreal-epsilon", LREAL, variable.RealValue(dblEpsilon), nil},
		{"dint-max", DINT, variable.IntValue(math.MaxInt32), nil},
		{"dint-min", DINT, variable.IntValue(math.MinInt32), nil},
		{"bool-true", BOOL, variable.BoolValue(true), nil},
		{"bool-false", BOOL, variable.BoolValue(false), nil},
		{"string-empty", STRING, variable.StringValue(""), nil},
		{"string-3", STRING, variable.StringValue("abc"), nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf, err := Encode(nil, c.wire, c.val)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			out := DecodeNext(buf, c.val.Tag())
			if out.Kind != Ok {
				t.Fatalf("DecodeNext kind = %v, want Ok", out.Kind)
			}
			if out.Consumed != len(buf) {
				t.Fatalf("Consumed = %d, want %d", out.Consumed, len(buf))
			}
			if c.wire != REAL && out.Value != c.val {
				t.Errorf("round trip mismatch: got %v, want %v", out.Value, c.val)
			}
		})
	}
}

func TestEncodeFloat32Narrowing(t *testing.T) {
	buf, err := Encode(nil, REAL, variable.RealValue(0.3))
	if err != nil {
		t.Fatal(err)
	}
	out := DecodeNext(buf, variable.Real)
	got, _ := out.Value.Real()
	if got != float64(float32(0.3)) {
		t.Errorf("narrowed real = %v, want %v", got, float64(float32(0.3)))
	}
}

func TestKnownByteLayout(t *testing.T) {
	// spec.md §8 scenario 5.
	var buf []byte
	buf, _ = Encode(buf, REAL, variable.RealValue(0.3))
	buf, _ = Encode(buf, DINT, variable.IntValue(math.MaxInt32))
	buf, _ = Encode(buf, LREAL, variable.RealValue(dblEpsilon))

	want := []byte{
		0x4A, 0x3E, 0x99, 0x99, 0x9A,
		0x44, 0x7F, 0xFF, 0xFF, 0xFF,
		0x4B, 0x3C, 0xB0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	if diff := deep.Equal(buf, want); diff != nil {
		t.Errorf("byte layout mismatch: %v", diff)
	}
}

func TestStringTooLong(t *testing.T) {
	big := make([]byte, MaxStringLen+1)
	_, err := Encode(nil, STRING, variable.StringValue(string(big)))
	if err != ErrStringTooLong {
		t.Fatalf("err = %v, want ErrStringTooLong", err)
	}
}

func TestDecodeIncomplete(t *testing.T) {
	full, _ := Encode(nil, LREAL, variable.RealValue(1.5))
	for i := 0; i < len(full); i++ {
		out := DecodeNext(full[:i], variable.Real)
		if out.Kind != Incomplete {
			t.Fatalf("at %d bytes: kind = %v, want Incomplete", i, out.Kind)
		}
		if out.Consumed != 0 {
			t.Fatalf("at %d bytes: Consumed = %d, want 0", i, out.Consumed)
		}
	}
}

func TestDecodeInvalidTag(t *testing.T) {
	out := DecodeNext([]byte{0xFF, 0x01, 0x02}, variable.Real)
	if out.Kind != InvalidTag || out.Consumed != 1 {
		t.Fatalf("got %+v, want InvalidTag consuming 1 byte", out)
	}
}

func TestDecodeTypeMismatchStringIsAlways(t *testing.T) {
	buf, _ := Encode(nil, STRING, variable.StringValue("Hi!"))
	out := DecodeNext(buf, variable.Boolean)
	if out.Kind != TypeMismatch {
		t.Fatalf("kind = %v, want TypeMismatch", out.Kind)
	}
	if out.Consumed != len(buf) {
		t.Fatalf("Consumed = %d, want %d", out.Consumed, len(buf))
	}
}

func TestFragmentedReassemblyMatchesSingleChunk(t *testing.T) {
	// spec.md §8 scenario 6: [Bool, <non-String>, Bool] with a String in
	// the middle slot.
	var frame []byte
	frame, _ = Encode(frame, BOOL, variable.BoolValue(true))
	frame, _ = Encode(frame, STRING, variable.StringValue("Hi!"))
	frame, _ = Encode(frame, BOOL, variable.BoolValue(false))

	expectedSeq := []variable.TypeTag{variable.Boolean, variable.Boolean, variable.Boolean}

	runOnce := func(chunks [][]byte) []Outcome {
		var buf []byte
		var outcomes []Outcome
		idx := 0
		for idx < len(expectedSeq) {
			if len(buf) == 0 && len(chunks) > 0 {
				buf = append(buf, chunks[0]...)
				chunks = chunks[1:]
			}
			out := DecodeNext(buf, expectedSeq[idx])
			if out.Kind == Incomplete {
				if len(chunks) == 0 {
					break
				}
				buf = append(buf, chunks[0]...)
				chunks = chunks[1:]
				continue
			}
			buf = buf[out.Consumed:]
			outcomes = append(outcomes, out)
			idx++
		}
		return outcomes
	}

	whole := runOnce([][]byte{frame})
	split := runOnce([][]byte{frame[:1], frame[1:4], frame[4:]})

	if len(whole) != len(split) {
		t.Fatalf("outcome count differs: %d vs %d", len(whole), len(split))
	}
	for i := range whole {
		if whole[i].Kind != split[i].Kind {
			t.Errorf("outcome %d kind differs: %v vs %v", i, whole[i].Kind, split[i].Kind)
		}
	}
	if whole[1].Kind != TypeMismatch {
		t.Errorf("middle outcome = %v, want TypeMismatch", whole[1].Kind)
	}
}
