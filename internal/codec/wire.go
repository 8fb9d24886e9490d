// Package codec implements the compact, IEC-61499-style binary wire
// format described in spec.md §4.1: stateless encoding, state-full
// incremental decoding, big-endian on the wire, no length prefix
// between values in a stream.
//
// Grounded on the teacher's parse.RouteAttrValue conversions
// (m-lab/tcp-info parse/parse.go), which convert raw wire bytes into
// typed Go values via explicit byte-order aware accessors rather than
// reflection; simterm's Encode/Decode follow the same "explicit
// byte-slicing, no magic" style.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/dispatchlab/simterm/internal/variable"
)

// WireType identifies the on-the-wire tag/payload shape, independent of
// the source value's Go-level type (spec.md Glossary).
type WireType int

const (
	// REAL is a 4-byte IEEE-754 single precision float.
	REAL WireType = iota
	// LREAL is an 8-byte IEEE-754 double precision float.
	LREAL
	// DINT is a 4-byte two's complement signed integer.
	DINT
	// BOOL is a 1-byte boolean (no payload beyond the tag).
	BOOL
	// STRING is a 2-byte length prefix followed by raw bytes.
	STRING
)

func (w WireType) String() string {
	switch w {
	case REAL:
		return "REAL"
	case LREAL:
		return "LREAL"
	case DINT:
		return "DINT"
	case BOOL:
		return "BOOL"
	case STRING:
		return "STRING"
	default:
		return fmt.Sprintf("WireType(%d)", int(w))
	}
}

// Tag bytes, per spec.md §4.1.
const (
	tagBoolFalse byte = 0x40
	tagBoolTrue  byte = 0x41
	tagDINT      byte = 0x44
	tagREAL      byte = 0x4A
	tagLREAL     byte = 0x4B
	tagSTRING    byte = 0x50
)

// MaxStringLen is the largest string payload the 2-byte length prefix
// can represent.
const MaxStringLen = 65535

// ErrStringTooLong is returned by Encode when a String value exceeds
// MaxStringLen bytes.
var ErrStringTooLong = errors.New("codec: string exceeds 65535 bytes")

// ErrNotAdmissible is returned by Encode (and should be raised earlier,
// during channel configuration per spec.md §4.1) when the declared wire
// type cannot carry the source value's type.
var ErrNotAdmissible = errors.New("codec: source type not admissible for declared wire type")

// DefaultWireType returns the wire type used when a channel's
// configuration does not override the encoding for a port's type.
func DefaultWireType(t variable.TypeTag) (WireType, error) {
	switch t {
	case variable.Real:
		return LREAL, nil
	case variable.Integer:
		return DINT, nil
	case variable.Boolean:
		return BOOL, nil
	case variable.String:
		return STRING, nil
	default:
		return 0, fmt.Errorf("codec: type %s has no default wire type", t)
	}
}

// Admissible reports whether the admissible declared-type/source-type
// matrix of spec.md §4.1 permits encoding a value of source type src as
// wire type w.
func Admissible(src variable.TypeTag, w WireType) bool {
	switch src {
	case variable.Real:
		return w == REAL || w == LREAL
	case variable.Integer:
		return w == DINT
	case variable.Boolean:
		return w == BOOL
	case variable.String:
		return w == STRING
	default:
		return false
	}
}

// Encode appends the wire encoding of val (declared as wire type w) to
// buf, returning the extended buffer. Channel configuration must have
// already rejected non-admissible (src,w) pairs; Encode itself only
// performs the narrowing conversion for Real64->REAL.
func Encode(buf []byte, w WireType, val variable.Value) ([]byte, error) {
	if !Admissible(val.Tag(), w) {
		return buf, ErrNotAdmissible
	}
	switch w {
	case BOOL:
		b, _ := val.Bool()
		if b {
			return append(buf, tagBoolTrue), nil
		}
		return append(buf, tagBoolFalse), nil
	case DINT:
		i, _ := val.Int()
		out := make([]byte, 5)
		out[0] = tagDINT
		binary.BigEndian.PutUint32(out[1:], uint32(i))
		return append(buf, out...), nil
	case REAL:
		f, _ := val.Real()
		out := make([]byte, 5)
		out[0] = tagREAL
		binary.BigEndian.PutUint32(out[1:], math.Float32bits(float32(f)))
		return append(buf, out...), nil
	case LREAL:
		f, _ := val.Real()
		out := make([]byte, 9)
		out[0] = tagLREAL
		binary.BigEndian.PutUint64(out[1:], math.Float64bits(f))
		return append(buf, out...), nil
	case STRING:
		s, _ := val.Str()
		if len(s) > MaxStringLen {
			return buf, ErrStringTooLong
		}
		out := make([]byte, 3+len(s))
		out[0] = tagSTRING
		binary.BigEndian.PutUint16(out[1:3], uint16(len(s)))
		copy(out[3:], s)
		return append(buf, out...), nil
	default:
		return buf, fmt.Errorf("codec: unknown wire type %v", w)
	}
}

// EncodeFrame encodes an ordered list of (declared wire type, Value)
// pairs into a single concatenated frame, as consumed by a Publisher
// (C9) building one channel's datagram/write.
func EncodeFrame(pairs []struct {
	Wire WireType
	Val  variable.Value
}) ([]byte, error) {
	var buf []byte
	var err error
	for _, p := range pairs {
		buf, err = Encode(buf, p.Wire, p.Val)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}
