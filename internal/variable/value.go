package variable

import "fmt"

// Value is a tagged union over the five ground types. Values are copied
// freely; the zero Value is a Real value of 0, since Real is the zero
// TypeTag.
type Value struct {
	tag TypeTag
	r   float64
	i   int32
	b   bool
	s   string
}

// RealValue constructs a Real64 Value.
func RealValue(v float64) Value { return Value{tag: Real, r: v} }

// IntValue constructs an Integer32 Value.
func IntValue(v int32) Value { return Value{tag: Integer, i: v} }

// BoolValue constructs a Boolean Value.
func BoolValue(v bool) Value { return Value{tag: Boolean, b: v} }

// StringValue constructs a String Value.
func StringValue(v string) Value { return Value{tag: String, s: v} }

// UnknownValue constructs an Unknown Value carrying no payload.
func UnknownValue() Value { return Value{tag: Unknown} }

// Tag returns the ground type of the value.
func (v Value) Tag() TypeTag { return v.tag }

// Real returns the payload as float64; ok is false if the tag is not Real.
func (v Value) Real() (float64, bool) { return v.r, v.tag == Real }

// Int returns the payload as int32; ok is false if the tag is not Integer.
func (v Value) Int() (int32, bool) { return v.i, v.tag == Integer }

// Bool returns the payload as bool; ok is false if the tag is not Boolean.
func (v Value) Bool() (bool, bool) { return v.b, v.tag == Boolean }

// Str returns the payload as string; ok is false if the tag is not String.
func (v Value) Str() (string, bool) { return v.s, v.tag == String }

func (v Value) String() string {
	switch v.tag {
	case Real:
		return fmt.Sprintf("%g", v.r)
	case Integer:
		return fmt.Sprintf("%d", v.i)
	case Boolean:
		return fmt.Sprintf("%t", v.b)
	case String:
		return v.s
	default:
		return "<unknown>"
	}
}
