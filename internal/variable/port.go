// Package variable implements the typed-value model shared across the
// dispatcher: PortID, Value and Variable. These map are the "leaf" types
// everything else in simterm is built from.
package variable

import "fmt"

// TypeTag identifies the ground type carried by a PortID or a Value.
type TypeTag int

const (
	// Real is a 64-bit floating point port/value.
	Real TypeTag = iota
	// Integer is a 32-bit signed integer port/value.
	Integer
	// Boolean is a boolean port/value.
	Boolean
	// String is a variable-length string port/value.
	String
	// Unknown carries arbitrary values without type checking.
	Unknown
)

func (t TypeTag) String() string {
	switch t {
	case Real:
		return "Real"
	case Integer:
		return "Integer"
	case Boolean:
		return "Boolean"
	case String:
		return "String"
	case Unknown:
		return "Unknown"
	default:
		return fmt.Sprintf("TypeTag(%d)", int(t))
	}
}

// PortID is a dense, process-wide unique identifier for a model port.
// Numbering is independent per TypeTag; equality and hashing are
// structural, so PortID is comparable and safe to use as a map key.
type PortID struct {
	Type TypeTag
	ID   int
}

func (p PortID) String() string {
	return fmt.Sprintf("%s#%d", p.Type, p.ID)
}
