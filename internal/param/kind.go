package param

import (
	"fmt"

	"github.com/nerrad567/hvcrate-core/internal/naming"
)

// Kind is the closed tag of a parameter.
type Kind int

const (
	KindNumeric Kind = iota + 1
	KindOnOff
	KindChStatus
	KindBdStatus
	KindBinary
	KindString
	KindInteger
)

var kindNames = map[Kind]string{
	KindNumeric:  "numeric",
	KindOnOff:    "onoff",
	KindChStatus: "chstatus",
	KindBdStatus: "bdstatus",
	KindBinary:   "binary",
	KindString:   "string",
	KindInteger:  "integer",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Bitmask reports whether reads and writes of k go through a bit mask.
func (k Kind) Bitmask() bool {
	switch k {
	case KindChStatus, KindBdStatus, KindOnOff, KindBinary:
		return true
	default:
		return false
	}
}

// Width is the physical type behind an Integer parameter.
type Width int

const (
	WidthNone Width = iota
	WidthU8
	WidthU16
	WidthU32
	WidthI16
	WidthI32
)

func (w Width) String() string {
	switch w {
	case WidthU8:
		return "u8"
	case WidthU16:
		return "u16"
	case WidthU32:
		return "u32"
	case WidthI16:
		return "i16"
	case WidthI32:
		return "i32"
	default:
		return ""
	}
}

// Location places a parameter on the crate. Slot is meaningless at system
// scope and Channel outside channel scope.
type Location struct {
	Scope   naming.Scope
	Slot    int
	Channel int
}

// System returns the location of a system property.
func System() Location { return Location{Scope: naming.ScopeSystem} }

// Board returns the location of a board parameter.
func Board(slot int) Location { return Location{Scope: naming.ScopeBoard, Slot: slot} }

// Channel returns the location of a channel parameter.
func Channel(slot, channel int) Location {
	return Location{Scope: naming.ScopeChannel, Slot: slot, Channel: channel}
}

func (l Location) String() string {
	switch l.Scope {
	case naming.ScopeBoard:
		return fmt.Sprintf("slot %d", l.Slot)
	case naming.ScopeChannel:
		return fmt.Sprintf("slot %d ch %d", l.Slot, l.Channel)
	default:
		return "chassis"
	}
}

// Value carries a parameter value. The field in use follows the kind:
//
//   - Numeric: Float
//   - OnOff, Binary, Integer: Int
//   - ChStatus, BdStatus: Uint
//   - String: Text
//
// The zero Value is the zero of every kind.
type Value struct {
	Float float64
	Int   int32
	Uint  uint32
	Text  string
}

// Float wraps f as a Value.
func Float(f float64) Value { return Value{Float: f} }

// Int wraps i as a Value.
func Int(i int32) Value { return Value{Int: i} }

// Uint wraps u as a Value.
func Uint(u uint32) Value { return Value{Uint: u} }

// Text wraps s as a Value.
func Text(s string) Value { return Value{Text: s} }

// Native returns the field of v used by kind k as a plain Go value, for
// JSON encoding.
func (v Value) Native(k Kind) any {
	switch k {
	case KindNumeric:
		return v.Float
	case KindOnOff, KindBinary, KindInteger:
		return v.Int
	case KindChStatus, KindBdStatus:
		return v.Uint
	case KindString:
		return v.Text
	default:
		return nil
	}
}

// Masked returns v with its bitmask field ANDed with mask. Values of
// non-bitmask kinds are returned unchanged.
func (v Value) Masked(k Kind, mask uint32) Value {
	switch k {
	case KindChStatus, KindBdStatus:
		return Uint(v.Uint & mask)
	case KindOnOff, KindBinary:
		return Int(int32(uint32(v.Int) & mask))
	default:
		return v
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name written by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, text)
}
