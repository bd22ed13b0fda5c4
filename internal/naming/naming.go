package naming

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/nerrad567/hvcrate-core/internal/hvapi"
)

// Scope is the level of the crate a parameter belongs to.
type Scope int

const (
	ScopeSystem Scope = iota
	ScopeBoard
	ScopeChannel
)

func (s Scope) String() string {
	switch s {
	case ScopeSystem:
		return "system"
	case ScopeBoard:
		return "board"
	case ScopeChannel:
		return "channel"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// Identifier is the name triple of one parameter.
type Identifier struct {
	Short       string `json:"short"`
	Record      string `json:"record"`
	Description string `json:"description"`
}

// WithPrefix returns the record name under prefix ("HV1:S03:V0SET").
// An empty prefix returns the record name unchanged.
func (id Identifier) WithPrefix(prefix string) string {
	if prefix == "" {
		return id.Record
	}
	return prefix + ":" + id.Record
}

// Normalize removes all whitespace from raw and upper-cases the rest.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// ModeString returns the tag used in descriptions: RO, WO, RW or "?".
func ModeString(mode hvapi.ParamMode) string {
	switch mode {
	case hvapi.ParamModeRdOnly:
		return "RO"
	case hvapi.ParamModeWrOnly:
		return "WO"
	case hvapi.ParamModeRdWr:
		return "RW"
	default:
		return "?"
	}
}

// Identify builds the identifier triple for a parameter. slot is ignored
// at system scope and channel is ignored outside channel scope.
func Identify(scope Scope, slot, channel int, raw string, mode hvapi.ParamMode) Identifier {
	n := Normalize(raw)
	m := ModeString(mode)

	switch scope {
	case ScopeBoard:
		return Identifier{
			Short:       fmt.Sprintf("S%02d_%s", slot, n),
			Record:      fmt.Sprintf("S%02d:%s", slot, n),
			Description: fmt.Sprintf("Slot %d, %s (%s)", slot, raw, m),
		}
	case ScopeChannel:
		return Identifier{
			Short:       fmt.Sprintf("S%02d_C%02d_%s", slot, channel, n),
			Record:      fmt.Sprintf("S%02d:C%02d:%s", slot, channel, n),
			Description: fmt.Sprintf("Slot %d, Ch %d, %s (%s)", slot, channel, raw, m),
		}
	default:
		return Identifier{
			Short:       "C_" + n,
			Record:      "C:" + n,
			Description: fmt.Sprintf("Chassis, %s (%s)", raw, m),
		}
	}
}
