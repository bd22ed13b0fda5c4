package registry

import (
	"fmt"

	"github.com/nerrad567/hvcrate-core/internal/naming"
	"github.com/nerrad567/hvcrate-core/internal/param"
)

// Category is one of the twelve (scope, kind) maps. The declared order is
// the lookup order.
type Category int

const (
	ChannelNumeric Category = iota
	ChannelOnOff
	ChannelChStatus
	ChannelBinary
	ChannelString
	BoardNumeric
	BoardOnOff
	BoardChStatus
	BoardBdStatus
	SystemNumeric
	SystemInteger
	SystemString

	numCategories
)

var categoryNames = [numCategories]string{
	"channel.numeric",
	"channel.onoff",
	"channel.chstatus",
	"channel.binary",
	"channel.string",
	"board.numeric",
	"board.onoff",
	"board.chstatus",
	"board.bdstatus",
	"system.numeric",
	"system.integer",
	"system.string",
}

// Categories returns every category in lookup order.
func Categories() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

func (c Category) String() string {
	if c >= 0 && c < numCategories {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name written by MarshalText.
func (c *Category) UnmarshalText(text []byte) error {
	for i, name := range categoryNames {
		if name == string(text) {
			*c = Category(i)
			return nil
		}
	}
	return fmt.Errorf("registry: unknown category %q", text)
}

// categoryOf returns the category a parameter belongs to.
func categoryOf(p *param.Param) (Category, bool) {
	switch p.Location().Scope {
	case naming.ScopeChannel:
		switch p.Kind() {
		case param.KindNumeric:
			return ChannelNumeric, true
		case param.KindOnOff:
			return ChannelOnOff, true
		case param.KindChStatus:
			return ChannelChStatus, true
		case param.KindBinary:
			return ChannelBinary, true
		case param.KindString:
			return ChannelString, true
		}
	case naming.ScopeBoard:
		switch p.Kind() {
		case param.KindNumeric:
			return BoardNumeric, true
		case param.KindOnOff:
			return BoardOnOff, true
		case param.KindChStatus:
			return BoardChStatus, true
		case param.KindBdStatus:
			return BoardBdStatus, true
		}
	case naming.ScopeSystem:
		switch p.Kind() {
		case param.KindNumeric:
			return SystemNumeric, true
		case param.KindInteger:
			return SystemInteger, true
		case param.KindString:
			return SystemString, true
		}
	}
	return 0, false
}
