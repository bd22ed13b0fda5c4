package crate

import (
	"github.com/nerrad567/hvcrate-core/internal/hvapi"
	"github.com/nerrad567/hvcrate-core/internal/param"
)

// Options configures discovery.
type Options struct {
	SystemType hvapi.SystemType

	// Link defaults to TCP/IP.
	Link hvapi.LinkType

	// Address must be a literal IPv4 or IPv6 address.
	Address  string
	Username string
	Password string

	// ReadOnly downgrades read-write parameters and drops write-only ones.
	ReadOnly bool

	// Logger receives discovery progress and skipped parameters.
	// Defaults to a no-op logger.
	Logger Logger
}

// Crate is the discovered layout of one controller.
type Crate struct {
	SystemType hvapi.SystemType
	Address    string
	ReadOnly   bool

	// System holds the system properties in enumeration order.
	System []*param.Param

	// Boards holds the present boards in slot order.
	Boards []*Board

	bind    param.Binding
	skipped int
}

// Board is one module in a crate slot.
type Board struct {
	Slot         int
	Model        string
	Description  string
	Serial       string
	Firmware     string
	ChannelCount int

	Params   []*param.Param
	Channels []*Channel
}

// Channel is one output of a board.
type Channel struct {
	Slot   int
	Index  int
	Params []*param.Param
}

// Handle returns the controller handle the crate's parameters use.
func (c *Crate) Handle() hvapi.Handle { return c.bind.Handle }

// Skipped returns how many parameters discovery skipped.
func (c *Crate) Skipped() int { return c.skipped }

// Board returns the board in slot.
func (c *Crate) Board(slot int) (*Board, bool) {
	for _, b := range c.Boards {
		if b.Slot == slot {
			return b, true
		}
	}
	return nil, false
}

// Params returns every parameter: system properties first, then per board
// its own parameters followed by those of its channels.
func (c *Crate) Params() []*param.Param {
	all := append([]*param.Param(nil), c.System...)
	for _, b := range c.Boards {
		all = append(all, b.Params...)
		for _, ch := range b.Channels {
			all = append(all, ch.Params...)
		}
	}
	return all
}

// Close releases the controller handle.
func (c *Crate) Close() error {
	return c.bind.Device.DeinitSystem(c.bind.Handle)
}
