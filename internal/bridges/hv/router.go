package hv

import (
	"fmt"
	"sync"

	"github.com/nerrad567/hvcrate-core/internal/param"
	"github.com/nerrad567/hvcrate-core/internal/registry"
)

// FullMask selects every bit of a bitmask parameter.
const FullMask uint32 = 0xFFFFFFFF

// Reading is the outcome of one routed read or write.
type Reading struct {
	Entry registry.Entry
	Value param.Value
}

// Native returns the value as a plain Go value for JSON encoding.
func (r Reading) Native() any {
	return r.Value.Native(r.Entry.Kind)
}

// Formatted returns the value rendered for display.
func (r Reading) Formatted() string {
	return r.Entry.Param.Format(r.Value)
}

// Router serialises access to a registry. The bridge poll loop, MQTT
// handlers and the operator console share one Router.
type Router struct {
	mu  sync.Mutex
	reg *registry.Registry

	// entries is fixed at construction; the registry never changes.
	entries []registry.Entry
	byToken map[registry.Token]int
}

// NewRouter wraps reg.
func NewRouter(reg *registry.Registry) *Router {
	entries := reg.Entries()
	byToken := make(map[registry.Token]int, len(entries))
	for i, e := range entries {
		byToken[e.Token] = i
	}
	return &Router{
		reg:     reg,
		entries: entries,
		byToken: byToken,
	}
}

// Registry returns the wrapped registry. Callers must not use its Read or
// Write methods directly.
func (r *Router) Registry() *registry.Registry { return r.reg }

// Entries returns the export entry of every token in registration order.
func (r *Router) Entries() []registry.Entry {
	return append([]registry.Entry(nil), r.entries...)
}

// Resolve returns the entry for a decimal token or a record name.
func (r *Router) Resolve(ref string) (registry.Entry, error) {
	if ref == "" {
		return registry.Entry{}, ErrMissingRef
	}
	tok, err := r.reg.Resolve(ref)
	if err != nil {
		return registry.Entry{}, err
	}
	return r.entries[r.byToken[tok]], nil
}

// Read resolves ref and reads it under the router lock.
func (r *Router) Read(ref string, mask uint32) (Reading, error) {
	e, err := r.Resolve(ref)
	if err != nil {
		return Reading{}, err
	}
	return r.ReadEntry(e, mask)
}

// ReadEntry reads an already resolved entry.
func (r *Router) ReadEntry(e registry.Entry, mask uint32) (Reading, error) {
	if !e.Param.Readable() {
		return Reading{Entry: e}, fmt.Errorf("%w: %s", ErrNotReadable, e.ID.Record)
	}

	r.mu.Lock()
	v, err := r.reg.Read(e.Token, mask)
	r.mu.Unlock()

	return Reading{Entry: e, Value: v}, err
}

// Write resolves ref, parses text for the parameter's kind and writes it.
//
// Parameters:
//   - ref: Decimal token or record name
//   - text: Value in the parameter's text form; OnOff and Binary accept labels
//   - mask: Bits to write for bitmask kinds; others ignore it
//
// Returns:
//   - Reading: The value that was sent, masked for bitmask kinds
//   - error: ErrNotWritable, a parse error wrapping param.ErrInvalidValue,
//     or the device error
func (r *Router) Write(ref, text string, mask uint32) (Reading, error) {
	e, err := r.Resolve(ref)
	if err != nil {
		return Reading{}, err
	}
	if !e.Param.Writable() {
		return Reading{Entry: e}, fmt.Errorf("%w: %s", ErrNotWritable, e.ID.Record)
	}

	v, err := e.Param.Parse(text)
	if err != nil {
		return Reading{Entry: e}, err
	}

	r.mu.Lock()
	err = r.reg.Write(e.Token, v, mask)
	r.mu.Unlock()

	if e.Kind.Bitmask() {
		v = v.Masked(e.Kind, mask)
	}
	return Reading{Entry: e, Value: v}, err
}
