package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/hvcrate-core/internal/crate"
	"github.com/nerrad567/hvcrate-core/internal/naming"
	"github.com/nerrad567/hvcrate-core/internal/param"
)

// Registry maps tokens to the parameters of one crate.
type Registry struct {
	crate *crate.Crate

	maps     [numCategories]map[Token]*param.Param
	order    []Token
	byRecord map[string]Token
}

// New registers every parameter of c with a token from issuer.
//
// It panics if the issuer repeats a token or if a parameter fits no
// category; both indicate a programming error.
func New(c *crate.Crate, issuer TokenIssuer) *Registry {
	r := &Registry{
		crate:    c,
		byRecord: make(map[string]Token),
	}
	for i := range r.maps {
		r.maps[i] = make(map[Token]*param.Param)
	}

	for _, p := range c.Params() {
		cat, ok := categoryOf(p)
		if !ok {
			panic(fmt.Sprintf("registry: %s %s parameter %s has no category",
				p.Location().Scope, p.Kind(), p.Identifier().Record))
		}

		tok := issuer.Next()
		if _, _, dup := r.lookup(tok); dup {
			panic(fmt.Sprintf("registry: token %d issued twice", tok))
		}

		r.maps[cat][tok] = p
		r.order = append(r.order, tok)
		if _, exists := r.byRecord[p.Identifier().Record]; !exists {
			r.byRecord[p.Identifier().Record] = tok
		}
	}
	return r
}

// Crate returns the crate the registry was built from.
func (r *Registry) Crate() *crate.Crate { return r.crate }

// Len returns the number of registered parameters.
func (r *Registry) Len() int { return len(r.order) }

// Tokens returns every token in registration order.
func (r *Registry) Tokens() []Token {
	return append([]Token(nil), r.order...)
}

// lookup searches the category maps in declared order.
func (r *Registry) lookup(tok Token) (*param.Param, Category, bool) {
	for c := Category(0); c < numCategories; c++ {
		if p, ok := r.maps[c][tok]; ok {
			return p, c, true
		}
	}
	return nil, 0, false
}

// Param returns the parameter behind tok.
func (r *Registry) Param(tok Token) (*param.Param, bool) {
	p, _, ok := r.lookup(tok)
	return p, ok
}

// TokenByRecord returns the token of the parameter with the given record
// name.
func (r *Registry) TokenByRecord(record string) (Token, bool) {
	tok, ok := r.byRecord[record]
	return tok, ok
}

// Resolve accepts a decimal token or a record name. Record names match
// case-insensitively.
func (r *Registry) Resolve(ref string) (Token, error) {
	if n, err := strconv.ParseUint(ref, 10, 32); err == nil {
		tok := Token(n)
		if _, _, ok := r.lookup(tok); !ok {
			return 0, &UnknownTokenError{Token: tok}
		}
		return tok, nil
	}
	if tok, ok := r.byRecord[strings.ToUpper(ref)]; ok {
		return tok, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownRecord, ref)
}

// Read returns the current value of tok. For bitmask kinds the value is
// ANDed with mask.
//
// Returns:
//   - param.Value: The device value (zero for write-only parameters)
//   - error: *UnknownTokenError, or the parameter's *param.DeviceAccessError
//     unchanged
func (r *Registry) Read(tok Token, mask uint32) (param.Value, error) {
	p, _, ok := r.lookup(tok)
	if !ok {
		return param.Value{}, &UnknownTokenError{Token: tok}
	}

	v, err := p.Get()
	if err != nil {
		return param.Value{}, err
	}
	if p.Kind().Bitmask() {
		v = v.Masked(p.Kind(), mask)
	}
	return v, nil
}

// Write sends v to tok. For bitmask kinds the value sent is
// (0 &^ mask) | (v & mask): bits outside mask are cleared, not preserved
// from the live value.
func (r *Registry) Write(tok Token, v param.Value, mask uint32) error {
	p, _, ok := r.lookup(tok)
	if !ok {
		return &UnknownTokenError{Token: tok}
	}

	switch p.Kind() {
	case param.KindChStatus, param.KindBdStatus:
		var base uint32
		v = param.Uint((base &^ mask) | (v.Uint & mask))
	case param.KindOnOff, param.KindBinary:
		var base uint32
		v = param.Int(int32((base &^ mask) | (uint32(v.Int) & mask)))
	}
	return p.Set(v)
}

// Entry describes one registered parameter for export.
type Entry struct {
	Token    Token             `json:"token"`
	Category Category          `json:"category"`
	Kind     param.Kind        `json:"kind"`
	Width    string            `json:"width,omitempty"`
	Name     string            `json:"name"`
	Scope    string            `json:"scope"`
	Slot     int               `json:"slot"`
	Channel  int               `json:"channel"`
	Mode     string            `json:"mode"`
	ID       naming.Identifier `json:"identifier"`

	Numeric *param.NumericMeta `json:"numeric,omitempty"`
	Labels  *param.Labels      `json:"labels,omitempty"`
	Bits    []param.Bit        `json:"bits,omitempty"`

	Param *param.Param `json:"-"`
}

func newEntry(tok Token, cat Category, p *param.Param) Entry {
	loc := p.Location()
	e := Entry{
		Token:    tok,
		Category: cat,
		Kind:     p.Kind(),
		Width:    p.Width().String(),
		Name:     p.Name(),
		Scope:    loc.Scope.String(),
		Slot:     -1,
		Channel:  -1,
		Mode:     naming.ModeString(p.Mode()),
		ID:       p.Identifier(),
		Param:    p,
	}
	if loc.Scope != naming.ScopeSystem {
		e.Slot = loc.Slot
	}
	if loc.Scope == naming.ScopeChannel {
		e.Channel = loc.Channel
	}

	switch p.Kind() {
	case param.KindNumeric:
		if loc.Scope != naming.ScopeSystem {
			n := p.Numeric()
			e.Numeric = &n
		}
	case param.KindOnOff, param.KindBinary:
		l := p.Labels()
		e.Labels = &l
	case param.KindChStatus, param.KindBdStatus:
		e.Bits = p.Bits()
	}
	return e
}

// Lookup returns the export entry of tok.
func (r *Registry) Lookup(tok Token) (Entry, bool) {
	p, cat, ok := r.lookup(tok)
	if !ok {
		return Entry{}, false
	}
	return newEntry(tok, cat, p), true
}

// Entries returns the export entry of every token in registration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, tok := range r.order {
		p, cat, _ := r.lookup(tok)
		out = append(out, newEntry(tok, cat, p))
	}
	return out
}

// Stats counts registered parameters.
type Stats struct {
	Total      int              `json:"total"`
	Categories map[Category]int `json:"categories"`
}

// Stats returns the number of parameters per category.
func (r *Registry) Stats() Stats {
	s := Stats{Total: len(r.order), Categories: make(map[Category]int, numCategories)}
	for c := Category(0); c < numCategories; c++ {
		s.Categories[c] = len(r.maps[c])
	}
	return s
}
