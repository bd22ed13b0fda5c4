package registry

import "sync/atomic"

// Token is the opaque key of a registered parameter.
type Token uint32

// TokenIssuer hands out tokens. Every call must return a token never
// returned before.
type TokenIssuer interface {
	Next() Token
}

// Sequence issues consecutive tokens.
type Sequence struct {
	next atomic.Uint32
}

// NewSequence returns a Sequence whose first token is start.
func NewSequence(start Token) *Sequence {
	s := &Sequence{}
	s.next.Store(uint32(start))
	return s
}

// Next returns the next token.
func (s *Sequence) Next() Token {
	return Token(s.next.Add(1) - 1)
}
