package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownToken matches every *UnknownTokenError.
	ErrUnknownToken = errors.New("registry: unknown token")

	// ErrUnknownRecord is returned when a record name is not registered.
	ErrUnknownRecord = errors.New("registry: unknown record")
)

// UnknownTokenError is returned for a token no category holds.
type UnknownTokenError struct {
	Token Token
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("registry: unknown token %d", e.Token)
}

func (e *UnknownTokenError) Is(target error) bool { return target == ErrUnknownToken }
