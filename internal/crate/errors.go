package crate

import (
	"errors"
	"fmt"

	"github.com/nerrad567/hvcrate-core/internal/hvapi"
)

var (
	// ErrConnection matches every *ConnectionError.
	ErrConnection = errors.New("crate: connection failed")

	// ErrInvalidAddress is returned when the address is not a dotted IPv4
	// address.
	ErrInvalidAddress = errors.New("crate: invalid address")

	// ErrUnsupportedSystem is returned for controller families other than
	// the SYx527 mainframes.
	ErrUnsupportedSystem = errors.New("crate: unsupported system type")
)

// ConnectionError is a fatal failure to open the controller.
type ConnectionError struct {
	Address    string
	SystemType hvapi.SystemType
	Err        error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("crate: connecting to %s at %q: %v", e.SystemType, e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }
