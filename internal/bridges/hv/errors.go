package hv

import "errors"

// Domain errors for the HV bridge package.
var (
	// ErrNotWritable is returned when a command targets a read-only parameter.
	ErrNotWritable = errors.New("hv: parameter is not writable")

	// ErrNotReadable is returned when a read targets a write-only parameter.
	ErrNotReadable = errors.New("hv: parameter is not readable")

	// ErrMissingRef is returned when a command or request names no parameter.
	ErrMissingRef = errors.New("hv: no parameter reference")

	// ErrInvalidValue is returned when a command value has an unusable JSON type.
	ErrInvalidValue = errors.New("hv: invalid command value")
)
