package sim

import "errors"

var (
	// ErrInvalidLayout is returned when a layout fails validation.
	ErrInvalidLayout = errors.New("sim: invalid layout")
)
