package inventory

import "errors"

var (
	// ErrRunNotFound is returned when no discovery run matches.
	ErrRunNotFound = errors.New("inventory: run not found")

	// ErrParameterNotFound is returned when a run has no parameter with the record name.
	ErrParameterNotFound = errors.New("inventory: parameter not found")
)
