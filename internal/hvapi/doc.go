// Package hvapi describes the boundary between HV Crate Core and the vendor
// high-voltage controller library.
//
// The controller is addressed through a Device, a handle-scoped set of calls
// that mirror the vendor wrapper: system properties, the crate map, board
// parameters and channel parameters. Every call completes with a Result
// code. Callers receive a nil error for ResultOK and an *Error carrying the
// code otherwise.
//
// # Values
//
// The vendor library moves values through untyped buffers whose layout is
// chosen by the parameter's type code. Here a Value carries one field per
// layout and the caller reads the field that matches the type it asked for:
//
//	v, err := dev.GetChParam(h, 0, 1, "VMon")
//	volts := v.Float
//
// # Implementations
//
// This package has no transport of its own. The sim subpackage provides an
// in-memory controller used for development and tests; a vendor binding
// satisfies the same interface.
package hvapi
