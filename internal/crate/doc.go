// Package crate discovers the layout of a high-voltage crate.
//
// Build connects to the controller and walks it once: system properties,
// the crate map, then every board's parameters and every channel's
// parameters. Each parameter is classified into a param.Param. The result
// is an immutable Crate that owns its boards, channels and parameters
// outright.
//
// Only connection problems are fatal. A parameter whose metadata cannot be
// read, or whose type has no kind at its scope, is logged and skipped
// without affecting its neighbours.
//
// Under the read-only policy read-write parameters are downgraded to
// read-only, and the first write-only board or channel parameter ends
// enumeration of that list. String parameters and the channel name are
// exempt from the early stop.
package crate
