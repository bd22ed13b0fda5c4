// Package registry assigns tokens to discovered parameters and routes reads
// and writes by token.
//
// Every parameter of a crate.Crate is registered once, into one of twelve
// category maps keyed by scope and kind. Lookups search the maps in their
// declared order: channel categories, then board, then system.
//
// The Registry does no locking. Callers must issue at most one Read or
// Write at a time, since each call goes straight to the controller handle.
// Values are never cached and failed calls are never retried.
package registry
