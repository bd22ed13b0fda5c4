// Package auth issues and checks the bearer tokens of the HTTP API.
//
// Tokens are HS256 JWTs whose role claim is either viewer or operator.
// A viewer reads parameters and the inventory; an operator also writes
// parameters and reads the write audit. The mapping is fixed at compile
// time. Tokens are minted offline with `hvcrate -issue-token <role>`
// against the configured secret.
package auth
