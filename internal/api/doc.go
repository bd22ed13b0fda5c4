// Package api serves one crate over HTTP.
//
// Routes live under /api/v1: the parameter catalog with live reads and
// writes, the discovery inventory kept in SQLite, the write audit log,
// and a WebSocket feed of parameter events.
//
//	srv, err := api.New(deps)
//	err = srv.Start(ctx)
//	defer srv.Close()
//
// The server shares the bridge's Router, so HTTP access is serialised
// with the poll loop and MQTT commands. Writes go through the bridge when
// one is attached; its read-back then reaches MQTT and, via OnState, the
// WebSocket hub.
//
// With no JWT secret configured every route is open. Otherwise all
// routes except /health and /metrics need a bearer token carrying a
// viewer or operator role. Browsers cannot set headers on a WebSocket
// handshake, so /ws also accepts ?token=.
//
// Bridge, inventory and audit are optional. Without them writes go
// straight to the Router, nothing is recorded, and the inventory and
// audit routes answer 503.
package api
