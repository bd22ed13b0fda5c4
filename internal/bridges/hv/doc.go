// Package hv bridges one discovered high-voltage crate onto MQTT.
//
// The bridge owns the only path to the controller while it runs. Every
// registry read or write goes through a Router, which serialises calls
// with a single mutex; the controller library is not safe for concurrent
// use.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐
//	│   MQTT clients  │   MQTT   │    HV Bridge    │  Router   Controller
//	│ (UIs, scripts)  │◄────────►│   (this pkg)    │◄────────► (hvapi.Device)
//	└─────────────────┘          └─────────────────┘
//	                                      │
//	                                      ▼
//	                                  InfluxDB
//
// # Topics
//
// All topics live under hvcrate/ and carry the crate ID as their third
// segment (see mqtt.Topics):
//
//   - hvcrate/state/{crate}/{short}: retained value of one parameter
//   - hvcrate/command/{crate}/{ref}: write requests, ref is a token or record
//   - hvcrate/ack/{crate}/{ref}: command outcomes
//   - hvcrate/request/{crate}/{id}: read, catalog and crate_info requests
//   - hvcrate/response/{crate}/{id}: request results
//   - hvcrate/catalog/{crate}: retained token catalog
//   - hvcrate/health/{crate}: retained bridge health
//
// # Polling
//
// Every readable parameter is read once per poll interval, in registration
// order. A state message is published when the value differs from the
// previous poll, or on every poll with PublishUnchanged. Numeric and
// Integer values are also written to InfluxDB when a writer is configured.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package hv
