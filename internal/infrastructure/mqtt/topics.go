package mqtt

import "fmt"

// TopicPrefix is the root of every hvcrate topic.
//
// Crate topics use the flat scheme: hvcrate/{category}/{crate_id}/{suffix}
const (
	TopicPrefix = "hvcrate"

	// TopicPrefixSystem is the base for process-level topics.
	TopicPrefixSystem = "hvcrate/system"
)

// Topics provides builders for hvcrate MQTT topics.
// Using these helpers keeps the bridge, the console and any external
// subscribers in agreement on topic naming.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("crate1", "S00_C01_VMON")
//	// Returns: "hvcrate/state/crate1/S00_C01_VMON"
type Topics struct{}

// =============================================================================
// Crate Topics
// =============================================================================

// State returns the retained state topic for one parameter.
//
// Example: hvcrate/state/crate1/S00_C01_VMON
func (Topics) State(crateID, short string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, crateID, short)
}

// Command returns the topic a write command for one parameter is sent to.
// ref is either a token number or a record name.
//
// Example: hvcrate/command/crate1/S00_C01_V0SET
func (Topics) Command(crateID, ref string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, crateID, ref)
}

// Ack returns the topic command acknowledgements are published on.
//
// Example: hvcrate/ack/crate1/S00_C01_V0SET
func (Topics) Ack(crateID, ref string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, crateID, ref)
}

// Request returns the topic for a request to a crate bridge.
//
// Example: hvcrate/request/crate1/req-abc123
func (Topics) Request(crateID, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, crateID, requestID)
}

// Response returns the topic a request's response is published on.
//
// Example: hvcrate/response/crate1/req-abc123
func (Topics) Response(crateID, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, crateID, requestID)
}

// Catalog returns the retained catalog topic for a crate.
//
// Example: hvcrate/catalog/crate1
func (Topics) Catalog(crateID string) string {
	return fmt.Sprintf("%s/catalog/%s", TopicPrefix, crateID)
}

// Health returns the retained health topic for a crate bridge.
//
// Example: hvcrate/health/crate1
func (Topics) Health(crateID string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, crateID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the process status topic (online/offline, LWT).
//
// Example: hvcrate/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllCommands returns a pattern matching every command for a crate,
// including refs that contain '/'.
//
// Pattern: hvcrate/command/crate1/#
func (Topics) AllCommands(crateID string) string {
	return fmt.Sprintf("%s/command/%s/#", TopicPrefix, crateID)
}

// AllRequests returns a pattern matching every request for a crate.
//
// Pattern: hvcrate/request/crate1/+
func (Topics) AllRequests(crateID string) string {
	return fmt.Sprintf("%s/request/%s/+", TopicPrefix, crateID)
}

// AllStates returns a pattern matching every state topic of a crate.
//
// Pattern: hvcrate/state/crate1/+
func (Topics) AllStates(crateID string) string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, crateID)
}

// AllHealth returns a pattern matching the health of every crate.
//
// Pattern: hvcrate/health/+
func (Topics) AllHealth() string {
	return fmt.Sprintf("%s/health/+", TopicPrefix)
}

// AllTopics returns a pattern matching all hvcrate topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: hvcrate/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
