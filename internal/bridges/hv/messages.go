package hv

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/hvcrate-core/internal/registry"
)

// CommandMessage asks the bridge to write one parameter.
// Topic: hvcrate/command/{crate}/{ref}
// QoS: 1
type CommandMessage struct {
	// ID uniquely identifies this command for ack correlation.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Ref is a decimal token or record name. When empty the last topic
	// segment is used.
	Ref string `json:"ref,omitempty"`

	// Value is a number, a string (labels, hex masks, text) or a boolean.
	Value any `json:"value"`

	// Mask selects the bits written for bitmask kinds. Defaults to all bits.
	Mask *uint32 `json:"mask,omitempty"`

	// Source identifies the sender (e.g., "ui", "script").
	Source string `json:"source,omitempty"`
}

// ValueText converts the JSON value to the text form param.Parse accepts.
func (c CommandMessage) ValueText() (string, error) {
	switch v := c.Value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case nil:
		return "", fmt.Errorf("%w: value is required", ErrInvalidValue)
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}

// EffectiveMask returns Mask or FullMask when unset.
func (c CommandMessage) EffectiveMask() uint32 {
	if c.Mask == nil {
		return FullMask
	}
	return *c.Mask
}

// AckStatus represents the command acknowledgment status.
type AckStatus string

const (
	// AckAccepted indicates the value was written to the controller.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage reports the outcome of a command.
// Topic: hvcrate/ack/{crate}/{ref}
// QoS: 1, Retained: No
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	Crate     string    `json:"crate"`
	Status    AckStatus `json:"status"`

	// Token and Record identify the resolved parameter (empty if unresolved).
	Token  registry.Token `json:"token,omitempty"`
	Record string         `json:"record,omitempty"`

	// Value is the value sent, in the parameter's native type.
	Value any `json:"value,omitempty"`

	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command acks and request responses.
const (
	ErrCodeUnknownParameter = "UNKNOWN_PARAMETER"
	ErrCodeInvalidCommand   = "INVALID_COMMAND"
	ErrCodeInvalidValue     = "INVALID_VALUE"
	ErrCodeNotWritable      = "NOT_WRITABLE"
	ErrCodeNotReadable      = "NOT_READABLE"
	ErrCodeDeviceError      = "DEVICE_ERROR"
	ErrCodeBridgeError      = "BRIDGE_ERROR"
)

// StateMessage carries the current value of one parameter.
// Topic: hvcrate/state/{crate}/{short}
// QoS: 1, Retained: Yes
type StateMessage struct {
	Crate     string         `json:"crate"`
	Token     registry.Token `json:"token"`
	Record    string         `json:"record"`
	Timestamp time.Time      `json:"timestamp"`

	// Name is the record name under the configured prefix, if any.
	Name string `json:"name,omitempty"`

	// Value is the native value: float64, int32, uint32 or string.
	Value any `json:"value"`

	// Formatted is the display form, with units or labels.
	Formatted string `json:"formatted"`
}

// HealthStatus represents the bridge's operational status.
type HealthStatus string

const (
	// HealthHealthy indicates the last poll read every parameter.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates some reads failed in the last poll.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the broker connection is down.
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: hvcrate/health/{crate}
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Crate         string       `json:"crate"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// Controller describes the crate the bridge talks to.
	Controller *ControllerStatus `json:"controller,omitempty"`

	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// Parameters is the number of registered parameters.
	Parameters int `json:"parameters"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// ControllerStatus describes the controller behind the bridge.
type ControllerStatus struct {
	SystemType string `json:"system_type"`
	Address    string `json:"address"`
	ReadOnly   bool   `json:"read_only"`
	Boards     int    `json:"boards"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	Polls         uint64 `json:"polls"`
	Reads         uint64 `json:"reads"`
	ReadErrors    uint64 `json:"read_errors"`
	Published     uint64 `json:"published"`
	Commands      uint64 `json:"commands"`
	CommandErrors uint64 `json:"command_errors"`

	// LastPollFailures is the number of failed reads in the latest poll.
	LastPollFailures int `json:"last_poll_failures"`
}

// RequestMessage is a request/response operation.
// Topic: hvcrate/request/{crate}/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is the requested operation.
	// Values: "read", "catalog", "crate_info"
	Action string `json:"action"`

	// Ref names the parameter for "read".
	Ref string `json:"ref,omitempty"`

	// Mask applies to "read" of bitmask kinds. Defaults to all bits.
	Mask *uint32 `json:"mask,omitempty"`
}

// ResponseMessage answers a request.
// Topic: hvcrate/response/{crate}/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CatalogMessage lists every registered parameter.
// Topic: hvcrate/catalog/{crate}
// QoS: 1, Retained: Yes
type CatalogMessage struct {
	Crate      string           `json:"crate"`
	Timestamp  time.Time        `json:"timestamp"`
	Controller ControllerStatus `json:"controller"`
	Stats      registry.Stats   `json:"stats"`
	Entries    []registry.Entry `json:"entries"`
}

// NewAckMessage creates a successful acknowledgment.
func NewAckMessage(crateID string, cmd CommandMessage, r Reading) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Crate:     crateID,
		Status:    AckAccepted,
		Token:     r.Entry.Token,
		Record:    r.Entry.ID.Record,
		Value:     r.Native(),
	}
}

// NewAckError creates an acknowledgment with error details. e may be the
// zero Entry when the reference did not resolve.
func NewAckError(crateID string, cmd CommandMessage, e registry.Entry, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Crate:     crateID,
		Status:    AckFailed,
		Token:     e.Token,
		Record:    e.ID.Record,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// NewStateMessage creates a state message from a reading.
func NewStateMessage(crateID string, r Reading) StateMessage {
	return StateMessage{
		Crate:     crateID,
		Token:     r.Entry.Token,
		Record:    r.Entry.ID.Record,
		Timestamp: time.Now().UTC(),
		Value:     r.Native(),
		Formatted: r.Formatted(),
	}
}

// errorResponse builds a failed ResponseMessage.
func errorResponse(req RequestMessage, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error: &ResponseError{
			Code:    code,
			Message: message,
		},
	}
}

// marshal is json.Marshal for message types that always encode.
func marshal(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return payload, nil
}
