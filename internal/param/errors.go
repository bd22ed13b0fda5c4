package param

import (
	"errors"
	"fmt"

	"github.com/nerrad567/hvcrate-core/internal/hvapi"
)

var (
	// ErrDeviceAccess matches every *DeviceAccessError.
	ErrDeviceAccess = errors.New("param: device access failed")

	// ErrDiscoveryQuery matches every *DiscoveryQueryError.
	ErrDiscoveryQuery = errors.New("param: discovery query failed")

	// ErrUnsupportedType is wrapped when a device type code has no kind.
	ErrUnsupportedType = errors.New("param: unsupported type code")

	// ErrUnknownKind is wrapped when a Param carries a kind outside the
	// closed set.
	ErrUnknownKind = errors.New("param: unknown kind")

	// ErrInvalidValue is returned when text cannot be parsed for a kind.
	ErrInvalidValue = errors.New("param: invalid value")
)

// DeviceAccessError is a failed get or set at runtime.
type DeviceAccessError struct {
	// Op is "get" or "set".
	Op string

	// Record is the record name of the parameter.
	Record string

	Code    hvapi.Result
	Message string

	// Err is the device error.
	Err error
}

func (e *DeviceAccessError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("param: %s %s: %s (%s)", e.Op, e.Record, e.Code, e.Message)
	}
	return fmt.Sprintf("param: %s %s: %s", e.Op, e.Record, e.Code)
}

func (e *DeviceAccessError) Unwrap() error { return e.Err }

func (e *DeviceAccessError) Is(target error) bool { return target == ErrDeviceAccess }

func newDeviceAccessError(op, record string, err error) error {
	return &DeviceAccessError{
		Op:      op,
		Record:  record,
		Code:    hvapi.CodeOf(err),
		Message: hvapi.MessageOf(err),
		Err:     err,
	}
}

// DiscoveryQueryError is a failed metadata query or an unclassifiable
// parameter. During discovery it causes one parameter to be skipped.
type DiscoveryQueryError struct {
	// Name is the raw device name of the parameter.
	Name string

	// Query is the property or call that failed ("Type", "Minval",
	// "SysPropInfo", "kind").
	Query string

	Err error
}

func (e *DiscoveryQueryError) Error() string {
	return fmt.Sprintf("param: discovery of %s: %s: %v", e.Name, e.Query, e.Err)
}

func (e *DiscoveryQueryError) Unwrap() error { return e.Err }

func (e *DiscoveryQueryError) Is(target error) bool { return target == ErrDiscoveryQuery }
