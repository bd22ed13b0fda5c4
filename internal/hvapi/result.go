package hvapi

import (
	"errors"
	"fmt"
)

// Result is the completion code of a device call.
type Result int

// Result codes reported by the controller library.
const (
	ResultOK                   Result = 0
	ResultSysErr               Result = 1
	ResultWriteErr             Result = 2
	ResultReadErr              Result = 3
	ResultTimeErr              Result = 4
	ResultDown                 Result = 5
	ResultNotPres              Result = 6
	ResultSlotNotPres          Result = 7
	ResultNoSerial             Result = 8
	ResultMemoryFault          Result = 9
	ResultOutOfRange           Result = 10
	ResultExecComNotImpl       Result = 11
	ResultGetPropNotImpl       Result = 12
	ResultSetPropNotImpl       Result = 13
	ResultPropNotFound         Result = 14
	ResultExecNotFound         Result = 15
	ResultNotSysProp           Result = 16
	ResultNotGetProp           Result = 17
	ResultNotSetProp           Result = 18
	ResultNotExecComm          Result = 19
	ResultSysConfChange        Result = 20
	ResultParamPropNotFound    Result = 21
	ResultParamNotFound        Result = 22
	ResultNoData               Result = 23
	ResultDevAlreadyOpen       Result = 24
	ResultTooManyDeviceOpen    Result = 25
	ResultInvalidParameter     Result = 26
	ResultFunctionNotAvailable Result = 27
	ResultSocketError          Result = 28
	ResultCommunicationError   Result = 29
	ResultNotYetImplemented    Result = 30
	ResultConnected            Result = 0x1000 + 1
	ResultNotConnected         Result = 0x1000 + 2
	ResultOS                   Result = 0x1000 + 3
	ResultLoginFailed          Result = 0x1000 + 4
	ResultLogoutFailed         Result = 0x1000 + 5
	ResultLinkNotSupported     Result = 0x1000 + 6
	ResultUserPassFailed       Result = 0x1000 + 7
)

var resultNames = map[Result]string{
	ResultOK:                   "OK",
	ResultSysErr:               "SYSERR",
	ResultWriteErr:             "WRITEERR",
	ResultReadErr:              "READERR",
	ResultTimeErr:              "TIMEERR",
	ResultDown:                 "DOWN",
	ResultNotPres:              "NOTPRES",
	ResultSlotNotPres:          "SLOTNOTPRES",
	ResultNoSerial:             "NOSERIAL",
	ResultMemoryFault:          "MEMORYFAULT",
	ResultOutOfRange:           "OUTOFRANGE",
	ResultExecComNotImpl:       "EXECCOMNOTIMPL",
	ResultGetPropNotImpl:       "GETPROPNOTIMPL",
	ResultSetPropNotImpl:       "SETPROPNOTIMPL",
	ResultPropNotFound:         "PROPNOTFOUND",
	ResultExecNotFound:         "EXECNOTFOUND",
	ResultNotSysProp:           "NOTSYSPROP",
	ResultNotGetProp:           "NOTGETPROP",
	ResultNotSetProp:           "NOTSETPROP",
	ResultNotExecComm:          "NOTEXECOMM",
	ResultSysConfChange:        "SYSCONFCHANGE",
	ResultParamPropNotFound:    "PARAMPROPNOTFOUND",
	ResultParamNotFound:        "PARAMNOTFOUND",
	ResultNoData:               "NODATA",
	ResultDevAlreadyOpen:       "DEVALREADYOPEN",
	ResultTooManyDeviceOpen:    "TOOMANYDEVICEOPEN",
	ResultInvalidParameter:     "INVALIDPARAMETER",
	ResultFunctionNotAvailable: "FUNCTIONNOTAVAILABLE",
	ResultSocketError:          "SOCKETERROR",
	ResultCommunicationError:   "COMMUNICATIONERROR",
	ResultNotYetImplemented:    "NOTYETIMPLEMENTED",
	ResultConnected:            "CONNECTED",
	ResultNotConnected:         "NOTCONNECTED",
	ResultOS:                   "OS",
	ResultLoginFailed:          "LOGINFAILED",
	ResultLogoutFailed:         "LOGOUTFAILED",
	ResultLinkNotSupported:     "LINKNOTSUPPORTED",
	ResultUserPassFailed:       "USERPASSFAILED",
}

// String returns the vendor mnemonic for the code.
func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RESULT(%d)", int(r))
}

// NotImplemented reports whether the code means the property exists but
// the controller cannot read it. Set-side codes are not included: a write
// the controller refuses is always an error.
func (r Result) NotImplemented() bool {
	switch r {
	case ResultGetPropNotImpl, ResultNotGetProp:
		return true
	default:
		return false
	}
}

// Error is returned by a Device when a call completes with a code other
// than ResultOK.
type Error struct {
	// Op is the device call that failed (e.g. "GetChParam").
	Op string

	// Code is the completion code reported by the controller.
	Code Result

	// Message is the controller's own description of the last error.
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("hvapi: %s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("hvapi: %s: %s (%s)", e.Op, e.Code, e.Message)
}

// NewError builds an *Error, or returns nil when code is ResultOK.
func NewError(op string, code Result, message string) error {
	if code == ResultOK {
		return nil
	}
	return &Error{Op: op, Code: code, Message: message}
}

// CodeOf extracts the completion code carried by err.
// A nil error is ResultOK; an error that carries no code is ResultSysErr.
func CodeOf(err error) Result {
	if err == nil {
		return ResultOK
	}
	var herr *Error
	if errors.As(err, &herr) {
		return herr.Code
	}
	return ResultSysErr
}

// MessageOf returns the controller message carried by err, or err's text
// when it carries none.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var herr *Error
	if errors.As(err, &herr) && herr.Message != "" {
		return herr.Message
	}
	return err.Error()
}
