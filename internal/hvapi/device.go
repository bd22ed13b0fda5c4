package hvapi

// Device is the vendor controller library.
//
// Every method returns nil on ResultOK and an *Error otherwise. A call may
// block on network I/O; a bounded timeout is the implementation's job and
// surfaces as ResultTimeErr. Implementations need not be safe for concurrent
// use: callers issue at most one call at a time per handle.
type Device interface {
	// InitSystem opens a connection and returns its handle.
	InitSystem(sys SystemType, link LinkType, address, username, password string) (Handle, error)

	// DeinitSystem releases a handle.
	DeinitSystem(h Handle) error

	// SysPropList returns the names of the system properties.
	SysPropList(h Handle) ([]string, error)

	// SysPropInfo returns the mode and type of one system property.
	SysPropInfo(h Handle, name string) (SysPropMode, SysPropType, error)

	GetSysProp(h Handle, name string) (Value, error)
	SetSysProp(h Handle, name string, v Value) error

	// CrateMap returns the slot table.
	CrateMap(h Handle) (CrateMap, error)

	// BdParamInfo returns the parameter names of the board in slot.
	BdParamInfo(h Handle, slot int) ([]string, error)

	// BdParamProp returns one property ("Type", "Minval", ...) of a board parameter.
	BdParamProp(h Handle, slot int, param, prop string) (Value, error)

	GetBdParam(h Handle, slot int, param string) (Value, error)
	SetBdParam(h Handle, slot int, param string, v Value) error

	// ChParamInfo returns the parameter names of one channel together with
	// the count reported by the controller. The list may be longer than
	// count or end early; callers use the shorter of the two.
	ChParamInfo(h Handle, slot, channel int) (names []string, count int, err error)

	// ChParamProp returns one property of a channel parameter.
	ChParamProp(h Handle, slot, channel int, param, prop string) (Value, error)

	GetChParam(h Handle, slot, channel int, param string) (Value, error)
	SetChParam(h Handle, slot, channel int, param string, v Value) error

	GetChName(h Handle, slot, channel int) (string, error)
	SetChName(h Handle, slot, channel int, name string) error
}
