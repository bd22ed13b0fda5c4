package hvapi

import (
	"fmt"
	"strconv"
	"strings"
)

// Size limits of the vendor library.
const (
	// MaxParamName is the stride of a packed parameter name list.
	MaxParamName = 10

	// MaxChName is the size of a channel name buffer, terminator included.
	MaxChName = 12

	// MaxSlots is the largest slot count a crate map may report.
	MaxSlots = 32

	// MaxStringLen is the size of the buffer used for string values.
	MaxStringLen = 4096
)

// Handle identifies an open connection to a controller.
type Handle int

// LinkType selects the transport used by InitSystem.
type LinkType int

// Link types.
const (
	LinkTCPIP   LinkType = 0
	LinkRS232   LinkType = 1
	LinkCAENET  LinkType = 2
	LinkUSB     LinkType = 3
	LinkOptLink LinkType = 4
	LinkUSBVCP  LinkType = 5
)

// SystemType is the controller family.
type SystemType int

// System types.
const (
	SY1527 SystemType = 0
	SY2527 SystemType = 1
	SY4527 SystemType = 2
	SY5527 SystemType = 3
	N568   SystemType = 4
	V65XX  SystemType = 5
	N1470  SystemType = 6
	V8100  SystemType = 7
	N568E  SystemType = 8
	DT55XX SystemType = 9
)

var systemTypeNames = []string{
	"SY1527", "SY2527", "SY4527", "SY5527", "N568", "V65XX", "N1470", "V8100", "N568E", "DT55XX",
}

func (s SystemType) String() string {
	if s >= 0 && int(s) < len(systemTypeNames) {
		return systemTypeNames[s]
	}
	return fmt.Sprintf("SystemType(%d)", int(s))
}

// IsMainframe reports whether s is one of the SYx527 mainframes, the only
// families whose crate layout is discovered by this module.
func (s SystemType) IsMainframe() bool {
	return s >= SY1527 && s <= SY5527
}

// ParseSystemType accepts a family name ("SY4527", case-insensitive) or its
// numeric code ("2").
func ParseSystemType(s string) (SystemType, error) {
	s = strings.TrimSpace(s)
	for i, name := range systemTypeNames {
		if strings.EqualFold(s, name) {
			return SystemType(i), nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown system type %q", s)
	}
	return SystemType(n), nil
}

// ParamType is the type code of a board or channel parameter.
type ParamType uint32

// Parameter type codes.
const (
	ParamTypeNumeric  ParamType = 0
	ParamTypeOnOff    ParamType = 1
	ParamTypeChStatus ParamType = 2
	ParamTypeBdStatus ParamType = 3
	ParamTypeBinary   ParamType = 4
	ParamTypeString   ParamType = 5
	ParamTypeEnum     ParamType = 6
)

// ParamMode is the access mode code of a board or channel parameter.
type ParamMode uint32

// Parameter mode codes.
const (
	ParamModeRdOnly ParamMode = 0
	ParamModeWrOnly ParamMode = 1
	ParamModeRdWr   ParamMode = 2
)

// SysPropType is the type code of a system property.
type SysPropType uint32

// System property type codes.
const (
	SysPropTypeStr     SysPropType = 0
	SysPropTypeReal    SysPropType = 1
	SysPropTypeUint2   SysPropType = 2
	SysPropTypeUint4   SysPropType = 3
	SysPropTypeInt2    SysPropType = 4
	SysPropTypeInt4    SysPropType = 5
	SysPropTypeBoolean SysPropType = 6
)

// SysPropMode is the access mode code of a system property.
// Its values coincide with ParamMode.
type SysPropMode uint32

// System property mode codes.
const (
	SysPropModeRdOnly SysPropMode = 0
	SysPropModeWrOnly SysPropMode = 1
	SysPropModeRdWr   SysPropMode = 2
)

// Unit codes reported by the "Unit" property of numeric parameters.
const (
	UnitNone    = 0
	UnitAmpere  = 1
	UnitVolt    = 2
	UnitWatt    = 3
	UnitCelsius = 4
	UnitHertz   = 5
	UnitBar     = 6
	UnitVPS     = 7
	UnitSecond  = 8
	UnitRPM     = 9
	UnitCount   = 10
	UnitBit     = 11
)

// Property names queried on board and channel parameters.
const (
	PropType     = "Type"
	PropMode     = "Mode"
	PropMinval   = "Minval"
	PropMaxval   = "Maxval"
	PropUnit     = "Unit"
	PropExp      = "Exp"
	PropOnstate  = "Onstate"
	PropOffstate = "Offstate"
)

// Value is a raw value exchanged with the controller. Which field is
// meaningful depends on the type code of the parameter or property.
//
//   - Float: numeric parameters and REAL system properties
//   - Uint: type/mode/unit properties, status bitmasks, unsigned properties
//   - Int: on/off and binary parameters, signed properties, the "Exp" property
//   - Text: string parameters and properties, on/off labels
type Value struct {
	Float float32
	Uint  uint32
	Int   int32
	Text  string
}

// FloatValue wraps f as a Value.
func FloatValue(f float32) Value { return Value{Float: f} }

// UintValue wraps u as a Value.
func UintValue(u uint32) Value { return Value{Uint: u} }

// IntValue wraps i as a Value.
func IntValue(i int32) Value { return Value{Int: i} }

// TextValue wraps s as a Value.
func TextValue(s string) Value { return Value{Text: s} }

// SlotInfo is one entry of the crate map.
type SlotInfo struct {
	Model       string
	Description string
	Channels    int
	Serial      uint16
	FirmwareMin uint8
	FirmwareMax uint8
}

// CrateMap is the slot table reported by the controller. Slots holds one
// entry per reported slot; absent slots carry an empty Model.
type CrateMap struct {
	Slots []SlotInfo
}
