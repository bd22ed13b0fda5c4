package sim

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/hvcrate-core/internal/hvapi"
)

// Layout describes the crate the simulator presents.
type Layout struct {
	// SystemProps are the chassis-level properties.
	SystemProps []PropSpec `yaml:"system_props"`

	// Slots is indexed by slot number. A slot with an empty Model is
	// reported as absent.
	Slots []SlotSpec `yaml:"slots"`
}

// PropSpec describes one system property.
type PropSpec struct {
	Name   string  `yaml:"name"`
	Type   string  `yaml:"type"` // str, real, uint2, uint4, int2, int4, boolean
	Mode   string  `yaml:"mode"` // ro, wo, rw
	Number float64 `yaml:"number,omitempty"`
	Text   string  `yaml:"text,omitempty"`
}

// SlotSpec describes one board.
type SlotSpec struct {
	Model       string `yaml:"model"`
	Description string `yaml:"description"`
	Serial      uint16 `yaml:"serial"`
	FirmwareMax uint8  `yaml:"firmware_max"`
	FirmwareMin uint8  `yaml:"firmware_min"`
	Channels    int    `yaml:"channels"`

	// BoardParams are the board-level parameters in enumeration order.
	BoardParams []ParamSpec `yaml:"board_params"`

	// ChannelParams are the parameters of every channel in enumeration order.
	ChannelParams []ParamSpec `yaml:"channel_params"`

	// ChannelName is returned for channels whose name was never set.
	ChannelName string `yaml:"channel_name"`

	// ReportedCount overrides the parameter count returned alongside the
	// channel list when non-zero.
	ReportedCount int `yaml:"reported_count,omitempty"`
}

// ParamSpec describes one board or channel parameter.
type ParamSpec struct {
	Name  string  `yaml:"name"`
	Type  string  `yaml:"type"` // numeric, onoff, chstatus, bdstatus, binary, string, enum
	Mode  string  `yaml:"mode"` // ro, wo, rw
	Min   float64 `yaml:"min,omitempty"`
	Max   float64 `yaml:"max,omitempty"`
	Unit  uint32  `yaml:"unit,omitempty"`
	Exp   int32   `yaml:"exp,omitempty"`
	On    string  `yaml:"on,omitempty"`
	Off   string  `yaml:"off,omitempty"`
	Value float64 `yaml:"value,omitempty"`
	Text  string  `yaml:"text,omitempty"`
}

// LoadLayout reads a YAML layout file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout file: %w", err)
	}
	return ParseLayout(data)
}

// ParseLayout decodes and validates a YAML layout.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks type and mode names and the slot count.
func (l *Layout) Validate() error {
	var errs []string

	if len(l.Slots) > hvapi.MaxSlots {
		errs = append(errs, fmt.Sprintf("%d slots exceeds maximum %d", len(l.Slots), hvapi.MaxSlots))
	}
	for _, p := range l.SystemProps {
		if _, err := parseSysPropType(p.Type); err != nil {
			errs = append(errs, fmt.Sprintf("system property %s: %v", p.Name, err))
		}
		if _, err := parseMode(p.Mode); err != nil {
			errs = append(errs, fmt.Sprintf("system property %s: %v", p.Name, err))
		}
	}
	for i, s := range l.Slots {
		for _, p := range s.BoardParams {
			if err := p.validate(); err != nil {
				errs = append(errs, fmt.Sprintf("slot %d board parameter %s: %v", i, p.Name, err))
			}
		}
		for _, p := range s.ChannelParams {
			if err := p.validate(); err != nil {
				errs = append(errs, fmt.Sprintf("slot %d channel parameter %s: %v", i, p.Name, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidLayout, strings.Join(errs, "; "))
	}
	return nil
}

func (p ParamSpec) validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Name) > hvapi.MaxParamName {
		return fmt.Errorf("name longer than %d characters", hvapi.MaxParamName)
	}
	if _, err := parseParamType(p.Type); err != nil {
		return err
	}
	_, err := parseMode(p.Mode)
	return err
}

func parseMode(s string) (hvapi.ParamMode, error) {
	switch strings.ToLower(s) {
	case "ro", "":
		return hvapi.ParamModeRdOnly, nil
	case "wo":
		return hvapi.ParamModeWrOnly, nil
	case "rw":
		return hvapi.ParamModeRdWr, nil
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return hvapi.ParamMode(n), nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func parseParamType(s string) (hvapi.ParamType, error) {
	switch strings.ToLower(s) {
	case "numeric", "":
		return hvapi.ParamTypeNumeric, nil
	case "onoff":
		return hvapi.ParamTypeOnOff, nil
	case "chstatus":
		return hvapi.ParamTypeChStatus, nil
	case "bdstatus":
		return hvapi.ParamTypeBdStatus, nil
	case "binary":
		return hvapi.ParamTypeBinary, nil
	case "string":
		return hvapi.ParamTypeString, nil
	case "enum":
		return hvapi.ParamTypeEnum, nil
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return hvapi.ParamType(n), nil
	}
	return 0, fmt.Errorf("unknown parameter type %q", s)
}

func parseSysPropType(s string) (hvapi.SysPropType, error) {
	switch strings.ToLower(s) {
	case "str", "string", "":
		return hvapi.SysPropTypeStr, nil
	case "real":
		return hvapi.SysPropTypeReal, nil
	case "uint2":
		return hvapi.SysPropTypeUint2, nil
	case "uint4":
		return hvapi.SysPropTypeUint4, nil
	case "int2":
		return hvapi.SysPropTypeInt2, nil
	case "int4":
		return hvapi.SysPropTypeInt4, nil
	case "boolean":
		return hvapi.SysPropTypeBoolean, nil
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return hvapi.SysPropType(n), nil
	}
	return 0, fmt.Errorf("unknown property type %q", s)
}

// DefaultLayout is a two-slot crate of s1535s boards with two channels each.
func DefaultLayout() *Layout {
	board := SlotSpec{
		Model:       "s1535s",
		Description: "description",
		Serial:      1,
		Channels:    2,
		ChannelName: "s1535",
		BoardParams: []ParamSpec{
			{Name: "BdStatus", Type: "bdstatus", Mode: "ro"},
			{Name: "HVMax", Type: "numeric", Mode: "ro", Min: 0, Max: 3500, Unit: hvapi.UnitVolt, Value: 10},
			{Name: "Temp", Type: "numeric", Mode: "ro", Min: -20, Max: 100, Unit: hvapi.UnitCelsius, Value: 31.5},
		},
		ChannelParams: []ParamSpec{
			{Name: "ChName", Type: "string", Mode: "rw"},
			{Name: "V0Set", Type: "numeric", Mode: "rw", Max: 3500, Unit: hvapi.UnitVolt},
			{Name: "V1Set", Type: "numeric", Mode: "rw", Max: 3500, Unit: hvapi.UnitVolt},
			{Name: "I0Set", Type: "numeric", Mode: "rw", Max: 3000, Unit: hvapi.UnitAmpere, Exp: -6},
			{Name: "I1Set", Type: "numeric", Mode: "rw", Max: 3000, Unit: hvapi.UnitAmpere, Exp: -6},
			{Name: "RUp", Type: "numeric", Mode: "rw", Min: 1, Max: 500, Unit: hvapi.UnitVPS, Value: 50},
			{Name: "RDWn", Type: "numeric", Mode: "rw", Min: 1, Max: 500, Unit: hvapi.UnitVPS, Value: 50},
			{Name: "Trip", Type: "numeric", Mode: "rw", Max: 1000, Unit: hvapi.UnitSecond, Value: 10},
			{Name: "SVMax", Type: "numeric", Mode: "rw", Max: 3500, Unit: hvapi.UnitVolt, Value: 3500},
			{Name: "Pw", Type: "onoff", Mode: "rw", On: "On", Off: "Off"},
			{Name: "POn", Type: "onoff", Mode: "rw", On: "Enabled", Off: "Disabled"},
			{Name: "PDwn", Type: "onoff", Mode: "rw", On: "Ramp", Off: "Kill"},
			{Name: "TripInt", Type: "binary", Mode: "rw", On: "Enabled", Off: "Disabled"},
			{Name: "TripExt", Type: "binary", Mode: "rw", On: "Enabled", Off: "Disabled"},
			{Name: "VMon", Type: "numeric", Mode: "ro", Max: 3500, Unit: hvapi.UnitVolt},
			{Name: "IMon", Type: "numeric", Mode: "ro", Max: 3000, Unit: hvapi.UnitAmpere, Exp: -6},
			{Name: "Status", Type: "chstatus", Mode: "ro"},
		},
	}

	return &Layout{
		SystemProps: []PropSpec{
			{Name: "ModelName", Type: "str", Mode: "ro", Text: "SY4527"},
			{Name: "SwRelease", Type: "str", Mode: "ro", Text: "3.00.01"},
			{Name: "HvPwSM", Type: "str", Mode: "rw", Text: "HvPwSM value"},
			{Name: "GenSignCfg", Type: "uint2", Mode: "rw"},
			{Name: "FrontPanIn", Type: "uint2", Mode: "ro"},
			{Name: "ResFlag", Type: "boolean", Mode: "rw"},
			{Name: "HVFanSpeed", Type: "int4", Mode: "rw", Number: 1},
		},
		Slots: []SlotSpec{board, board},
	}
}
