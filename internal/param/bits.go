package param

import "fmt"

// Severity is the alarm level attached to a status bit.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMinor
	SeverityMajor
)

func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "MINOR"
	case SeverityMajor:
		return "MAJOR"
	default:
		return "NO_ALARM"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a name written by MarshalText.
func (s *Severity) UnmarshalText(text []byte) error {
	for _, sev := range []Severity{SeverityNone, SeverityMinor, SeverityMajor} {
		if sev.String() == string(text) {
			*s = sev
			return nil
		}
	}
	return fmt.Errorf("param: unknown severity %q", text)
}

// Bit describes one bit of a status bitmask. The entry with a zero Mask
// describes the state where no bit is set.
type Bit struct {
	Mask        uint32   `json:"mask"`
	Suffix      string   `json:"suffix"`
	Description string   `json:"description"`
	Short       string   `json:"short"`
	Severity    Severity `json:"severity"`
}

var boardChStatusBits = []Bit{
	{0x000, "", "", "Off", SeverityNone},
	{0x001, "_ON", "Ch is on", "On", SeverityNone},
	{0x002, "_RU", "Ch is ramping up", "Ramping Up", SeverityNone},
	{0x004, "_RD", "Ch is ramping down", "Ramping Down", SeverityNone},
	{0x008, "_OC", "Ch is in overcurrent", "Over-Current", SeverityMajor},
	{0x010, "_OV", "Ch is in overvoltage", "Over-Voltage", SeverityMajor},
	{0x020, "_UV", "Ch is in undervoltage", "Under-Voltage", SeverityMajor},
	{0x040, "_ET", "Ch is in external trip", "External Trip", SeverityMajor},
	{0x080, "_MV", "Ch is in max V", "Max V", SeverityMajor},
	{0x100, "_ED", "Ch is in external disable", "Ext. Disable", SeverityMajor},
	{0x200, "_IT", "Ch is in internal trip", "Internal Trip", SeverityMajor},
	{0x400, "_CE", "Ch is in calibration error", "Calib. Error", SeverityMajor},
	{0x800, "_UN", "Ch is unplugged", "Unplugged", SeverityMajor},
}

var channelChStatusBits = append(append([]Bit(nil), boardChStatusBits...),
	Bit{0x2000, "_OVP", "Ch is in OverVoltage Protection", "Over-Volt Prot.", SeverityMajor},
	Bit{0x4000, "_PF", "Ch is in Power Fail", "Power Fail", SeverityMajor},
	Bit{0x8000, "_TE", "Ch is in Temperature Error", "Temp Error", SeverityMajor},
)

var bdStatusBits = []Bit{
	{0x000, "", "", "Ok", SeverityNone},
	{0x001, "_PF", "Bd is in power-fail status", "Power Fail", SeverityMajor},
	{0x002, "_FCE", "Bd has a firmware checksum error", "Checksum Err", SeverityMajor},
	{0x004, "_CEHV", "Bd has calibration error on HV", "Calib. Error", SeverityMajor},
	{0x008, "_CET", "Bd has a calibration error on temp", "Temp Error", SeverityMajor},
	{0x010, "_UT", "Bd is in under-temperature status", "Under-temp", SeverityMajor},
	{0x020, "_OT", "Bd is in over-temperature status", "Over-temp", SeverityMajor},
}

// ActiveBits returns the entries of table whose bit is set in v, or the
// zero-mask entry when no described bit is set.
func ActiveBits(table []Bit, v uint32) []Bit {
	var active []Bit
	var idle *Bit
	for i := range table {
		b := table[i]
		if b.Mask == 0 {
			idle = &table[i]
			continue
		}
		if v&b.Mask != 0 {
			active = append(active, b)
		}
	}
	if len(active) == 0 && idle != nil {
		active = append(active, *idle)
	}
	return active
}

// MaxSeverity returns the highest severity among bits.
func MaxSeverity(bits []Bit) Severity {
	s := SeverityNone
	for _, b := range bits {
		if b.Severity > s {
			s = b.Severity
		}
	}
	return s
}
