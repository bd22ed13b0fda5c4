package param

import "github.com/nerrad567/hvcrate-core/internal/hvapi"

var unitSymbols = map[uint32]string{
	hvapi.UnitAmpere:  "A",
	hvapi.UnitVolt:    "V",
	hvapi.UnitWatt:    "W",
	hvapi.UnitCelsius: "C",
	hvapi.UnitHertz:   "Hz",
	hvapi.UnitBar:     "Bar",
	hvapi.UnitVPS:     "VPS",
	hvapi.UnitSecond:  "s",
	hvapi.UnitRPM:     "rpm",
	hvapi.UnitCount:   "counts",
	hvapi.UnitBit:     "bit",
}

// UnitString combines a unit code and a decimal exponent into a unit label
// such as "uA" or "kV". A dimensionless unit yields "" whatever the
// exponent; an unknown unit code yields "???".
func UnitString(unit uint32, exp int32) string {
	if unit == hvapi.UnitNone {
		return ""
	}
	sym, ok := unitSymbols[unit]
	if !ok {
		return "???"
	}
	return unitPrefix(exp) + sym
}

func unitPrefix(exp int32) string {
	switch exp {
	case 6:
		return "M"
	case 3:
		return "k"
	case -3:
		return "m"
	case -6:
		return "u"
	default:
		return ""
	}
}
