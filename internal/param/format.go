package param

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders v for display: numbers with their units, on/off states by
// label and status masks in hex with the names of the set bits.
func (p *Param) Format(v Value) string {
	switch p.kind {
	case KindNumeric:
		s := strconv.FormatFloat(v.Float, 'g', -1, 64)
		if p.numeric.Units != "" {
			s += " " + p.numeric.Units
		}
		return s
	case KindOnOff, KindBinary:
		label := p.labels.Off
		if v.Int != 0 {
			label = p.labels.On
		}
		if label == "" {
			return strconv.Itoa(int(v.Int))
		}
		return label
	case KindChStatus, KindBdStatus:
		var names []string
		for _, b := range ActiveBits(p.bits, v.Uint) {
			names = append(names, b.Short)
		}
		return fmt.Sprintf("0x%04X [%s]", v.Uint, strings.Join(names, ", "))
	case KindString:
		return v.Text
	case KindInteger:
		return strconv.Itoa(int(v.Int))
	default:
		return ""
	}
}

// Parse converts text to a Value of the parameter's kind. OnOff and Binary
// parameters also accept their state labels; integers accept 0x prefixes.
func (p *Param) Parse(s string) (Value, error) {
	s = strings.TrimSpace(s)

	switch p.kind {
	case KindNumeric:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, s)
		}
		return Float(f), nil
	case KindOnOff, KindBinary:
		if p.labels.On != "" && strings.EqualFold(s, p.labels.On) {
			return Int(1), nil
		}
		if p.labels.Off != "" && strings.EqualFold(s, p.labels.Off) {
			return Int(0), nil
		}
		return parseInt(s)
	case KindInteger:
		return parseInt(s)
	case KindChStatus, KindBdStatus:
		u, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not an unsigned integer", ErrInvalidValue, s)
		}
		return Uint(uint32(u)), nil
	case KindString:
		return Text(s), nil
	default:
		return Value{}, p.unknownKind()
	}
}

func parseInt(s string) (Value, error) {
	i, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, s)
	}
	return Int(int32(i)), nil
}
