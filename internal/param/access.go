package param

import (
	"github.com/nerrad567/hvcrate-core/internal/hvapi"
	"github.com/nerrad567/hvcrate-core/internal/naming"
)

// Get reads the current value from the device.
//
// Returns:
//   - Value: zero for write-only parameters, otherwise the device value
//   - error: *DeviceAccessError on a failed call, *DiscoveryQueryError for
//     a Param whose kind is outside the closed set
func (p *Param) Get() (Value, error) {
	if p.mode == hvapi.ParamModeWrOnly {
		return Value{}, nil
	}

	switch p.kind {
	case KindNumeric:
		v, err := p.fetch()
		return Float(float64(v.Float)), err
	case KindOnOff, KindBinary:
		v, err := p.fetch()
		return Int(v.Int), err
	case KindChStatus, KindBdStatus:
		v, err := p.fetch()
		return Uint(v.Uint), err
	case KindString:
		v, err := p.fetch()
		return Text(hvapi.Truncate(v.Text, p.textLimit())), err
	case KindInteger:
		v, err := p.fetch()
		return Int(widen(p.width, v)), err
	default:
		return Value{}, p.unknownKind()
	}
}

// Set writes v to the device. Read-only parameters ignore the call.
func (p *Param) Set(v Value) error {
	if p.mode == hvapi.ParamModeRdOnly {
		return nil
	}

	var raw hvapi.Value
	switch p.kind {
	case KindNumeric:
		raw = hvapi.FloatValue(float32(v.Float))
	case KindOnOff, KindBinary:
		raw = hvapi.IntValue(v.Int)
	case KindChStatus, KindBdStatus:
		raw = hvapi.UintValue(v.Uint)
	case KindString:
		raw = hvapi.TextValue(hvapi.Truncate(v.Text, p.textLimit()))
	case KindInteger:
		raw = narrow(p.width, v.Int)
	default:
		return p.unknownKind()
	}
	return p.store(raw)
}

func (p *Param) unknownKind() error {
	return &DiscoveryQueryError{Name: p.name, Query: "kind", Err: ErrUnknownKind}
}

func (p *Param) textLimit() int {
	if p.chName {
		return hvapi.MaxChName
	}
	return hvapi.MaxStringLen
}

func (p *Param) fetch() (hvapi.Value, error) {
	var (
		v   hvapi.Value
		err error
	)

	dev, h := p.bind.Device, p.bind.Handle
	switch p.loc.Scope {
	case naming.ScopeSystem:
		v, err = dev.GetSysProp(h, p.name)
		if err != nil && hvapi.CodeOf(err).NotImplemented() {
			return hvapi.Value{}, nil
		}
	case naming.ScopeBoard:
		v, err = dev.GetBdParam(h, p.loc.Slot, p.name)
	case naming.ScopeChannel:
		if p.chName {
			var name string
			name, err = dev.GetChName(h, p.loc.Slot, p.loc.Channel)
			v = hvapi.TextValue(name)
		} else {
			v, err = dev.GetChParam(h, p.loc.Slot, p.loc.Channel, p.name)
		}
	}

	if err != nil {
		return hvapi.Value{}, newDeviceAccessError("get", p.id.Record, err)
	}
	return v, nil
}

func (p *Param) store(v hvapi.Value) error {
	var err error

	dev, h := p.bind.Device, p.bind.Handle
	switch p.loc.Scope {
	case naming.ScopeSystem:
		err = dev.SetSysProp(h, p.name, v)
	case naming.ScopeBoard:
		err = dev.SetBdParam(h, p.loc.Slot, p.name, v)
	case naming.ScopeChannel:
		if p.chName {
			err = dev.SetChName(h, p.loc.Slot, p.loc.Channel, v.Text)
		} else {
			err = dev.SetChParam(h, p.loc.Slot, p.loc.Channel, p.name, v)
		}
	}

	if err != nil {
		return newDeviceAccessError("set", p.id.Record, err)
	}
	return nil
}

// widen converts a device value to int32 through the physical type.
func widen(w Width, v hvapi.Value) int32 {
	switch w {
	case WidthU8:
		return int32(uint8(v.Uint))
	case WidthU16:
		return int32(uint16(v.Uint))
	case WidthU32:
		return int32(v.Uint)
	case WidthI16:
		return int32(int16(v.Int))
	default:
		return v.Int
	}
}

// narrow converts i to the physical type. Out-of-range values truncate.
func narrow(w Width, i int32) hvapi.Value {
	switch w {
	case WidthU8:
		return hvapi.UintValue(uint32(uint8(i)))
	case WidthU16:
		return hvapi.UintValue(uint32(uint16(i)))
	case WidthU32:
		return hvapi.UintValue(uint32(i))
	case WidthI16:
		return hvapi.IntValue(int32(int16(i)))
	default:
		return hvapi.IntValue(i)
	}
}
