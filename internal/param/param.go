package param

import (
	"github.com/nerrad567/hvcrate-core/internal/hvapi"
	"github.com/nerrad567/hvcrate-core/internal/naming"
)

// ChannelNameParam is the raw name of the per-channel name pseudo-parameter.
const ChannelNameParam = "Name"

// Binding is the connection a Param talks through.
type Binding struct {
	Device hvapi.Device
	Handle hvapi.Handle
}

// NumericMeta holds the bounds and unit label of a Numeric parameter.
type NumericMeta struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Units string  `json:"units"`
}

// Labels are the state names of an OnOff or Binary parameter.
type Labels struct {
	On  string `json:"on"`
	Off string `json:"off"`
}

// Param is one discovered parameter. It is immutable after construction.
type Param struct {
	kind   Kind
	width  Width
	name   string
	loc    Location
	mode   hvapi.ParamMode
	id     naming.Identifier
	bind   Binding
	chName bool

	numeric NumericMeta
	labels  Labels
	bits    []Bit
}

func (p *Param) Kind() Kind                    { return p.kind }
func (p *Param) Width() Width                  { return p.width }
func (p *Param) Name() string                  { return p.name }
func (p *Param) Location() Location            { return p.loc }
func (p *Param) Mode() hvapi.ParamMode         { return p.mode }
func (p *Param) Identifier() naming.Identifier { return p.id }

// Numeric returns the bounds and units of a Numeric parameter.
func (p *Param) Numeric() NumericMeta { return p.numeric }

// Labels returns the state names of an OnOff or Binary parameter.
func (p *Param) Labels() Labels { return p.labels }

// Bits returns the bit table of a ChStatus or BdStatus parameter. The
// slice is shared and must not be modified.
func (p *Param) Bits() []Bit { return p.bits }

// Readable reports whether Get reaches the device.
func (p *Param) Readable() bool { return p.mode != hvapi.ParamModeWrOnly }

// Writable reports whether Set reaches the device.
func (p *Param) Writable() bool { return p.mode != hvapi.ParamModeRdOnly }

func newParam(b Binding, kind Kind, loc Location, name string, mode hvapi.ParamMode) *Param {
	return &Param{
		kind: kind,
		name: name,
		loc:  loc,
		mode: mode,
		id:   naming.Identify(loc.Scope, loc.Slot, loc.Channel, name, mode),
		bind: b,
	}
}

// New builds a board or channel parameter from its device type code.
// Type codes without a kind return a *DiscoveryQueryError wrapping
// ErrUnsupportedType.
func New(b Binding, loc Location, name string, typ hvapi.ParamType, mode hvapi.ParamMode) (*Param, error) {
	switch typ {
	case hvapi.ParamTypeNumeric:
		return NewNumeric(b, loc, name, mode)
	case hvapi.ParamTypeOnOff:
		return NewOnOff(b, loc, name, mode)
	case hvapi.ParamTypeChStatus:
		return NewChStatus(b, loc, name, mode), nil
	case hvapi.ParamTypeBdStatus:
		return NewBdStatus(b, loc, name, mode), nil
	case hvapi.ParamTypeBinary:
		return NewBinary(b, loc, name, mode)
	case hvapi.ParamTypeString:
		return NewString(b, loc, name, mode), nil
	default:
		return nil, &DiscoveryQueryError{Name: name, Query: hvapi.PropType, Err: ErrUnsupportedType}
	}
}

// NewNumeric builds a Numeric parameter, fetching its bounds, unit and
// exponent. Properties the controller does not implement default to zero.
func NewNumeric(b Binding, loc Location, name string, mode hvapi.ParamMode) (*Param, error) {
	p := newParam(b, KindNumeric, loc, name, mode)
	if loc.Scope == naming.ScopeSystem {
		return p, nil
	}

	minv, err := p.prop(hvapi.PropMinval)
	if err != nil {
		return nil, err
	}
	maxv, err := p.prop(hvapi.PropMaxval)
	if err != nil {
		return nil, err
	}
	unit, err := p.prop(hvapi.PropUnit)
	if err != nil {
		return nil, err
	}
	exp, err := p.prop(hvapi.PropExp)
	if err != nil {
		return nil, err
	}

	p.numeric = NumericMeta{
		Min:   float64(minv.Float),
		Max:   float64(maxv.Float),
		Units: UnitString(unit.Uint, exp.Int),
	}
	return p, nil
}

// NewOnOff builds an OnOff parameter, fetching its state labels.
func NewOnOff(b Binding, loc Location, name string, mode hvapi.ParamMode) (*Param, error) {
	return newLabelled(b, KindOnOff, loc, name, mode)
}

// NewBinary builds a Binary parameter, fetching its state labels.
func NewBinary(b Binding, loc Location, name string, mode hvapi.ParamMode) (*Param, error) {
	return newLabelled(b, KindBinary, loc, name, mode)
}

func newLabelled(b Binding, kind Kind, loc Location, name string, mode hvapi.ParamMode) (*Param, error) {
	p := newParam(b, kind, loc, name, mode)

	on, err := p.prop(hvapi.PropOnstate)
	if err != nil {
		return nil, err
	}
	off, err := p.prop(hvapi.PropOffstate)
	if err != nil {
		return nil, err
	}

	p.labels = Labels{On: on.Text, Off: off.Text}
	return p, nil
}

// NewChStatus builds a channel status bitmask. Channel-scope parameters get
// the extended bit table.
func NewChStatus(b Binding, loc Location, name string, mode hvapi.ParamMode) *Param {
	p := newParam(b, KindChStatus, loc, name, mode)
	if loc.Scope == naming.ScopeChannel {
		p.bits = channelChStatusBits
	} else {
		p.bits = boardChStatusBits
	}
	return p
}

// NewBdStatus builds a board status bitmask.
func NewBdStatus(b Binding, loc Location, name string, mode hvapi.ParamMode) *Param {
	p := newParam(b, KindBdStatus, loc, name, mode)
	p.bits = bdStatusBits
	return p
}

// NewString builds a String parameter.
func NewString(b Binding, loc Location, name string, mode hvapi.ParamMode) *Param {
	return newParam(b, KindString, loc, name, mode)
}

// NewInteger builds an Integer parameter backed by width.
func NewInteger(b Binding, loc Location, name string, mode hvapi.ParamMode, width Width) *Param {
	p := newParam(b, KindInteger, loc, name, mode)
	p.width = width
	return p
}

// NewChannelName builds the name pseudo-parameter of a channel. It reads
// and writes through the dedicated channel name calls.
func NewChannelName(b Binding, slot, channel int, mode hvapi.ParamMode) *Param {
	p := newParam(b, KindString, Channel(slot, channel), ChannelNameParam, mode)
	p.chName = true
	return p
}

// NewSystemProperty classifies a system property by its type code.
// Unsupported codes return a *DiscoveryQueryError wrapping
// ErrUnsupportedType.
func NewSystemProperty(b Binding, name string, mode hvapi.SysPropMode, typ hvapi.SysPropType) (*Param, error) {
	m := hvapi.ParamMode(mode)
	loc := System()

	switch typ {
	case hvapi.SysPropTypeStr:
		return NewString(b, loc, name, m), nil
	case hvapi.SysPropTypeReal:
		return NewNumeric(b, loc, name, m)
	case hvapi.SysPropTypeUint2:
		return NewInteger(b, loc, name, m, WidthU16), nil
	case hvapi.SysPropTypeUint4:
		return NewInteger(b, loc, name, m, WidthU32), nil
	case hvapi.SysPropTypeInt2:
		return NewInteger(b, loc, name, m, WidthI16), nil
	case hvapi.SysPropTypeInt4:
		return NewInteger(b, loc, name, m, WidthI32), nil
	case hvapi.SysPropTypeBoolean:
		return NewInteger(b, loc, name, m, WidthU8), nil
	default:
		return nil, &DiscoveryQueryError{Name: name, Query: "SysPropInfo", Err: ErrUnsupportedType}
	}
}

// prop fetches one metadata property. Not-implemented results yield the
// zero Value.
func (p *Param) prop(name string) (hvapi.Value, error) {
	var (
		v   hvapi.Value
		err error
	)
	switch p.loc.Scope {
	case naming.ScopeBoard:
		v, err = p.bind.Device.BdParamProp(p.bind.Handle, p.loc.Slot, p.name, name)
	case naming.ScopeChannel:
		v, err = p.bind.Device.ChParamProp(p.bind.Handle, p.loc.Slot, p.loc.Channel, p.name, name)
	default:
		return hvapi.Value{}, nil
	}
	if err != nil {
		if hvapi.CodeOf(err).NotImplemented() {
			return hvapi.Value{}, nil
		}
		return hvapi.Value{}, &DiscoveryQueryError{Name: p.name, Query: name, Err: err}
	}
	return v, nil
}
