package param

import (
	"errors"
	"testing"

	"github.com/nerrad567/hvcrate-core/internal/hvapi"
	"github.com/nerrad567/hvcrate-core/internal/hvapi/sim"
)

func testLayout() *sim.Layout {
	return &sim.Layout{
		SystemProps: []sim.PropSpec{
			{Name: "ModelName", Type: "str", Mode: "ro", Text: "SY4527"},
			{Name: "Cmd", Type: "str", Mode: "wo"},
			{Name: "Counter", Type: "uint2", Mode: "rw"},
			{Name: "Big", Type: "uint4", Mode: "rw"},
			{Name: "Offset", Type: "int2", Mode: "rw"},
			{Name: "Flag", Type: "boolean", Mode: "rw"},
			{Name: "Temp", Type: "real", Mode: "ro", Number: 24.5},
		},
		Slots: []sim.SlotSpec{{
			Model:       "A1535",
			Channels:    2,
			ChannelName: "CH",
			BoardParams: []sim.ParamSpec{
				{Name: "HVMax", Type: "numeric", Mode: "ro", Max: 3500, Unit: hvapi.UnitVolt, Value: 3000},
				{Name: "Secret", Type: "numeric", Mode: "wo"},
				{Name: "BdStatus", Type: "bdstatus", Mode: "ro"},
			},
			ChannelParams: []sim.ParamSpec{
				{Name: "V0Set", Type: "numeric", Mode: "rw", Min: 0, Max: 500, Unit: hvapi.UnitVolt},
				{Name: "IMon", Type: "numeric", Mode: "ro", Max: 3000, Unit: hvapi.UnitAmpere, Exp: -6},
				{Name: "Pw", Type: "onoff", Mode: "rw", On: "On", Off: "Off"},
				{Name: "TripInt", Type: "binary", Mode: "rw", On: "Enabled", Off: "Disabled"},
				{Name: "Status", Type: "chstatus", Mode: "rw"},
				{Name: "Key", Type: "string", Mode: "wo"},
			},
		}},
	}
}

func openSim(t *testing.T) (*sim.Device, Binding) {
	t.Helper()
	d := sim.New(testLayout())
	h, err := d.InitSystem(hvapi.SY4527, hvapi.LinkTCPIP, "10.0.0.1", "", "")
	if err != nil {
		t.Fatalf("InitSystem() error = %v", err)
	}
	return d, Binding{Device: d, Handle: h}
}

func TestWriteOnlyGetMakesNoCalls(t *testing.T) {
	d, b := openSim(t)

	params := []*Param{
		mustNew(t, b, Board(0), "Secret", hvapi.ParamTypeNumeric, hvapi.ParamModeWrOnly),
		mustNew(t, b, Channel(0, 1), "Key", hvapi.ParamTypeString, hvapi.ParamModeWrOnly),
		NewChStatus(b, Channel(0, 0), "Status", hvapi.ParamModeWrOnly),
		NewInteger(b, System(), "Counter", hvapi.ParamModeWrOnly, WidthU16),
		NewChannelName(b, 0, 0, hvapi.ParamModeWrOnly),
	}

	for _, p := range params {
		t.Run(p.Identifier().Short, func(t *testing.T) {
			d.ResetCalls()
			v, err := p.Get()
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if v != (Value{}) {
				t.Errorf("Get() = %+v, want zero", v)
			}
			if n := d.Calls(); n != 0 {
				t.Errorf("device calls = %d, want 0", n)
			}
		})
	}
}

func TestReadOnlySetMakesNoCalls(t *testing.T) {
	d, b := openSim(t)

	params := []*Param{
		mustNew(t, b, Board(0), "HVMax", hvapi.ParamTypeNumeric, hvapi.ParamModeRdOnly),
		mustNew(t, b, Channel(0, 0), "Pw", hvapi.ParamTypeOnOff, hvapi.ParamModeRdOnly),
		NewString(b, System(), "ModelName", hvapi.ParamModeRdOnly),
		NewChannelName(b, 0, 1, hvapi.ParamModeRdOnly),
	}

	for _, p := range params {
		t.Run(p.Identifier().Short, func(t *testing.T) {
			d.ResetCalls()
			if err := p.Set(Value{Float: 1, Int: 1, Text: "x"}); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if n := d.Calls(); n != 0 {
				t.Errorf("device calls = %d, want 0", n)
			}
		})
	}
}

func TestNumericRoundTrip(t *testing.T) {
	_, b := openSim(t)

	p, err := NewNumeric(b, Channel(0, 1), "V0Set", hvapi.ParamModeRdWr)
	if err != nil {
		t.Fatalf("NewNumeric() error = %v", err)
	}
	want := NumericMeta{Min: 0, Max: 500, Units: "V"}
	if p.Numeric() != want {
		t.Errorf("Numeric() = %+v, want %+v", p.Numeric(), want)
	}

	if err := p.Set(Float(250)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, err := p.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v.Float != 250.0 {
		t.Errorf("Get() = %v, want 250", v.Float)
	}
}

func TestNumericMetadata(t *testing.T) {
	_, b := openSim(t)

	p := mustNew(t, b, Channel(0, 0), "IMon", hvapi.ParamTypeNumeric, hvapi.ParamModeRdOnly)
	if p.Numeric().Units != "uA" || p.Numeric().Max != 3000 {
		t.Errorf("Numeric() = %+v", p.Numeric())
	}
	if got := p.Identifier().Record; got != "S00:C00:IMON" {
		t.Errorf("Record = %q", got)
	}
}

func TestMetadataNotImplementedDefaults(t *testing.T) {
	d, b := openSim(t)
	d.FailOn(sim.ChPropKey(0, 0, "V0Set", hvapi.PropUnit), hvapi.ResultGetPropNotImpl)
	d.FailOn(sim.ChPropKey(0, 0, "Pw", hvapi.PropOnstate), hvapi.ResultNotGetProp)

	p, err := NewNumeric(b, Channel(0, 0), "V0Set", hvapi.ParamModeRdWr)
	if err != nil {
		t.Fatalf("NewNumeric() error = %v", err)
	}
	if p.Numeric().Units != "" || p.Numeric().Max != 500 {
		t.Errorf("Numeric() = %+v", p.Numeric())
	}

	p, err = NewOnOff(b, Channel(0, 0), "Pw", hvapi.ParamModeRdWr)
	if err != nil {
		t.Fatalf("NewOnOff() error = %v", err)
	}
	if p.Labels() != (Labels{On: "", Off: "Off"}) {
		t.Errorf("Labels() = %+v", p.Labels())
	}
}

func TestMetadataFailure(t *testing.T) {
	d, b := openSim(t)
	d.FailOn(sim.ChPropKey(0, 1, "V0Set", hvapi.PropMaxval), hvapi.ResultCommunicationError)

	_, err := NewNumeric(b, Channel(0, 1), "V0Set", hvapi.ParamModeRdWr)
	if !errors.Is(err, ErrDiscoveryQuery) {
		t.Fatalf("error = %v, want ErrDiscoveryQuery", err)
	}
	var dq *DiscoveryQueryError
	if !errors.As(err, &dq) || dq.Query != hvapi.PropMaxval {
		t.Errorf("DiscoveryQueryError = %+v", dq)
	}
}

func TestNewUnsupportedType(t *testing.T) {
	_, b := openSim(t)

	_, err := New(b, Board(0), "Mode", hvapi.ParamTypeEnum, hvapi.ParamModeRdWr)
	if !errors.Is(err, ErrUnsupportedType) || !errors.Is(err, ErrDiscoveryQuery) {
		t.Errorf("error = %v, want unsupported type", err)
	}

	_, err = NewSystemProperty(b, "Weird", hvapi.SysPropModeRdOnly, hvapi.SysPropType(42))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("system error = %v, want unsupported type", err)
	}
}

func TestDeviceAccessError(t *testing.T) {
	d, b := openSim(t)
	d.FailOn(sim.GetBdParamKey(0, "HVMax"), hvapi.ResultTimeErr)
	d.FailOn(sim.GetChParamKey(0, 0, "V0Set"), hvapi.ResultGetPropNotImpl)

	p := mustNew(t, b, Board(0), "HVMax", hvapi.ParamTypeNumeric, hvapi.ParamModeRdOnly)
	_, err := p.Get()
	var dae *DeviceAccessError
	if !errors.As(err, &dae) {
		t.Fatalf("error = %v, want *DeviceAccessError", err)
	}
	if dae.Code != hvapi.ResultTimeErr || dae.Op != "get" || dae.Record != "S00:HVMAX" {
		t.Errorf("DeviceAccessError = %+v", dae)
	}
	if !errors.Is(err, ErrDeviceAccess) {
		t.Error("errors.Is(err, ErrDeviceAccess) = false")
	}

	// Not-implemented is an error at board and channel scope.
	p = mustNew(t, b, Channel(0, 0), "V0Set", hvapi.ParamTypeNumeric, hvapi.ParamModeRdWr)
	if _, err := p.Get(); hvapi.CodeOf(errors.Unwrap(err)) != hvapi.ResultGetPropNotImpl {
		t.Errorf("channel not-implemented error = %v", err)
	}

	// A set on a read-only device parameter declared writable surfaces too.
	p = mustNew(t, b, Channel(0, 0), "IMon", hvapi.ParamTypeNumeric, hvapi.ParamModeRdWr)
	if err := p.Set(Float(1)); !errors.Is(err, ErrDeviceAccess) {
		t.Errorf("Set() error = %v, want ErrDeviceAccess", err)
	}
}

func TestSystemNotImplementedTolerated(t *testing.T) {
	d, b := openSim(t)
	d.FailOn(sim.GetSysPropKey("ModelName"), hvapi.ResultGetPropNotImpl)
	d.FailOn(sim.GetSysPropKey("Temp"), hvapi.ResultNotGetProp)
	d.FailOn(sim.GetSysPropKey("Big"), hvapi.ResultTimeErr)

	p := NewString(b, System(), "ModelName", hvapi.ParamModeRdOnly)
	v, err := p.Get()
	if err != nil || v.Text != "" {
		t.Errorf("Get() = %+v, %v; want zero, nil", v, err)
	}

	p, err = NewSystemProperty(b, "Temp", hvapi.SysPropModeRdOnly, hvapi.SysPropTypeReal)
	if err != nil {
		t.Fatalf("NewSystemProperty() error = %v", err)
	}
	if v, err := p.Get(); err != nil || v.Float != 0 {
		t.Errorf("Get() = %+v, %v; want zero, nil", v, err)
	}

	p = NewInteger(b, System(), "Big", hvapi.ParamModeRdWr, WidthU32)
	if _, err := p.Get(); !errors.Is(err, ErrDeviceAccess) {
		t.Errorf("Get() error = %v, want ErrDeviceAccess", err)
	}
}

func TestSystemSetRefusedIsError(t *testing.T) {
	for _, code := range []hvapi.Result{hvapi.ResultSetPropNotImpl, hvapi.ResultNotSetProp} {
		t.Run(code.String(), func(t *testing.T) {
			d, b := openSim(t)
			d.FailOn(sim.SetSysPropKey("Counter"), code)

			p := NewInteger(b, System(), "Counter", hvapi.ParamModeRdWr, WidthU16)
			err := p.Set(Int(5))
			var dae *DeviceAccessError
			if !errors.As(err, &dae) {
				t.Fatalf("Set() error = %v, want *DeviceAccessError", err)
			}
			if dae.Code != code || dae.Op != "set" {
				t.Errorf("DeviceAccessError = %+v", dae)
			}
		})
	}
}

func TestIntegerWidths(t *testing.T) {
	_, b := openSim(t)

	tests := []struct {
		name  string
		prop  string
		width Width
		set   int32
		want  int32
	}{
		{"u16 in range", "Counter", WidthU16, 1234, 1234},
		{"u16 truncates", "Counter", WidthU16, 70000, 70000 - 65536},
		{"u16 negative", "Counter", WidthU16, -1, 65535},
		{"i16 wraps", "Offset", WidthI16, 40000, 40000 - 65536},
		{"u8 truncates", "Flag", WidthU8, 300, 44},
		{"u32 sign", "Big", WidthU32, -2, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewInteger(b, System(), tt.prop, hvapi.ParamModeRdWr, tt.width)
			if err := p.Set(Int(tt.set)); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			v, err := p.Get()
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if v.Int != tt.want {
				t.Errorf("Get() = %d, want %d", v.Int, tt.want)
			}
		})
	}
}

func TestSystemPropertyClassification(t *testing.T) {
	_, b := openSim(t)

	tests := []struct {
		typ   hvapi.SysPropType
		kind  Kind
		width Width
	}{
		{hvapi.SysPropTypeStr, KindString, WidthNone},
		{hvapi.SysPropTypeReal, KindNumeric, WidthNone},
		{hvapi.SysPropTypeUint2, KindInteger, WidthU16},
		{hvapi.SysPropTypeUint4, KindInteger, WidthU32},
		{hvapi.SysPropTypeInt2, KindInteger, WidthI16},
		{hvapi.SysPropTypeInt4, KindInteger, WidthI32},
		{hvapi.SysPropTypeBoolean, KindInteger, WidthU8},
	}

	for _, tt := range tests {
		p, err := NewSystemProperty(b, "X", hvapi.SysPropModeRdWr, tt.typ)
		if err != nil {
			t.Fatalf("NewSystemProperty(%d) error = %v", tt.typ, err)
		}
		if p.Kind() != tt.kind || p.Width() != tt.width {
			t.Errorf("type %d: kind %s width %s, want %s %s", tt.typ, p.Kind(), p.Width(), tt.kind, tt.width)
		}
		if p.Identifier().Short != "C_X" {
			t.Errorf("Short = %q", p.Identifier().Short)
		}
	}
}

func TestSystemReal(t *testing.T) {
	_, b := openSim(t)

	p, err := NewSystemProperty(b, "Temp", hvapi.SysPropModeRdOnly, hvapi.SysPropTypeReal)
	if err != nil {
		t.Fatalf("NewSystemProperty() error = %v", err)
	}
	v, err := p.Get()
	if err != nil || v.Float != 24.5 {
		t.Errorf("Get() = %v, %v; want 24.5", v.Float, err)
	}
}

func TestChannelName(t *testing.T) {
	_, b := openSim(t)

	p := NewChannelName(b, 0, 1, hvapi.ParamModeRdWr)
	if p.Identifier().Short != "S00_C01_NAME" || p.Kind() != KindString {
		t.Fatalf("unexpected identity %+v kind %s", p.Identifier(), p.Kind())
	}

	v, err := p.Get()
	if err != nil || v.Text != "CH" {
		t.Fatalf("Get() = %q, %v; want CH", v.Text, err)
	}
	if err := p.Set(Text("detector-west-12")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, _ = p.Get()
	if v.Text != "detector-we" {
		t.Errorf("Get() = %q, want %q", v.Text, "detector-we")
	}
}

func TestBitTables(t *testing.T) {
	_, b := openSim(t)

	board := NewChStatus(b, Board(0), "ChStatus", hvapi.ParamModeRdOnly)
	channel := NewChStatus(b, Channel(0, 0), "Status", hvapi.ParamModeRdOnly)
	bd := NewBdStatus(b, Board(0), "BdStatus", hvapi.ParamModeRdOnly)

	if len(board.Bits()) != 13 || len(channel.Bits()) != 16 || len(bd.Bits()) != 7 {
		t.Fatalf("table sizes = %d %d %d", len(board.Bits()), len(channel.Bits()), len(bd.Bits()))
	}
	last := channel.Bits()[15]
	if last.Mask != 0x8000 || last.Suffix != "_TE" || last.Severity != SeverityMajor {
		t.Errorf("last channel bit = %+v", last)
	}
	if board.Bits()[0].Short != "Off" || bd.Bits()[0].Short != "Ok" {
		t.Error("zero entries wrong")
	}
}

func TestActiveBits(t *testing.T) {
	bits := ActiveBits(channelChStatusBits, 0x0009)
	if len(bits) != 2 || bits[0].Short != "On" || bits[1].Short != "Over-Current" {
		t.Fatalf("ActiveBits(0x9) = %+v", bits)
	}
	if MaxSeverity(bits) != SeverityMajor {
		t.Errorf("MaxSeverity = %s", MaxSeverity(bits))
	}

	bits = ActiveBits(bdStatusBits, 0)
	if len(bits) != 1 || bits[0].Short != "Ok" || MaxSeverity(bits) != SeverityNone {
		t.Errorf("ActiveBits(0) = %+v", bits)
	}
}

func TestUnitString(t *testing.T) {
	tests := []struct {
		unit uint32
		exp  int32
		want string
	}{
		{hvapi.UnitVolt, 0, "V"},
		{hvapi.UnitVolt, 3, "kV"},
		{hvapi.UnitAmpere, -6, "uA"},
		{hvapi.UnitAmpere, -3, "mA"},
		{hvapi.UnitWatt, 6, "MW"},
		{hvapi.UnitHertz, 2, "Hz"},
		{hvapi.UnitNone, 3, ""},
		{hvapi.UnitCount, 0, "counts"},
		{hvapi.UnitBit, 0, "bit"},
		{99, 0, "???"},
	}

	for _, tt := range tests {
		if got := UnitString(tt.unit, tt.exp); got != tt.want {
			t.Errorf("UnitString(%d, %d) = %q, want %q", tt.unit, tt.exp, got, tt.want)
		}
	}
}

func TestUnknownKind(t *testing.T) {
	p := &Param{kind: Kind(99), name: "X", mode: hvapi.ParamModeRdWr}

	if _, err := p.Get(); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Get() error = %v", err)
	}
	if err := p.Set(Value{}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Set() error = %v", err)
	}
	if _, err := p.Parse("1"); !errors.Is(err, ErrDiscoveryQuery) {
		t.Errorf("Parse() error = %v", err)
	}
}

func TestFormatAndParse(t *testing.T) {
	_, b := openSim(t)

	v0 := mustNew(t, b, Channel(0, 0), "V0Set", hvapi.ParamTypeNumeric, hvapi.ParamModeRdWr)
	pw := mustNew(t, b, Channel(0, 0), "Pw", hvapi.ParamTypeOnOff, hvapi.ParamModeRdWr)
	st := NewChStatus(b, Channel(0, 0), "Status", hvapi.ParamModeRdOnly)

	if got := v0.Format(Float(12.5)); got != "12.5 V" {
		t.Errorf("numeric Format = %q", got)
	}
	if got := pw.Format(Int(1)); got != "On" {
		t.Errorf("onoff Format = %q", got)
	}
	if got := st.Format(Uint(0x3)); got != "0x0003 [On, Ramping Up]" {
		t.Errorf("status Format = %q", got)
	}

	if v, err := pw.Parse("off"); err != nil || v.Int != 0 {
		t.Errorf("Parse(off) = %+v, %v", v, err)
	}
	if v, err := pw.Parse("1"); err != nil || v.Int != 1 {
		t.Errorf("Parse(1) = %+v, %v", v, err)
	}
	if v, err := st.Parse("0x10"); err != nil || v.Uint != 0x10 {
		t.Errorf("Parse(0x10) = %+v, %v", v, err)
	}
	if _, err := v0.Parse("high"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Parse(high) error = %v", err)
	}
}

func TestValueMasked(t *testing.T) {
	if got := Uint(0xFF).Masked(KindChStatus, 0x0F); got.Uint != 0x0F {
		t.Errorf("ChStatus masked = %#x", got.Uint)
	}
	if got := Int(3).Masked(KindOnOff, 0x1); got.Int != 1 {
		t.Errorf("OnOff masked = %d", got.Int)
	}
	if got := Float(2.5).Masked(KindNumeric, 0); got.Float != 2.5 {
		t.Errorf("Numeric masked = %v", got.Float)
	}
}

func mustNew(t *testing.T, b Binding, loc Location, name string, typ hvapi.ParamType, mode hvapi.ParamMode) *Param {
	t.Helper()
	p, err := New(b, loc, name, typ, mode)
	if err != nil {
		t.Fatalf("New(%s) error = %v", name, err)
	}
	return p
}

func TestKindUnmarshalText(t *testing.T) {
	for kind, name := range kindNames {
		var got Kind
		if err := got.UnmarshalText([]byte(name)); err != nil || got != kind {
			t.Errorf("UnmarshalText(%q) = %v, %v", name, got, err)
		}
	}
	var k Kind
	if err := k.UnmarshalText([]byte("float")); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("UnmarshalText(float) error = %v, want ErrUnknownKind", err)
	}
}
