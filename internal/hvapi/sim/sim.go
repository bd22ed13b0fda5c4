package sim

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/nerrad567/hvcrate-core/internal/hvapi"
)

const simHandle hvapi.Handle = 1

// Device is an in-memory hvapi.Device. Writes are stored and echoed back by
// later reads. It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	layout *Layout
	open   bool

	// values holds the current value of every property, keyed by valueKey.
	values map[string]hvapi.Value

	// chNames holds channel names that were set explicitly.
	chNames map[[2]int]string

	// failures injects a result code on a specific call.
	failures map[string]hvapi.Result

	errorEvery int
	calls      int
}

// New creates a simulator presenting layout. A nil layout selects
// DefaultLayout.
func New(layout *Layout) *Device {
	if layout == nil {
		layout = DefaultLayout()
	}

	d := &Device{
		layout:   layout,
		values:   make(map[string]hvapi.Value),
		chNames:  make(map[[2]int]string),
		failures: make(map[string]hvapi.Result),
	}
	d.seed()
	return d
}

// SetErrorEvery makes every n-th call fail with ResultTimeErr. Zero disables
// injection.
func (d *Device) SetErrorEvery(n int) {
	d.mu.Lock()
	d.errorEvery = n
	d.mu.Unlock()
}

// FailOn makes every call matching key fail with code. Keys are built with
// the *Key helpers, e.g. BdPropKey(0, "HVMax", hvapi.PropUnit).
func (d *Device) FailOn(key string, code hvapi.Result) {
	d.mu.Lock()
	d.failures[key] = code
	d.mu.Unlock()
}

// Calls returns the number of calls made since creation or the last
// ResetCalls.
func (d *Device) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// ResetCalls zeroes the call counter.
func (d *Device) ResetCalls() {
	d.mu.Lock()
	d.calls = 0
	d.mu.Unlock()
}

// Failure keys accepted by FailOn.
func InitKey() string                         { return "InitSystem" }
func SysPropListKey() string                  { return "SysPropList" }
func SysPropInfoKey(name string) string       { return "SysPropInfo:" + name }
func GetSysPropKey(name string) string        { return "GetSysProp:" + name }
func SetSysPropKey(name string) string        { return "SetSysProp:" + name }
func CrateMapKey() string                     { return "CrateMap" }
func BdParamInfoKey(slot int) string          { return "BdParamInfo:" + strconv.Itoa(slot) }
func GetBdParamKey(slot int, p string) string { return fmt.Sprintf("GetBdParam:%d:%s", slot, p) }
func SetBdParamKey(slot int, p string) string { return fmt.Sprintf("SetBdParam:%d:%s", slot, p) }
func GetChNameKey(slot, ch int) string        { return fmt.Sprintf("GetChName:%d:%d", slot, ch) }
func SetChNameKey(slot, ch int) string        { return fmt.Sprintf("SetChName:%d:%d", slot, ch) }

func BdPropKey(slot int, param, prop string) string {
	return fmt.Sprintf("BdParamProp:%d:%s:%s", slot, param, prop)
}

func ChParamInfoKey(slot, ch int) string { return fmt.Sprintf("ChParamInfo:%d:%d", slot, ch) }

func ChPropKey(slot, ch int, param, prop string) string {
	return fmt.Sprintf("ChParamProp:%d:%d:%s:%s", slot, ch, param, prop)
}

func GetChParamKey(slot, ch int, p string) string {
	return fmt.Sprintf("GetChParam:%d:%d:%s", slot, ch, p)
}

func SetChParamKey(slot, ch int, p string) string {
	return fmt.Sprintf("SetChParam:%d:%d:%s", slot, ch, p)
}

// seed fills the value store from the layout.
func (d *Device) seed() {
	for _, p := range d.layout.SystemProps {
		t, _ := parseSysPropType(p.Type)
		d.values[sysKey(p.Name)] = sysValue(t, p.Number, p.Text)
	}
	for slot, s := range d.layout.Slots {
		for _, p := range s.BoardParams {
			d.values[bdKey(slot, p.Name)] = paramValue(p)
		}
		for ch := 0; ch < s.Channels; ch++ {
			for _, p := range s.ChannelParams {
				d.values[chKey(slot, ch, p.Name)] = paramValue(p)
			}
		}
	}
}

func sysKey(name string) string          { return "s:" + name }
func bdKey(slot int, name string) string { return fmt.Sprintf("b:%d:%s", slot, name) }
func chKey(slot, ch int, name string) string {
	return fmt.Sprintf("c:%d:%d:%s", slot, ch, name)
}

func sysValue(t hvapi.SysPropType, number float64, text string) hvapi.Value {
	switch t {
	case hvapi.SysPropTypeStr:
		return hvapi.TextValue(text)
	case hvapi.SysPropTypeReal:
		return hvapi.FloatValue(float32(number))
	case hvapi.SysPropTypeInt2, hvapi.SysPropTypeInt4:
		return hvapi.IntValue(int32(number))
	default:
		return hvapi.UintValue(uint32(number))
	}
}

func paramValue(p ParamSpec) hvapi.Value {
	t, _ := parseParamType(p.Type)
	switch t {
	case hvapi.ParamTypeNumeric:
		return hvapi.FloatValue(float32(p.Value))
	case hvapi.ParamTypeOnOff, hvapi.ParamTypeBinary:
		return hvapi.IntValue(int32(p.Value))
	case hvapi.ParamTypeString:
		return hvapi.TextValue(p.Text)
	default:
		return hvapi.UintValue(uint32(p.Value))
	}
}

// enter counts a call and returns an injected failure, if any. Callers
// hold d.mu.
func (d *Device) enter(op, key string) error {
	d.calls++
	if d.errorEvery > 0 && d.calls%d.errorEvery == 0 {
		return hvapi.NewError(op, hvapi.ResultTimeErr, "injected timeout")
	}
	if code, ok := d.failures[key]; ok {
		return hvapi.NewError(op, code, "injected failure")
	}
	return nil
}

func (d *Device) checkHandle(op string, h hvapi.Handle) error {
	if !d.open || h != simHandle {
		return hvapi.NewError(op, hvapi.ResultNotConnected, "handle not open")
	}
	return nil
}

func (d *Device) slot(op string, slot int) (*SlotSpec, error) {
	if slot < 0 || slot >= len(d.layout.Slots) || d.layout.Slots[slot].Model == "" {
		return nil, hvapi.NewError(op, hvapi.ResultSlotNotPres, fmt.Sprintf("slot %d", slot))
	}
	return &d.layout.Slots[slot], nil
}

func (d *Device) channel(op string, slot, ch int) (*SlotSpec, error) {
	s, err := d.slot(op, slot)
	if err != nil {
		return nil, err
	}
	if ch < 0 || ch >= s.Channels {
		return nil, hvapi.NewError(op, hvapi.ResultOutOfRange, fmt.Sprintf("channel %d", ch))
	}
	return s, nil
}

func findParam(list []ParamSpec, name string) (ParamSpec, bool) {
	for _, p := range list {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

func findProp(list []PropSpec, name string) (PropSpec, bool) {
	for _, p := range list {
		if p.Name == name {
			return p, true
		}
	}
	return PropSpec{}, false
}

// InitSystem opens the simulated connection. The address must be an IP.
func (d *Device) InitSystem(sys hvapi.SystemType, _ hvapi.LinkType, address, _, _ string) (hvapi.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "InitSystem"
	if err := d.enter(op, InitKey()); err != nil {
		return 0, err
	}
	if !sys.IsMainframe() {
		return 0, hvapi.NewError(op, hvapi.ResultSysErr, "unsupported system "+sys.String())
	}
	if net.ParseIP(address) == nil {
		return 0, hvapi.NewError(op, hvapi.ResultCommunicationError, "bad address "+address)
	}
	d.open = true
	return simHandle, nil
}

func (d *Device) DeinitSystem(h hvapi.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "DeinitSystem"
	d.calls++
	if err := d.checkHandle(op, h); err != nil {
		return err
	}
	d.open = false
	return nil
}

func (d *Device) SysPropList(h hvapi.Handle) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "SysPropList"
	if err := d.enter(op, SysPropListKey()); err != nil {
		return nil, err
	}
	if err := d.checkHandle(op, h); err != nil {
		return nil, err
	}

	// Present the list the way the controller does: NUL-separated names.
	var packed []byte
	for _, p := range d.layout.SystemProps {
		packed = append(packed, p.Name...)
		packed = append(packed, 0)
	}
	return hvapi.SplitPacked(packed, len(d.layout.SystemProps)), nil
}

func (d *Device) SysPropInfo(h hvapi.Handle, name string) (hvapi.SysPropMode, hvapi.SysPropType, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "SysPropInfo"
	if err := d.enter(op, SysPropInfoKey(name)); err != nil {
		return 0, 0, err
	}
	if err := d.checkHandle(op, h); err != nil {
		return 0, 0, err
	}
	p, ok := findProp(d.layout.SystemProps, name)
	if !ok {
		return 0, 0, hvapi.NewError(op, hvapi.ResultNotSysProp, name)
	}
	mode, _ := parseMode(p.Mode)
	t, _ := parseSysPropType(p.Type)
	return hvapi.SysPropMode(mode), t, nil
}

func (d *Device) GetSysProp(h hvapi.Handle, name string) (hvapi.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "GetSysProp"
	if err := d.enter(op, GetSysPropKey(name)); err != nil {
		return hvapi.Value{}, err
	}
	if err := d.checkHandle(op, h); err != nil {
		return hvapi.Value{}, err
	}
	p, ok := findProp(d.layout.SystemProps, name)
	if !ok {
		return hvapi.Value{}, hvapi.NewError(op, hvapi.ResultNotSysProp, name)
	}
	if mode, _ := parseMode(p.Mode); mode == hvapi.ParamModeWrOnly {
		return hvapi.Value{}, hvapi.NewError(op, hvapi.ResultNotGetProp, name)
	}
	return d.values[sysKey(name)], nil
}

func (d *Device) SetSysProp(h hvapi.Handle, name string, v hvapi.Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "SetSysProp"
	if err := d.enter(op, SetSysPropKey(name)); err != nil {
		return err
	}
	if err := d.checkHandle(op, h); err != nil {
		return err
	}
	p, ok := findProp(d.layout.SystemProps, name)
	if !ok {
		return hvapi.NewError(op, hvapi.ResultNotSysProp, name)
	}
	if mode, _ := parseMode(p.Mode); mode == hvapi.ParamModeRdOnly {
		return hvapi.NewError(op, hvapi.ResultNotSetProp, name)
	}
	d.values[sysKey(name)] = v
	return nil
}

func (d *Device) CrateMap(h hvapi.Handle) (hvapi.CrateMap, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "CrateMap"
	if err := d.enter(op, CrateMapKey()); err != nil {
		return hvapi.CrateMap{}, err
	}
	if err := d.checkHandle(op, h); err != nil {
		return hvapi.CrateMap{}, err
	}

	m := hvapi.CrateMap{Slots: make([]hvapi.SlotInfo, len(d.layout.Slots))}
	for i, s := range d.layout.Slots {
		if s.Model == "" {
			continue
		}
		m.Slots[i] = hvapi.SlotInfo{
			Model:       s.Model,
			Description: s.Description,
			Channels:    s.Channels,
			Serial:      s.Serial,
			FirmwareMin: s.FirmwareMin,
			FirmwareMax: s.FirmwareMax,
		}
	}
	return m, nil
}

// packParams lays names out with a fixed stride followed by an empty entry
// and decodes them again, so list handling goes through the same path as a
// real controller buffer.
func packParams(list []ParamSpec) []string {
	packed := make([]byte, (len(list)+1)*hvapi.MaxParamName)
	for i, p := range list {
		copy(packed[i*hvapi.MaxParamName:(i+1)*hvapi.MaxParamName], p.Name)
	}
	return hvapi.SplitNames(packed, hvapi.MaxParamName, -1)
}

func (d *Device) BdParamInfo(h hvapi.Handle, slot int) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "BdParamInfo"
	if err := d.enter(op, BdParamInfoKey(slot)); err != nil {
		return nil, err
	}
	if err := d.checkHandle(op, h); err != nil {
		return nil, err
	}
	s, err := d.slot(op, slot)
	if err != nil {
		return nil, err
	}
	return packParams(s.BoardParams), nil
}

func (d *Device) BdParamProp(h hvapi.Handle, slot int, param, prop string) (hvapi.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "BdParamProp"
	if err := d.enter(op, BdPropKey(slot, param, prop)); err != nil {
		return hvapi.Value{}, err
	}
	if err := d.checkHandle(op, h); err != nil {
		return hvapi.Value{}, err
	}
	s, err := d.slot(op, slot)
	if err != nil {
		return hvapi.Value{}, err
	}
	p, ok := findParam(s.BoardParams, param)
	if !ok {
		return hvapi.Value{}, hvapi.NewError(op, hvapi.ResultParamNotFound, param)
	}
	return paramProp(op, p, prop)
}

func (d *Device) GetBdParam(h hvapi.Handle, slot int, param string) (hvapi.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "GetBdParam"
	if err := d.enter(op, GetBdParamKey(slot, param)); err != nil {
		return hvapi.Value{}, err
	}
	if err := d.checkHandle(op, h); err != nil {
		return hvapi.Value{}, err
	}
	s, err := d.slot(op, slot)
	if err != nil {
		return hvapi.Value{}, err
	}
	p, ok := findParam(s.BoardParams, param)
	if !ok {
		return hvapi.Value{}, hvapi.NewError(op, hvapi.ResultParamNotFound, param)
	}
	if mode, _ := parseMode(p.Mode); mode == hvapi.ParamModeWrOnly {
		return hvapi.Value{}, hvapi.NewError(op, hvapi.ResultNotGetProp, param)
	}
	return d.values[bdKey(slot, param)], nil
}

func (d *Device) SetBdParam(h hvapi.Handle, slot int, param string, v hvapi.Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "SetBdParam"
	if err := d.enter(op, SetBdParamKey(slot, param)); err != nil {
		return err
	}
	if err := d.checkHandle(op, h); err != nil {
		return err
	}
	s, err := d.slot(op, slot)
	if err != nil {
		return err
	}
	p, ok := findParam(s.BoardParams, param)
	if !ok {
		return hvapi.NewError(op, hvapi.ResultParamNotFound, param)
	}
	if mode, _ := parseMode(p.Mode); mode == hvapi.ParamModeRdOnly {
		return hvapi.NewError(op, hvapi.ResultNotSetProp, param)
	}
	d.values[bdKey(slot, param)] = v
	return nil
}

func (d *Device) ChParamInfo(h hvapi.Handle, slot, channel int) ([]string, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "ChParamInfo"
	if err := d.enter(op, ChParamInfoKey(slot, channel)); err != nil {
		return nil, 0, err
	}
	if err := d.checkHandle(op, h); err != nil {
		return nil, 0, err
	}
	s, err := d.channel(op, slot, channel)
	if err != nil {
		return nil, 0, err
	}
	count := len(s.ChannelParams)
	if s.ReportedCount != 0 {
		count = s.ReportedCount
	}
	return packParams(s.ChannelParams), count, nil
}

func (d *Device) ChParamProp(h hvapi.Handle, slot, channel int, param, prop string) (hvapi.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "ChParamProp"
	if err := d.enter(op, ChPropKey(slot, channel, param, prop)); err != nil {
		return hvapi.Value{}, err
	}
	if err := d.checkHandle(op, h); err != nil {
		return hvapi.Value{}, err
	}
	s, err := d.channel(op, slot, channel)
	if err != nil {
		return hvapi.Value{}, err
	}
	p, ok := findParam(s.ChannelParams, param)
	if !ok {
		return hvapi.Value{}, hvapi.NewError(op, hvapi.ResultParamNotFound, param)
	}
	return paramProp(op, p, prop)
}

func (d *Device) GetChParam(h hvapi.Handle, slot, channel int, param string) (hvapi.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "GetChParam"
	if err := d.enter(op, GetChParamKey(slot, channel, param)); err != nil {
		return hvapi.Value{}, err
	}
	if err := d.checkHandle(op, h); err != nil {
		return hvapi.Value{}, err
	}
	s, err := d.channel(op, slot, channel)
	if err != nil {
		return hvapi.Value{}, err
	}
	p, ok := findParam(s.ChannelParams, param)
	if !ok {
		return hvapi.Value{}, hvapi.NewError(op, hvapi.ResultParamNotFound, param)
	}
	if mode, _ := parseMode(p.Mode); mode == hvapi.ParamModeWrOnly {
		return hvapi.Value{}, hvapi.NewError(op, hvapi.ResultNotGetProp, param)
	}
	return d.values[chKey(slot, channel, param)], nil
}

func (d *Device) SetChParam(h hvapi.Handle, slot, channel int, param string, v hvapi.Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "SetChParam"
	if err := d.enter(op, SetChParamKey(slot, channel, param)); err != nil {
		return err
	}
	if err := d.checkHandle(op, h); err != nil {
		return err
	}
	s, err := d.channel(op, slot, channel)
	if err != nil {
		return err
	}
	p, ok := findParam(s.ChannelParams, param)
	if !ok {
		return hvapi.NewError(op, hvapi.ResultParamNotFound, param)
	}
	if mode, _ := parseMode(p.Mode); mode == hvapi.ParamModeRdOnly {
		return hvapi.NewError(op, hvapi.ResultNotSetProp, param)
	}
	d.values[chKey(slot, channel, param)] = v
	return nil
}

func (d *Device) GetChName(h hvapi.Handle, slot, channel int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "GetChName"
	if err := d.enter(op, GetChNameKey(slot, channel)); err != nil {
		return "", err
	}
	if err := d.checkHandle(op, h); err != nil {
		return "", err
	}
	s, err := d.channel(op, slot, channel)
	if err != nil {
		return "", err
	}
	if name, ok := d.chNames[[2]int{slot, channel}]; ok {
		return name, nil
	}
	return s.ChannelName, nil
}

// SetChName stores name truncated to the channel name buffer.
func (d *Device) SetChName(h hvapi.Handle, slot, channel int, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "SetChName"
	if err := d.enter(op, SetChNameKey(slot, channel)); err != nil {
		return err
	}
	if err := d.checkHandle(op, h); err != nil {
		return err
	}
	if _, err := d.channel(op, slot, channel); err != nil {
		return err
	}
	d.chNames[[2]int{slot, channel}] = hvapi.Truncate(name, hvapi.MaxChName)
	return nil
}

// paramProp answers a metadata query from a parameter description.
// Properties that do not apply to the parameter's type report
// ResultGetPropNotImpl.
func paramProp(op string, p ParamSpec, prop string) (hvapi.Value, error) {
	t, _ := parseParamType(p.Type)
	mode, _ := parseMode(p.Mode)

	switch prop {
	case hvapi.PropType:
		return hvapi.UintValue(uint32(t)), nil
	case hvapi.PropMode:
		return hvapi.UintValue(uint32(mode)), nil
	}

	switch t {
	case hvapi.ParamTypeNumeric:
		switch prop {
		case hvapi.PropMinval:
			return hvapi.FloatValue(float32(p.Min)), nil
		case hvapi.PropMaxval:
			return hvapi.FloatValue(float32(p.Max)), nil
		case hvapi.PropUnit:
			return hvapi.UintValue(p.Unit), nil
		case hvapi.PropExp:
			return hvapi.IntValue(p.Exp), nil
		}
	case hvapi.ParamTypeOnOff, hvapi.ParamTypeBinary:
		switch prop {
		case hvapi.PropOnstate:
			return hvapi.TextValue(p.On), nil
		case hvapi.PropOffstate:
			return hvapi.TextValue(p.Off), nil
		}
	}
	return hvapi.Value{}, hvapi.NewError(op, hvapi.ResultGetPropNotImpl, p.Name+"."+prop)
}
