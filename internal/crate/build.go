package crate

import (
	"fmt"
	"net"
	"strconv"

	"github.com/nerrad567/hvcrate-core/internal/hvapi"
	"github.com/nerrad567/hvcrate-core/internal/naming"
	"github.com/nerrad567/hvcrate-core/internal/param"
)

// chNameParam is the listed channel parameter superseded by the channel
// name pseudo-parameter.
const chNameParam = "ChName"

// Build connects to the controller and discovers the crate.
//
// Parameters:
//   - dev: Controller library
//   - opts: Connection settings and discovery policy
//
// Returns:
//   - *Crate: Discovered layout, owning the open handle (call Close to release)
//   - error: *ConnectionError if the address or system type is invalid or
//     the connection fails; nothing else aborts discovery
func Build(dev hvapi.Device, opts Options) (*Crate, error) {
	if ip := net.ParseIP(opts.Address); ip == nil || ip.To4() == nil {
		return nil, &ConnectionError{Address: opts.Address, SystemType: opts.SystemType, Err: ErrInvalidAddress}
	}
	if !opts.SystemType.IsMainframe() {
		return nil, &ConnectionError{Address: opts.Address, SystemType: opts.SystemType, Err: ErrUnsupportedSystem}
	}

	h, err := dev.InitSystem(opts.SystemType, opts.Link, opts.Address, opts.Username, opts.Password)
	if err != nil {
		return nil, &ConnectionError{Address: opts.Address, SystemType: opts.SystemType, Err: err}
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	b := &builder{
		dev:    dev,
		h:      h,
		bind:   param.Binding{Device: dev, Handle: h},
		ro:     opts.ReadOnly,
		logger: logger,
		crate: &Crate{
			SystemType: opts.SystemType,
			Address:    opts.Address,
			ReadOnly:   opts.ReadOnly,
			bind:       param.Binding{Device: dev, Handle: h},
		},
	}

	logger.Info("discovering crate", "system", opts.SystemType.String(), "address", opts.Address, "read_only", opts.ReadOnly)

	b.systemProps()
	b.boards()

	c := b.crate
	logger.Info("crate discovered",
		"boards", len(c.Boards),
		"system_props", len(c.System),
		"params", len(c.Params()),
		"skipped", c.skipped,
	)
	return c, nil
}

type builder struct {
	dev    hvapi.Device
	h      hvapi.Handle
	bind   param.Binding
	ro     bool
	logger Logger
	crate  *Crate
}

func (b *builder) skip(err error, args ...any) {
	b.crate.skipped++
	b.logger.Warn("skipping parameter", append(args, "error", err)...)
}

func (b *builder) systemProps() {
	names, err := b.dev.SysPropList(b.h)
	if err != nil {
		b.logger.Error("listing system properties failed", "error", err)
		return
	}

	for _, name := range names {
		mode, typ, err := b.dev.SysPropInfo(b.h, name)
		if err != nil {
			b.skip(&param.DiscoveryQueryError{Name: name, Query: "SysPropInfo", Err: err}, "property", name)
			continue
		}

		// Only RW is downgraded; the early stop on WO applies to board
		// and channel lists, not to system properties.
		if b.ro && mode == hvapi.SysPropModeRdWr {
			mode = hvapi.SysPropModeRdOnly
		}

		p, err := param.NewSystemProperty(b.bind, name, mode, typ)
		if err != nil {
			b.skip(err, "property", name, "type", uint32(typ))
			continue
		}
		b.crate.System = append(b.crate.System, p)
	}
}

func (b *builder) boards() {
	m, err := b.dev.CrateMap(b.h)
	if err != nil {
		b.logger.Error("reading crate map failed", "error", err)
		return
	}

	for slot, info := range m.Slots {
		if info.Model == "" {
			continue
		}

		board := &Board{
			Slot:         slot,
			Model:        info.Model,
			Description:  info.Description,
			Serial:       strconv.Itoa(int(info.Serial)),
			Firmware:     fmt.Sprintf("%d.%d", info.FirmwareMax, info.FirmwareMin),
			ChannelCount: info.Channels,
		}
		b.logger.Debug("board found", "slot", slot, "model", info.Model, "channels", info.Channels)

		board.Params = b.boardParams(slot)
		for ch := 0; ch < info.Channels; ch++ {
			board.Channels = append(board.Channels, &Channel{
				Slot:   slot,
				Index:  ch,
				Params: b.channelParams(slot, ch),
			})
		}
		b.crate.Boards = append(b.crate.Boards, board)
	}
}

// policy applies the read-only downgrade. stop reports that enumeration of
// the list must end at this parameter.
func (b *builder) policy(mode hvapi.ParamMode) (_ hvapi.ParamMode, stop bool) {
	if !b.ro {
		return mode, false
	}
	switch mode {
	case hvapi.ParamModeRdWr:
		return hvapi.ParamModeRdOnly, false
	case hvapi.ParamModeWrOnly:
		return mode, true
	}
	return mode, false
}

func (b *builder) boardParams(slot int) []*param.Param {
	names, err := b.dev.BdParamInfo(b.h, slot)
	if err != nil {
		b.logger.Error("listing board parameters failed", "slot", slot, "error", err)
		return nil
	}

	var params []*param.Param
	for i, name := range names {
		typ, mode, err := b.typeAndMode(param.Board(slot), name)
		if err != nil {
			b.skip(err, "slot", slot, "param", name)
			continue
		}

		mode, stop := b.policy(mode)
		if stop {
			b.logger.Warn("write-only parameter under read-only policy, ignoring rest of board list",
				"slot", slot, "param", name, "dropped", len(names)-i)
			break
		}

		switch typ {
		case hvapi.ParamTypeNumeric, hvapi.ParamTypeOnOff, hvapi.ParamTypeChStatus, hvapi.ParamTypeBdStatus:
		default:
			b.skip(&param.DiscoveryQueryError{Name: name, Query: hvapi.PropType, Err: param.ErrUnsupportedType},
				"slot", slot, "param", name, "type", uint32(typ))
			continue
		}

		p, err := param.New(b.bind, param.Board(slot), name, typ, mode)
		if err != nil {
			b.skip(err, "slot", slot, "param", name)
			continue
		}
		params = append(params, p)
	}
	return params
}

func (b *builder) channelParams(slot, ch int) []*param.Param {
	nameMode := hvapi.ParamModeRdWr
	if b.ro {
		nameMode = hvapi.ParamModeRdOnly
	}
	params := []*param.Param{param.NewChannelName(b.bind, slot, ch, nameMode)}

	names, count, err := b.dev.ChParamInfo(b.h, slot, ch)
	if err != nil {
		b.logger.Error("listing channel parameters failed", "slot", slot, "channel", ch, "error", err)
		return params
	}
	if count < len(names) {
		names = names[:max(count, 0)]
	}

	loc := param.Channel(slot, ch)
	stopped := false
	for _, name := range names {
		if name == chNameParam {
			continue
		}

		typ, mode, err := b.typeAndMode(loc, name)
		if err != nil {
			b.skip(err, "slot", slot, "channel", ch, "param", name)
			continue
		}

		mode, stop := b.policy(mode)

		if typ == hvapi.ParamTypeString {
			if stop {
				continue
			}
			params = append(params, param.NewString(b.bind, loc, name, mode))
			continue
		}

		if stopped {
			continue
		}
		if stop {
			b.logger.Warn("write-only parameter under read-only policy, ignoring rest of channel list",
				"slot", slot, "channel", ch, "param", name)
			stopped = true
			continue
		}

		switch typ {
		case hvapi.ParamTypeNumeric, hvapi.ParamTypeOnOff, hvapi.ParamTypeChStatus, hvapi.ParamTypeBinary:
		default:
			b.skip(&param.DiscoveryQueryError{Name: name, Query: hvapi.PropType, Err: param.ErrUnsupportedType},
				"slot", slot, "channel", ch, "param", name, "type", uint32(typ))
			continue
		}

		p, err := param.New(b.bind, loc, name, typ, mode)
		if err != nil {
			b.skip(err, "slot", slot, "channel", ch, "param", name)
			continue
		}
		params = append(params, p)
	}
	return params
}

// typeAndMode queries the Type and then the Mode property of a board or
// channel parameter.
func (b *builder) typeAndMode(loc param.Location, name string) (hvapi.ParamType, hvapi.ParamMode, error) {
	query := func(prop string) (hvapi.Value, error) {
		if loc.Scope == naming.ScopeChannel {
			return b.dev.ChParamProp(b.h, loc.Slot, loc.Channel, name, prop)
		}
		return b.dev.BdParamProp(b.h, loc.Slot, name, prop)
	}

	t, err := query(hvapi.PropType)
	if err != nil {
		return 0, 0, &param.DiscoveryQueryError{Name: name, Query: hvapi.PropType, Err: err}
	}
	m, err := query(hvapi.PropMode)
	if err != nil {
		return 0, 0, &param.DiscoveryQueryError{Name: name, Query: hvapi.PropMode, Err: err}
	}
	return hvapi.ParamType(t.Uint), hvapi.ParamMode(m.Uint), nil
}
