package crate

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nerrad567/hvcrate-core/internal/naming"
	"github.com/nerrad567/hvcrate-core/internal/param"
)

// WriteInfo writes a human-readable listing of the crate: system
// properties, then each board with its parameters and channels.
func (c *Crate) WriteInfo(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Crate %s at %s", c.SystemType, c.Address)
	if c.ReadOnly {
		fmt.Fprint(tw, " (read-only)")
	}
	fmt.Fprintf(tw, "\n%d boards, %d system properties, %d parameters skipped\n\n", len(c.Boards), len(c.System), c.skipped)

	fmt.Fprintln(tw, "System properties:")
	for _, p := range c.System {
		writeParam(tw, p)
	}

	for _, b := range c.Boards {
		fmt.Fprintf(tw, "\nSlot %d: %s (%s) serial %s firmware %s, %d channels\n",
			b.Slot, b.Model, b.Description, b.Serial, b.Firmware, b.ChannelCount)
		for _, p := range b.Params {
			writeParam(tw, p)
		}
		for _, ch := range b.Channels {
			fmt.Fprintf(tw, "  Channel %d:\n", ch.Index)
			for _, p := range ch.Params {
				writeParam(tw, p)
			}
		}
	}

	return tw.Flush()
}

func writeParam(w io.Writer, p *param.Param) {
	indent := "  "
	if p.Location().Scope == naming.ScopeChannel {
		indent = "    "
	}

	var meta string
	switch p.Kind() {
	case param.KindNumeric:
		n := p.Numeric()
		meta = fmt.Sprintf("[%g, %g] %s", n.Min, n.Max, n.Units)
	case param.KindOnOff, param.KindBinary:
		l := p.Labels()
		meta = fmt.Sprintf("on=%q off=%q", l.On, l.Off)
	case param.KindChStatus, param.KindBdStatus:
		meta = fmt.Sprintf("%d bits", len(p.Bits())-1)
	case param.KindInteger:
		meta = p.Width().String()
	}

	fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", indent, p.Identifier().Record, naming.ModeString(p.Mode()), p.Kind(), meta)
}
