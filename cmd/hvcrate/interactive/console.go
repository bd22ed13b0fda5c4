// Package interactive provides the operator console for hvcrate.
//
// The console shares the bridge's Router, so reads and writes typed at the
// prompt are serialised with the poll loop and MQTT commands.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/nerrad567/hvcrate-core/internal/bridges/hv"
	"github.com/nerrad567/hvcrate-core/internal/registry"
)

// Logger is the logging interface used by the console.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Options configures a Console.
type Options struct {
	// Prefix is shown in front of record names.
	Prefix string

	// Metrics returns the bridge counters for "stats". May be nil.
	Metrics func() hv.BridgeMetrics

	// Logger records console writes. Defaults to a no-op logger.
	Logger Logger
}

// Console executes operator commands against a Router.
type Console struct {
	router  *hv.Router
	prefix  string
	metrics func() hv.BridgeMetrics
	logger  Logger
	out     io.Writer
}

// New creates a console writing its output to out.
func New(router *hv.Router, out io.Writer, opts Options) *Console {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Console{
		router:  router,
		prefix:  opts.Prefix,
		metrics: opts.Metrics,
		logger:  logger,
		out:     out,
	}
}

// Run reads commands until quit, EOF or ctx is cancelled. cancel is called
// when the operator leaves so the rest of the process shuts down too.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "hvcrate> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    c.completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	c.out = rl.Stdout()
	c.printHelp()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) && ctx.Err() == nil {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return nil
		}

		if c.Execute(line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return nil
		}
	}
}

// Execute runs one command line and reports whether the operator asked
// to quit.
func (c *Console) Execute(line string) (quit bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "info":
		c.cmdInfo()
	case "list", "ls":
		c.cmdList(args)
	case "read", "r":
		c.cmdRead(args)
	case "write", "w":
		c.cmdWrite(args)
	case "stats":
		c.cmdStats()
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
HV Crate Commands:
  info                         - Show the discovered crate
  list [filter]                - List parameters, optionally filtered by name
  read <ref> [mask]            - Read a parameter
  write <ref> <value> [mask]   - Write a parameter
  stats                        - Show registry and bridge counters
  help                         - Show this help
  quit                         - Exit

  <ref> is a token number or a record name such as S00:C00:V0SET.
  [mask] selects bits of status and on/off parameters (e.g. 0x1).`)
}

func (c *Console) cmdInfo() {
	if err := c.router.Registry().Crate().WriteInfo(c.out); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

func (c *Console) cmdList(args []string) {
	filter := ""
	if len(args) > 0 {
		filter = strings.ToUpper(args[0])
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tRECORD\tKIND\tMODE\tDESCRIPTION")
	n := 0
	for _, e := range c.router.Entries() {
		if filter != "" && !strings.Contains(e.ID.Record, filter) && !strings.Contains(e.ID.Short, filter) {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.Token, e.ID.WithPrefix(c.prefix), e.Kind, e.Mode, e.ID.Description)
		n++
	}
	tw.Flush()
	fmt.Fprintf(c.out, "%d parameters\n", n)
}

func (c *Console) cmdRead(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(c.out, "Usage: read <ref> [mask]")
		return
	}
	mask, err := parseMask(args[1:])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid mask: %v\n", err)
		return
	}

	r, err := c.router.Read(args[0], mask)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "%s = %s\n", r.Entry.ID.WithPrefix(c.prefix), r.Formatted())
}

func (c *Console) cmdWrite(args []string) {
	if len(args) < 2 || len(args) > 3 {
		fmt.Fprintln(c.out, "Usage: write <ref> <value> [mask]")
		fmt.Fprintln(c.out, "  Example: write S00:C00:V0SET 1200")
		return
	}
	mask, err := parseMask(args[2:])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid mask: %v\n", err)
		return
	}

	id := uuid.NewString()
	r, err := c.router.Write(args[0], args[1], mask)
	if err != nil {
		c.logger.Warn("console write failed", "command_id", id, "ref", args[0], "error", err)
		fmt.Fprintf(c.out, "Write failed: %v\n", err)
		return
	}
	c.logger.Info("console write", "command_id", id, "record", r.Entry.ID.Record, "value", r.Formatted())
	fmt.Fprintf(c.out, "OK %s <- %s (%s)\n", r.Entry.ID.WithPrefix(c.prefix), r.Formatted(), id)
}

func (c *Console) cmdStats() {
	stats := c.router.Registry().Stats()
	fmt.Fprintf(c.out, "Parameters: %d\n", stats.Total)
	for _, cat := range registry.Categories() {
		if n := stats.Categories[cat]; n > 0 {
			fmt.Fprintf(c.out, "  %-18s %d\n", cat, n)
		}
	}

	if c.metrics == nil {
		return
	}
	m := c.metrics()
	fmt.Fprintf(c.out, "Bridge: %s (mqtt connected: %v)\n", m.Status, m.Connected)
	fmt.Fprintf(c.out, "  polls %d, reads %d, read errors %d, published %d\n",
		m.Statistics.Polls, m.Statistics.Reads, m.Statistics.ReadErrors, m.Statistics.Published)
	fmt.Fprintf(c.out, "  commands %d, command errors %d\n", m.Statistics.Commands, m.Statistics.CommandErrors)
}

func (c *Console) completer() *readline.PrefixCompleter {
	records := make([]readline.PrefixCompleterInterface, 0, len(c.router.Entries()))
	for _, e := range c.router.Entries() {
		records = append(records, readline.PcItem(e.ID.Record))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("info"),
		readline.PcItem("list"),
		readline.PcItem("read", records...),
		readline.PcItem("write", records...),
		readline.PcItem("stats"),
		readline.PcItem("quit"),
	)
}

// parseMask parses an optional mask argument in decimal or 0x hex.
func parseMask(args []string) (uint32, error) {
	if len(args) == 0 {
		return hv.FullMask, nil
	}
	n, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
