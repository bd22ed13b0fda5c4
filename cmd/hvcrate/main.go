// Command hvcrate discovers every parameter of a high voltage power supply
// mainframe, records the layout in SQLite and bridges the parameters onto
// MQTT: retained state on change, write commands with acknowledgements,
// optional InfluxDB telemetry, an optional HTTP API with a WebSocket feed,
// and an optional operator console (-console).
//
// hvcrate -issue-token <role> prints a signed API token and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/hvcrate-core/migrations"

	"github.com/nerrad567/hvcrate-core/internal/auth"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/config"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/logging"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

type options struct {
	configPath string
	console    bool

	issueRole    string
	issueSubject string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to the YAML configuration (overrides HVCRATE_CONFIG)")
	flag.BoolVar(&opts.console, "console", false, "start the interactive operator console")
	flag.StringVar(&opts.issueRole, "issue-token", "", "print an API token for this role (viewer, operator) and exit")
	flag.StringVar(&opts.issueSubject, "subject", "hvcrate", "subject recorded in an issued token")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "hvcrate:", err)
		os.Exit(1)
	}
}

// run starts every component, blocks until ctx is done (or the console
// exits) and tears them down in reverse order.
func run(ctx context.Context, opts options) error {
	path := getConfigPath(opts.configPath)
	if opts.issueRole == "" {
		logging.Default().Info("loading configuration", "path", path, "version", version)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Only the token goes to stdout, so it can be piped.
	if opts.issueRole != "" {
		return issueToken(os.Stdout, cfg, auth.Role(opts.issueRole), opts.issueSubject)
	}

	log := logging.New(cfg.Logging, version).With("crate", cfg.Crate.ID)
	log.Info("starting hvcrate", "commit", commit, "build_date", date, "log_level", cfg.Logging.Level)

	svc := &service{cfg: cfg, log: log}
	defer svc.shutdown()

	if err := svc.start(ctx); err != nil {
		return err
	}

	if opts.console {
		ctx = svc.startConsole(ctx)
	}

	log.Info("hvcrate running")
	<-ctx.Done()
	log.Info("shutdown requested")
	return nil
}

// getConfigPath prefers the -config flag, then HVCRATE_CONFIG.
func getConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv("HVCRATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// issueToken prints a signed API token for role.
func issueToken(w io.Writer, cfg *config.Config, role auth.Role, subject string) error {
	token, err := auth.GenerateToken(subject, role, cfg.Security.JWT.Secret, cfg.GetTokenTTL())
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
