package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/nerrad567/hvcrate-core/cmd/hvcrate/interactive"
	"github.com/nerrad567/hvcrate-core/internal/api"
	"github.com/nerrad567/hvcrate-core/internal/audit"
	"github.com/nerrad567/hvcrate-core/internal/bridges/hv"
	"github.com/nerrad567/hvcrate-core/internal/crate"
	"github.com/nerrad567/hvcrate-core/internal/hvapi/sim"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/config"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/database"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/logging"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/hvcrate-core/internal/inventory"
	"github.com/nerrad567/hvcrate-core/internal/registry"
)

// healthChecker is implemented by every infrastructure client.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type closer struct {
	name  string
	close func() error
}

// service holds the running components of one hvcrate process.
type service struct {
	cfg *config.Config
	log *logging.Logger

	db     *database.DB
	router *hv.Router
	mqtt   *mqtt.Client
	influx *influxdb.Client
	hub    *api.Hub
	bridge *hv.Bridge
	audit  audit.Repository

	// polling is bridge, published for the MQTT callback goroutine.
	polling atomic.Pointer[hv.Bridge]

	checks  map[string]healthChecker
	closers []closer
}

// onShutdown registers fn to run from shutdown, after everything
// registered later.
func (s *service) onShutdown(name string, fn func() error) {
	s.closers = append(s.closers, closer{name, fn})
}

// shutdown closes components in reverse start order. Errors are logged;
// every closer runs.
func (s *service) shutdown() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		s.log.Info("closing " + c.name)
		if err := c.close(); err != nil {
			s.log.Error("close failed", "component", c.name, "error", err)
		}
	}
	s.closers = nil
	s.log.Info("hvcrate stopped")
}

// start brings components up in dependency order. The database opens
// before discovery so a bad path fails without touching the controller.
func (s *service) start(ctx context.Context) error {
	s.checks = make(map[string]healthChecker)

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"database", s.openDatabase},
		{"crate", s.discover},
		{"mqtt", s.connectMQTT},
		{"influxdb", s.connectInflux},
		{"bridge", s.startBridge},
		{"api", s.startAPI},
	}
	for _, st := range stages {
		if err := st.fn(ctx); err != nil {
			return err
		}
	}

	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("health check failed: %s: %w", name, err)
		}
	}
	s.log.Info("all health checks passed", "components", len(s.checks))
	return nil
}

func (s *service) openDatabase(ctx context.Context) error {
	db, err := database.Open(database.FromConfig(s.cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	s.db = db
	s.onShutdown("database", db.Close)
	s.checks["database"] = db

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	schema, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	s.log.Info("database ready", "path", db.Path(), "schema_version", schema)

	s.audit = audit.NewSQLiteRepository(db.DB)
	return nil
}

func (s *service) discover(ctx context.Context) error {
	c, err := discoverCrate(s.cfg, s.log)
	if err != nil {
		return err
	}
	s.onShutdown("crate connection", c.Close)

	reg := registry.New(c, registry.NewSequence(1))
	s.router = hv.NewRouter(reg)
	s.log.Info("crate discovered",
		"system_type", c.SystemType.String(),
		"address", c.Address,
		"boards", len(c.Boards),
		"parameters", reg.Len(),
		"skipped", c.Skipped(),
		"read_only", c.ReadOnly,
	)

	if path := s.cfg.Crate.InfoFile; path != "" {
		if err := writeInfoFile(path, c); err != nil {
			return fmt.Errorf("writing crate info: %w", err)
		}
		s.log.Info("crate info written", "path", path)
	}

	if err := saveInventory(ctx, s.db, s.cfg, reg, s.log); err != nil {
		return fmt.Errorf("saving inventory: %w", err)
	}
	return nil
}

func (s *service) connectMQTT(context.Context) error {
	log := s.log.Component("mqtt")
	client, err := mqtt.Connect(s.cfg.MQTT, mqtt.Hooks{
		Logger:    log,
		OnConnect: s.brokerConnected,
		OnDisconnect: func(err error) { log.Warn("broker connection lost", "error", err) },
	})
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	s.mqtt = client
	s.onShutdown("MQTT connection", client.Close)
	s.checks["mqtt"] = client

	b := s.cfg.MQTT.Broker
	log.Info("connected to broker",
		"broker", net.JoinHostPort(b.Host, strconv.Itoa(b.Port)),
		"client_id", b.ClientID,
	)
	return nil
}

func (s *service) connectInflux(context.Context) error {
	if !s.cfg.InfluxDB.Enabled {
		s.log.Info("InfluxDB telemetry disabled")
		return nil
	}

	log := s.log.Component("influxdb")
	client, err := influxdb.Connect(s.cfg.InfluxDB, func(err error) {
		log.Error("batch write failed", "error", err)
	})
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	s.influx = client
	s.onShutdown("InfluxDB client", func() error {
		err := client.Close()
		log.Info("telemetry points queued", "points", client.Written())
		return err
	})
	s.checks["influxdb"] = client
	log.Info("connected to InfluxDB", "url", s.cfg.InfluxDB.URL, "org", s.cfg.InfluxDB.Org, "bucket", s.cfg.InfluxDB.Bucket)
	return nil
}

// brokerConnected runs on every broker CONNACK. After a reconnect the
// bridge forgets what it has published, so the next poll restores the
// retained state topics.
func (s *service) brokerConnected(reconnect bool) {
	if !reconnect {
		return
	}
	b := s.polling.Load()
	s.log.Info("broker connection restored", "resync", b != nil)
	if b != nil {
		b.ClearStateCache()
	}
}

// startBridge starts polling. With the API enabled the WebSocket hub is
// created first so the bridge's OnState hook can feed it.
func (s *service) startBridge(ctx context.Context) error {
	var onState func(hv.StateMessage)
	if s.cfg.API.Enabled {
		s.hub = api.NewHub(s.cfg.WebSocket, s.log.Component("websocket"))
		go s.hub.Run(ctx)
		onState = s.hub.PublishState
	}

	var telemetry hv.TelemetryWriter
	if s.influx != nil {
		telemetry = s.influx
	}

	bridge, err := hv.NewBridge(hv.BridgeOptions{
		CrateID:          s.cfg.Crate.ID,
		Router:           s.router,
		MQTTClient:       &mqttBridgeAdapter{client: s.mqtt},
		Telemetry:        telemetry,
		PollInterval:     s.cfg.GetPollInterval(),
		HealthInterval:   s.cfg.GetHealthInterval(),
		PublishUnchanged: s.cfg.Bridge.PublishUnchanged,
		Prefix:           s.cfg.Crate.Prefix,
		Version:          version,
		OnState:          onState,
		OnCommand:        auditCommands(ctx, s.audit, s.cfg.Crate.ID, s.log),
		Logger:           s.log.Component("hv-bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating HV bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting HV bridge: %w", err)
	}
	s.bridge = bridge
	s.polling.Store(bridge)
	s.onShutdown("HV bridge", func() error {
		bridge.Stop()
		return nil
	})
	s.log.Info("HV bridge started", "poll_interval", s.cfg.GetPollInterval(), "health_interval", s.cfg.GetHealthInterval())
	return nil
}

func (s *service) startAPI(ctx context.Context) error {
	if !s.cfg.API.Enabled {
		s.log.Info("HTTP API disabled")
		return nil
	}

	srv, err := api.New(api.Deps{
		Config:      s.cfg.API,
		WS:          s.cfg.WebSocket,
		Security:    s.cfg.Security,
		Logger:      s.log.Component("api"),
		CrateID:     s.cfg.Crate.ID,
		Router:      s.router,
		Version:     version,
		Prefix:      s.cfg.Crate.Prefix,
		Bridge:      s.bridge,
		Inventory:   inventory.NewSQLiteRepository(s.db.DB),
		Audit:       s.audit,
		DB:          s.db,
		ExternalHub: s.hub,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	s.onShutdown("API server", srv.Close)
	s.checks["api"] = srv

	if s.cfg.Security.JWT.Secret == "" {
		s.log.Warn("API authentication disabled: no JWT secret configured")
	}
	return nil
}

// startConsole runs the operator console; the returned context ends when
// the console exits or ctx does.
func (s *service) startConsole(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	s.onShutdown("console", func() error {
		cancel()
		return nil
	})

	con := interactive.New(s.router, os.Stdout, interactive.Options{
		Prefix:  s.cfg.Crate.Prefix,
		Metrics: s.bridge.GetMetrics,
		Logger:  s.log.Component("console"),
	})
	go func() {
		if err := con.Run(ctx, cancel); err != nil {
			s.log.Error("console failed", "error", err)
			cancel()
		}
	}()
	return ctx
}

// discoverCrate builds the crate from the configured driver. Validate
// guarantees the driver is "sim".
func discoverCrate(cfg *config.Config, log *logging.Logger) (*crate.Crate, error) {
	layout := sim.DefaultLayout()
	if path := cfg.Crate.Simulator.LayoutFile; path != "" {
		var err error
		if layout, err = sim.LoadLayout(path); err != nil {
			return nil, fmt.Errorf("loading simulator layout: %w", err)
		}
		log.Info("simulator layout loaded", "path", path)
	}
	dev := sim.New(layout)
	dev.SetErrorEvery(cfg.Crate.Simulator.ErrorEvery)

	c, err := crate.Build(dev, crate.Options{
		SystemType: cfg.SystemType(),
		Address:    cfg.Crate.Address,
		Username:   cfg.Crate.Username,
		Password:   cfg.Crate.Password,
		ReadOnly:   cfg.Crate.ReadOnly,
		Logger:     log.Component("crate"),
	})
	if err != nil {
		return nil, fmt.Errorf("discovering crate: %w", err)
	}
	return c, nil
}

// writeInfoFile writes the crate listing to path.
func writeInfoFile(path string, c *crate.Crate) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.WriteInfo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// saveInventory records this start's discovery and prunes old runs.
func saveInventory(ctx context.Context, db *database.DB, cfg *config.Config, reg *registry.Registry, log *logging.Logger) error {
	repo := inventory.NewSQLiteRepository(db.DB)

	snap := inventory.Snapshot(cfg.Crate.ID, reg)
	if err := repo.SaveRun(ctx, snap); err != nil {
		return err
	}
	log.Info("inventory run saved", "run_id", snap.Run.ID, "parameters", len(snap.Parameters))

	if cfg.Database.KeepRuns <= 0 {
		return nil
	}
	pruned, err := repo.PruneRuns(ctx, cfg.Crate.ID, cfg.Database.KeepRuns)
	if err != nil {
		return err
	}
	if pruned > 0 {
		log.Info("old inventory runs pruned", "count", pruned)
	}
	return nil
}

// mqttBridgeAdapter gives *mqtt.Client the bridge's handler signature.
// The bridge answers failures with acks, so its handlers return nothing.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// auditCommands returns the bridge's OnCommand hook, which records MQTT
// writes. A failed insert is logged and does not affect the command.
func auditCommands(ctx context.Context, repo audit.Repository, crateID string, log *logging.Logger) func(hv.CommandMessage, hv.Reading, error) {
	return func(cmd hv.CommandMessage, r hv.Reading, err error) {
		record := r.Entry.ID.Record
		if record == "" {
			record = cmd.Ref
		}
		var value, result string
		if text, textErr := cmd.ValueText(); textErr == nil {
			value = text
		} else if cmd.Value != nil {
			value = fmt.Sprint(cmd.Value)
		}
		if err == nil {
			result = r.Formatted()
		}

		e := audit.NewWriteEntry(crateID, record, audit.SourceMQTT, value, result, err)
		e.Subject = cmd.Source
		e.CommandID = cmd.ID
		if createErr := repo.Create(ctx, e); createErr != nil {
			log.Error("recording audit entry", "command_id", cmd.ID, "error", createErr)
		}
	}
}
