package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/hvcrate-core/internal/audit"
	"github.com/nerrad567/hvcrate-core/internal/bridges/hv"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/config"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/database"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/logging"
	"github.com/nerrad567/hvcrate-core/internal/inventory"
)

const shutdownTimeout = 10 * time.Second

// ErrNotStarted is returned by HealthCheck before Start.
var ErrNotStarted = errors.New("api: server not started")

// BridgeProvider is what the API needs from *hv.Bridge.
type BridgeProvider interface {
	GetMetrics() hv.BridgeMetrics
	Write(ref, text string, mask uint32) (hv.Reading, error)
}

// Deps are the server's collaborators. Logger, CrateID and Router are
// required; a nil optional dependency disables what it backs.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	CrateID  string
	Router   *hv.Router
	Version  string
	Prefix   string // record prefix shown in responses

	Bridge    BridgeProvider       // writes go straight to Router without it
	Inventory inventory.Repository // inventory routes answer 503 without it
	Audit     audit.Repository     // writes go unrecorded without it
	DB        *database.DB         // pool and schema figures in /metrics

	// ExternalHub is shared with the bridge, whose OnState hook is wired
	// before the server exists. Without it Start creates one.
	ExternalHub *Hub
}

// Server is the HTTP API for one crate.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	crateID   string
	router    *hv.Router
	bridge    BridgeProvider
	inventory inventory.Repository
	audit     audit.Repository
	db        *database.DB
	prefix    string
	version   string
	startTime time.Time
	hub       *Hub

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New checks deps and returns an unstarted server.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("api: logger is required")
	case deps.Router == nil:
		return nil, errors.New("api: router is required")
	case deps.CrateID == "":
		return nil, errors.New("api: crate ID is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		crateID:   deps.CrateID,
		router:    deps.Router,
		bridge:    deps.Bridge,
		inventory: deps.Inventory,
		audit:     deps.Audit,
		db:        deps.DB,
		prefix:    deps.Prefix,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       deps.ExternalHub,
	}, nil
}

// Start binds the listener, so a port clash is returned here, then
// serves in the background until Close. A hub created here lives until
// ctx is done or Close.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(ctx)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	t := s.cfg.Timeouts
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(t.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(t.Read) * time.Second,
		WriteTimeout:      time.Duration(t.Write) * time.Second,
		IdleTimeout:       time.Duration(t.Idle) * time.Second,
	}

	go s.serve(ln)
	return nil
}

func (s *Server) serve(ln net.Listener) {
	tls := s.cfg.TLS
	s.logger.Info("API server listening", "address", ln.Addr().String(), "tls", tls.Enabled)

	var err error
	if tls.Enabled {
		err = s.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
	} else {
		err = s.server.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("API server stopped", "error", err)
	}
}

// Addr is the bound address, useful with port 0. It is "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Hub returns the WebSocket hub, nil before Start unless one was given.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close stops accepting connections and gives in-flight requests up to
// ten seconds to finish.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports ErrNotStarted until Start has succeeded.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return ErrNotStarted
	}
	return nil
}

func (s *Server) authEnabled() bool {
	return s.secCfg.JWT.Secret != ""
}
