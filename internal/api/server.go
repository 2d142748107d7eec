package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-remote/internal/audit"
	"github.com/nerrad567/gray-logic-remote/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-remote/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-remote/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-remote/internal/process"
	"github.com/nerrad567/gray-logic-remote/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Sessions is the device session surface served over HTTP.
// *session.Manager implements it.
type Sessions interface {
	ListDevices() []session.DeviceView
	Rescan(ctx context.Context) ([]session.DeviceView, error)
	DeviceInfo(ctx context.Context, id string) (*session.DeviceView, error)
	StartPairing(ctx context.Context, id string, protocol session.ProtocolChoice) (*session.PairingPrompt, error)
	FinishPairing(ctx context.Context, id, pin string) (*session.PairingResult, error)
	CancelPairing(id string) bool
	SendCommand(ctx context.Context, id, command string) error
	Commands() []string
	NowPlaying(ctx context.Context, id string) (*session.NowPlayingSnapshot, error)
	ListApps(ctx context.Context, id string) (*session.AppListResult, error)
	LaunchApp(ctx context.Context, id, appID string) error
	Connect(ctx context.Context, id string) (*session.ConnectResult, error)
	Disconnect(id string) bool
	Health() session.Health
}

// ConnectionStatus reports whether an external dependency is reachable.
// *mqtt.Client implements it.
type ConnectionStatus interface {
	IsConnected() bool
}

// StatsProvider exposes database pool statistics. *database.DB implements it.
type StatsProvider interface {
	Stats() sql.DBStats
}

// BridgeProcess reports on a managed bridge process.
// *process.Supervisor implements it.
type BridgeProcess interface {
	Stats() process.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Sessions Sessions

	// Optional.
	AuditRepo   audit.Repository
	MQTT        ConnectionStatus
	DB          StatsProvider
	Bridge      BridgeProcess
	Registry    *prometheus.Registry
	HTTPMetrics *metrics.HTTPMetrics
	Hub         *Hub
	Version     string
}

// Server is the HTTP API server for the remote service.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	sessions    Sessions
	auditRepo   audit.Repository
	mqtt        ConnectionStatus
	db          StatsProvider
	bridge      BridgeProcess
	registry    *prometheus.Registry
	httpMetrics *metrics.HTTPMetrics
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		logger:      deps.Logger,
		sessions:    deps.Sessions,
		auditRepo:   deps.AuditRepo,
		mqtt:        deps.MQTT,
		db:          deps.DB,
		bridge:      deps.Bridge,
		registry:    deps.Registry,
		httpMetrics: deps.HTTPMetrics,
		version:     deps.Version,
		startTime:   time.Now(),
	}

	// The hub is usually created in main so it can be registered as a
	// session observer before the manager starts.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}

	return s, nil
}

// Handler returns the full router. Used by Start and by tests.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; Close stops it.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
