// Gray Logic Remote - media device session service
//
// This is the main entry point for the remote service. It discovers
// streaming-media devices through the media protocol bridge, keeps one
// control connection per device, and exposes pairing, remote commands,
// now-playing and app control over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-remote/migrations"

	"github.com/nerrad567/gray-logic-remote/internal/api"
	"github.com/nerrad567/gray-logic-remote/internal/audit"
	"github.com/nerrad567/gray-logic-remote/internal/bridges/atv"
	"github.com/nerrad567/gray-logic-remote/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-remote/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-remote/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-remote/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-remote/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-remote/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-remote/internal/process"
	"github.com/nerrad567/gray-logic-remote/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// bridgeReadyTimeout bounds the wait for a freshly started managed bridge
// to report itself healthy before the startup scan.
const bridgeReadyTimeout = 15 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Components are closed by deferred calls in reverse start order, so the
// API stops accepting requests before the manager closes its connections,
// and observers drain after the manager emits its last event.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Remote",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"site", cfg.Site.ID,
	)

	// Audit trail (optional)
	var (
		db        *database.DB
		auditRepo audit.Repository
		recorder  *audit.Recorder
	)
	if cfg.Audit.Enabled {
		db, err = database.Open(database.FromConfig(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		auditRepo = audit.NewSQLiteRepository(db.DB)
		recorder = audit.NewRecorder(auditRepo, cfg.Audit.RetentionDays, log.Component("audit"))
		defer recorder.Close()
	} else {
		log.Info("audit trail disabled")
	}

	// MQTT carries every request to the media protocol bridge.
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// InfluxDB telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Media protocol bridge client
	bridge, err := startBridge(cfg, mqttClient, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("stopping bridge client")
		bridge.Stop()
	}()

	// Managed bridge process (optional)
	var sidecar *process.Supervisor
	if cfg.Bridge.Managed {
		sidecar = process.NewSupervisor(sidecarOptions(cfg.Bridge, bridge.HealthCheck, log))
		sidecar.SetLogger(log.Component("bridge-process"))
		if err := sidecar.Start(ctx); err != nil {
			return fmt.Errorf("starting media bridge process: %w", err)
		}
		defer func() {
			log.Info("stopping media bridge process")
			if stopErr := sidecar.Stop(); stopErr != nil {
				log.Error("error stopping media bridge process", "error", stopErr)
			}
		}()
		if err := waitForBridge(ctx, bridge, bridgeReadyTimeout); err != nil {
			// The startup scan tolerates an absent bridge; the supervisor keeps trying.
			log.Warn("media bridge not ready", "error", err)
		} else {
			log.Info("media bridge ready", "status", bridge.BridgeStatus())
		}
	}

	// Prometheus
	registry := metrics.NewRegistry()
	sessionMetrics := metrics.NewSessionMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	// Session events go to MQTT, the websocket hub and every enabled sink.
	events := mqtt.NewEventPublisher(mqttClient, log.Component("events"))
	defer events.Close()

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	manager, err := session.NewManager(session.Options{
		Discovery:      atv.NewScanner(bridge),
		Link:           atv.NewLinker(bridge, session.ParseProtocol(cfg.Link.Protocol)),
		ScanTimeout:    cfg.GetScanTimeout(),
		PairingTTL:     cfg.GetPairingTTL(),
		RescanInterval: cfg.GetRescanInterval(),
		Logger:         log.Component("session"),
	})
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}
	defer func() {
		log.Info("closing device sessions")
		manager.Close()
	}()

	manager.AddObserver(sessionMetrics)
	manager.AddObserver(hub)
	manager.AddObserver(session.ObserverFunc(func(e session.Event) {
		events.Enqueue(string(e.Type), e)
	}))
	if recorder != nil {
		manager.AddObserver(recorder)
	}
	if influxClient != nil {
		manager.AddObserver(influxdb.NewTelemetry(influxClient))
	}

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("starting session manager: %w", err)
	}
	log.Info("session manager started", "health", manager.Health().String())

	// API server
	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log.Component("api"),
		Sessions:    manager,
		AuditRepo:   auditRepo,
		MQTT:        mqttClient,
		Registry:    registry,
		HTTPMetrics: httpMetrics,
		Hub:         hub,
		Version:     version,
	}
	if db != nil {
		deps.DB = db
	}
	if sidecar != nil {
		deps.Bridge = sidecar
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads path. When the default file is absent the built-in
// defaults are used; an explicitly configured path must exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default()
	}
	return nil, err
}

// startBridge creates the bridge client and subscribes to its responses.
func startBridge(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) (*atv.Client, error) {
	client, err := atv.NewClient(atv.ClientOptions{
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		RequestTimeout: cfg.GetRequestTimeout(),
		// #nosec G115 -- qos validated to 0..2
		QoS:    byte(cfg.MQTT.QoS),
		Logger: log.Component("atv"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating bridge client: %w", err)
	}
	if err := client.Start(); err != nil {
		return nil, fmt.Errorf("starting bridge client: %w", err)
	}
	log.Info("bridge client started", "request_timeout", client.Timeout())
	return client, nil
}

// sidecarOptions maps the bridge config onto supervisor options.
func sidecarOptions(cfg config.BridgeConfig, health func(context.Context) error, log *logging.Logger) process.Options {
	return process.Options{
		Name:                "atv-bridge",
		Binary:              cfg.Binary,
		Args:                cfg.Args,
		Env:                 cfg.Env,
		RestartOnFailure:    cfg.RestartOnFailure,
		RestartDelay:        time.Duration(cfg.RestartDelay) * time.Second,
		MaxRestartDelay:     time.Duration(cfg.MaxRestartDelay) * time.Second,
		MaxRestartAttempts:  cfg.MaxRestartAttempts,
		GracefulTimeout:     time.Duration(cfg.GracefulTimeout) * time.Second,
		HealthCheck:         health,
		HealthCheckInterval: time.Duration(cfg.HealthCheckInterval) * time.Second,
		OnStateChange: func(state process.State) {
			log.Info("media bridge process state changed", "state", string(state))
		},
	}
}

// bridgeHealth is the part of *atv.Client waitForBridge polls.
type bridgeHealth interface {
	HealthCheck(ctx context.Context) error
}

// waitForBridge polls the bridge health until it passes or timeout elapses.
func waitForBridge(ctx context.Context, bridge bridgeHealth, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		err := bridge.HealthCheck(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for media bridge: %w", err)
		case <-ticker.C:
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// db and influxClient may be nil when their features are disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mqttTransport is the part of *mqtt.Client the bridge adapter uses.
type mqttTransport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge
// client's MQTTClient interface. The difference is the handler signature:
//   - Infrastructure mqtt: func(topic, payload []byte) error
//   - Bridge client expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client mqttTransport
}

// Publish implements atv.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements atv.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// Unsubscribe implements atv.MQTTClient.
func (a *mqttBridgeAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

// IsConnected implements atv.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
