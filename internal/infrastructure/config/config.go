package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Remote.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Link      LinkConfig      `yaml:"link"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Audit     AuditConfig     `yaml:"audit"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DiscoveryConfig controls device discovery scans.
type DiscoveryConfig struct {
	// ScanTimeout is how long each scan listens for devices, in seconds.
	ScanTimeout float64 `yaml:"scan_timeout"`

	// RescanInterval triggers a periodic rescan, in seconds. 0 disables it.
	RescanInterval int `yaml:"rescan_interval"`
}

// LinkConfig controls control connections and pairing through the media bridge.
type LinkConfig struct {
	// Protocol is the preferred control protocol: "companion" or "airplay".
	Protocol string `yaml:"protocol"`

	// RequestTimeout bounds each bridge request, in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// PairingTTL is how long an unfinished pairing is kept, in seconds.
	PairingTTL int `yaml:"pairing_ttl"`
}

// BridgeConfig controls the optional managed media protocol bridge.
// When Managed is false the bridge is expected to run on its own and only
// needs to reach the same MQTT broker.
type BridgeConfig struct {
	Managed bool     `yaml:"managed"`
	Binary  string   `yaml:"binary"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`

	RestartOnFailure bool `yaml:"restart_on_failure"`

	// Restart delays, in seconds. The delay doubles up to MaxRestartDelay.
	RestartDelay    int `yaml:"restart_delay"`
	MaxRestartDelay int `yaml:"max_restart_delay"`

	// MaxRestartAttempts of 0 means unlimited.
	MaxRestartAttempts int `yaml:"max_restart_attempts"`

	GracefulTimeout     int `yaml:"graceful_timeout"`
	HealthCheckInterval int `yaml:"health_check_interval"`
}

// AuditConfig controls the control-action audit trail.
type AuditConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. Used when no config file exists.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-remote.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-remote",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  60,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Discovery: DiscoveryConfig{
			ScanTimeout: 5,
		},
		Link: LinkConfig{
			Protocol:       "companion",
			RequestTimeout: 10,
			PairingTTL:     300,
		},
		Bridge: BridgeConfig{
			Binary:              "atv-bridge",
			RestartOnFailure:    true,
			RestartDelay:        2,
			MaxRestartDelay:     60,
			GracefulTimeout:     10,
			HealthCheckInterval: 30,
		},
		Audit: AuditConfig{
			Enabled:       true,
			RetentionDays: 90,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Bridge
	if v := os.Getenv("GRAYLOGIC_BRIDGE_BINARY"); v != "" {
		cfg.Bridge.Binary = v
	}
	if v := os.Getenv("GRAYLOGIC_BRIDGE_MANAGED"); v != "" {
		if managed, err := strconv.ParseBool(v); err == nil {
			cfg.Bridge.Managed = managed
		}
	}

	// Discovery. The legacy APPLETV_SCAN_TIMEOUT is honoured when the
	// GRAYLOGIC_ variable is not set.
	for _, key := range []string{"APPLETV_SCAN_TIMEOUT", "GRAYLOGIC_SCAN_TIMEOUT"} {
		if v := os.Getenv(key); v != "" {
			if secs, err := strconv.ParseFloat(v, 64); err == nil {
				cfg.Discovery.ScanTimeout = secs
			}
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Audit.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when audit is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if st := c.Discovery.ScanTimeout; math.IsNaN(st) || math.IsInf(st, 0) || st <= 0 {
		errs = append(errs, "discovery.scan_timeout must be a positive number")
	}
	if c.Discovery.RescanInterval < 0 {
		errs = append(errs, "discovery.rescan_interval must not be negative")
	}

	switch strings.ToLower(c.Link.Protocol) {
	case "", "companion", "airplay":
	default:
		errs = append(errs, "link.protocol must be companion or airplay")
	}
	if c.Link.RequestTimeout < 0 {
		errs = append(errs, "link.request_timeout must not be negative")
	}
	if c.Link.PairingTTL < 0 {
		errs = append(errs, "link.pairing_ttl must not be negative")
	}

	if c.Bridge.Managed && c.Bridge.Binary == "" {
		errs = append(errs, "bridge.binary is required when bridge.managed is true")
	}
	if c.Bridge.RestartDelay < 0 || c.Bridge.MaxRestartDelay < 0 || c.Bridge.GracefulTimeout < 0 || c.Bridge.HealthCheckInterval < 0 {
		errs = append(errs, "bridge timings must not be negative")
	}
	if c.Bridge.MaxRestartAttempts < 0 {
		errs = append(errs, "bridge.max_restart_attempts must not be negative")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetScanTimeout returns the discovery scan timeout as a Duration.
func (c *Config) GetScanTimeout() time.Duration {
	return time.Duration(c.Discovery.ScanTimeout * float64(time.Second))
}

// GetRescanInterval returns the periodic rescan interval. Zero disables it.
func (c *Config) GetRescanInterval() time.Duration {
	return time.Duration(c.Discovery.RescanInterval) * time.Second
}

// GetRequestTimeout returns the bridge request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Link.RequestTimeout) * time.Second
}

// GetPairingTTL returns the pairing session lifetime as a Duration.
func (c *Config) GetPairingTTL() time.Duration {
	return time.Duration(c.Link.PairingTTL) * time.Second
}
