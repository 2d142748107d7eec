package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8000
discovery:
  scan_timeout: 2.5
  rescan_interval: 600
link:
  protocol: "airplay"
  request_timeout: 15
  pairing_ttl: 120
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Link.Protocol != "airplay" {
		t.Errorf("Link.Protocol = %q, want %q", cfg.Link.Protocol, "airplay")
	}
	if got := cfg.GetScanTimeout(); got != 2500*time.Millisecond {
		t.Errorf("GetScanTimeout() = %v, want 2.5s", got)
	}
	if got := cfg.GetRescanInterval(); got != 10*time.Minute {
		t.Errorf("GetRescanInterval() = %v, want 10m", got)
	}
	if got := cfg.GetPairingTTL(); got != 2*time.Minute {
		t.Errorf("GetPairingTTL() = %v, want 2m", got)
	}
	// Unset sections keep their defaults.
	if !cfg.Audit.Enabled {
		t.Error("Audit.Enabled = false, want default true")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error, got nil")
	}
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if cfg.API.Port != 8000 {
		t.Errorf("API.Port = %d, want 8000", cfg.API.Port)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, true},
		{"missing database path with audit", func(c *Config) { c.Database.Path = "" }, true},
		{"missing database path without audit", func(c *Config) {
			c.Database.Path = ""
			c.Audit.Enabled = false
		}, false},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"zero scan timeout", func(c *Config) { c.Discovery.ScanTimeout = 0 }, true},
		{"NaN scan timeout", func(c *Config) { c.Discovery.ScanTimeout = math.NaN() }, true},
		{"infinite scan timeout", func(c *Config) { c.Discovery.ScanTimeout = math.Inf(1) }, true},
		{"negative rescan interval", func(c *Config) { c.Discovery.RescanInterval = -1 }, true},
		{"unknown protocol", func(c *Config) { c.Link.Protocol = "bluetooth" }, true},
		{"protocol any case", func(c *Config) { c.Link.Protocol = "AirPlay" }, false},
		{"influxdb without url", func(c *Config) { c.InfluxDB.Enabled = true }, true},
		{"managed bridge without binary", func(c *Config) {
			c.Bridge.Managed = true
			c.Bridge.Binary = ""
		}, true},
		{"unmanaged bridge without binary", func(c *Config) { c.Bridge.Binary = "" }, false},
		{"negative bridge restart delay", func(c *Config) { c.Bridge.RestartDelay = -1 }, true},
		{"negative bridge restart attempts", func(c *Config) { c.Bridge.MaxRestartAttempts = -2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Link: LinkConfig{RequestTimeout: 12},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetRequestTimeout().Seconds(); got != 12 {
		t.Errorf("GetRequestTimeout() = %v, want 12", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_API_HOST", "192.168.1.1")
	t.Setenv("GRAYLOGIC_API_PORT", "9000")
	t.Setenv("GRAYLOGIC_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYLOGIC_BRIDGE_BINARY", "/opt/atv/bridge")
	t.Setenv("GRAYLOGIC_BRIDGE_MANAGED", "true")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Bridge.Binary != "/opt/atv/bridge" || !cfg.Bridge.Managed {
		t.Errorf("Bridge = %+v, want managed /opt/atv/bridge", cfg.Bridge)
	}
}

func TestApplyEnvOverrides_ScanTimeout(t *testing.T) {
	tests := []struct {
		name   string
		legacy string
		native string
		want   float64
	}{
		{"legacy only", "8", "", 8},
		{"native wins", "8", "3", 3},
		{"invalid ignored", "soon", "", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APPLETV_SCAN_TIMEOUT", tt.legacy)
			t.Setenv("GRAYLOGIC_SCAN_TIMEOUT", tt.native)

			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			if cfg.Discovery.ScanTimeout != tt.want {
				t.Errorf("ScanTimeout = %v, want %v", cfg.Discovery.ScanTimeout, tt.want)
			}
		})
	}
}

func TestApplyEnvOverrides_NonFiniteScanTimeoutRejected(t *testing.T) {
	for _, v := range []string{"NaN", "Inf", "-Inf"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("APPLETV_SCAN_TIMEOUT", "")
			t.Setenv("GRAYLOGIC_SCAN_TIMEOUT", v)

			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() with scan timeout %q = nil, want error", v)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.GetScanTimeout() != 5*time.Second {
		t.Errorf("defaultConfig GetScanTimeout() = %v, want 5s", cfg.GetScanTimeout())
	}
	if cfg.GetPairingTTL() != 5*time.Minute {
		t.Errorf("defaultConfig GetPairingTTL() = %v, want 5m", cfg.GetPairingTTL())
	}
	if cfg.Link.Protocol != "companion" {
		t.Errorf("defaultConfig Link.Protocol = %q, want companion", cfg.Link.Protocol)
	}
	if cfg.Bridge.Managed {
		t.Error("defaultConfig Bridge.Managed = true, want false")
	}
	if !cfg.Bridge.RestartOnFailure || cfg.Bridge.Binary != "atv-bridge" {
		t.Errorf("defaultConfig Bridge = %+v", cfg.Bridge)
	}
}
