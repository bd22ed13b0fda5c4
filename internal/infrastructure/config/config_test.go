package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/hvcrate-core/internal/hvapi"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
crate:
  id: "hv-west"
  system_type: "sy5527"
  address: "192.168.10.20"
  read_only: true
  prefix: "HV1"
  simulator:
    layout_file: "layouts/test.yaml"
    error_every: 1000
bridge:
  poll_interval: 2
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
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Crate.ID != "hv-west" || !cfg.Crate.ReadOnly || cfg.Crate.Prefix != "HV1" {
		t.Errorf("Crate = %+v", cfg.Crate)
	}
	if cfg.SystemType() != hvapi.SY5527 {
		t.Errorf("SystemType() = %v, want SY5527", cfg.SystemType())
	}
	if cfg.Crate.Simulator.ErrorEvery != 1000 {
		t.Errorf("Simulator.ErrorEvery = %d", cfg.Crate.Simulator.ErrorEvery)
	}
	if cfg.GetPollInterval() != 2*time.Second {
		t.Errorf("GetPollInterval() = %v, want 2s", cfg.GetPollInterval())
	}
	// Defaults survive partial sections.
	if cfg.Crate.Driver != "sim" || cfg.GetHealthInterval() != 30*time.Second {
		t.Errorf("defaults lost: driver %q health %v", cfg.Crate.Driver, cfg.GetHealthInterval())
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
crate:
  address: "crate.lab.local"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// All problems are reported together.
	for _, want := range []string{"site.id", "crate.address"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
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
		{"numeric system type", func(c *Config) { c.Crate.SystemType = "2" }, false},
		{"IPv6 address", func(c *Config) { c.Crate.Address = "fe80::1" }, true},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, true},
		{"crate ID with slash", func(c *Config) { c.Crate.ID = "a/b" }, true},
		{"unknown driver", func(c *Config) { c.Crate.Driver = "caenhv" }, true},
		{"non-mainframe system", func(c *Config) { c.Crate.SystemType = "V65XX" }, true},
		{"unknown system", func(c *Config) { c.Crate.SystemType = "SY9999" }, true},
		{"host name address", func(c *Config) { c.Crate.Address = "crate.local" }, true},
		{"negative error_every", func(c *Config) { c.Crate.Simulator.ErrorEvery = -1 }, true},
		{"zero poll interval", func(c *Config) { c.Bridge.PollInterval = 0 }, true},
		{"zero health interval", func(c *Config) { c.Bridge.HealthInterval = 0 }, true},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"negative keep_runs", func(c *Config) { c.Database.KeepRuns = -1 }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"influx without URL", func(c *Config) { c.InfluxDB.Enabled = true }, true},
		{"API enabled", func(c *Config) { c.API.Enabled = true }, false},
		{"API bad port", func(c *Config) {
			c.API.Enabled = true
			c.API.Port = 70000
		}, true},
		{"API bad port while disabled", func(c *Config) { c.API.Port = 0 }, false},
		{"TLS without cert", func(c *Config) {
			c.API.Enabled = true
			c.API.TLS.Enabled = true
		}, true},
		{"zero ping interval", func(c *Config) {
			c.API.Enabled = true
			c.WebSocket.PingInterval = 0
		}, true},
		{"short JWT secret", func(c *Config) { c.Security.JWT.Secret = "short" }, true},
		{"JWT secret", func(c *Config) { c.Security.JWT.Secret = strings.Repeat("k", 32) }, false},
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

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("HVCRATE_CRATE_ADDRESS", "10.1.2.3")
	t.Setenv("HVCRATE_CRATE_SYSTEM_TYPE", "SY1527")
	t.Setenv("HVCRATE_CRATE_USERNAME", "operator")
	t.Setenv("HVCRATE_CRATE_PASSWORD", "hvpass")
	t.Setenv("HVCRATE_CRATE_READ_ONLY", "true")
	t.Setenv("HVCRATE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("HVCRATE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("HVCRATE_MQTT_USERNAME", "testuser")
	t.Setenv("HVCRATE_MQTT_PASSWORD", "testpass")
	t.Setenv("HVCRATE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("HVCRATE_API_PORT", "9090")
	t.Setenv("HVCRATE_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Crate.Address != "10.1.2.3" {
		t.Errorf("Crate.Address = %q", cfg.Crate.Address)
	}
	if cfg.Crate.SystemType != "SY1527" {
		t.Errorf("Crate.SystemType = %q", cfg.Crate.SystemType)
	}
	if cfg.Crate.Username != "operator" || cfg.Crate.Password != "hvpass" {
		t.Errorf("Crate credentials = %q/%q", cfg.Crate.Username, cfg.Crate.Password)
	}
	if !cfg.Crate.ReadOnly {
		t.Error("Crate.ReadOnly = false, want true")
	}
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
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q", cfg.Security.JWT.Secret)
	}
}

func TestApplyEnvOverrides_Numbers(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"valid", "8883", 8883},
		{"not a number", "eighty", 1883},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			t.Setenv("HVCRATE_MQTT_PORT", tt.value)
			t.Setenv("HVCRATE_LOG_LEVEL", "debug")

			applyEnvOverrides(cfg)

			if cfg.MQTT.Broker.Port != tt.want {
				t.Errorf("MQTT.Broker.Port = %d, want %d", cfg.MQTT.Broker.Port, tt.want)
			}
			if cfg.Logging.Level != "debug" {
				t.Errorf("Logging.Level = %q", cfg.Logging.Level)
			}
		})
	}
}

func TestApplyEnvOverrides_BadBool(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("HVCRATE_CRATE_READ_ONLY", "maybe")

	applyEnvOverrides(cfg)

	if cfg.Crate.ReadOnly {
		t.Error("unparseable bool should leave ReadOnly unchanged")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate: %v", err)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.SystemType() != hvapi.SY4527 {
		t.Errorf("defaultConfig SystemType() = %v", cfg.SystemType())
	}
	if cfg.GetTokenTTL() != 24*time.Hour {
		t.Errorf("defaultConfig GetTokenTTL() = %v, want 24h", cfg.GetTokenTTL())
	}
}
