package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/hvcrate-core/internal/hvapi"
)

const minJWTSecretLength = 32

// Load reads the YAML file at path over the defaults, applies HVCRATE_*
// environment overrides and validates the result. Validation reports
// every problem at once.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{ID: "site-001", Name: "HV Crate"},
		Crate: CrateConfig{
			ID:         "crate1",
			Driver:     "sim",
			SystemType: "SY4527",
			Address:    "127.0.0.1",
		},
		Bridge: BridgeConfig{PollInterval: 5, HealthInterval: 30},
		Database: DatabaseConfig{
			Path:        "./data/hvcrate.db",
			WALMode:     true,
			BusyTimeout: 5,
			KeepRuns:    20,
		},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "hvcrate"},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		InfluxDB: InfluxDBConfig{BatchSize: 100, FlushInterval: 10},
		API: APIConfig{
			Host:     "127.0.0.1",
			Port:     8080,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		WebSocket: WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Security:  SecurityConfig{JWT: JWTConfig{TokenTTL: 24 * 60}},
		Logging:   LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// envOverride binds one HVCRATE_ variable to a config field. set returns
// false for a value it cannot parse, which leaves the field unchanged.
type envOverride struct {
	name string
	set  func(cfg *Config, v string) bool
}

func setString(field func(*Config) *string) func(*Config, string) bool {
	return func(cfg *Config, v string) bool {
		*field(cfg) = v
		return true
	}
}

func setInt(field func(*Config) *int) func(*Config, string) bool {
	return func(cfg *Config, v string) bool {
		n, err := strconv.Atoi(v)
		if err != nil {
			return false
		}
		*field(cfg) = n
		return true
	}
}

func setBool(field func(*Config) *bool) func(*Config, string) bool {
	return func(cfg *Config, v string) bool {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false
		}
		*field(cfg) = b
		return true
	}
}

// envOverrides cover the settings that differ between deployments of the
// same file, and the secrets that should not live in it.
var envOverrides = []envOverride{
	{"HVCRATE_CRATE_ID", setString(func(c *Config) *string { return &c.Crate.ID })},
	{"HVCRATE_CRATE_ADDRESS", setString(func(c *Config) *string { return &c.Crate.Address })},
	{"HVCRATE_CRATE_SYSTEM_TYPE", setString(func(c *Config) *string { return &c.Crate.SystemType })},
	{"HVCRATE_CRATE_USERNAME", setString(func(c *Config) *string { return &c.Crate.Username })},
	{"HVCRATE_CRATE_PASSWORD", setString(func(c *Config) *string { return &c.Crate.Password })},
	{"HVCRATE_CRATE_READ_ONLY", setBool(func(c *Config) *bool { return &c.Crate.ReadOnly })},
	{"HVCRATE_DATABASE_PATH", setString(func(c *Config) *string { return &c.Database.Path })},
	{"HVCRATE_MQTT_HOST", setString(func(c *Config) *string { return &c.MQTT.Broker.Host })},
	{"HVCRATE_MQTT_PORT", setInt(func(c *Config) *int { return &c.MQTT.Broker.Port })},
	{"HVCRATE_MQTT_USERNAME", setString(func(c *Config) *string { return &c.MQTT.Auth.Username })},
	{"HVCRATE_MQTT_PASSWORD", setString(func(c *Config) *string { return &c.MQTT.Auth.Password })},
	{"HVCRATE_INFLUXDB_URL", setString(func(c *Config) *string { return &c.InfluxDB.URL })},
	{"HVCRATE_INFLUXDB_TOKEN", setString(func(c *Config) *string { return &c.InfluxDB.Token })},
	{"HVCRATE_API_PORT", setInt(func(c *Config) *int { return &c.API.Port })},
	{"HVCRATE_JWT_SECRET", setString(func(c *Config) *string { return &c.Security.JWT.Secret })},
	{"HVCRATE_LOG_LEVEL", setString(func(c *Config) *string { return &c.Logging.Level })},
}

// applyEnvOverrides applies every set, non-empty HVCRATE_ variable.
func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.set(cfg, v)
		}
	}
}

// Validate returns every configuration problem joined into one error.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Site.ID != "", "site.id is required")

	check(c.Crate.ID != "" && !strings.ContainsAny(c.Crate.ID, "/+#"),
		"crate.id is required and must not contain '/', '+' or '#'")
	check(c.Crate.Driver == "sim", "crate.driver %q is not supported (available: sim)", c.Crate.Driver)
	st, err := hvapi.ParseSystemType(c.Crate.SystemType)
	check(err == nil && st.IsMainframe(), "crate.system_type must be one of SY1527, SY2527, SY4527, SY5527")
	ip := net.ParseIP(c.Crate.Address)
	check(ip != nil && ip.To4() != nil, "crate.address %q is not an IPv4 address", c.Crate.Address)
	check(c.Crate.Simulator.ErrorEvery >= 0, "crate.simulator.error_every must not be negative")

	check(c.Bridge.PollInterval >= 1, "bridge.poll_interval must be at least 1 second")
	check(c.Bridge.HealthInterval >= 1, "bridge.health_interval must be at least 1 second")

	check(c.Database.Path != "", "database.path is required")
	check(c.Database.KeepRuns >= 0, "database.keep_runs must not be negative")

	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1 or 2")
	check(!c.InfluxDB.Enabled || c.InfluxDB.URL != "", "influxdb.url is required when influxdb is enabled")

	if c.API.Enabled {
		check(c.API.Port >= 1 && c.API.Port <= 65535, "api.port %d is out of range", c.API.Port)
		tls := c.API.TLS
		check(!tls.Enabled || (tls.CertFile != "" && tls.KeyFile != ""),
			"api.tls.cert_file and api.tls.key_file are required with TLS")
		check(c.WebSocket.PingInterval >= 1 && c.WebSocket.PongTimeout >= 1,
			"websocket.ping_interval and websocket.pong_timeout must be at least 1 second")
	}

	secret := c.Security.JWT.Secret
	check(secret == "" || len(secret) >= minJWTSecretLength,
		"security.jwt.secret must be at least %d characters", minJWTSecretLength)

	return errors.Join(errs...)
}

// SystemType is the parsed crate.system_type. Call after Validate.
func (c *Config) SystemType() hvapi.SystemType {
	st, _ := hvapi.ParseSystemType(c.Crate.SystemType) //nolint:errcheck // checked by Validate
	return st
}

// GetPollInterval returns bridge.poll_interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Bridge.PollInterval) * time.Second
}

// GetHealthInterval returns bridge.health_interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetTokenTTL returns security.jwt.token_ttl (minutes) as a Duration.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.TokenTTL) * time.Minute
}
