package config

// Config mirrors hvcrate.yaml. Load fills it from defaults, the file and
// HVCRATE_* environment variables, in that order.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Crate     CrateConfig     `yaml:"crate"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies the installation.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// CrateConfig describes the controller and the discovery policy.
type CrateConfig struct {
	// ID names the crate in MQTT topics and the inventory.
	ID string `yaml:"id"`

	// Driver selects the controller library. Only "sim" is built in.
	Driver string `yaml:"driver"`

	// SystemType accepts a family name ("SY4527") or its numeric code.
	SystemType string `yaml:"system_type"`

	// Address must be a literal IP address.
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// ReadOnly downgrades read-write parameters and drops write-only ones.
	ReadOnly bool `yaml:"read_only"`

	// Prefix is prepended to record names on export ("HV1" gives "HV1:S00:V0SET").
	Prefix string `yaml:"prefix"`

	// InfoFile, when set, receives a text listing of the discovered crate.
	InfoFile string `yaml:"info_file"`

	Simulator SimulatorConfig `yaml:"simulator"`
}

// SimulatorConfig configures the "sim" driver.
type SimulatorConfig struct {
	// LayoutFile is a YAML crate layout. Empty selects the built-in two-slot crate.
	LayoutFile string `yaml:"layout_file"`

	// ErrorEvery makes every n-th controller call time out. 0 disables.
	ErrorEvery int `yaml:"error_every"`
}

// BridgeConfig tunes the poll loop. Intervals are in seconds.
type BridgeConfig struct {
	// PollInterval is the time between full reads of every readable parameter.
	PollInterval int `yaml:"poll_interval"`

	HealthInterval int `yaml:"health_interval"`

	// PublishUnchanged publishes state on every poll, not only on change.
	PublishUnchanged bool `yaml:"publish_unchanged"`
}

// DatabaseConfig locates the SQLite file. BusyTimeout is in seconds.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// KeepRuns bounds how many inventory runs per crate are retained. 0 keeps all.
	KeepRuns int `yaml:"keep_runs"`
}

type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig enables optional telemetry. FlushInterval is in seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds http.Server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists permitted browser origins; empty allows any.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig sizes and paces client connections. Times are in seconds.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

type JWTConfig struct {
	// Secret signs and verifies API tokens. Empty disables authentication.
	Secret string `yaml:"secret"`

	// TokenTTL is the lifetime of issued tokens (minutes).
	TokenTTL int `yaml:"token_ttl"`
}

// LoggingConfig selects level (debug..error), format (json or text) and
// output (stdout, stderr or discard).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

