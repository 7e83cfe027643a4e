package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Occupancy.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Presence  PresenceConfig  `yaml:"presence"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Seats     []SeatSeed      `yaml:"seats"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains the snapshot/admin HTTP server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// StaticDir serves the board's stylesheet from disk instead of the
	// embedded copy, so it can be restyled without a rebuild. Empty uses
	// the embedded assets.
	StaticDir string `yaml:"static_dir"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains live snapshot push settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// PresenceConfig controls the Bluetooth poll loop.
type PresenceConfig struct {
	// PollInterval is the sleep between the end of one cycle and the start of the next.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ProbeTimeout bounds a single reachability probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// ProbeConcurrency caps how many seats are probed at once. 1 probes sequentially.
	ProbeConcurrency int `yaml:"probe_concurrency"`

	// ProbeCommand is the external probing tool and its fixed arguments.
	// The device address is appended as the final argument.
	ProbeCommand []string `yaml:"probe_command"`

	// UseSudo prefixes the probe command with sudo (l2ping needs raw sockets).
	UseSudo bool `yaml:"use_sudo"`
}

// IngestConfig controls the ambient-light sensor listener.
type IngestConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// AmbientThreshold is the light level above which an unreachable seat
	// is still reported as present via ambient light.
	AmbientThreshold int `yaml:"ambient_threshold"`

	// DesignatedSeat is the seat every sensor report is applied to.
	DesignatedSeat string `yaml:"designated_seat"`

	ReadTimeout    time.Duration `yaml:"read_timeout"`
	MaxPayload     int           `yaml:"max_payload"`
	MaxConnections int           `yaml:"max_connections"`

	// MQTTTopic optionally accepts the same reports over MQTT.
	MQTTTopic string `yaml:"mqtt_topic"`
}

// Addr returns the listen address for the ingest server.
func (c IngestConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SeatSeed provisions a seat row at startup if it does not exist yet.
type SeatSeed struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: OCCUPANCY_SECTION_KEY
// For example: OCCUPANCY_DATABASE_PATH, OCCUPANCY_INGEST_PORT
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

// Default returns the built-in configuration without reading a file.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns the built-in defaults for a single-lab deployment.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "lab-001",
			Name: "Gray Logic Occupancy",
		},
		Database: DatabaseConfig{
			Path:        "./data/occupancy.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5000,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Presence: PresenceConfig{
			PollInterval:     5 * time.Second,
			ProbeTimeout:     5 * time.Second,
			ProbeConcurrency: 4,
			ProbeCommand:     []string{"l2ping", "-c", "1"},
			UseSudo:          true,
		},
		Ingest: IngestConfig{
			Host:             "0.0.0.0",
			Port:             5001,
			AmbientThreshold: 500,
			ReadTimeout:      5 * time.Second,
			MaxPayload:       1024,
			MaxConnections:   16,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-occupancy",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OCCUPANCY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("OCCUPANCY_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("OCCUPANCY_API_STATIC_DIR"); v != "" {
		cfg.API.StaticDir = v
	}
	if v := os.Getenv("OCCUPANCY_INGEST_DESIGNATED_SEAT"); v != "" {
		cfg.Ingest.DesignatedSeat = v
	}
	if v := os.Getenv("OCCUPANCY_INGEST_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.Port = port
		}
	}
	if v := os.Getenv("OCCUPANCY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("OCCUPANCY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("OCCUPANCY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("OCCUPANCY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
// All problems are collected so an operator can fix them in one pass.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if !validPort(c.API.Port) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if !validPort(c.Ingest.Port) {
		errs = append(errs, "ingest.port must be between 1 and 65535")
	}
	if c.API.Port == c.Ingest.Port && c.API.Host == c.Ingest.Host {
		errs = append(errs, "api.port and ingest.port must differ")
	}

	if c.Presence.PollInterval <= 0 {
		errs = append(errs, "presence.poll_interval must be positive")
	}
	// A probe without a deadline can starve every other seat's refresh.
	if c.Presence.ProbeTimeout <= 0 {
		errs = append(errs, "presence.probe_timeout must be positive")
	}
	if c.Presence.ProbeConcurrency < 1 {
		errs = append(errs, "presence.probe_concurrency must be at least 1")
	}
	if len(c.Presence.ProbeCommand) == 0 || c.Presence.ProbeCommand[0] == "" {
		errs = append(errs, "presence.probe_command is required")
	}

	if c.Ingest.AmbientThreshold < 0 {
		errs = append(errs, "ingest.ambient_threshold must not be negative")
	}
	if c.Ingest.DesignatedSeat == "" {
		errs = append(errs, "ingest.designated_seat is required")
	}
	if c.Ingest.ReadTimeout <= 0 {
		errs = append(errs, "ingest.read_timeout must be positive")
	}
	if c.Ingest.MaxPayload <= 0 {
		errs = append(errs, "ingest.max_payload must be positive")
	}
	if c.Ingest.MaxConnections < 1 {
		errs = append(errs, "ingest.max_connections must be at least 1")
	}

	seen := make(map[string]bool, len(c.Seats))
	for i, s := range c.Seats {
		if strings.TrimSpace(s.Name) == "" {
			errs = append(errs, fmt.Sprintf("seats[%d].name is required", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Sprintf("seats[%d].name %q is duplicated", i, s.Name))
		}
		seen[s.Name] = true
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
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
