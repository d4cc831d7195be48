package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the camera server.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Faults   FaultsConfig   `yaml:"faults"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CameraConfig contains registry and frame scheduler settings.
type CameraConfig struct {
	// Capacity is the maximum number of cameras. Fixed for the process lifetime.
	Capacity int `yaml:"capacity"`

	// BackoffMS is how long the frame worker sleeps when no camera is registered.
	BackoffMS int `yaml:"backoff_ms"`

	// SkipDisabled makes the frame worker skip disabled cameras instead of
	// leaving the decision to the frame source.
	SkipDisabled bool `yaml:"skip_disabled"`

	// WorkerName labels the frame worker in logs and fault reports.
	WorkerName string `yaml:"worker_name"`

	// Devices are registered at startup in the order listed.
	Devices []CameraDeviceConfig `yaml:"devices"`
}

// CameraDeviceConfig describes a camera registered at startup.
type CameraDeviceConfig struct {
	ID      int    `yaml:"id"`
	Name    string `yaml:"name"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	FPS     int    `yaml:"fps"`
	Enabled *bool  `yaml:"enabled,omitempty"` // nil means enabled
}

// IsEnabled reports whether the camera starts enabled.
func (d CameraDeviceConfig) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// FaultsConfig contains frame fault reporting settings.
type FaultsConfig struct {
	// QueueSize bounds the pending fault reports; overflow is dropped and counted.
	QueueSize int `yaml:"queue_size"`

	// Persist records faults in the SQLite journal.
	Persist bool `yaml:"persist"`

	// Publish sends faults to MQTT (and InfluxDB when enabled).
	Publish bool `yaml:"publish"`

	// RetentionDays prunes journal entries older than this. 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
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

	// StatsInterval is how often scheduler counters are written, in seconds.
	StatsInterval int `yaml:"stats_interval"`
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
// Environment variables follow the pattern: CAMSERVER_SECTION_KEY
// For example: CAMSERVER_DATABASE_PATH, CAMSERVER_CAMERA_CAPACITY
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
// applied. It is used when no config file is given.
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
		Camera: CameraConfig{
			Capacity:   8,
			BackoffMS:  30,
			WorkerName: "camera-frame-worker",
		},
		Faults: FaultsConfig{
			QueueSize:     256,
			Persist:       true,
			Publish:       true,
			RetentionDays: 30,
		},
		Database: DatabaseConfig{
			Path:        "./data/camserver.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "camserver",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
			StatsInterval: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CAMSERVER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Camera
	if v, ok := envInt("CAMSERVER_CAMERA_CAPACITY"); ok {
		cfg.Camera.Capacity = v
	}
	if v, ok := envInt("CAMSERVER_CAMERA_BACKOFF_MS"); ok {
		cfg.Camera.BackoffMS = v
	}
	if v, ok := envBool("CAMSERVER_CAMERA_SKIP_DISABLED"); ok {
		cfg.Camera.SkipDisabled = v
	}

	// Database
	if v := os.Getenv("CAMSERVER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v, ok := envBool("CAMSERVER_MQTT_ENABLED"); ok {
		cfg.MQTT.Enabled = v
	}
	if v := os.Getenv("CAMSERVER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CAMSERVER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CAMSERVER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("CAMSERVER_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v, ok := envInt("CAMSERVER_API_PORT"); ok {
		cfg.API.Port = v
	}

	// InfluxDB
	if v, ok := envBool("CAMSERVER_INFLUXDB_ENABLED"); ok {
		cfg.InfluxDB.Enabled = v
	}
	if v := os.Getenv("CAMSERVER_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("CAMSERVER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("CAMSERVER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// envInt reads an integer environment variable. Unset or malformed values are ignored.
func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// envBool reads a boolean environment variable. Unset or malformed values are ignored.
func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// invalidNameChars cannot appear in a camera name: the name is used as a
// single MQTT topic level.
const invalidNameChars = "/+#\x00"

// Validate checks the configuration for errors.
//
// Every problem is collected so an operator can fix them in one pass.
func (c *Config) Validate() error {
	var errs []string

	// Camera validation
	if c.Camera.Capacity < 1 {
		errs = append(errs, "camera.capacity must be at least 1")
	}
	if c.Camera.BackoffMS < 1 {
		errs = append(errs, "camera.backoff_ms must be at least 1")
	}
	if len(c.Camera.Devices) > c.Camera.Capacity && c.Camera.Capacity > 0 {
		errs = append(errs, fmt.Sprintf("camera.devices lists %d cameras but capacity is %d",
			len(c.Camera.Devices), c.Camera.Capacity))
	}
	ids := make(map[int]bool, len(c.Camera.Devices))
	names := make(map[string]bool, len(c.Camera.Devices))
	for i, d := range c.Camera.Devices {
		if d.Name == "" {
			errs = append(errs, fmt.Sprintf("camera.devices[%d].name is required", i))
		}
		if strings.ContainsAny(d.Name, invalidNameChars) {
			errs = append(errs, fmt.Sprintf("camera.devices[%d].name %q must not contain '/', '+', '#' or NUL", i, d.Name))
		}
		if ids[d.ID] {
			errs = append(errs, fmt.Sprintf("camera.devices[%d].id %d is duplicated", i, d.ID))
		}
		if d.Name != "" && names[d.Name] {
			errs = append(errs, fmt.Sprintf("camera.devices[%d].name %q is duplicated", i, d.Name))
		}
		if d.Width < 0 || d.Height < 0 || d.FPS < 0 {
			errs = append(errs, fmt.Sprintf("camera.devices[%d] geometry must not be negative", i))
		}
		ids[d.ID] = true
		names[d.Name] = true
	}

	// Faults validation
	if c.Faults.QueueSize < 1 {
		errs = append(errs, "faults.queue_size must be at least 1")
	}
	if c.Faults.RetentionDays < 0 {
		errs = append(errs, "faults.retention_days must not be negative")
	}

	// Database validation
	if c.Faults.Persist && c.Database.Path == "" {
		errs = append(errs, "database.path is required when faults.persist is set")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.StatsInterval < 0 {
			errs = append(errs, "influxdb.stats_interval must not be negative")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Backoff returns the frame worker idle backoff as a Duration.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.Camera.BackoffMS) * time.Millisecond
}

// Retention returns the fault journal retention as a Duration; zero keeps everything.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Faults.RetentionDays) * 24 * time.Hour
}

// StatsInterval returns the scheduler stats write interval as a Duration.
func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.InfluxDB.StatsInterval) * time.Second
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
