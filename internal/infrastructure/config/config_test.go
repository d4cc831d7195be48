package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
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
camera:
  capacity: 4
  backoff_ms: 15
  skip_disabled: true
  devices:
    - id: 1
      name: "front"
      width: 1280
      height: 720
      fps: 25
    - id: 2
      name: "rear"
      enabled: false
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  port: 9000
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Camera.Capacity != 4 {
		t.Errorf("Camera.Capacity = %d, want 4", cfg.Camera.Capacity)
	}
	if got := cfg.Backoff(); got != 15*time.Millisecond {
		t.Errorf("Backoff() = %v, want 15ms", got)
	}
	if !cfg.Camera.SkipDisabled {
		t.Error("Camera.SkipDisabled = false, want true")
	}
	if len(cfg.Camera.Devices) != 2 {
		t.Fatalf("len(Camera.Devices) = %d, want 2", len(cfg.Camera.Devices))
	}
	if !cfg.Camera.Devices[0].IsEnabled() {
		t.Error("front should default to enabled")
	}
	if cfg.Camera.Devices[1].IsEnabled() {
		t.Error("rear should be disabled")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	// Unset values keep their defaults.
	if cfg.Camera.WorkerName != "camera-frame-worker" {
		t.Errorf("Camera.WorkerName = %q, want default", cfg.Camera.WorkerName)
	}
	if cfg.Faults.QueueSize != 256 {
		t.Errorf("Faults.QueueSize = %d, want 256", cfg.Faults.QueueSize)
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
camera:
  capacity: 0
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for zero capacity, got nil")
	}
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if cfg.Camera.Capacity != 8 {
		t.Errorf("Camera.Capacity = %d, want 8", cfg.Camera.Capacity)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "zero capacity",
			mutate:  func(c *Config) { c.Camera.Capacity = 0 },
			wantErr: "camera.capacity",
		},
		{
			name:    "zero backoff",
			mutate:  func(c *Config) { c.Camera.BackoffMS = 0 },
			wantErr: "camera.backoff_ms",
		},
		{
			name: "more devices than capacity",
			mutate: func(c *Config) {
				c.Camera.Capacity = 1
				c.Camera.Devices = []CameraDeviceConfig{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}
			},
			wantErr: "capacity is 1",
		},
		{
			name: "duplicate device id",
			mutate: func(c *Config) {
				c.Camera.Devices = []CameraDeviceConfig{{ID: 1, Name: "a"}, {ID: 1, Name: "b"}}
			},
			wantErr: "id 1 is duplicated",
		},
		{
			name: "duplicate device name",
			mutate: func(c *Config) {
				c.Camera.Devices = []CameraDeviceConfig{{ID: 1, Name: "a"}, {ID: 2, Name: "a"}}
			},
			wantErr: `name "a" is duplicated`,
		},
		{
			name: "missing device name",
			mutate: func(c *Config) {
				c.Camera.Devices = []CameraDeviceConfig{{ID: 1}}
			},
			wantErr: "name is required",
		},
		{
			name: "device name with topic separator",
			mutate: func(c *Config) {
				c.Camera.Devices = []CameraDeviceConfig{{ID: 1, Name: "yard/east"}}
			},
			wantErr: `name "yard/east" must not contain`,
		},
		{
			name: "device name with wildcard",
			mutate: func(c *Config) {
				c.Camera.Devices = []CameraDeviceConfig{{ID: 1, Name: "cam#"}}
			},
			wantErr: `name "cam#" must not contain`,
		},
		{
			name:    "zero fault queue",
			mutate:  func(c *Config) { c.Faults.QueueSize = 0 },
			wantErr: "faults.queue_size",
		},
		{
			name:    "missing database path with persist",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name: "missing database path without persist",
			mutate: func(c *Config) {
				c.Database.Path = ""
				c.Faults.Persist = false
			},
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name: "invalid port ignored when API disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
		},
		{
			name:    "influx enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Camera.Capacity = 0
	cfg.MQTT.QoS = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"camera.capacity", "mqtt.qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q missing %q", err, want)
		}
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Camera:   CameraConfig{BackoffMS: 30},
		Faults:   FaultsConfig{RetentionDays: 2},
		InfluxDB: InfluxDBConfig{StatsInterval: 15},
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
	}

	if got := cfg.Backoff(); got != 30*time.Millisecond {
		t.Errorf("Backoff() = %v, want 30ms", got)
	}
	if got := cfg.Retention(); got != 48*time.Hour {
		t.Errorf("Retention() = %v, want 48h", got)
	}
	if got := cfg.StatsInterval(); got != 15*time.Second {
		t.Errorf("StatsInterval() = %v, want 15s", got)
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
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("CAMSERVER_CAMERA_CAPACITY", "16")
	t.Setenv("CAMSERVER_CAMERA_BACKOFF_MS", "50")
	t.Setenv("CAMSERVER_CAMERA_SKIP_DISABLED", "true")
	t.Setenv("CAMSERVER_DATABASE_PATH", "/custom/path.db")
	t.Setenv("CAMSERVER_MQTT_ENABLED", "1")
	t.Setenv("CAMSERVER_MQTT_HOST", "mqtt.example.com")
	t.Setenv("CAMSERVER_MQTT_USERNAME", "testuser")
	t.Setenv("CAMSERVER_MQTT_PASSWORD", "testpass")
	t.Setenv("CAMSERVER_API_HOST", "192.168.1.1")
	t.Setenv("CAMSERVER_API_PORT", "9100")
	t.Setenv("CAMSERVER_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("CAMSERVER_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Camera.Capacity != 16 {
		t.Errorf("Camera.Capacity = %d, want 16", cfg.Camera.Capacity)
	}
	if cfg.Camera.BackoffMS != 50 {
		t.Errorf("Camera.BackoffMS = %d, want 50", cfg.Camera.BackoffMS)
	}
	if !cfg.Camera.SkipDisabled {
		t.Error("Camera.SkipDisabled = false, want true")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
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
	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestApplyEnvOverrides_MalformedIgnored(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("CAMSERVER_CAMERA_CAPACITY", "lots")
	t.Setenv("CAMSERVER_CAMERA_SKIP_DISABLED", "maybe")

	applyEnvOverrides(cfg)

	if cfg.Camera.Capacity != 8 {
		t.Errorf("Camera.Capacity = %d, want default 8", cfg.Camera.Capacity)
	}
	if cfg.Camera.SkipDisabled {
		t.Error("Camera.SkipDisabled changed by malformed value")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Camera.Capacity != 8 {
		t.Errorf("defaultConfig Camera.Capacity = %d, want 8", cfg.Camera.Capacity)
	}
	if cfg.Camera.BackoffMS != 30 {
		t.Errorf("defaultConfig Camera.BackoffMS = %d, want 30", cfg.Camera.BackoffMS)
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig does not validate: %v", err)
	}
}
