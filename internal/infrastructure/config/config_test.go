package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
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
storage:
  root: "/tmp/storage"
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

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if cfg.Storage.Root != "/tmp/storage" {
		t.Errorf("Storage.Root = %q, want %q", cfg.Storage.Root, "/tmp/storage")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	// A missing file is not an error; Load falls back to defaults, which
	// validate cleanly.
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v, want nil (missing file falls back to defaults)", err)
	}
	if cfg.Database.Path == "" {
		t.Error("expected default database path to be set")
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
database:
  path: ""
storage:
  root: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty database.path, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Path: "/data/graylogic.db"},
			MQTT:     MQTTConfig{QoS: 1},
			Queues: QueuesConfig{
				ActionsSize: 100,
				CameraSize:  50,
				StorageSize: 100,
			},
			Storage: StorageConfig{Root: "/app/storage"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "negative QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = -1 },
			wantErr: true,
		},
		{
			name:    "zero actions queue size",
			mutate:  func(c *Config) { c.Queues.ActionsSize = 0 },
			wantErr: true,
		},
		{
			name:    "zero camera queue size",
			mutate:  func(c *Config) { c.Queues.CameraSize = 0 },
			wantErr: true,
		},
		{
			name:    "zero storage queue size",
			mutate:  func(c *Config) { c.Queues.StorageSize = 0 },
			wantErr: true,
		},
		{
			name:    "missing storage root",
			mutate:  func(c *Config) { c.Storage.Root = "" },
			wantErr: true,
		},
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

	t.Setenv("MQTT_HOST", "mqtt.example.com")
	t.Setenv("MQTT_PORT", "8883")
	t.Setenv("MQTT_USER", "testuser")
	t.Setenv("MQTT_PASSWORD", "testpass")
	t.Setenv("ACTIONS_Q_SIZE", "2000")
	t.Setenv("CAMERA_Q_SIZE", "300")
	t.Setenv("STORAGE_Q_SIZE", "1500")
	t.Setenv("STORAGE_ROOT", "/mnt/storage")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.Queues.ActionsSize != 2000 {
		t.Errorf("Queues.ActionsSize = %d, want 2000", cfg.Queues.ActionsSize)
	}

	if cfg.Queues.CameraSize != 300 {
		t.Errorf("Queues.CameraSize = %d, want 300", cfg.Queues.CameraSize)
	}

	if cfg.Queues.StorageSize != 1500 {
		t.Errorf("Queues.StorageSize = %d, want 1500", cfg.Queues.StorageSize)
	}

	if cfg.Storage.Root != "/mnt/storage" {
		t.Errorf("Storage.Root = %q, want %q", cfg.Storage.Root, "/mnt/storage")
	}
}

func TestApplyEnvOverrides_InvalidNumericValuesAreIgnored(t *testing.T) {
	cfg := defaultConfig()
	originalPort := cfg.MQTT.Broker.Port
	originalActionsSize := cfg.Queues.ActionsSize

	t.Setenv("MQTT_PORT", "not-a-number")
	t.Setenv("ACTIONS_Q_SIZE", "not-a-number")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != originalPort {
		t.Errorf("MQTT.Broker.Port = %d, want unchanged %d", cfg.MQTT.Broker.Port, originalPort)
	}

	if cfg.Queues.ActionsSize != originalActionsSize {
		t.Errorf("Queues.ActionsSize = %d, want unchanged %d", cfg.Queues.ActionsSize, originalActionsSize)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.Storage.Root == "" {
		t.Error("defaultConfig should have non-empty Storage.Root")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate cleanly, got: %v", err)
	}
}
