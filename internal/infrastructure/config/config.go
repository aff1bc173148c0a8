package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the action core.
// Configuration is loaded from YAML and can be overridden by environment
// variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Queues   QueuesConfig   `yaml:"queues"`
	Storage  StorageConfig  `yaml:"storage"`
	Camera   CameraConfig   `yaml:"camera"`
	Logging  LoggingConfig  `yaml:"logging"`
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

// MQTTReconnectConfig contains MQTT reconnection backoff settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// QueuesConfig contains the three bounded subsystem queue capacities.
// These field names and their corresponding environment overrides are
// part of the wire contract and must not be renamed.
type QueuesConfig struct {
	ActionsSize int `yaml:"actions_size"`
	CameraSize  int `yaml:"camera_size"`
	StorageSize int `yaml:"storage_size"`
}

// StorageConfig contains the local storage root path.
type StorageConfig struct {
	Root string `yaml:"root"`
}

// CameraConfig contains camera snapshot tuning knobs that sit outside
// the bit-exact environment contract. HTTPTimeoutSeconds is loaded but
// not read by the camera manager, whose HTTP fetch timeout is fixed at
// 5 s.
type CameraConfig struct {
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults, file is optional)
//  3. Environment variables (override file values)
//
// Every environment override uses the bit-exact names required by the
// MQTT wire contract (MQTT_HOST, ACTIONS_Q_SIZE, STORAGE_ROOT, ...);
// there are no GRAYLOGIC_SECTION_KEY-style overrides, because these
// names are consumed by operators deploying alongside the broker and
// must not be renamed.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/actioncore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-action-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     120,
				MaxAttempts:  0,
			},
		},
		Queues: QueuesConfig{
			ActionsSize: 1000,
			CameraSize:  500,
			StorageSize: 1000,
		},
		Storage: StorageConfig{
			Root: "/app/storage",
		},
		Camera: CameraConfig{
			HTTPTimeoutSeconds: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies the environment variable names required by
// the MQTT wire contract: MQTT_HOST, MQTT_PORT, MQTT_USER,
// MQTT_PASSWORD, ACTIONS_Q_SIZE, CAMERA_Q_SIZE, STORAGE_Q_SIZE,
// STORAGE_ROOT.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MQTT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = n
		}
	}
	if v := os.Getenv("MQTT_USER"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("ACTIONS_Q_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queues.ActionsSize = n
		}
	}
	if v := os.Getenv("CAMERA_Q_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queues.CameraSize = n
		}
	}
	if v := os.Getenv("STORAGE_Q_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queues.StorageSize = n
		}
	}
	if v := os.Getenv("STORAGE_ROOT"); v != "" {
		cfg.Storage.Root = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Queues.ActionsSize <= 0 {
		errs = append(errs, "queues.actions_size must be positive")
	}
	if c.Queues.CameraSize <= 0 {
		errs = append(errs, "queues.camera_size must be positive")
	}
	if c.Queues.StorageSize <= 0 {
		errs = append(errs, "queues.storage_size must be positive")
	}
	if c.Storage.Root == "" {
		errs = append(errs, "storage.root is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
