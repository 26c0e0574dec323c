package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/imu_telemetry/internal/estimator"
	"github.com/relabs-tech/imu_telemetry/internal/queue"
	"github.com/relabs-tech/imu_telemetry/internal/telemetry"
)

// DefaultPath is where the mains look for the config file.
const DefaultPath = "telemetry.conf"

// EnvPrefix prefixes environment overrides, e.g. TELEMETRY_MQTT_BROKER.
const EnvPrefix = "TELEMETRY"

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker            string `mapstructure:"mqtt_broker" yaml:"mqtt_broker"`
	MQTTClientIDProducer  string `mapstructure:"mqtt_client_id_producer" yaml:"mqtt_client_id_producer"`
	MQTTClientIDTelemetry string `mapstructure:"mqtt_client_id_telemetry" yaml:"mqtt_client_id_telemetry"`
	MQTTClientIDConsole   string `mapstructure:"mqtt_client_id_console" yaml:"mqtt_client_id_console"`

	// Topics
	TopicSamples string `mapstructure:"topic_samples" yaml:"topic_samples"`
	TopicState   string `mapstructure:"topic_state" yaml:"topic_state"`

	// Ingress queue
	QueueCapacity       int    `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	QueueOverflowPolicy string `mapstructure:"queue_overflow_policy" yaml:"queue_overflow_policy"` // reject_new | evict_oldest

	// Dead reckoning
	TrajectoryCapacity int     `mapstructure:"trajectory_capacity" yaml:"trajectory_capacity"`
	Gravity            float64 `mapstructure:"gravity" yaml:"gravity"`                           // m/s²
	ZUPTAccelThreshold float64 `mapstructure:"zupt_accel_threshold" yaml:"zupt_accel_threshold"` // m/s²
	ZUPTGyroThreshold  float64 `mapstructure:"zupt_gyro_threshold" yaml:"zupt_gyro_threshold"`   // rad/s
	DtMax              float64 `mapstructure:"dt_max" yaml:"dt_max"`                             // seconds
	TimeScale          float64 `mapstructure:"time_scale" yaml:"time_scale"`                     // device ticks per second

	// Acquisition
	Source         string `mapstructure:"source" yaml:"source"` // mock | serial
	SerialPort     string `mapstructure:"serial_port" yaml:"serial_port"`
	SerialBaudRate int    `mapstructure:"serial_baud_rate" yaml:"serial_baud_rate"`

	// Timing, milliseconds
	SampleInterval int `mapstructure:"sample_interval" yaml:"sample_interval"`
	DrainInterval  int `mapstructure:"drain_interval" yaml:"drain_interval"`
	StreamInterval int `mapstructure:"stream_interval" yaml:"stream_interval"`

	// Web Server
	WebServerPort int `mapstructure:"web_server_port" yaml:"web_server_port"`

	// Recording; empty disables CSV export on shutdown
	RecordPath string `mapstructure:"record_path" yaml:"record_path"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Package-level singleton: InitGlobal sets it once, Get reads it under
// a read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

var defaults = map[string]any{
	"MQTT_BROKER":              "tcp://localhost:1883",
	"MQTT_CLIENT_ID_PRODUCER":  "imu-telemetry-producer",
	"MQTT_CLIENT_ID_TELEMETRY": "imu-telemetry-session",
	"MQTT_CLIENT_ID_CONSOLE":   "imu-telemetry-console",
	"TOPIC_SAMPLES":            "imu/samples",
	"TOPIC_STATE":              "imu/state",
	"QUEUE_CAPACITY":           500,
	"QUEUE_OVERFLOW_POLICY":    "evict_oldest",
	"TRAJECTORY_CAPACITY":      2000,
	"GRAVITY":                  9.81,
	"ZUPT_ACCEL_THRESHOLD":     0.15,
	"ZUPT_GYRO_THRESHOLD":      0.05,
	"DT_MAX":                   0.1,
	"TIME_SCALE":               1e6,
	"SOURCE":                   "mock",
	"SERIAL_PORT":              "/dev/ttyUSB0",
	"SERIAL_BAUD_RATE":         115200,
	"SAMPLE_INTERVAL":          10,
	"DRAIN_INTERVAL":           16,
	"STREAM_INTERVAL":          50,
	"WEB_SERVER_PORT":          8080,
	"RECORD_PATH":              "",
	"LOG_LEVEL":                "info",
}

// Load reads a KEY=VALUE config file (# comments allowed) and applies
// TELEMETRY_* environment overrides. A missing file is not an error when
// path is empty; every key has a default.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		v.SetConfigFile(configPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := checkKeys(v); err != nil {
			return nil, err
		}
		log.Debugf("config: using %s", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkKeys rejects keys the application does not know, so typos do not
// silently fall back to defaults.
func checkKeys(v *viper.Viper) error {
	for _, k := range v.AllKeys() {
		if _, ok := defaults[strings.ToUpper(k)]; !ok {
			return fmt.Errorf("unknown config key: %q", strings.ToUpper(k))
		}
	}
	return nil
}

// validate checks that all fields hold usable values.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicSamples == "" || c.TopicState == "" {
		return fmt.Errorf("TOPIC_SAMPLES and TOPIC_STATE are required")
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("QUEUE_CAPACITY must be positive, got %d", c.QueueCapacity)
	}
	if _, err := queue.ParsePolicy(c.QueueOverflowPolicy); err != nil {
		return fmt.Errorf("QUEUE_OVERFLOW_POLICY: %w", err)
	}
	if c.TrajectoryCapacity <= 0 {
		return fmt.Errorf("TRAJECTORY_CAPACITY must be positive, got %d", c.TrajectoryCapacity)
	}
	for name, val := range map[string]float64{
		"GRAVITY":              c.Gravity,
		"ZUPT_ACCEL_THRESHOLD": c.ZUPTAccelThreshold,
		"ZUPT_GYRO_THRESHOLD":  c.ZUPTGyroThreshold,
		"DT_MAX":               c.DtMax,
		"TIME_SCALE":           c.TimeScale,
	} {
		if val <= 0 {
			return fmt.Errorf("%s must be positive, got %g", name, val)
		}
	}
	switch c.Source {
	case "mock":
	case "serial":
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required when SOURCE=serial")
		}
		if c.SerialBaudRate <= 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE must be positive, got %d", c.SerialBaudRate)
		}
	default:
		return fmt.Errorf("SOURCE must be mock or serial, got %q", c.Source)
	}
	for name, val := range map[string]int{
		"SAMPLE_INTERVAL": c.SampleInterval,
		"DRAIN_INTERVAL":  c.DrainInterval,
		"STREAM_INTERVAL": c.StreamInterval,
		"WEB_SERVER_PORT": c.WebServerPort,
	} {
		if val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, val)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Session builds the telemetry session configuration. sink may be nil.
func (c *Config) Session(sink telemetry.Sink) telemetry.Config {
	policy, _ := queue.ParsePolicy(c.QueueOverflowPolicy) // checked by validate
	return telemetry.Config{
		Queue: queue.Config{
			Capacity: c.QueueCapacity,
			Policy:   policy,
		},
		Estimator: estimator.Config{
			Gravity:            c.Gravity,
			AccelThreshold:     c.ZUPTAccelThreshold,
			GyroThreshold:      c.ZUPTGyroThreshold,
			DtMax:              c.DtMax,
			TimeScale:          c.TimeScale,
			TrajectoryCapacity: c.TrajectoryCapacity,
		},
		Sink: sink,
	}
}

// Dump renders the configuration as YAML.
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
		if err == nil {
			level, _ := log.ParseLevel(globalConfig.LogLevel)
			log.SetLevel(level)
		}
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
