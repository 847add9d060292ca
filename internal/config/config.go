// Package config loads and persists the lamp-control configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/lamp-control/internal/adc"
	"github.com/sweeney/lamp-control/internal/gpio"
	"github.com/sweeney/lamp-control/internal/logic"
)

// Settings are the user-adjustable switching parameters, shown and edited on
// the web config form. Changes take effect on the next restart.
type Settings struct {
	// DarkThreshold is the light level at or below which it counts as
	// dark. Valid range 1..100.
	DarkThreshold int `yaml:"dark_threshold"`

	// StableTicks is how many consecutive ticks the dark/bright condition
	// must hold before the relay switches. Valid range 1..100.
	StableTicks int `yaml:"stable_ticks"`
}

// Logic converts the settings into controller settings.
func (s Settings) Logic() logic.Settings {
	return logic.Settings{
		DarkThreshold: s.DarkThreshold,
		StableTicks:   s.StableTicks,
	}
}

// MQTTConfig contains MQTT broker settings.
type MQTTConfig struct {
	Enabled bool   `yaml:"enabled"`
	Broker  string `yaml:"broker"`
}

// HTTPConfig contains status server settings.
type HTTPConfig struct {
	// Addr is the listen address. Empty disables the status server.
	Addr string `yaml:"addr"`
}

// DatabaseConfig contains switch ledger settings.
type DatabaseConfig struct {
	// Path is the SQLite file. Empty disables the ledger.
	Path string `yaml:"path"`
}

// HardwareConfig contains pin and device assignments.
type HardwareConfig struct {
	RelayPin   int    `yaml:"relay_pin"`
	LEDPin     int    `yaml:"led_pin"`
	SensorPath string `yaml:"sensor_path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"` // human-readable console writer instead of JSON
}

// Config represents the daemon configuration.
type Config struct {
	Settings          Settings       `yaml:"settings"`
	PollInterval      Duration       `yaml:"poll_interval"`
	HeartbeatInterval Duration       `yaml:"heartbeat_interval"` // 0 disables
	MQTT              MQTTConfig     `yaml:"mqtt"`
	HTTP              HTTPConfig     `yaml:"http"`
	Database          DatabaseConfig `yaml:"database"`
	Hardware          HardwareConfig `yaml:"hardware"`
	Log               LogConfig      `yaml:"log"`
}

// Duration is a wrapper around time.Duration for YAML round-tripping.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is present. The
// defaults mirror the reference hardware: check once a second, switch after
// 30 stable seconds, dark at level 25 and below.
func Default() *Config {
	return &Config{
		Settings: Settings{
			DarkThreshold: 25,
			StableTicks:   30,
		},
		PollInterval:      Duration(time.Second),
		HeartbeatInterval: Duration(15 * time.Minute),
		MQTT: MQTTConfig{
			Broker: "tcp://192.168.1.200:1883",
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
		Database: DatabaseConfig{
			Path: "lamp-control.sqlite",
		},
		Hardware: HardwareConfig{
			RelayPin:   gpio.DefaultPinRelay,
			LEDPin:     gpio.DefaultPinLED,
			SensorPath: adc.DefaultDevicePath,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads and parses the configuration file, fills in defaults for
// anything unset, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults fills fields the file zeroed out. Explicit "disable" values
// (empty HTTP addr, empty database path, heartbeat 0) are kept as given by
// yaml only when the key is present; since yaml cannot distinguish absent
// from zero for them, the zero value is the documented way to disable.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Settings.DarkThreshold == 0 {
		cfg.Settings.DarkThreshold = def.Settings.DarkThreshold
	}
	if cfg.Settings.StableTicks == 0 {
		cfg.Settings.StableTicks = def.Settings.StableTicks
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Hardware.RelayPin == 0 {
		cfg.Hardware.RelayPin = def.Hardware.RelayPin
	}
	if cfg.Hardware.LEDPin == 0 {
		cfg.Hardware.LEDPin = def.Hardware.LEDPin
	}
	if cfg.Hardware.SensorPath == "" {
		cfg.Hardware.SensorPath = def.Hardware.SensorPath
	}
	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = def.MQTT.Broker
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

// Validate checks the switching settings against their allowed ranges.
func (c *Config) Validate() error {
	if err := ValidateSettings(c.Settings); err != nil {
		return err
	}
	if c.PollInterval.Duration() <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval.Duration())
	}
	return nil
}

// ValidateSettings checks the user-adjustable settings against their allowed
// range of 1..100. Also used by the web config form before saving.
func ValidateSettings(s Settings) error {
	if s.DarkThreshold < 1 || s.DarkThreshold > 100 {
		return fmt.Errorf("dark_threshold must be in 1..100, got %d", s.DarkThreshold)
	}
	if s.StableTicks < 1 || s.StableTicks > 100 {
		return fmt.Errorf("stable_ticks must be in 1..100, got %d", s.StableTicks)
	}
	return nil
}

// Save writes the configuration back to the given path. Used by the web
// config form; the daemon restarts to pick the new values up.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
