package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the whole simulator configuration. Zero-config runs use Default().
type Config struct {
	Road      RoadConfig      `yaml:"road"`
	Demand    DemandConfig    `yaml:"demand"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Influx    InfluxConfig    `yaml:"influx"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

type RoadConfig struct {
	Length    int           `yaml:"length" validate:"gte=4,lte=1000"`
	SpawnGate int           `yaml:"spawn_gate" validate:"gte=0,ltfield=Length"`
	Tick      time.Duration `yaml:"tick" validate:"gt=0"`
	// Seed fixes the spawn draws; 0 draws from the global source.
	Seed uint64 `yaml:"seed"`
}

type DemandConfig struct {
	Initial int           `yaml:"initial" validate:"gte=0,lte=100"`
	Low     int           `yaml:"low" validate:"gte=0,lte=100"`
	High    int           `yaml:"high" validate:"gte=0,lte=100"`
	Phase   time.Duration `yaml:"phase" validate:"gt=0"`
}

type TelemetryConfig struct {
	Dir      string        `yaml:"dir" validate:"required"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true,omitempty,url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org" validate:"required_if=Enabled true"`
	Bucket  string `yaml:"bucket" validate:"required_if=Enabled true"`
}

type ServerConfig struct {
	// Addr enables the status server when set, e.g. ":8080".
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
	// Stderr also writes logs to stderr, interleaved with the lane display.
	Stderr bool `yaml:"stderr"`
}

// Default returns the stock single-lane configuration.
func Default() Config {
	return Config{
		Road: RoadConfig{
			Length:    75,
			SpawnGate: 3,
			Tick:      500 * time.Millisecond,
		},
		Demand: DemandConfig{
			Initial: 10,
			Low:     10,
			High:    50,
			Phase:   5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Dir:      "logs",
			Interval: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Load reads a YAML file over Default() and validates it. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default() and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
