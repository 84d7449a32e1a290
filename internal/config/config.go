package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level clearsettle configuration.
type Config struct {
	Version     string            `yaml:"version"`
	Store       StoreConfig       `yaml:"store"`
	Server      ServerConfig      `yaml:"server"`
	Actor       string            `yaml:"actor"`
	LogsDir     string            `yaml:"logs_dir"`
	Forest      ForestConfig      `yaml:"forest"`
	Autoencoder AutoencoderConfig `yaml:"autoencoder"`
	Retry       RetryConfig       `yaml:"retry"`
}

// StoreConfig holds document store settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds dashboard server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"` // Address to bind (default: 127.0.0.1)
	LogLevel string `yaml:"log_level"`
}

// ForestConfig tunes the isolation forest detector.
type ForestConfig struct {
	Estimators    int     `yaml:"estimators"`
	Contamination float64 `yaml:"contamination"` // expected anomaly fraction, sets the threshold
	MaxFeatures   float64 `yaml:"max_features"`
	Seed          int64   `yaml:"seed"`
}

// AutoencoderConfig tunes the reconstruction-error detector.
type AutoencoderConfig struct {
	ModelPath string   `yaml:"model_path"`
	Threshold float64  `yaml:"threshold"` // reconstruction error above this flags a record
	Features  []string `yaml:"features,omitempty"`
}

// RetryConfig bounds retried writes against the document store.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// Load reads and parses a clearsettle config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply zero-value defaults after unmarshal
	def := Defaults()
	if cfg.Forest.Estimators == 0 {
		cfg.Forest.Estimators = def.Forest.Estimators
	}
	if cfg.Forest.Contamination == 0 {
		cfg.Forest.Contamination = def.Forest.Contamination
	}
	if cfg.Forest.MaxFeatures == 0 {
		cfg.Forest.MaxFeatures = def.Forest.MaxFeatures
	}
	if cfg.Autoencoder.Threshold == 0 {
		cfg.Autoencoder.Threshold = def.Autoencoder.Threshold
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = def.Retry
	}

	return cfg, nil
}

// LoadOrDefaults loads the config file, falling back to defaults when it
// cannot be read.
func LoadOrDefaults(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return Defaults()
	}
	return cfg
}

// Defaults returns a config with sensible defaults. Detector parameters
// mirror the tuning the pipeline was calibrated with.
func Defaults() *Config {
	return &Config{
		Version: "1",
		Store: StoreConfig{
			Path: "clearsettle.db",
		},
		Server: ServerConfig{
			Port:     8080,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Actor:   "AI Engine",
		LogsDir: "logs",
		Forest: ForestConfig{
			Estimators:    200,  // more trees for score stability
			Contamination: 0.02, // expected anomaly proportion
			MaxFeatures:   0.8,  // avoid overfitting on small fields
			Seed:          42,
		},
		Autoencoder: AutoencoderConfig{
			ModelPath: "autoencoder_model.json",
			Threshold: 0.01,
			Features:  []string{"anomaly_score"},
		},
		Retry: RetryConfig{
			MaxAttempts:    5,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     10 * time.Second,
		},
	}
}

// Save writes the config to a YAML file at the given path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks that the config is consistent.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Actor == "" {
		return fmt.Errorf("actor is required")
	}
	if c.Forest.Estimators < 1 {
		return fmt.Errorf("forest.estimators must be positive, got %d", c.Forest.Estimators)
	}
	if c.Forest.Contamination <= 0 || c.Forest.Contamination >= 1 {
		return fmt.Errorf("forest.contamination must be in (0, 1), got %g", c.Forest.Contamination)
	}
	if c.Forest.MaxFeatures <= 0 || c.Forest.MaxFeatures > 1 {
		return fmt.Errorf("forest.max_features must be in (0, 1], got %g", c.Forest.MaxFeatures)
	}
	if c.Autoencoder.Threshold <= 0 {
		return fmt.Errorf("autoencoder.threshold must be positive, got %g", c.Autoencoder.Threshold)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	return nil
}
