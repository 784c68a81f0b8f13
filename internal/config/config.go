// Package config provides unified configuration loading for schelling.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/AlexandreRouma/devoir1-info0952/internal/schelling"
	"gopkg.in/yaml.v3"
)

// DirName is the name of the data directory, both per project and under HOME.
const DirName = ".schelling"

// SchellingConfig contains all schelling configuration settings.
type SchellingConfig struct {
	// Grid describes the grid built at the start of every run.
	Grid GridConfig `json:"grid" yaml:"grid"`

	// Run controls how long a run lasts and how it is seeded.
	Run RunConfig `json:"run" yaml:"run"`

	// Storage configures the run history database.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging contains settings for operational logging and step tracing.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// GridConfig holds the parameters handed to schelling.NewGrid.
type GridConfig struct {
	Height int `json:"height" yaml:"height"`
	Width  int `json:"width" yaml:"width"`

	// ProbTypeA and ProbTypeB are per-cell occupancy probabilities.
	// Their sum must not exceed 1.0.
	ProbTypeA float64 `json:"prob_type_a" yaml:"prob_type_a"`
	ProbTypeB float64 `json:"prob_type_b" yaml:"prob_type_b"`

	// SatisfactionRatio is the minimum same-type neighbor share. Range: 0.0 to 1.0
	SatisfactionRatio float64 `json:"satisfaction_ratio" yaml:"satisfaction_ratio"`
}

// RunConfig controls the driver loop.
type RunConfig struct {
	// Seed feeds the PCG generator. 0 picks a seed from the clock.
	Seed uint64 `json:"seed" yaml:"seed"`

	// MaxSteps bounds a run that never converges. 0 means unbounded.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`

	// RenderEvery prints the grid every N steps in text mode. 0 disables.
	RenderEvery int `json:"render_every" yaml:"render_every"`
}

// StorageConfig configures run history persistence.
type StorageConfig struct {
	// Enabled records runs and per-step metrics in SQLite.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir is the data directory holding schelling.db and steps.jsonl.
	Dir string `json:"dir" yaml:"dir"`
}

// LoggingConfig configures schelling's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables step tracing to <storage.dir>/steps.jsonl.
	// "trace" additionally logs every step to stderr.
	Level string `json:"level" yaml:"level"`
}

// Default returns a SchellingConfig with sensible defaults.
func Default() *SchellingConfig {
	return &SchellingConfig{
		Grid: GridConfig{
			Height:            40,
			Width:             40,
			ProbTypeA:         0.45,
			ProbTypeB:         0.45,
			SatisfactionRatio: 0.5,
		},
		Run: RunConfig{
			Seed:        0,
			MaxSteps:    1000,
			RenderEvery: 0,
		},
		Storage: StorageConfig{
			Enabled: true,
			Dir:     DirName,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.schelling/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.schelling/config.yaml -> environment variables
func Load() (*SchellingConfig, error) {
	config := Default()

	if configPath, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFrom loads path when it is non-empty and Load otherwise. Environment
// overrides apply in both cases.
func LoadFrom(path string) (*SchellingConfig, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*SchellingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Storage.Dir = os.ExpandEnv(config.Storage.Dir)

	return config, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *SchellingConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *SchellingConfig) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}

	if c.Grid.SatisfactionRatio < 0 || c.Grid.SatisfactionRatio > 1 {
		return fmt.Errorf("satisfaction_ratio must be between 0 and 1, got %f", c.Grid.SatisfactionRatio)
	}

	if c.Run.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative, got %d", c.Run.MaxSteps)
	}

	if c.Run.RenderEvery < 0 {
		return fmt.Errorf("render_every must be non-negative, got %d", c.Run.RenderEvery)
	}

	if c.Storage.Enabled && c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required when storage is enabled")
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Params converts the grid section into engine parameters.
func (c *SchellingConfig) Params() schelling.Params {
	return schelling.Params{
		Height:            c.Grid.Height,
		Width:             c.Grid.Width,
		ProbTypeA:         c.Grid.ProbTypeA,
		ProbTypeB:         c.Grid.ProbTypeB,
		SatisfactionRatio: c.Grid.SatisfactionRatio,
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
// Values that fail to parse are ignored.
func applyEnvOverrides(config *SchellingConfig) {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setInt("SCHELLING_HEIGHT", &config.Grid.Height)
	setInt("SCHELLING_WIDTH", &config.Grid.Width)
	setFloat("SCHELLING_PROB_A", &config.Grid.ProbTypeA)
	setFloat("SCHELLING_PROB_B", &config.Grid.ProbTypeB)
	setFloat("SCHELLING_RATIO", &config.Grid.SatisfactionRatio)
	setInt("SCHELLING_MAX_STEPS", &config.Run.MaxSteps)

	if v := os.Getenv("SCHELLING_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Run.Seed = n
		}
	}

	if v := os.Getenv("SCHELLING_STORAGE"); v != "" {
		config.Storage.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("SCHELLING_STORAGE_DIR"); v != "" {
		config.Storage.Dir = v
	}

	if v := os.Getenv("SCHELLING_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
