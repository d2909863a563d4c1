// Package config handles engine configuration loading from TOML files and
// environment variables, following the teacher's Load/Validate/env-override
// pattern.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	DefaultProvider string                    `toml:"default_provider"`
	Providers       map[string]ProviderConfig `toml:"providers"`
	Engine          EngineConfig              `toml:"engine"`
}

// ProviderConfig holds LLM provider settings.
type ProviderConfig struct {
	Endpoint    string  `toml:"endpoint"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
}

// EngineConfig carries the tunable constants the agent loop (C10) and its
// C4-C9 collaborators use, each defaulted per spec.md and overridable so a
// deployment can tighten or loosen them without a code change (spec.md §9's
// "expose as configuration" resolution for the no_progress/divergence
// thresholds applies to the whole knob set, not just one detector).
type EngineConfig struct {
	MaxIterations   int `toml:"max_iterations"`
	MaxRetryAttempts int `toml:"max_retry_attempts"`

	ContextWindow int `toml:"context_window"`
	MaxOutputTokens int `toml:"max_output_tokens"`

	AgentsMDMaxCharacters int `toml:"agents_md_max_characters"`

	DoomLoopWindow        int `toml:"doom_loop_window"`
	SameToolWindow        int `toml:"same_tool_window"`
	FailureWindow         int `toml:"failure_window"`
	NoProgressWindow      int `toml:"no_progress_window"`
	MutationFailureWindow int `toml:"mutation_failure_window"`

	// ReadOnlyTools are excluded from same_tool_loop detection (spec.md
	// §4.5's "read-only tool names excluded, config-provided set").
	ReadOnlyTools []string `toml:"read_only_tools"`
}

// WithDefaults mirrors spec.md's named constants (§4.5-§4.7):
// MAX_ITERATIONS=10, MAX_RETRY_ATTEMPTS=5, and the divergence detectors'
// default windows. Exported so callers building an EngineConfig
// programmatically (tests, the demo CLI) get the same defaults Load
// applies to a TOML file.
func (e EngineConfig) WithDefaults() EngineConfig {
	if e.MaxIterations <= 0 {
		e.MaxIterations = 10
	}
	if e.MaxRetryAttempts <= 0 {
		e.MaxRetryAttempts = 5
	}
	if e.AgentsMDMaxCharacters <= 0 {
		e.AgentsMDMaxCharacters = 8000
	}
	if e.DoomLoopWindow <= 0 {
		e.DoomLoopWindow = 3
	}
	if e.SameToolWindow <= 0 {
		e.SameToolWindow = 5
	}
	if e.FailureWindow <= 0 {
		e.FailureWindow = 3
	}
	if e.NoProgressWindow <= 0 {
		e.NoProgressWindow = 2
	}
	if e.MutationFailureWindow <= 0 {
		e.MutationFailureWindow = 2
	}
	if e.ReadOnlyTools == nil {
		e.ReadOnlyTools = []string{"read", "grep", "glob", "list"}
	}
	return e
}

// Load reads configuration from a TOML file and applies environment
// variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Providers: make(map[string]ProviderConfig),
	}

	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Engine = cfg.Engine.WithDefaults()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("providers: at least one provider must be configured"))
	} else {
		for name, providerCfg := range c.Providers {
			errs = append(errs, validateProviderConfig(name, providerCfg)...)
		}
	}

	if c.DefaultProvider != "" {
		if _, ok := c.Providers[c.DefaultProvider]; !ok {
			errs = append(errs, fmt.Errorf("default_provider=%q does not exist in providers", c.DefaultProvider))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func validateProviderConfig(name string, cfg ProviderConfig) []error {
	var errs []error
	if cfg.Endpoint == "" {
		errs = append(errs, fmt.Errorf("providers.%s.endpoint is required", name))
	} else if err := validateEndpoint(cfg.Endpoint); err != nil {
		errs = append(errs, fmt.Errorf("providers.%s.endpoint=%q is invalid: %v", name, cfg.Endpoint, err))
	}

	if cfg.Model == "" {
		errs = append(errs, fmt.Errorf("providers.%s.model is required", name))
	}

	if cfg.Temperature < 0.0 || cfg.Temperature > 2.0 {
		errs = append(errs, fmt.Errorf("providers.%s.temperature=%v must be between 0.0 and 2.0", name, cfg.Temperature))
	}

	return errs
}

func validateEndpoint(value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("missing scheme or host")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SYMB_CORE_DEFAULT_PROVIDER"); v != "" {
		cfg.DefaultProvider = v
	}
}

// DataDir returns the path to the engine's data directory (~/.config/symb-core).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "symb-core"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}
	return dir, nil
}
