// Package config loads the monitor's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
	"github.com/eliteGoblin/focusd/study_mon/internal/infra"
)

// Oracle providers.
const (
	ProviderHTTP      = "http"
	ProviderAnthropic = "anthropic"
	ProviderCatalog   = "catalog"
)

// Probe sources.
const (
	ProbeStdin   = "stdin"
	ProbeCommand = "command"
	ProbeFile    = "file"
)

// Prompt modes.
const (
	PromptConsole = "console"
	PromptNone    = "none"
)

type Config struct {
	DataDir      string             `yaml:"data_dir"`
	Log          LogConfig          `yaml:"log"`
	Oracle       OracleConfig       `yaml:"oracle"`
	Cache        CacheConfig        `yaml:"cache"`
	Surveillance SurveillanceConfig `yaml:"surveillance"`
	Probe        ProbeConfig        `yaml:"probe"`
	Prompt       PromptConfig       `yaml:"prompt"`
	Shame        ShameConfig        `yaml:"shame"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Snapshot     SnapshotConfig     `yaml:"snapshot"`

	mode infra.ExecMode
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

type OracleConfig struct {
	Provider      string        `yaml:"provider"`
	Endpoint      string        `yaml:"endpoint"`
	Timeout       time.Duration `yaml:"timeout"`
	Model         string        `yaml:"model"`
	APIKeyEnv     string        `yaml:"api_key_env"`
	RatePerMinute float64       `yaml:"rate_per_minute"`
	Burst         int           `yaml:"burst"`
}

type CacheConfig struct {
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"ttl"`
}

type SurveillanceConfig struct {
	RecentInput     time.Duration `yaml:"recent_input"`
	Absence         time.Duration `yaml:"absence"`
	FinalWarning    time.Duration `yaml:"final_warning"`
	RejudgeInterval time.Duration `yaml:"rejudge_interval"`
}

type ProbeConfig struct {
	Source  string   `yaml:"source"`
	Command []string `yaml:"command"`
	File    string   `yaml:"file"`
}

type PromptConfig struct {
	Mode    string        `yaml:"mode"`
	Timeout time.Duration `yaml:"timeout"`
}

type ShameConfig struct {
	// Encrypted defaults to true when omitted.
	Encrypted *bool `yaml:"encrypted"`
}

type MetricsConfig struct {
	// Addr is empty to disable the metrics endpoint.
	Addr string `yaml:"addr"`
}

type SnapshotConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Load reads path, fills defaults and validates. An empty path or a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		raw, err := os.ReadFile(infra.ExpandHome(path))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	detected := infra.DetectPaths()
	c.mode = detected.Mode
	if c.DataDir == "" {
		c.DataDir = detected.DataDir
	}
	c.DataDir = infra.ExpandHome(c.DataDir)
	paths := infra.PathsFor(c.mode, c.DataDir)

	if c.Log.File == "" {
		c.Log.File = paths.LogPath
	}
	c.Log.File = infra.ExpandHome(c.Log.File)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Oracle.Provider == "" {
		c.Oracle.Provider = ProviderCatalog
		if c.Oracle.Endpoint != "" {
			c.Oracle.Provider = ProviderHTTP
		}
	}
	if c.Oracle.Timeout == 0 {
		c.Oracle.Timeout = domain.OracleTimeout
	}
	if c.Oracle.APIKeyEnv == "" {
		c.Oracle.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if c.Oracle.RatePerMinute == 0 {
		c.Oracle.RatePerMinute = 30
	}
	if c.Oracle.Burst == 0 {
		c.Oracle.Burst = 5
	}

	if c.Cache.Path == "" {
		c.Cache.Path = paths.CachePath
	}
	c.Cache.Path = infra.ExpandHome(c.Cache.Path)
	if c.Cache.TTL == 0 {
		c.Cache.TTL = domain.JudgeCacheTTL
	}

	defaults := domain.DefaultThresholds()
	if c.Surveillance.RecentInput == 0 {
		c.Surveillance.RecentInput = defaults.RecentInput
	}
	if c.Surveillance.Absence == 0 {
		c.Surveillance.Absence = defaults.Absence
	}
	if c.Surveillance.FinalWarning == 0 {
		c.Surveillance.FinalWarning = defaults.FinalWarning
	}
	if c.Surveillance.RejudgeInterval == 0 {
		c.Surveillance.RejudgeInterval = defaults.RejudgeInterval
	}

	if c.Probe.Source == "" {
		c.Probe.Source = ProbeStdin
	}
	c.Probe.File = infra.ExpandHome(c.Probe.File)

	if c.Prompt.Mode == "" {
		c.Prompt.Mode = PromptConsole
	}
	if c.Prompt.Timeout == 0 {
		c.Prompt.Timeout = domain.PromptTimeout
	}

	if c.Shame.Encrypted == nil {
		encrypted := true
		c.Shame.Encrypted = &encrypted
	}

	if c.Snapshot.Interval == 0 {
		c.Snapshot.Interval = 2 * time.Second
	}
}

func (c *Config) validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}

	switch c.Oracle.Provider {
	case ProviderHTTP:
		if c.Oracle.Endpoint == "" {
			return fmt.Errorf("oracle.endpoint is required for the http provider")
		}
	case ProviderAnthropic, ProviderCatalog:
	default:
		return fmt.Errorf("unknown oracle.provider %q", c.Oracle.Provider)
	}
	if c.Oracle.Timeout < 0 || c.Oracle.RatePerMinute < 0 || c.Oracle.Burst < 0 {
		return fmt.Errorf("oracle timeout, rate_per_minute and burst must not be negative")
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}

	s := c.Surveillance
	if s.RecentInput < 0 || s.FinalWarning < 0 || s.RejudgeInterval < 0 {
		return fmt.Errorf("surveillance durations must not be negative")
	}
	if s.Absence <= s.RecentInput {
		return fmt.Errorf("surveillance.absence (%s) must exceed surveillance.recent_input (%s)", s.Absence, s.RecentInput)
	}

	switch c.Probe.Source {
	case ProbeStdin:
	case ProbeCommand:
		if len(c.Probe.Command) == 0 {
			return fmt.Errorf("probe.command is required for the command source")
		}
	case ProbeFile:
		if c.Probe.File == "" {
			return fmt.Errorf("probe.file is required for the file source")
		}
	default:
		return fmt.Errorf("unknown probe.source %q", c.Probe.Source)
	}

	switch c.Prompt.Mode {
	case PromptConsole, PromptNone:
	default:
		return fmt.Errorf("unknown prompt.mode %q", c.Prompt.Mode)
	}

	if c.Snapshot.Interval < 0 {
		return fmt.Errorf("snapshot.interval must not be negative")
	}
	return nil
}

// Thresholds returns the escalation timings.
func (c *Config) Thresholds() domain.Thresholds {
	return domain.Thresholds{
		RecentInput:     c.Surveillance.RecentInput,
		Absence:         c.Surveillance.Absence,
		FinalWarning:    c.Surveillance.FinalWarning,
		RejudgeInterval: c.Surveillance.RejudgeInterval,
	}
}

// Paths returns the data locations, honouring cache.path and log.file overrides.
func (c *Config) Paths() infra.Paths {
	paths := infra.PathsFor(c.mode, c.DataDir)
	paths.CachePath = c.Cache.Path
	paths.LogPath = c.Log.File
	return paths
}

// EncryptShame reports whether shame records go to the encrypted store.
func (c *Config) EncryptShame() bool {
	return c.Shame.Encrypted == nil || *c.Shame.Encrypted
}

// DefaultPath is where the CLI looks when --config is not given.
func DefaultPath() string {
	return filepath.Join(infra.DetectPaths().DataDir, "config.yaml")
}
