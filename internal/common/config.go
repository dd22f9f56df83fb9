package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Finnhub     FinnhubConfig   `toml:"finnhub"`
	Quotes      QuotesConfig    `toml:"quotes"`
	Anthropic   AnthropicConfig `toml:"anthropic"`
	Agent       AgentConfig     `toml:"agent"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Mailer      MailerConfig    `toml:"mailer"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
	// CronSecret is the shared-secret bearer credential protecting the
	// scheduled trigger endpoint. Compared for exact equality.
	CronSecret string `toml:"cron_secret"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// FinnhubConfig contains the financial data API configuration.
// The free tier allows ~60 requests/minute.
type FinnhubConfig struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"` // requests per minute budget
	Timeout   string `toml:"timeout"`    // HTTP timeout as duration string
}

// QuotesConfig contains the public quote source configuration.
type QuotesConfig struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

// AnthropicConfig contains Claude API configuration for the analyzer.
type AnthropicConfig struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"` // override for tests; empty = SDK default
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	Timeout   string `toml:"timeout"`
}

// AgentConfig contains the analysis pipeline tuning knobs.
type AgentConfig struct {
	// FreshnessDays is the minimum age (days) before an existing analysis
	// for the same (ticker, week) is regenerated instead of reused.
	FreshnessDays int `toml:"freshness_days"`
	// PaceInterval is the delay between tickers, as a duration string.
	// Four upstream calls per ticker at this pace stays under the
	// Finnhub per-minute budget.
	PaceInterval string `toml:"pace_interval"`
	// Pricing in USD per million tokens, used for run cost accounting.
	CostPerMInputTokens  float64 `toml:"cost_per_m_input_tokens"`
	CostPerMOutputTokens float64 `toml:"cost_per_m_output_tokens"`
}

type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron format, default Sunday 20:00 UTC
}

type MailerConfig struct {
	Enabled  bool   `toml:"enabled"`
	FromName string `toml:"from_name"`
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings should be exposed in semana.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Finnhub: FinnhubConfig{
			BaseURL:   "https://finnhub.io/api/v1",
			RateLimit: 60,
			Timeout:   "30s",
		},
		Quotes: QuotesConfig{
			BaseURL: "https://query2.finance.yahoo.com",
			Timeout: "30s",
		},
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 4096,
			Timeout:   "5m",
		},
		Agent: AgentConfig{
			FreshnessDays:        3,
			PaceInterval:         "1200ms",
			CostPerMInputTokens:  3,
			CostPerMOutputTokens: 15,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Schedule: "0 20 * * 0", // Sunday 20:00 UTC
		},
		Mailer: MailerConfig{
			Enabled:  true,
			FromName: "Semana",
		},
	}
}

// LoadFromFile loads configuration with layering:
// defaults -> TOML file -> environment variables.
// A missing file is not an error; defaults plus env apply.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SEMANA_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("SEMANA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SEMANA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if secret := os.Getenv("CRON_SECRET"); secret != "" {
		config.Server.CronSecret = secret
	}

	if badgerPath := os.Getenv("SEMANA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("SEMANA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		config.Finnhub.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Anthropic.APIKey = key
	}
	if model := os.Getenv("SEMANA_ANTHROPIC_MODEL"); model != "" {
		config.Anthropic.Model = model
	}

	if schedule := os.Getenv("SEMANA_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants that would otherwise surface
// as confusing runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Agent.FreshnessDays < 0 {
		return fmt.Errorf("agent.freshness_days must not be negative: %d", c.Agent.FreshnessDays)
	}
	if _, err := time.ParseDuration(c.Agent.PaceInterval); err != nil {
		return fmt.Errorf("invalid agent.pace_interval %q: %w", c.Agent.PaceInterval, err)
	}
	if c.Finnhub.RateLimit <= 0 {
		return fmt.Errorf("finnhub.rate_limit must be positive: %d", c.Finnhub.RateLimit)
	}
	return nil
}

// PaceIntervalDuration returns the parsed pacing delay. Validate has
// already checked the format.
func (c *AgentConfig) PaceIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PaceInterval)
	return d
}
