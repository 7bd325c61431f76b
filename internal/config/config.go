package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds settings shared by the widget server and the Lambda handler.
// Values come from the environment, optionally seeded from a .env file.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:"127.0.0.1:8080"` // widget server only
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`             // debug|info|warn|error

	Model           string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	MaxTokens       int           `env:"MAX_TOKENS" envDefault:"600"`
	BaseURL         string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	APIKey          string        `env:"OPENAI_API_KEY"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"0s"` // 0 waits indefinitely

	// PARAM_PREFIX enables the SSM credential source.
	ParamPrefix string `env:"PARAM_PREFIX"`

	// Lambda session state.
	StateTable string        `env:"STATE_TABLE"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Empty selects the built-in hair-care assistant text.
	SystemPrompt string `env:"SYSTEM_PROMPT"`
	Greeting     string `env:"GREETING"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("config: MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	if c.UpstreamTimeout < 0 {
		return errors.New("config: UPSTREAM_TIMEOUT must not be negative")
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("config: OPENAI_MODEL must not be empty")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// RequireStateTable is used by the Lambda deployment, which cannot run
// without session storage.
func (c *Config) RequireStateTable() error {
	if strings.TrimSpace(c.StateTable) == "" {
		return errors.New("config: STATE_TABLE is required")
	}
	return nil
}
