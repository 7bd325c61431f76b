// Package app holds the wiring shared by the widget server and the Lambda
// entry points.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"chat-widget/internal/config"
	"chat-widget/internal/credential"
	"chat-widget/internal/integrations/openai"
	"chat-widget/internal/integrations/paramstore"
	"chat-widget/internal/usecase"
)

// NewLogger returns a JSON slog logger at the configured level.
func NewLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	lvl, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func Settings(cfg *config.Config) usecase.Settings {
	return usecase.Settings{
		Model:             cfg.Model,
		MaxTokens:         cfg.MaxTokens,
		SystemInstruction: cfg.SystemPrompt,
		Greeting:          cfg.Greeting,
	}
}

// NewCompleter builds the chat-completions client. A zero UpstreamTimeout
// leaves requests unbounded.
func NewCompleter(cfg *config.Config) (*openai.Client, error) {
	c, err := openai.NewClient(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.UpstreamTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("app: completion client: %w", err)
	}
	return c, nil
}

// Credentials resolves OPENAI_API_KEY first, then the SSM parameter when
// PARAM_PREFIX is set. getter may be nil when no prefix is configured.
func Credentials(cfg *config.Config, getter paramstore.Getter, logger *slog.Logger) (credential.Source, error) {
	chain := credential.Chain{credential.Static(cfg.APIKey)}
	if cfg.ParamPrefix == "" {
		return chain, nil
	}
	ts, err := paramstore.NewTokenSource(getter, cfg.ParamPrefix, logger)
	if err != nil {
		return nil, fmt.Errorf("app: ssm credential source: %w", err)
	}
	return append(chain, ts), nil
}
