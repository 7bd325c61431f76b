package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// tokenPayload is the JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

// TokenSource serves the completion-service credential from a SecureString
// parameter named "<prefix>/open-ai-token". A successfully read token is
// cached for the process lifetime; failures are retried on the next lookup.
type TokenSource struct {
	getter Getter
	name   string
	logger *slog.Logger

	mu    sync.Mutex
	token string
}

func NewTokenSource(getter Getter, paramPrefix string, logger *slog.Logger) (*TokenSource, error) {
	if getter == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("paramstore: parameter prefix must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenSource{getter: getter, name: paramPrefix + "/open-ai-token", logger: logger}, nil
}

// Credential implements credential.Source. Lookup errors are logged and
// reported as an absent credential.
func (s *TokenSource) Credential(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, true
	}

	token, err := fetchToken(ctx, s.getter, s.name)
	if err != nil {
		s.logger.Warn("credential lookup failed", "parameter", s.name, "err", err)
		return "", false
	}
	s.token = token
	return token, true
}

func fetchToken(ctx context.Context, getter Getter, name string) (string, error) {
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("paramstore: fetch token: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal token parameter as JSON: %w", err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", errors.New("paramstore: API token is empty")
	}
	return strings.TrimSpace(tp.Token), nil
}
