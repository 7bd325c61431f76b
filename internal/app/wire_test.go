package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-widget/internal/config"
)

type fakeGetter struct {
	value string
	err   error
	names []string
}

func (f *fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	f.names = append(f.names, name)
	return f.value, f.err
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&config.Config{LogLevel: "warn"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(&config.Config{LogLevel: "chatty"}, &buf)
	require.Error(t, err)
}

func TestSettings_FromConfig(t *testing.T) {
	s := Settings(&config.Config{Model: "m", MaxTokens: 10, SystemPrompt: "sys", Greeting: "hi"})
	require.Equal(t, "m", s.Model)
	require.Equal(t, 10, s.MaxTokens)
	require.Equal(t, []string{"sys", "hi"}, []string{s.SystemInstruction, s.Greeting})
}

func TestNewCompleter(t *testing.T) {
	c, err := NewCompleter(&config.Config{BaseURL: "http://localhost:1234/v1"})
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestCredentials_EnvOnly(t *testing.T) {
	src, err := Credentials(&config.Config{APIKey: "sk-env"}, nil, nil)
	require.NoError(t, err)
	v, ok := src.Credential(context.Background())
	require.True(t, ok)
	require.Equal(t, "sk-env", v)

	src, err = Credentials(&config.Config{}, nil, nil)
	require.NoError(t, err)
	_, ok = src.Credential(context.Background())
	require.False(t, ok)
}

func TestCredentials_FallsBackToParameterStore(t *testing.T) {
	getter := &fakeGetter{value: `{"token":"sk-ssm"}`}
	src, err := Credentials(&config.Config{ParamPrefix: "/chat/prod"}, getter, nil)
	require.NoError(t, err)

	v, ok := src.Credential(context.Background())
	require.True(t, ok)
	require.Equal(t, "sk-ssm", v)
	require.Equal(t, []string{"/chat/prod/open-ai-token"}, getter.names)
}

func TestCredentials_EnvWinsOverParameterStore(t *testing.T) {
	getter := &fakeGetter{err: errors.New("should not be called")}
	src, err := Credentials(&config.Config{APIKey: "sk-env", ParamPrefix: "/chat/prod"}, getter, nil)
	require.NoError(t, err)

	v, ok := src.Credential(context.Background())
	require.True(t, ok)
	require.Equal(t, "sk-env", v)
	require.Empty(t, getter.names)
}

func TestCredentials_PrefixWithoutGetter(t *testing.T) {
	_, err := Credentials(&config.Config{ParamPrefix: "/chat/prod"}, nil, nil)
	require.Error(t, err)
}
