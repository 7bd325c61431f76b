// Package credential supplies the bearer token for the completion service.
// Sources report only whether a value is present; callers never log the
// value itself.
package credential

import (
	"context"
	"strings"
)

// Source yields the credential and whether one is available.
type Source interface {
	Credential(ctx context.Context) (string, bool)
}

// Static is a fixed credential, typically read from the environment.
type Static string

func (s Static) Credential(context.Context) (string, bool) {
	v := strings.TrimSpace(string(s))
	return v, v != ""
}

// Chain returns the first present credential from its sources, in order.
type Chain []Source

func (c Chain) Credential(ctx context.Context) (string, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if v, ok := src.Credential(ctx); ok {
			return v, true
		}
	}
	return "", false
}
