package advisor

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/somtrade/internal/storage"
)

// Environment variables consulted when no key is saved in settings.
const (
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvLLMAPIKey    = "LLM_API_KEY"
)

// CredentialSource resolves the API key for every request, so a key saved in
// settings takes effect without a restart.
type CredentialSource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticCredential is a fixed key.
type StaticCredential string

// APIKey returns the key or ErrMissingCredential when it is blank.
func (s StaticCredential) APIKey(context.Context) (string, error) {
	key := strings.TrimSpace(string(s))
	if key == "" {
		return "", ErrMissingCredential
	}
	return key, nil
}

// StoreCredentials reads the key saved in settings and falls back to the environment.
type StoreCredentials struct {
	store  storage.Store
	key    string
	env    []string
	lookup func(string) string
}

// NewStoreCredentials creates a source reading storage.KeyAPIKey and then the
// given environment variables in order.
func NewStoreCredentials(store storage.Store, env ...string) *StoreCredentials {
	return &StoreCredentials{
		store:  store,
		key:    storage.KeyAPIKey,
		env:    env,
		lookup: os.Getenv,
	}
}

// APIKey implements CredentialSource.
func (c *StoreCredentials) APIKey(ctx context.Context) (string, error) {
	if c.store != nil {
		raw, err := c.store.Get(ctx, c.key)
		switch {
		case err == nil:
			if key := strings.TrimSpace(string(raw)); key != "" {
				return key, nil
			}
		case errors.Is(err, storage.ErrNotFound):
		default:
			return "", errors.Wrap(err, "read api key")
		}
	}

	for _, name := range c.env {
		if key := strings.TrimSpace(c.lookup(name)); key != "" {
			return key, nil
		}
	}
	return "", ErrMissingCredential
}
