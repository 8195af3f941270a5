// Package storage defines the key-value persistence port shared by the ledger,
// the session and the preference settings.
package storage

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("key not found")

// Store is a string-keyed byte store. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists the keys that start with prefix, in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Namespace prefixes every key owned by the application.
const Namespace = "somtrade:"

// Fixed keys.
const (
	KeyPortfolio    = Namespace + "portfolio"
	KeyStaked       = Namespace + "staked"
	KeyTransactions = Namespace + "transactions"
	KeyTheme        = Namespace + "theme"
	KeyAPIKey       = Namespace + "api-key"
	KeySession      = Namespace + "session"
)

// IsPreference reports whether key holds a user preference that survives logout.
func IsPreference(key string) bool {
	return key == KeyTheme || key == KeyAPIKey
}
