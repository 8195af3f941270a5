// Package session implements the mock sign-in flow and the user preferences
// that outlive a session.
package session

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/somtrade/internal/storage"
	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned by Login for blank credentials.
var ErrInvalidCredentials = errors.New("username and password are required")

// ErrUnknownTheme is returned by SetTheme for anything but light or dark.
var ErrUnknownTheme = errors.New("unknown theme")

// Theme is the UI colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// DefaultTheme applies until the user picks one.
const DefaultTheme = ThemeDark

// ParseTheme validates s.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark:
		return t, nil
	}
	return "", errors.Wrapf(ErrUnknownTheme, "%q", s)
}

// Resetter restores the portfolio to its seed state.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Settings are the user preferences.
type Settings struct {
	Theme     Theme `json:"theme"`
	HasAPIKey bool  `json:"has_api_key"`
}

// Manager owns the session marker and the preference keys.
type Manager struct {
	store  storage.Store
	ledger Resetter
	newID  func() string
	l      *zap.Logger
}

// New creates a Manager. ledger may be nil when there is no portfolio to reset.
func New(store storage.Store, ledger Resetter, l *zap.Logger) *Manager {
	if l == nil {
		l = zap.NewNop()
	}
	return &Manager{
		store:  store,
		ledger: ledger,
		newID:  func() string { return uuid.NewString() },
		l:      l,
	}
}

// Login accepts any non-blank credentials and returns the session token.
func (m *Manager) Login(ctx context.Context, username, password string) (string, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return "", ErrInvalidCredentials
	}
	token := m.newID()
	if err := m.store.Set(ctx, storage.KeySession, []byte(token)); err != nil {
		return "", errors.Wrap(err, "save session")
	}
	m.l.Info("user signed in", zap.String("user", username))
	return token, nil
}

// Authenticated reports whether a session marker exists.
func (m *Manager) Authenticated(ctx context.Context) (bool, error) {
	_, err := m.Token(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	}
	return false, err
}

// Token returns the current session token or storage.ErrNotFound.
func (m *Manager) Token(ctx context.Context) (string, error) {
	raw, err := m.store.Get(ctx, storage.KeySession)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", storage.ErrNotFound
	}
	return token, nil
}

// Validate reports whether token matches the active session.
func (m *Manager) Validate(ctx context.Context, token string) bool {
	current, err := m.Token(ctx)
	return err == nil && token != "" && current == token
}

// Logout clears the session marker and all application data except
// preferences, then resets the portfolio.
func (m *Manager) Logout(ctx context.Context) error {
	keys, err := m.store.Keys(ctx, storage.Namespace)
	if err != nil {
		return errors.Wrap(err, "list keys")
	}
	for _, key := range keys {
		if storage.IsPreference(key) {
			continue
		}
		if err := m.store.Delete(ctx, key); err != nil {
			return errors.Wrapf(err, "delete %s", key)
		}
	}
	if m.ledger != nil {
		if err := m.ledger.Reset(ctx); err != nil {
			return errors.Wrap(err, "reset portfolio")
		}
	}
	m.l.Info("user signed out", zap.Int("keys_removed", len(keys)))
	return nil
}

// Theme returns the saved theme, DefaultTheme when unset or unreadable.
func (m *Manager) Theme(ctx context.Context) Theme {
	raw, err := m.store.Get(ctx, storage.KeyTheme)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.l.Warn("read theme", zap.Error(err))
		}
		return DefaultTheme
	}
	t, err := ParseTheme(string(raw))
	if err != nil {
		return DefaultTheme
	}
	return t
}

// SetTheme saves t.
func (m *Manager) SetTheme(ctx context.Context, t Theme) error {
	if _, err := ParseTheme(string(t)); err != nil {
		return err
	}
	return errors.Wrap(m.store.Set(ctx, storage.KeyTheme, []byte(t)), "save theme")
}

// SetAPIKey saves the AI credential. A blank key removes it.
func (m *Manager) SetAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.Wrap(m.store.Delete(ctx, storage.KeyAPIKey), "delete api key")
	}
	return errors.Wrap(m.store.Set(ctx, storage.KeyAPIKey, []byte(key)), "save api key")
}

// Settings returns the current preferences. The key itself is never exposed.
func (m *Manager) Settings(ctx context.Context) (Settings, error) {
	s := Settings{Theme: m.Theme(ctx)}
	raw, err := m.store.Get(ctx, storage.KeyAPIKey)
	switch {
	case err == nil:
		s.HasAPIKey = strings.TrimSpace(string(raw)) != ""
	case !errors.Is(err, storage.ErrNotFound):
		return Settings{}, errors.Wrap(err, "read api key")
	}
	return s, nil
}
