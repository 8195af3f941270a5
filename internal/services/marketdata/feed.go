package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/services/poller"
	"go.uber.org/zap"
)

const (
	DefaultFeedInterval = 45 * time.Second
	// StaleBanner is raised when a refresh fails and the last known list is kept.
	StaleBanner = "Failed to fetch market data. Prices may be stale."
)

// Feed keeps the latest market list for a fixed set of coin ids. Each completed refresh
// replaces the list; a failed one keeps it and raises a dismissible banner.
type Feed struct {
	gateway  Gateway
	ids      []string
	interval time.Duration
	l        *zap.Logger

	mu        sync.RWMutex
	markets   []domain.MarketSnapshot
	updatedAt time.Time
	banner    string
	task      *poller.Task
}

// NewFeed creates a feed. A non-positive interval selects DefaultFeedInterval.
func NewFeed(gateway Gateway, ids []string, interval time.Duration, l *zap.Logger) *Feed {
	if interval <= 0 {
		interval = DefaultFeedInterval
	}
	if l == nil {
		l = zap.NewNop()
	}
	if len(ids) == 0 {
		ids = domain.DefaultCoinIDs
	}
	return &Feed{
		gateway:  gateway,
		ids:      append([]string(nil), ids...),
		interval: interval,
		l:        l,
	}
}

// Refresh fetches the market list once.
func (f *Feed) Refresh(ctx context.Context) error {
	markets, err := f.gateway.FetchMarkets(ctx, f.ids)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.banner = StaleBanner
		return err
	}

	f.markets = markets
	f.updatedAt = time.Now()
	f.banner = ""
	return nil
}

// Start refreshes immediately and then every interval until Stop or ctx cancellation.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.task == nil {
		f.task = &poller.Task{Name: "market-feed", Interval: f.interval, Run: f.Refresh, Logger: f.l}
	}
	task := f.task
	f.mu.Unlock()

	return task.Start(ctx)
}

// Stop ends polling. The last known list stays readable.
func (f *Feed) Stop() {
	f.mu.RLock()
	task := f.task
	f.mu.RUnlock()

	if task != nil {
		task.Stop()
	}
}

// Markets returns a copy of the last fetched list.
func (f *Feed) Markets() []domain.MarketSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return append([]domain.MarketSnapshot(nil), f.markets...)
}

// Market looks up a snapshot by coin id.
func (f *Feed) Market(id string) (domain.MarketSnapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, m := range f.markets {
		if m.ID == id {
			return m, true
		}
	}
	return domain.MarketSnapshot{}, false
}

// UpdatedAt returns when the list was last replaced; zero before the first success.
func (f *Feed) UpdatedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.updatedAt
}

// Banner returns the warning to display, if any.
func (f *Feed) Banner() (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.banner, f.banner != ""
}

// DismissBanner hides the warning until the next failed refresh.
func (f *Feed) DismissBanner() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.banner = ""
}
