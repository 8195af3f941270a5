package marketdata

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/services/poller"
	"go.uber.org/zap"
)

const DefaultPriceInterval = 30 * time.Second

// PriceWatcher tracks one coin for a trading screen: its chart series, latest price and
// a synthetic order book regenerated whenever the price changes.
type PriceWatcher struct {
	gateway  Gateway
	id       string
	interval time.Duration
	l        *zap.Logger
	rnd      *rand.Rand

	mu     sync.RWMutex
	series []domain.ChartPoint
	price  decimal.Decimal
	book   domain.OrderBook
	loaded bool
	task   *poller.Task
}

// NewPriceWatcher creates a watcher for coin id. A non-positive interval selects DefaultPriceInterval.
func NewPriceWatcher(gateway Gateway, id string, interval time.Duration, l *zap.Logger) *PriceWatcher {
	if interval <= 0 {
		interval = DefaultPriceInterval
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &PriceWatcher{
		gateway:  gateway,
		id:       id,
		interval: interval,
		l:        l.With(zap.String("coin", id)),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Load fetches the chart series and the current price. When the price call fails the last
// chart point stands in for it.
func (w *PriceWatcher) Load(ctx context.Context) error {
	series, err := w.gateway.FetchChartSeries(ctx, w.id)
	if err != nil {
		return errors.Wrap(err, "load chart series")
	}

	price := decimal.Zero
	if len(series) > 0 {
		price = series[len(series)-1].Price
	}
	if current, err := w.gateway.FetchCurrentPrice(ctx, w.id); err == nil {
		price = current
	} else {
		w.l.Warn("current price unavailable, using last chart point", zap.Error(err))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.series = series
	w.price = price
	w.book = GenerateOrderBook(price, w.rnd)
	w.loaded = true
	return nil
}

// Poll fetches the current price once and regenerates the order book if it changed.
func (w *PriceWatcher) Poll(ctx context.Context) error {
	price, err := w.gateway.FetchCurrentPrice(ctx, w.id)
	if err != nil {
		return err
	}
	if !price.IsPositive() {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if price.Equal(w.price) {
		return nil
	}
	w.price = price
	w.book = GenerateOrderBook(price, w.rnd)
	return nil
}

// Start loads the coin and then polls the price every interval.
func (w *PriceWatcher) Start(ctx context.Context) error {
	if err := w.Load(ctx); err != nil {
		return err
	}

	w.mu.Lock()
	if w.task == nil {
		w.task = &poller.Task{Name: "price-watcher", Interval: w.interval, Run: w.tick, Logger: w.l}
	}
	task := w.task
	w.mu.Unlock()

	return task.Start(ctx)
}

// tick skips the immediate run of the poll loop since Load just fetched the price.
func (w *PriceWatcher) tick(ctx context.Context) error {
	w.mu.Lock()
	fresh := w.loaded
	w.loaded = false
	w.mu.Unlock()

	if fresh {
		return nil
	}
	return w.Poll(ctx)
}

// Stop ends polling.
func (w *PriceWatcher) Stop() {
	w.mu.RLock()
	task := w.task
	w.mu.RUnlock()

	if task != nil {
		task.Stop()
	}
}

// Series returns the chart series loaded by Load.
func (w *PriceWatcher) Series() []domain.ChartPoint {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return append([]domain.ChartPoint(nil), w.series...)
}

// Price returns the latest known price.
func (w *PriceWatcher) Price() decimal.Decimal {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.price
}

// OrderBook returns the current synthetic order book.
func (w *PriceWatcher) OrderBook() domain.OrderBook {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.book
}
