// Package marketdata is the gateway to the CoinGecko REST API plus the
// polling views built on it: the market feed, the per-coin price watcher
// and chart indicators.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/services/pricer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	marketsPageSize = 10
	chartPrecision  = 5
	vsCurrency      = "usd"
)

// Gateway provides market snapshots, chart series and spot prices.
type Gateway interface {
	FetchMarkets(ctx context.Context, ids []string) ([]domain.MarketSnapshot, error)
	FetchAllMarkets(ctx context.Context, count int) ([]domain.MarketSnapshot, error)
	FetchChartSeries(ctx context.Context, id string) ([]domain.ChartPoint, error)
	FetchCurrentPrice(ctx context.Context, id string) (decimal.Decimal, error)
}

// CoinGecko implements Gateway on top of a Fetcher.
type CoinGecko struct {
	fetcher Fetcher
	tracer  trace.Tracer
	l       *zap.Logger
	cache   *chartCache
	ticker  pricer.Pricer
}

// Option configures CoinGecko.
type Option func(*CoinGecko) error

// WithTracer sets the tracer used for per-call spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *CoinGecko) error {
		c.tracer = t
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *CoinGecko) error {
		if l != nil {
			c.l = l
		}
		return nil
	}
}

// WithChartCache caches chart series for ttl. Zero disables caching.
func WithChartCache(ttl time.Duration) Option {
	return func(c *CoinGecko) error {
		if ttl <= 0 {
			return nil
		}
		cache, err := newChartCache(ttl)
		if err != nil {
			return err
		}
		c.cache = cache
		return nil
	}
}

// WithTickerPricer asks an exchange ticker for current prices first, falling back to CoinGecko.
func WithTickerPricer(p pricer.Pricer) Option {
	return func(c *CoinGecko) error {
		c.ticker = p
		return nil
	}
}

// NewCoinGecko creates the gateway.
func NewCoinGecko(fetcher Fetcher, opts ...Option) (*CoinGecko, error) {
	c := &CoinGecko{
		fetcher: fetcher,
		tracer:  noop.NewTracerProvider().Tracer("marketdata"),
		l:       zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Close releases the chart cache.
func (c *CoinGecko) Close() {
	c.cache.close()
}

// FetchMarkets returns the first page of market data for the given ids ordered by market cap.
func (c *CoinGecko) FetchMarkets(ctx context.Context, ids []string) ([]domain.MarketSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.fetch-markets")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("coin.ids", ids))

	endpoint := fmt.Sprintf("/coins/markets?vs_currency=%s&ids=%s&order=market_cap_desc&per_page=%d&page=1&sparkline=false",
		vsCurrency, url.QueryEscape(strings.Join(ids, ",")), marketsPageSize)

	markets, err := c.markets(ctx, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return markets, err
}

// FetchAllMarkets returns the top count coins by market cap.
func (c *CoinGecko) FetchAllMarkets(ctx context.Context, count int) ([]domain.MarketSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.fetch-all-markets")
	defer span.End()
	span.SetAttributes(attribute.Int("count", count))

	if count <= 0 {
		count = 100
	}
	endpoint := fmt.Sprintf("/coins/markets?vs_currency=%s&order=market_cap_desc&per_page=%d&page=1&sparkline=false",
		vsCurrency, count)

	markets, err := c.markets(ctx, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return markets, err
}

func (c *CoinGecko) markets(ctx context.Context, endpoint string) ([]domain.MarketSnapshot, error) {
	body, err := c.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var markets []domain.MarketSnapshot
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: errors.Wrap(err, "decode markets")}
	}
	for i := range markets {
		markets[i].Symbol = domain.NormalizeSymbol(markets[i].Symbol)
	}
	return markets, nil
}

// FetchChartSeries returns the last 24h of prices for id, oldest first, rounded to 5 decimals.
func (c *CoinGecko) FetchChartSeries(ctx context.Context, id string) ([]domain.ChartPoint, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.fetch-chart-series")
	defer span.End()
	span.SetAttributes(attribute.String("coin.id", id))

	if series, ok := c.cache.get(id); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return series, nil
	}

	endpoint := fmt.Sprintf("/coins/%s/market_chart?vs_currency=%s&days=1", url.PathEscape(id), vsCurrency)
	body, err := c.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var raw struct {
		Prices [][2]json.Number `json:"prices"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: errors.Wrap(err, "decode market chart")}
	}

	series := make([]domain.ChartPoint, 0, len(raw.Prices))
	for _, p := range raw.Prices {
		ts, err := p[0].Float64()
		if err != nil {
			return nil, &FetchError{Endpoint: endpoint, Err: errors.Wrap(err, "decode chart timestamp")}
		}
		price, err := decimal.NewFromString(p[1].String())
		if err != nil {
			return nil, &FetchError{Endpoint: endpoint, Err: errors.Wrap(err, "decode chart price")}
		}
		series = append(series, domain.ChartPoint{
			Time:  time.UnixMilli(int64(ts)),
			Price: price.Round(chartPrecision),
		})
	}

	c.cache.set(id, series)
	return series, nil
}

// FetchCurrentPrice returns the USD price of id.
func (c *CoinGecko) FetchCurrentPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.fetch-current-price")
	defer span.End()
	span.SetAttributes(attribute.String("coin.id", id))

	if c.ticker != nil {
		if symbol, ok := domain.SymbolForCoin(id); ok && symbol != domain.QuoteAsset {
			price, err := c.ticker.GetPrice(ctx, domain.NewPair(symbol, domain.QuoteAsset))
			if err == nil && price.IsPositive() {
				span.SetAttributes(attribute.String("price.source", "ticker"))
				return price, nil
			}
			c.l.Warn("ticker price unavailable, falling back to coingecko", zap.String("coin", id), zap.Error(err))
		}
	}

	endpoint := fmt.Sprintf("/simple/price?ids=%s&vs_currencies=%s", url.QueryEscape(id), vsCurrency)
	body, err := c.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return decimal.Zero, err
	}

	var raw map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &raw); err != nil {
		return decimal.Zero, &FetchError{Endpoint: endpoint, Err: errors.Wrap(err, "decode simple price")}
	}
	price, ok := raw[id][vsCurrency]
	if !ok {
		return decimal.Zero, &FetchError{Endpoint: endpoint, Err: errors.Errorf("no %s price for %s", vsCurrency, id)}
	}
	span.SetAttributes(attribute.String("price.source", "coingecko"))
	return price, nil
}
