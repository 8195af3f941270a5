package marketdata

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"go.opentelemetry.io/otel/trace/noop"
)

type fakeFetcher struct {
	responses map[string]string
	err       error
	calls     []string
}

func (f *fakeFetcher) Fetch(_ context.Context, endpoint string) ([]byte, error) {
	f.calls = append(f.calls, endpoint)
	if f.err != nil {
		return nil, f.err
	}
	for prefix, body := range f.responses {
		if strings.HasPrefix(endpoint, prefix) {
			return []byte(body), nil
		}
	}
	return nil, &FetchError{Endpoint: endpoint, Status: 404, Err: errors.New("not found")}
}

type fakePricer struct {
	price decimal.Decimal
	err   error
	pairs []domain.Pair
}

func (p *fakePricer) GetPrice(_ context.Context, pair domain.Pair) (decimal.Decimal, error) {
	p.pairs = append(p.pairs, pair)
	return p.price, p.err
}

const marketsBody = `[
  {"id":"bitcoin","symbol":"BTC","name":"Bitcoin","image":"https://img/btc.png","current_price":60000.5,
   "price_change_percentage_24h":-1.25,"market_cap":1200000000000,"market_cap_rank":1,"total_volume":30000000000,
   "high_24h":61000,"low_24h":59000,"circulating_supply":19700000},
  {"id":"ripple","symbol":"xrp","name":"XRP","image":"","current_price":0.61,
   "price_change_percentage_24h":null,"market_cap":33000000000,"market_cap_rank":null,"total_volume":1,
   "high_24h":null,"low_24h":0.6,"circulating_supply":null}
]`

func newTestGateway(t *testing.T, f Fetcher, opts ...Option) *CoinGecko {
	t.Helper()
	opts = append([]Option{WithTracer(noop.NewTracerProvider().Tracer("test"))}, opts...)
	gw, err := NewCoinGecko(f, opts...)
	require.NoError(t, err)
	t.Cleanup(gw.Close)
	return gw
}

func TestCoinGecko_FetchMarkets(t *testing.T) {
	f := &fakeFetcher{responses: map[string]string{"/coins/markets": marketsBody}}
	gw := newTestGateway(t, f)

	markets, err := gw.FetchMarkets(context.Background(), []string{"bitcoin", "ripple"})
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.Equal(t, "btc", markets[0].Symbol)
	assert.True(t, decimal.RequireFromString("60000.5").Equal(markets[0].CurrentPrice))
	assert.Equal(t, -1.25, markets[0].PriceChangePct24h)
	assert.Equal(t, 1, markets[0].MarketCapRank)
	assert.Equal(t, 0, markets[1].MarketCapRank)
	assert.True(t, markets[1].High24h.IsZero())

	require.Len(t, f.calls, 1)
	assert.Equal(t,
		"/coins/markets?vs_currency=usd&ids=bitcoin%2Cripple&order=market_cap_desc&per_page=10&page=1&sparkline=false",
		f.calls[0])
}

func TestCoinGecko_FetchAllMarkets(t *testing.T) {
	f := &fakeFetcher{responses: map[string]string{"/coins/markets": `[]`}}
	gw := newTestGateway(t, f)

	markets, err := gw.FetchAllMarkets(context.Background(), 50)
	require.NoError(t, err)
	assert.Empty(t, markets)
	assert.Contains(t, f.calls[0], "per_page=50")
	assert.NotContains(t, f.calls[0], "ids=")
}

func TestCoinGecko_FetchMarkets_DecodeError(t *testing.T) {
	f := &fakeFetcher{responses: map[string]string{"/coins/markets": `{"status":"oops"}`}}
	gw := newTestGateway(t, f)

	_, err := gw.FetchMarkets(context.Background(), []string{"bitcoin"})
	assert.ErrorIs(t, err, ErrFetch)
}

func TestCoinGecko_FetchChartSeries(t *testing.T) {
	f := &fakeFetcher{responses: map[string]string{
		"/coins/bitcoin/market_chart": `{"prices":[[1700000000000,60000.123456789],[1700000300000,60010.5]],"total_volumes":[]}`,
	}}
	gw := newTestGateway(t, f, WithChartCache(time.Minute))

	series, err := gw.FetchChartSeries(context.Background(), "bitcoin")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.True(t, decimal.RequireFromString("60000.12346").Equal(series[0].Price))
	assert.Equal(t, time.UnixMilli(1700000000000), series[0].Time)
	assert.Equal(t, "/coins/bitcoin/market_chart?vs_currency=usd&days=1", f.calls[0])

	cached, err := gw.FetchChartSeries(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, series, cached)
	assert.Len(t, f.calls, 1)
}

func TestCoinGecko_FetchCurrentPrice(t *testing.T) {
	t.Run("simple price", func(t *testing.T) {
		f := &fakeFetcher{responses: map[string]string{"/simple/price": `{"solana":{"usd":151.23}}`}}
		gw := newTestGateway(t, f)

		price, err := gw.FetchCurrentPrice(context.Background(), "solana")
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("151.23").Equal(price))
		assert.Equal(t, "/simple/price?ids=solana&vs_currencies=usd", f.calls[0])
	})

	t.Run("missing coin", func(t *testing.T) {
		f := &fakeFetcher{responses: map[string]string{"/simple/price": `{}`}}
		gw := newTestGateway(t, f)

		_, err := gw.FetchCurrentPrice(context.Background(), "solana")
		assert.ErrorIs(t, err, ErrFetch)
	})

	t.Run("ticker first", func(t *testing.T) {
		f := &fakeFetcher{}
		p := &fakePricer{price: decimal.NewFromInt(150)}
		gw := newTestGateway(t, f, WithTickerPricer(p))

		price, err := gw.FetchCurrentPrice(context.Background(), "solana")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(150).Equal(price))
		assert.Equal(t, "SOLUSDT", p.pairs[0].Symbol())
		assert.Empty(t, f.calls)
	})

	t.Run("ticker failure falls back", func(t *testing.T) {
		f := &fakeFetcher{responses: map[string]string{"/simple/price": `{"solana":{"usd":149}}`}}
		p := &fakePricer{err: errors.New("ticker down")}
		gw := newTestGateway(t, f, WithTickerPricer(p))

		price, err := gw.FetchCurrentPrice(context.Background(), "solana")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(149).Equal(price))
		assert.Len(t, f.calls, 1)
	})
}

func TestCoinGecko_PropagatesFetchError(t *testing.T) {
	f := &fakeFetcher{err: &FetchError{Endpoint: "/x", Status: 500, Err: errors.New("down")}}
	gw := newTestGateway(t, f)

	_, err := gw.FetchChartSeries(context.Background(), "bitcoin")
	assert.ErrorIs(t, err, ErrFetch)
}
