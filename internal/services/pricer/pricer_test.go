package pricer

import (
	"context"
	"errors"
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/somtrade/internal/domain"
)

type fakeBinance struct {
	symbol string
	prices []*binance.SymbolPrice
	err    error
}

func (f *fakeBinance) ListPrices(_ context.Context, symbol string) ([]*binance.SymbolPrice, error) {
	f.symbol = symbol
	return f.prices, f.err
}

type fakeBybit struct {
	symbol bybit.SymbolV5
	resp   *bybit.V5GetTickersResponse
	err    error
}

func (f *fakeBybit) SpotTickers(_ context.Context, symbol bybit.SymbolV5) (*bybit.V5GetTickersResponse, error) {
	f.symbol = symbol
	return f.resp, f.err
}

func TestBinancePricer(t *testing.T) {
	pair := domain.NewPair("eth", "usdt")

	t.Run("returns ticker price", func(t *testing.T) {
		fake := &fakeBinance{prices: []*binance.SymbolPrice{{Symbol: "ETHUSDT", Price: "3012.55"}}}
		p := &BinancePricer{ticker: fake}

		price, err := p.GetPrice(context.Background(), pair)
		require.NoError(t, err)
		assert.Equal(t, "ETHUSDT", fake.symbol)
		assert.True(t, decimal.RequireFromString("3012.55").Equal(price))
	})

	t.Run("empty response", func(t *testing.T) {
		p := &BinancePricer{ticker: &fakeBinance{}}

		_, err := p.GetPrice(context.Background(), pair)
		assert.Error(t, err)
	})

	t.Run("client error", func(t *testing.T) {
		p := &BinancePricer{ticker: &fakeBinance{err: errors.New("boom")}}

		_, err := p.GetPrice(context.Background(), pair)
		assert.EqualError(t, err, "boom")
	})
}

func TestBybitPricer_ClientError(t *testing.T) {
	fake := &fakeBybit{err: errors.New("rate limited")}
	p := &BybitPricer{ticker: fake}

	_, err := p.GetPrice(context.Background(), domain.NewPair("sol", "usdt"))
	assert.Error(t, err)
	assert.Equal(t, bybit.SymbolV5("SOLUSDT"), fake.symbol)
}

func TestNew(t *testing.T) {
	p, err := New("")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = New("Binance")
	require.NoError(t, err)
	assert.IsType(t, &BinancePricer{}, p)

	p, err = New("bybit")
	require.NoError(t, err)
	assert.IsType(t, &BybitPricer{}, p)

	_, err = New("kraken")
	assert.Error(t, err)
}
