package pricer

import (
	"context"
	"fmt"

	"github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
)

type bybitTicker interface {
	SpotTickers(ctx context.Context, symbol bybit.SymbolV5) (*bybit.V5GetTickersResponse, error)
}

type bybitClient struct {
	client *bybit.Client
}

// SpotTickers ignores ctx: the bybit client has no context-aware ticker call.
func (c bybitClient) SpotTickers(_ context.Context, symbol bybit.SymbolV5) (*bybit.V5GetTickersResponse, error) {
	return c.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
	})
}

type BybitPricer struct {
	ticker bybitTicker
}

func NewBybitPricer(client *bybit.Client) *BybitPricer {
	return &BybitPricer{ticker: bybitClient{client: client}}
}

func (p *BybitPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	result, err := p.ticker.SpotTickers(ctx, bybit.SymbolV5(pair.Symbol()))
	if err != nil {
		return decimal.Decimal{}, err
	}

	if len(result.Result.Spot.List) == 0 {
		return decimal.Decimal{}, fmt.Errorf("bybit API returned empty prices for %s", pair.String())
	}

	return decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
}
