package pricer

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
)

type binanceTicker interface {
	ListPrices(ctx context.Context, symbol string) ([]*binance.SymbolPrice, error)
}

type binanceClient struct {
	client *binance.Client
}

func (c binanceClient) ListPrices(ctx context.Context, symbol string) ([]*binance.SymbolPrice, error) {
	return c.client.NewListPricesService().Symbol(symbol).Do(ctx)
}

type BinancePricer struct {
	ticker binanceTicker
}

func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{ticker: binanceClient{client: client}}
}

func (p *BinancePricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	prices, err := p.ticker.ListPrices(ctx, pair.Symbol())
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, fmt.Errorf("binance API returned empty prices for %s", pair.String())
	}

	return decimal.NewFromString(prices[0].Price)
}
