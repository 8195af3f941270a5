// Package pricer reads spot prices from exchange tickers.
package pricer

import (
	"context"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
)

// Source names accepted by New.
const (
	SourceBinance = "binance"
	SourceBybit   = "bybit"
)

// Pricer provides current price of asset in trade pair.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// New returns the public-ticker pricer for source. An empty source returns nil, nil.
func New(source string) (Pricer, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "":
		return nil, nil
	case SourceBinance:
		return NewBinancePricer(binance.NewClient("", "")), nil
	case SourceBybit:
		return NewBybitPricer(bybit.NewClient()), nil
	default:
		return nil, errors.Errorf("unknown price source %q", source)
	}
}
