package marketdata

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/pkg/indicators"
)

// Indicators summarises a chart series: SMA(20), EMA(20), RSI(14), MACD and a trend label.
func Indicators(series []domain.ChartPoint) indicators.Summary {
	closes := make([]decimal.Decimal, len(series))
	for i, p := range series {
		closes[i] = p.Price
	}
	return indicators.Summarize(closes)
}
