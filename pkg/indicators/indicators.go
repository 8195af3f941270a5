// Package indicators computes technical indicators (SMA, EMA, RSI, MACD) over close-price series.
package indicators

import (
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

// Trend qualitative direction of price action.
type Trend string

const (
	TrendBullish       Trend = "bullish"
	TrendBearish       Trend = "bearish"
	TrendConsolidating Trend = "consolidating"
)

// Title returns a human-readable representation.
func (t Trend) Title() string {
	switch t {
	case TrendBullish:
		return "Bullish"
	case TrendBearish:
		return "Bearish"
	default:
		return "Consolidating"
	}
}

// band around the SMA inside which the price counts as consolidating.
var consolidationBand = decimal.RequireFromString("0.005")

// Summary latest indicator values of a series.
type Summary struct {
	Last  decimal.Decimal
	SMA20 decimal.Decimal
	EMA20 decimal.Decimal
	RSI14 decimal.Decimal
	MACD  decimal.Decimal
	Trend Trend
	// Complete is false when the series was too short for some indicators; those stay zero.
	Complete bool
}

// CalculateSMA calculates the Simple Moving Average for the given period.
func CalculateSMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(closes))
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	out := sma.Compute(helper.SliceToChan(decimalsToFloat64(closes)))

	return float64ToDecimals(helper.ChanToSlice(out)), nil
}

// CalculateEMA calculates the Exponential Moving Average for the given period.
func CalculateEMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(closes))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	out := ema.Compute(helper.SliceToChan(decimalsToFloat64(closes)))

	return float64ToDecimals(helper.ChanToSlice(out)), nil
}

// CalculateMACD calculates MACD line values.
func CalculateMACD(closes []decimal.Decimal) ([]decimal.Decimal, error) {
	if len(closes) < 26 {
		return nil, fmt.Errorf("not enough data points for MACD: need at least 26, got %d", len(closes))
	}

	macd := trend.NewMacd[float64]()
	macdChan, signalChan := macd.Compute(helper.SliceToChan(decimalsToFloat64(closes)))
	// drain signal channel to prevent blocking
	go func() {
		for range signalChan {
		}
	}()

	return float64ToDecimals(helper.ChanToSlice(macdChan)), nil
}

// CalculateRSI calculates the Relative Strength Index for the given period.
func CalculateRSI(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period+1 {
		return nil, fmt.Errorf("not enough data points for RSI: need %d, got %d", period+1, len(closes))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := rsi.Compute(helper.SliceToChan(decimalsToFloat64(closes)))

	return float64ToDecimals(helper.ChanToSlice(out)), nil
}

// Summarize returns the latest indicator values of closes, oldest first.
func Summarize(closes []decimal.Decimal) Summary {
	s := Summary{Trend: TrendConsolidating, Complete: true}
	if len(closes) == 0 {
		s.Complete = false
		return s
	}
	s.Last = closes[len(closes)-1]

	if v, ok := latest(CalculateSMA(closes, 20)); ok {
		s.SMA20 = v
	} else {
		s.Complete = false
	}
	if v, ok := latest(CalculateEMA(closes, 20)); ok {
		s.EMA20 = v
	} else {
		s.Complete = false
	}
	if v, ok := latest(CalculateRSI(closes, 14)); ok {
		s.RSI14 = v
	} else {
		s.Complete = false
	}
	if v, ok := latest(CalculateMACD(closes)); ok {
		s.MACD = v
	} else {
		s.Complete = false
	}

	s.Trend = ClassifyTrend(s.Last, s.SMA20)

	return s
}

// ClassifyTrend compares price to its moving average; within half a percent is consolidating.
func ClassifyTrend(price, sma decimal.Decimal) Trend {
	if sma.IsZero() {
		return TrendConsolidating
	}
	deviation := price.Sub(sma).Div(sma)
	switch {
	case deviation.GreaterThan(consolidationBand):
		return TrendBullish
	case deviation.LessThan(consolidationBand.Neg()):
		return TrendBearish
	default:
		return TrendConsolidating
	}
}

func latest(values []decimal.Decimal, err error) (decimal.Decimal, bool) {
	if err != nil || len(values) == 0 {
		return decimal.Zero, false
	}
	return values[len(values)-1], true
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal. NaN and Inf become zero.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
