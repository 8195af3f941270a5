package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(n int, start, step float64) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.NewFromFloat(start + float64(i)*step)
	}
	return out
}

func TestCalculateSMA(t *testing.T) {
	closes := series(5, 1, 1) // 1..5

	sma, err := CalculateSMA(closes, 5)
	require.NoError(t, err)
	require.NotEmpty(t, sma)
	assert.True(t, decimal.NewFromInt(3).Equal(sma[len(sma)-1]))

	_, err = CalculateSMA(closes, 6)
	assert.Error(t, err)
}

func TestCalculateRSI_NotEnoughData(t *testing.T) {
	_, err := CalculateRSI(series(14, 1, 1), 14)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	t.Run("rising series is bullish", func(t *testing.T) {
		s := Summarize(series(60, 100, 1))
		assert.True(t, s.Complete)
		assert.Equal(t, TrendBullish, s.Trend)
		assert.True(t, s.Last.GreaterThan(s.SMA20))
	})

	t.Run("falling series is bearish", func(t *testing.T) {
		s := Summarize(series(60, 200, -1))
		assert.Equal(t, TrendBearish, s.Trend)
	})

	t.Run("short series is incomplete", func(t *testing.T) {
		s := Summarize(series(10, 1, 1))
		assert.False(t, s.Complete)
		assert.True(t, s.SMA20.IsZero())
		assert.Equal(t, TrendConsolidating, s.Trend)
	})

	t.Run("empty series", func(t *testing.T) {
		s := Summarize(nil)
		assert.False(t, s.Complete)
		assert.True(t, s.Last.IsZero())
	})
}

func TestClassifyTrend(t *testing.T) {
	sma := decimal.NewFromInt(100)
	assert.Equal(t, TrendConsolidating, ClassifyTrend(decimal.RequireFromString("100.4"), sma))
	assert.Equal(t, TrendBullish, ClassifyTrend(decimal.NewFromInt(101), sma))
	assert.Equal(t, TrendBearish, ClassifyTrend(decimal.NewFromInt(99), sma))
	assert.Equal(t, TrendConsolidating, ClassifyTrend(decimal.NewFromInt(99), decimal.Zero))
}
