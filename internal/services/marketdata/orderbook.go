package marketdata

import (
	"math/rand"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
)

const (
	orderBookDepth     = 15
	orderBookMaxAmount = 5.0
)

var orderBookStep = decimal.RequireFromString("0.0001")

// GenerateOrderBook builds a synthetic book around price: orderBookDepth levels per side
// spaced 0.01% apart with random amounts below orderBookMaxAmount. Prices and totals are
// rounded to cents, amounts to three decimals.
func GenerateOrderBook(price decimal.Decimal, rnd *rand.Rand) domain.OrderBook {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(rand.Int63()))
	}

	step := price.Mul(orderBookStep)
	book := domain.OrderBook{
		Bids: make([]domain.OrderBookLevel, 0, orderBookDepth),
		Asks: make([]domain.OrderBookLevel, orderBookDepth),
	}

	for i := 1; i <= orderBookDepth; i++ {
		offset := step.Mul(decimal.NewFromInt(int64(i)))
		book.Bids = append(book.Bids, level(price.Sub(offset), rnd))
		// asks are stored highest first so the best ask sits next to the spread
		book.Asks[orderBookDepth-i] = level(price.Add(offset), rnd)
	}

	return book
}

func level(price decimal.Decimal, rnd *rand.Rand) domain.OrderBookLevel {
	amount := decimal.NewFromFloat(rnd.Float64() * orderBookMaxAmount).Round(3)
	return domain.OrderBookLevel{
		Price:  price.Round(2),
		Amount: amount,
		Total:  price.Mul(amount).Round(2),
	}
}
