package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot point-in-time market data for one asset, as served by the market data API.
type MarketSnapshot struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	Image             string          `json:"image"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	PriceChangePct24h float64         `json:"price_change_percentage_24h"`
	MarketCap         decimal.Decimal `json:"market_cap"`
	MarketCapRank     int             `json:"market_cap_rank"`
	TotalVolume       decimal.Decimal `json:"total_volume"`
	High24h           decimal.Decimal `json:"high_24h"`
	Low24h            decimal.Decimal `json:"low_24h"`
	CirculatingSupply decimal.Decimal `json:"circulating_supply"`
}

// ChartPoint one sample of a historical price series.
type ChartPoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// OrderBookLevel one price level of an order book.
type OrderBookLevel struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Total  decimal.Decimal `json:"total"`
}

// OrderBook bids sorted best (highest) first, asks sorted highest first so the
// best ask sits next to the best bid when rendered top to bottom.
type OrderBook struct {
	Bids []OrderBookLevel `json:"bids"`
	Asks []OrderBookLevel `json:"asks"`
}
