// Package valuation prices a portfolio against market snapshots. It has no side effects.
package valuation

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
)

// Holdings is the part of a portfolio that carries value.
type Holdings struct {
	Balances domain.Balances
	Staked   domain.StakedPositions
}

// FromPortfolio extracts the holdings of p.
func FromPortfolio(p domain.Portfolio) Holdings {
	return Holdings{Balances: p.Balances, Staked: p.Staked}
}

// Prices indexes snapshot prices by canonical symbol. When several snapshots share a
// symbol the one with the best (lowest non-zero) market cap rank wins, ties by id,
// so the result does not depend on input order.
func Prices(markets []domain.MarketSnapshot) map[string]decimal.Decimal {
	best := make(map[string]domain.MarketSnapshot, len(markets))
	for _, m := range markets {
		symbol := domain.NormalizeSymbol(m.Symbol)
		if symbol == "" {
			continue
		}
		if cur, ok := best[symbol]; !ok || preferred(m, cur) {
			best[symbol] = m
		}
	}

	prices := make(map[string]decimal.Decimal, len(best))
	for symbol, m := range best {
		prices[symbol] = m.CurrentPrice
	}
	return prices
}

func preferred(a, b domain.MarketSnapshot) bool {
	ra, rb := rankKey(a.MarketCapRank), rankKey(b.MarketCapRank)
	if ra != rb {
		return ra < rb
	}
	return a.ID < b.ID
}

func rankKey(rank int) int {
	if rank <= 0 {
		return int(^uint(0) >> 1)
	}
	return rank
}

// TotalValue returns liquid plus staked value in quote currency. The quote asset counts at
// face value; any other asset without a snapshot contributes zero. With no snapshots at all
// the result is therefore the quote-asset face value.
func TotalValue(h Holdings, markets []domain.MarketSnapshot, quote string) decimal.Decimal {
	prices := Prices(markets)
	quote = domain.NormalizeSymbol(quote)

	total := decimal.Zero
	for asset, qty := range h.Balances {
		total = total.Add(value(domain.NormalizeSymbol(asset), qty, prices, quote))
	}
	for asset, pos := range h.Staked {
		total = total.Add(value(domain.NormalizeSymbol(asset), pos.Total(), prices, quote))
	}
	return total
}

// Line one asset row of a portfolio breakdown.
type Line struct {
	Asset  string
	Liquid decimal.Decimal
	Staked decimal.Decimal
	// Price is zero and Priced false when no snapshot covers the asset.
	Price  decimal.Decimal
	Priced bool
	Value  decimal.Decimal
	// Share of the total value in percent.
	Share decimal.Decimal
}

// Breakdown returns per-asset rows sorted by value descending, then by asset.
// Assets held in neither form are omitted.
func Breakdown(h Holdings, markets []domain.MarketSnapshot, quote string) []Line {
	prices := Prices(markets)
	quote = domain.NormalizeSymbol(quote)

	rows := make(map[string]*Line)
	row := func(asset string) *Line {
		asset = domain.NormalizeSymbol(asset)
		if r, ok := rows[asset]; ok {
			return r
		}
		r := &Line{Asset: asset}
		switch price, ok := prices[asset]; {
		case asset == quote:
			r.Price, r.Priced = decimal.NewFromInt(1), true
		case ok:
			r.Price, r.Priced = price, true
		}
		rows[asset] = r
		return r
	}

	for asset, qty := range h.Balances {
		if qty.IsZero() {
			continue
		}
		r := row(asset)
		r.Liquid = r.Liquid.Add(qty)
	}
	for asset, pos := range h.Staked {
		if pos.Total().IsZero() {
			continue
		}
		r := row(asset)
		r.Staked = r.Staked.Add(pos.Total())
	}

	total := decimal.Zero
	lines := make([]Line, 0, len(rows))
	for _, r := range rows {
		r.Value = r.Liquid.Add(r.Staked).Mul(r.Price)
		total = total.Add(r.Value)
		lines = append(lines, *r)
	}

	hundred := decimal.NewFromInt(100)
	for i := range lines {
		if total.IsPositive() {
			lines[i].Share = lines[i].Value.Div(total).Mul(hundred).Round(2)
		}
	}

	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].Value.Equal(lines[j].Value) {
			return lines[i].Value.GreaterThan(lines[j].Value)
		}
		return lines[i].Asset < lines[j].Asset
	})
	return lines
}

func value(asset string, qty decimal.Decimal, prices map[string]decimal.Decimal, quote string) decimal.Decimal {
	if asset == quote {
		return qty
	}
	if price, ok := prices[asset]; ok {
		return qty.Mul(price)
	}
	return decimal.Zero
}
