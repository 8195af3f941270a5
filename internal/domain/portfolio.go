package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Balances maps canonical asset symbols to liquid quantities. Absence means zero.
type Balances map[string]decimal.Decimal

// Get returns the balance of asset, zero when absent.
func (b Balances) Get(asset string) decimal.Decimal {
	return b[NormalizeSymbol(asset)]
}

// Clone returns a deep copy.
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Assets returns the symbols in lexical order.
func (b Balances) Assets() []string {
	assets := make([]string, 0, len(b))
	for k := range b {
		assets = append(assets, k)
	}
	sort.Strings(assets)
	return assets
}

// StakedPosition principal and accrued reward committed to a yield-bearing lock.
type StakedPosition struct {
	Amount  decimal.Decimal `json:"amount"`
	Rewards decimal.Decimal `json:"rewards"`
}

// Total returns principal plus rewards.
func (p StakedPosition) Total() decimal.Decimal {
	return p.Amount.Add(p.Rewards)
}

// StakedPositions maps canonical asset symbols to staked positions.
type StakedPositions map[string]StakedPosition

// Clone returns a copy.
func (s StakedPositions) Clone() StakedPositions {
	out := make(StakedPositions, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Assets returns the symbols in lexical order.
func (s StakedPositions) Assets() []string {
	assets := make([]string, 0, len(s))
	for k := range s {
		assets = append(assets, k)
	}
	sort.Strings(assets)
	return assets
}

// Portfolio is a read-only copy of the ledger state.
type Portfolio struct {
	Balances Balances
	Staked   StakedPositions
	// History newest first.
	History []Transaction
}
