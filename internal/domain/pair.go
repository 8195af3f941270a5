// Package domain defines the core data structures shared by the ledger,
// the gateways and the presentation layers.
package domain

import (
	"fmt"
	"strings"
)

// QuoteAsset is the quote currency every trade and valuation is expressed in.
const QuoteAsset = "usdt"

// NormalizeSymbol returns the canonical, lower-case form of an asset symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}

// Pair trading pair.
type Pair struct {
	// Base asset being bought or sold.
	Base string
	// Quote asset the base is priced in.
	Quote string
}

// NewPair builds a pair with canonical symbols.
func NewPair(base, quote string) Pair {
	return Pair{Base: NormalizeSymbol(base), Quote: NormalizeSymbol(quote)}
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", strings.ToUpper(p.Base), strings.ToUpper(p.Quote))
}

// Symbol returns the exchange ticker symbol, e.g. BTCUSDT.
func (p Pair) Symbol() string {
	return strings.ToUpper(p.Base + p.Quote)
}
