package domain

// DefaultCoinIDs market data ids tracked by the market feed.
var DefaultCoinIDs = []string{"bitcoin", "ethereum", "solana", "dogecoin", "ripple"}

// DefaultCoinID coin selected when a session starts.
const DefaultCoinID = "bitcoin"

// CoinSymbols maps market data ids to asset symbols.
var CoinSymbols = map[string]string{
	"bitcoin":  "btc",
	"ethereum": "eth",
	"solana":   "sol",
	"dogecoin": "doge",
	"ripple":   "xrp",
	"tether":   "usdt",
}

// SymbolForCoin returns the asset symbol of a market data id.
func SymbolForCoin(id string) (string, bool) {
	s, ok := CoinSymbols[NormalizeSymbol(id)]
	return s, ok
}

// SeedBalances is the demo allocation of a first run.
func SeedBalances() Balances {
	return Balances{
		"usdt": mustDecimal("10000"),
		"btc":  mustDecimal("0.5"),
		"eth":  mustDecimal("10"),
		"sol":  mustDecimal("100"),
		"doge": mustDecimal("50000"),
		"xrp":  mustDecimal("2000"),
	}
}
