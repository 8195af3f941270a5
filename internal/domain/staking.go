package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StakingPool yield-bearing pool offered on the earn screen.
type StakingPool struct {
	ID     string          `json:"id"`
	Asset  string          `json:"asset"`
	Symbol string          `json:"symbol"`
	Image  string          `json:"image"`
	APY    decimal.Decimal `json:"apy"`
	// LockupDays zero means flexible.
	LockupDays  int             `json:"lockup_days"`
	TotalStaked decimal.Decimal `json:"total_staked"`
}

// Flexible reports whether the pool has no lock-up.
func (p StakingPool) Flexible() bool {
	return p.LockupDays == 0
}

// EstimatedReward simple-interest yield of principal over d at the pool APY.
func (p StakingPool) EstimatedReward(principal decimal.Decimal, d time.Duration) decimal.Decimal {
	year := decimal.NewFromInt(int64(365 * 24 * time.Hour))
	return principal.Mul(p.APY).Div(decimal.NewFromInt(100)).Mul(decimal.NewFromInt(int64(d))).Div(year)
}

// DefaultStakingPools pools available to every session.
func DefaultStakingPools() []StakingPool {
	return []StakingPool{
		{
			ID: "eth-stake", Asset: "Ethereum", Symbol: "eth",
			Image:      "https://assets.coingecko.com/coins/images/279/large/ethereum.png",
			APY:        mustDecimal("4.5"),
			LockupDays: 0, TotalStaked: mustDecimal("1250000"),
		},
		{
			ID: "sol-stake", Asset: "Solana", Symbol: "sol",
			Image:      "https://assets.coingecko.com/coins/images/4128/large/solana.png",
			APY:        mustDecimal("7.2"),
			LockupDays: 3, TotalStaked: mustDecimal("5800000"),
		},
		{
			ID: "usdt-stake", Asset: "Tether", Symbol: "usdt",
			Image:      "https://assets.coingecko.com/coins/images/325/large/Tether-logo.png",
			APY:        mustDecimal("8.0"),
			LockupDays: 30, TotalStaked: mustDecimal("150000000"),
		},
		{
			ID: "xrp-stake", Asset: "XRP", Symbol: "xrp",
			Image:      "https://assets.coingecko.com/coins/images/44/large/xrp-symbol-white-128.png",
			APY:        mustDecimal("3.1"),
			LockupDays: 15, TotalStaked: mustDecimal("25000000"),
		},
	}
}

// PoolForAsset finds the pool of asset among pools.
func PoolForAsset(pools []StakingPool, asset string) (StakingPool, bool) {
	asset = NormalizeSymbol(asset)
	for _, p := range pools {
		if p.Symbol == asset {
			return p, true
		}
	}
	return StakingPool{}, false
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
