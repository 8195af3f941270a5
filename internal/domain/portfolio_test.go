package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalances(t *testing.T) {
	b := Balances{"usdt": decimal.NewFromInt(10), "btc": decimal.NewFromInt(1)}
	assert.True(t, b.Get(" USDT ").Equal(decimal.NewFromInt(10)))
	assert.True(t, b.Get("eth").IsZero())
	assert.Equal(t, []string{"btc", "usdt"}, b.Assets())

	clone := b.Clone()
	clone["btc"] = decimal.NewFromInt(2)
	assert.True(t, b["btc"].Equal(decimal.NewFromInt(1)))
}

func TestStakingPools(t *testing.T) {
	pools := DefaultStakingPools()
	require.NotEmpty(t, pools)

	eth, ok := PoolForAsset(pools, "ETH")
	require.True(t, ok)
	assert.Equal(t, "Ethereum", eth.Asset)
	assert.True(t, eth.Flexible())

	reward := eth.EstimatedReward(decimal.NewFromInt(1000), 365*24*time.Hour)
	assert.True(t, reward.Equal(decimal.NewFromInt(45)), reward.String())

	_, ok = PoolForAsset(pools, "doge")
	assert.False(t, ok)
}

func TestCoins(t *testing.T) {
	for _, id := range DefaultCoinIDs {
		_, ok := SymbolForCoin(id)
		assert.True(t, ok, id)
	}
	symbol, ok := SymbolForCoin("Bitcoin")
	require.True(t, ok)
	assert.Equal(t, "btc", symbol)

	assert.Equal(t, "BTC_USDT", NewPair("BTC", QuoteAsset).String())
	assert.Equal(t, "BTCUSDT", NewPair("btc", "usdt").Symbol())
	assert.True(t, SeedBalances().Get("usdt").Equal(decimal.NewFromInt(10000)))
}

func TestNewBalanceSnapshot(t *testing.T) {
	tx := Stake{Meta: Meta{ID: "tx-1", Time: time.UnixMilli(1700000000000)}, Asset: "eth", Amount: decimal.NewFromInt(2)}
	p := Portfolio{
		Balances: Balances{"eth": decimal.NewFromInt(8)},
		Staked:   StakedPositions{"eth": {Amount: decimal.NewFromInt(2), Rewards: decimal.RequireFromString("0.1")}},
	}

	s := NewBalanceSnapshot(tx, p)
	assert.Equal(t, "tx-1", s.TxID)
	assert.Equal(t, KindStake, s.Kind)
	assert.Equal(t, "8", s.Balances["eth"])
	assert.Equal(t, "2.1", s.Staked["eth"])
}
