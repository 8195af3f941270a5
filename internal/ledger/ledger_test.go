package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/storage"
	"github.com/vadiminshakov/somtrade/internal/storage/memstore"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger(t *testing.T, store storage.Store, opts ...Option) *Ledger {
	t.Helper()
	if store == nil {
		store = memstore.New()
	}
	seq := 0
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	opts = append([]Option{
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("tx-%d", seq)
		}),
		WithClock(func() time.Time { return base.Add(time.Duration(seq) * time.Second) }),
	}, opts...)
	return New(context.Background(), store, opts...)
}

func TestNew_SeedsFirstRun(t *testing.T) {
	lg := newTestLedger(t, nil)

	assert.True(t, d("10000").Equal(lg.Balance("usdt")))
	assert.True(t, d("0.5").Equal(lg.Balance("BTC")))
	assert.True(t, d("50000").Equal(lg.Balance("doge")))
	assert.Empty(t, lg.StakedPositions())
	assert.Empty(t, lg.History())
	assert.True(t, lg.Balance("ada").IsZero())
}

func TestExecuteTrade(t *testing.T) {
	ctx := context.Background()

	t.Run("buy debits quote and credits base", func(t *testing.T) {
		lg := newTestLedger(t, nil, WithSeed(domain.Balances{"usdt": d("10000")}))

		tx, err := lg.ExecuteTrade(ctx, domain.SideBuy, d("0.1"), d("60000"), "BTC", "usdt")
		require.NoError(t, err)

		assert.True(t, d("4000").Equal(lg.Balance("usdt")))
		assert.True(t, d("0.1").Equal(lg.Balance("btc")))
		assert.Equal(t, "btc", tx.Base)
		assert.True(t, d("6000").Equal(tx.Total()))
	})

	t.Run("buy then sell round trip conserves value", func(t *testing.T) {
		lg := newTestLedger(t, nil)
		before := lg.Balances()

		_, err := lg.ExecuteTrade(ctx, domain.SideBuy, d("2.5"), d("123.45"), "sol", "usdt")
		require.NoError(t, err)
		_, err = lg.ExecuteTrade(ctx, domain.SideSell, d("2.5"), d("123.45"), "sol", "usdt")
		require.NoError(t, err)

		after := lg.Balances()
		for asset, v := range before {
			assert.True(t, v.Equal(after[asset]), asset)
		}
	})

	t.Run("buy with insufficient quote leaves balances unchanged", func(t *testing.T) {
		lg := newTestLedger(t, nil)
		before := lg.Balances()

		_, err := lg.ExecuteTrade(ctx, domain.SideBuy, d("1"), d("60000"), "btc", "usdt")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

		var be *domain.BalanceError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "usdt", be.Asset)
		assert.True(t, d("60000").Equal(be.Need))

		assert.Equal(t, before, lg.Balances())
		assert.Empty(t, lg.History())
	})

	t.Run("sell with insufficient base leaves balances unchanged", func(t *testing.T) {
		lg := newTestLedger(t, nil)
		before := lg.Balances()

		_, err := lg.ExecuteTrade(ctx, domain.SideSell, d("0.6"), d("60000"), "btc", "usdt")
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

		var be *domain.BalanceError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "btc", be.Asset)
		assert.Equal(t, before, lg.Balances())
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		lg := newTestLedger(t, nil)

		_, err := lg.ExecuteTrade(ctx, domain.SideBuy, decimal.Zero, d("1"), "btc", "usdt")
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		_, err = lg.ExecuteTrade(ctx, domain.SideBuy, d("1"), d("-1"), "btc", "usdt")
		assert.ErrorIs(t, err, domain.ErrInvalidPrice)
		_, err = lg.ExecuteTrade(ctx, domain.SideBuy, d("1"), d("1"), "usdt", "USDT")
		assert.ErrorIs(t, err, domain.ErrSameAsset)
		_, err = lg.ExecuteTrade(ctx, domain.Side("hold"), d("1"), d("1"), "btc", "usdt")
		assert.ErrorIs(t, err, domain.ErrUnknownSide)
		assert.True(t, domain.IsValidationError(err))

		assert.Empty(t, lg.History())
	})
}

func TestStakeUnstake(t *testing.T) {
	ctx := context.Background()

	t.Run("stake moves liquid into principal", func(t *testing.T) {
		lg := newTestLedger(t, nil)

		tx, err := lg.Stake(ctx, "eth", d("5"))
		require.NoError(t, err)

		assert.True(t, d("5").Equal(lg.Balance("eth")))
		pos := lg.StakedPositions()["eth"]
		assert.True(t, d("5").Equal(pos.Amount))
		assert.True(t, pos.Rewards.IsZero())

		history := lg.History()
		require.Len(t, history, 1)
		assert.Equal(t, tx, history[0])
		assert.True(t, d("5").Equal(history[0].(domain.Stake).Amount))
	})

	t.Run("unstake more than principal fails", func(t *testing.T) {
		lg := newTestLedger(t, nil)
		_, err := lg.Stake(ctx, "eth", d("5"))
		require.NoError(t, err)

		_, err = lg.Unstake(ctx, "eth", d("7"))
		assert.ErrorIs(t, err, domain.ErrInsufficientStakedBalance)
		assert.True(t, d("5").Equal(lg.StakedPositions()["eth"].Amount))
		assert.True(t, d("5").Equal(lg.Balance("eth")))
		assert.Len(t, lg.History(), 1)
	})

	t.Run("stake then unstake restores liquid balance", func(t *testing.T) {
		lg := newTestLedger(t, nil)
		before := lg.Balance("sol")

		_, err := lg.Stake(ctx, "sol", d("42.5"))
		require.NoError(t, err)
		_, err = lg.Unstake(ctx, "sol", d("42.5"))
		require.NoError(t, err)

		assert.True(t, before.Equal(lg.Balance("sol")))
		assert.NotContains(t, lg.StakedPositions(), "sol")
	})

	t.Run("stake more than liquid fails", func(t *testing.T) {
		lg := newTestLedger(t, nil)

		_, err := lg.Stake(ctx, "eth", d("11"))
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		assert.Empty(t, lg.StakedPositions())
	})

	t.Run("unstake keeps rewards on the position", func(t *testing.T) {
		lg := newTestLedger(t, nil)
		_, err := lg.Stake(ctx, "xrp", d("100"))
		require.NoError(t, err)
		_, err = lg.CreditReward(ctx, "xrp", d("1.5"))
		require.NoError(t, err)

		_, err = lg.Unstake(ctx, "xrp", d("100"))
		require.NoError(t, err)

		pos := lg.StakedPositions()["xrp"]
		assert.True(t, pos.Amount.IsZero())
		assert.True(t, d("1.5").Equal(pos.Rewards))
		assert.True(t, d("2000").Equal(lg.Balance("xrp")))
	})

	t.Run("reward requires a staked position", func(t *testing.T) {
		lg := newTestLedger(t, nil)

		_, err := lg.CreditReward(ctx, "eth", d("1"))
		assert.ErrorIs(t, err, domain.ErrNoStakedPosition)
	})
}

func TestDepositWithdraw(t *testing.T) {
	ctx := context.Background()
	lg := newTestLedger(t, nil)

	dep, err := lg.Deposit(ctx, "ADA", d("25"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, dep.Status)
	assert.True(t, d("25").Equal(lg.Balance("ada")))

	_, err = lg.Withdraw(ctx, "ada", d("30"))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	wd, err := lg.Withdraw(ctx, "ada", d("20"))
	require.NoError(t, err)
	assert.Equal(t, "ada", wd.Asset)
	assert.True(t, d("5").Equal(lg.Balance("ada")))
}

func TestHistory_OrderAndAmounts(t *testing.T) {
	ctx := context.Background()
	lg := newTestLedger(t, nil)

	_, err := lg.ExecuteTrade(ctx, domain.SideBuy, d("0.01"), d("50000"), "btc", "usdt")
	require.NoError(t, err)
	_, err = lg.Stake(ctx, "eth", d("2"))
	require.NoError(t, err)
	_, err = lg.Unstake(ctx, "eth", d("1"))
	require.NoError(t, err)
	_, err = lg.ExecuteTrade(ctx, domain.SideSell, d("100"), d("0.5"), "xrp", "usdt")
	require.NoError(t, err)

	history := lg.History()
	require.Len(t, history, 4)
	assert.Equal(t, []string{"tx-4", "tx-3", "tx-2", "tx-1"},
		[]string{history[0].TxID(), history[1].TxID(), history[2].TxID(), history[3].TxID()})

	sell := history[0].(domain.Trade)
	assert.Equal(t, domain.SideSell, sell.Side)
	assert.True(t, d("100").Equal(sell.Amount))
	assert.True(t, d("0.5").Equal(sell.Price))

	assert.True(t, d("1").Equal(history[1].(domain.Unstake).Amount))
	assert.True(t, d("2").Equal(history[2].(domain.Stake).Amount))
	assert.True(t, history[0].When().After(history[3].When()))
}

func TestPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	lg := newTestLedger(t, store)
	_, err := lg.ExecuteTrade(ctx, domain.SideBuy, d("1"), d("100"), "sol", "usdt")
	require.NoError(t, err)
	_, err = lg.Stake(ctx, "sol", d("50"))
	require.NoError(t, err)

	raw, err := store.Get(ctx, storage.KeyPortfolio)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"usdt":9900`)

	raw, err = store.Get(ctx, storage.KeyTransactions)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"stake"`)

	reloaded := New(ctx, store)
	assert.Equal(t, lg.Snapshot().Balances.Assets(), reloaded.Balances().Assets())
	assert.True(t, d("9900").Equal(reloaded.Balance("usdt")))
	assert.True(t, d("51").Equal(reloaded.Balance("sol")))
	assert.True(t, d("50").Equal(reloaded.StakedPositions()["sol"].Amount))

	history := reloaded.History()
	require.Len(t, history, 2)
	assert.Equal(t, domain.KindStake, history[0].Kind())
	assert.Equal(t, domain.KindTrade, history[1].Kind())
}

func TestPersistence_MalformedFallsBack(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.Set(ctx, storage.KeyPortfolio, []byte(`{"usdt":-5}`)))
	require.NoError(t, store.Set(ctx, storage.KeyStaked, []byte(`{"eth":{"amount":2,"rewards":0.1}}`)))
	require.NoError(t, store.Set(ctx, storage.KeyTransactions, []byte(`[{"kind":"airdrop","id":"x","amount":1}]`)))

	lg := New(ctx, store)

	assert.True(t, d("10000").Equal(lg.Balance("usdt")))
	assert.True(t, d("2").Equal(lg.StakedPositions()["eth"].Amount))
	assert.True(t, d("0.1").Equal(lg.StakedPositions()["eth"].Rewards))
	assert.Empty(t, lg.History())
}

type failingStore struct {
	*memstore.Store
	fail bool
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, key, value)
}

func TestPersistence_WriteFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memstore.New(), fail: true}
	lg := newTestLedger(t, store)

	_, err := lg.Stake(ctx, "eth", d("1"))
	require.NoError(t, err)
	assert.True(t, d("9").Equal(lg.Balance("eth")))
	assert.Error(t, lg.PersistErr())

	store.fail = false
	_, err = lg.Stake(ctx, "eth", d("1"))
	require.NoError(t, err)
	assert.NoError(t, lg.PersistErr())
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.Set(ctx, storage.KeyTheme, []byte("light")))

	lg := newTestLedger(t, store)
	_, err := lg.Stake(ctx, "eth", d("3"))
	require.NoError(t, err)

	require.NoError(t, lg.Reset(ctx))

	assert.True(t, d("10").Equal(lg.Balance("eth")))
	assert.Empty(t, lg.StakedPositions())
	assert.Empty(t, lg.History())

	keys, err := store.Keys(ctx, storage.Namespace)
	require.NoError(t, err)
	assert.Equal(t, []string{storage.KeyTheme}, keys)
}

type deleteFailingStore struct {
	storage.Store
	failOn string
}

func (f *deleteFailingStore) Delete(ctx context.Context, key string) error {
	if key == f.failOn {
		return errors.New("boom")
	}
	return f.Store.Delete(ctx, key)
}

func TestReset_DeleteFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	store := &deleteFailingStore{Store: memstore.New(), failOn: storage.KeyTransactions}
	lg := newTestLedger(t, store)

	_, err := lg.Deposit(ctx, "usdt", d("5"))
	require.NoError(t, err)

	err = lg.Reset(ctx)
	assert.ErrorContains(t, err, "boom")
	assert.True(t, d("10005").Equal(lg.Balance("usdt")))
	assert.Len(t, lg.History(), 1)

	reloaded := newTestLedger(t, store)
	assert.True(t, d("10005").Equal(reloaded.Balance("usdt")))
	assert.Len(t, reloaded.History(), 1)
}

func TestNamespaceAndObserver(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	var seen []domain.Transaction
	var last domain.Portfolio
	lg := newTestLedger(t, store,
		WithNamespace("alice"),
		WithObserver(ObserverFunc(func(_ context.Context, tx domain.Transaction, snapshot domain.Portfolio) {
			seen = append(seen, tx)
			last = snapshot
		})),
	)

	_, err := lg.Deposit(ctx, "usdt", d("1"))
	require.NoError(t, err)

	_, err = store.Get(ctx, "alice:portfolio")
	assert.NoError(t, err)
	_, err = store.Get(ctx, storage.KeyPortfolio)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.Len(t, seen, 1)
	assert.Equal(t, domain.KindDeposit, seen[0].Kind())
	assert.True(t, d("10001").Equal(last.Balances["usdt"]))
	assert.Len(t, last.History, 1)
}

func TestConcurrentOperationsAreSerialised(t *testing.T) {
	ctx := context.Background()
	lg := newTestLedger(t, nil, WithIDGenerator(func() string { return "id" }))

	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func() {
			_, _ = lg.Deposit(ctx, "usdt", d("1"))
			done <- struct{}{}
		}()
	}
	for i := 0; i < 50; i++ {
		<-done
	}

	assert.True(t, d("10050").Equal(lg.Balance("usdt")))
	assert.Len(t, lg.History(), 50)
}
