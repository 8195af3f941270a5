// Package ledger holds the paper-trading portfolio: liquid balances, staked
// positions and the transaction history. Every mutation validates its input,
// applies all of its changes or none, records a transaction and persists the
// full state through a storage.Store.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/storage"
	"go.uber.org/zap"
)

// Observer is notified after every successful mutation with a copy of the new state.
type Observer interface {
	LedgerChanged(ctx context.Context, tx domain.Transaction, snapshot domain.Portfolio)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, tx domain.Transaction, snapshot domain.Portfolio)

// LedgerChanged calls f.
func (f ObserverFunc) LedgerChanged(ctx context.Context, tx domain.Transaction, snapshot domain.Portfolio) {
	f(ctx, tx, snapshot)
}

// Ledger is safe for concurrent use; mutations are serialised so history order matches call order.
type Ledger struct {
	store     storage.Store
	keys      keys
	seed      domain.Balances
	l         *zap.Logger
	now       func() time.Time
	newID     func() string
	observers []Observer

	mu         sync.Mutex
	balances   domain.Balances
	staked     domain.StakedPositions
	history    []domain.Transaction
	persistErr error
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(lg *Ledger) {
		if l != nil {
			lg.l = l
		}
	}
}

// WithClock overrides the transaction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(lg *Ledger) { lg.now = now }
}

// WithIDGenerator overrides the transaction id source.
func WithIDGenerator(newID func() string) Option {
	return func(lg *Ledger) { lg.newID = newID }
}

// WithSeed replaces the first-run balances.
func WithSeed(seed domain.Balances) Option {
	return func(lg *Ledger) {
		lg.seed = make(domain.Balances, len(seed))
		for k, v := range seed {
			lg.seed[domain.NormalizeSymbol(k)] = v
		}
	}
}

// WithNamespace stores state under namespace-prefixed keys instead of the default ones.
func WithNamespace(namespace string) Option {
	return func(lg *Ledger) { lg.keys = namespacedKeys(namespace) }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(lg *Ledger) { lg.observers = append(lg.observers, o) }
}

// New loads the ledger from store. Missing or malformed entries fall back to the seed state;
// load problems are logged and never returned.
func New(ctx context.Context, store storage.Store, opts ...Option) *Ledger {
	lg := &Ledger{
		store: store,
		keys:  defaultKeys(),
		seed:  domain.SeedBalances(),
		l:     zap.NewNop(),
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(lg)
	}

	lg.load(ctx)

	return lg
}

// ExecuteTrade fills a buy or sell of amount base at price quote per unit.
func (lg *Ledger) ExecuteTrade(ctx context.Context, side domain.Side, amount, price decimal.Decimal, base, quote string) (domain.Trade, error) {
	base, quote = domain.NormalizeSymbol(base), domain.NormalizeSymbol(quote)

	switch {
	case side != domain.SideBuy && side != domain.SideSell:
		return domain.Trade{}, errors.Wrapf(domain.ErrUnknownSide, "side %q", side)
	case !amount.IsPositive():
		return domain.Trade{}, domain.ErrInvalidAmount
	case !price.IsPositive():
		return domain.Trade{}, domain.ErrInvalidPrice
	case base == "" || quote == "":
		return domain.Trade{}, domain.ErrEmptyAsset
	case base == quote:
		return domain.Trade{}, domain.ErrSameAsset
	}

	lg.mu.Lock()
	defer lg.mu.Unlock()

	total := amount.Mul(price)
	if side == domain.SideBuy {
		if have := lg.balances[quote]; have.LessThan(total) {
			return domain.Trade{}, &domain.BalanceError{Asset: quote, Have: have, Need: total, Err: domain.ErrInsufficientBalance}
		}
		lg.balances[quote] = lg.balances[quote].Sub(total)
		lg.balances[base] = lg.balances[base].Add(amount)
	} else {
		if have := lg.balances[base]; have.LessThan(amount) {
			return domain.Trade{}, &domain.BalanceError{Asset: base, Have: have, Need: amount, Err: domain.ErrInsufficientBalance}
		}
		lg.balances[base] = lg.balances[base].Sub(amount)
		lg.balances[quote] = lg.balances[quote].Add(total)
	}

	tx := domain.Trade{Meta: lg.meta(), Side: side, Base: base, Quote: quote, Amount: amount, Price: price}
	lg.commit(ctx, tx)

	lg.l.Info("trade executed",
		zap.String("side", side.String()),
		zap.String("base", base),
		zap.String("quote", quote),
		zap.String("amount", amount.String()),
		zap.String("price", price.String()))

	return tx, nil
}

// Stake moves amount of asset from the liquid balance into its staked principal.
func (lg *Ledger) Stake(ctx context.Context, asset string, amount decimal.Decimal) (domain.Stake, error) {
	asset = domain.NormalizeSymbol(asset)
	if err := validateAssetAmount(asset, amount); err != nil {
		return domain.Stake{}, err
	}

	lg.mu.Lock()
	defer lg.mu.Unlock()

	if have := lg.balances[asset]; have.LessThan(amount) {
		return domain.Stake{}, &domain.BalanceError{Asset: asset, Have: have, Need: amount, Err: domain.ErrInsufficientBalance}
	}

	lg.balances[asset] = lg.balances[asset].Sub(amount)
	pos := lg.staked[asset]
	pos.Amount = pos.Amount.Add(amount)
	lg.staked[asset] = pos

	tx := domain.Stake{Meta: lg.meta(), Asset: asset, Amount: amount}
	lg.commit(ctx, tx)

	return tx, nil
}

// Unstake returns amount of staked principal to the liquid balance. Rewards stay on the position.
func (lg *Ledger) Unstake(ctx context.Context, asset string, amount decimal.Decimal) (domain.Unstake, error) {
	asset = domain.NormalizeSymbol(asset)
	if err := validateAssetAmount(asset, amount); err != nil {
		return domain.Unstake{}, err
	}

	lg.mu.Lock()
	defer lg.mu.Unlock()

	pos := lg.staked[asset]
	if pos.Amount.LessThan(amount) {
		return domain.Unstake{}, &domain.BalanceError{Asset: asset, Have: pos.Amount, Need: amount, Err: domain.ErrInsufficientStakedBalance}
	}

	pos.Amount = pos.Amount.Sub(amount)
	if pos.Amount.IsZero() && pos.Rewards.IsZero() {
		delete(lg.staked, asset)
	} else {
		lg.staked[asset] = pos
	}
	lg.balances[asset] = lg.balances[asset].Add(amount)

	tx := domain.Unstake{Meta: lg.meta(), Asset: asset, Amount: amount}
	lg.commit(ctx, tx)

	return tx, nil
}

// CreditReward adds amount to the rewards of an existing staked position.
func (lg *Ledger) CreditReward(ctx context.Context, asset string, amount decimal.Decimal) (domain.Reward, error) {
	asset = domain.NormalizeSymbol(asset)
	if err := validateAssetAmount(asset, amount); err != nil {
		return domain.Reward{}, err
	}

	lg.mu.Lock()
	defer lg.mu.Unlock()

	pos, ok := lg.staked[asset]
	if !ok {
		return domain.Reward{}, errors.Wrapf(domain.ErrNoStakedPosition, "asset %s", asset)
	}
	pos.Rewards = pos.Rewards.Add(amount)
	lg.staked[asset] = pos

	tx := domain.Reward{Meta: lg.meta(), Asset: asset, Amount: amount}
	lg.commit(ctx, tx)

	return tx, nil
}

// Deposit credits amount of asset to the liquid balance.
func (lg *Ledger) Deposit(ctx context.Context, asset string, amount decimal.Decimal) (domain.Deposit, error) {
	asset = domain.NormalizeSymbol(asset)
	if err := validateAssetAmount(asset, amount); err != nil {
		return domain.Deposit{}, err
	}

	lg.mu.Lock()
	defer lg.mu.Unlock()

	lg.balances[asset] = lg.balances[asset].Add(amount)

	tx := domain.Deposit{Meta: lg.meta(), Asset: asset, Amount: amount, Status: domain.StatusCompleted}
	lg.commit(ctx, tx)

	return tx, nil
}

// Withdraw debits amount of asset from the liquid balance.
func (lg *Ledger) Withdraw(ctx context.Context, asset string, amount decimal.Decimal) (domain.Withdraw, error) {
	asset = domain.NormalizeSymbol(asset)
	if err := validateAssetAmount(asset, amount); err != nil {
		return domain.Withdraw{}, err
	}

	lg.mu.Lock()
	defer lg.mu.Unlock()

	if have := lg.balances[asset]; have.LessThan(amount) {
		return domain.Withdraw{}, &domain.BalanceError{Asset: asset, Have: have, Need: amount, Err: domain.ErrInsufficientBalance}
	}
	lg.balances[asset] = lg.balances[asset].Sub(amount)

	tx := domain.Withdraw{Meta: lg.meta(), Asset: asset, Amount: amount, Status: domain.StatusCompleted}
	lg.commit(ctx, tx)

	return tx, nil
}

// Reset deletes the persisted state and reinitialises the ledger to the seed balances.
func (lg *Ledger) Reset(ctx context.Context) error {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	for _, key := range lg.keys.all() {
		if err := lg.store.Delete(ctx, key); err != nil {
			// keys deleted so far are rewritten so storage matches memory again
			if serr := lg.save(ctx); serr != nil {
				lg.l.Warn("restore ledger state after failed reset", zap.Error(serr))
			}
			return errors.Wrapf(err, "delete %s", key)
		}
	}

	lg.balances = lg.seed.Clone()
	lg.staked = make(domain.StakedPositions)
	lg.history = nil
	lg.persistErr = nil

	lg.l.Info("ledger reset to seed state")
	return nil
}

// Balance returns the liquid balance of asset, zero when absent.
func (lg *Ledger) Balance(asset string) decimal.Decimal {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	return lg.balances.Get(asset)
}

// Balances returns a copy of the liquid balances.
func (lg *Ledger) Balances() domain.Balances {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	return lg.balances.Clone()
}

// StakedPositions returns a copy of the staked positions.
func (lg *Ledger) StakedPositions() domain.StakedPositions {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	return lg.staked.Clone()
}

// History returns the transactions newest first.
func (lg *Ledger) History() []domain.Transaction {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	return append([]domain.Transaction(nil), lg.history...)
}

// Snapshot returns a consistent copy of the whole ledger.
func (lg *Ledger) Snapshot() domain.Portfolio {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	return lg.snapshotLocked()
}

// PersistErr returns the error of the most recent failed save, nil once a later save succeeds.
func (lg *Ledger) PersistErr() error {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	return lg.persistErr
}

func (lg *Ledger) snapshotLocked() domain.Portfolio {
	return domain.Portfolio{
		Balances: lg.balances.Clone(),
		Staked:   lg.staked.Clone(),
		History:  append([]domain.Transaction(nil), lg.history...),
	}
}

func (lg *Ledger) meta() domain.Meta {
	return domain.Meta{ID: lg.newID(), Time: lg.now()}
}

// commit records tx, persists and notifies observers. Callers hold mu.
func (lg *Ledger) commit(ctx context.Context, tx domain.Transaction) {
	lg.history = append([]domain.Transaction{tx}, lg.history...)

	if err := lg.save(ctx); err != nil {
		lg.persistErr = err
		lg.l.Warn("failed to persist ledger state",
			zap.String("tx_id", tx.TxID()),
			zap.String("kind", string(tx.Kind())),
			zap.Error(err))
	} else {
		lg.persistErr = nil
	}

	if len(lg.observers) == 0 {
		return
	}
	snapshot := lg.snapshotLocked()
	for _, o := range lg.observers {
		o.LedgerChanged(ctx, tx, snapshot)
	}
}

func validateAssetAmount(asset string, amount decimal.Decimal) error {
	if asset == "" {
		return domain.ErrEmptyAsset
	}
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	return nil
}
