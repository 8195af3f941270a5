package ledger

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/storage"
	"go.uber.org/zap"
)

type keys struct {
	portfolio    string
	staked       string
	transactions string
}

func defaultKeys() keys {
	return keys{
		portfolio:    storage.KeyPortfolio,
		staked:       storage.KeyStaked,
		transactions: storage.KeyTransactions,
	}
}

func namespacedKeys(namespace string) keys {
	if namespace == "" {
		return defaultKeys()
	}
	if !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return keys{
		portfolio:    namespace + "portfolio",
		staked:       namespace + "staked",
		transactions: namespace + "transactions",
	}
}

func (k keys) all() []string {
	return []string{k.portfolio, k.staked, k.transactions}
}

type stakedRecord struct {
	Amount  json.Number `json:"amount"`
	Rewards json.Number `json:"rewards"`
}

// EncodeBalances renders balances as a JSON object of symbol to number.
func EncodeBalances(b domain.Balances) ([]byte, error) {
	out := make(map[string]json.Number, len(b))
	for asset, v := range b {
		out[asset] = domain.Number(v)
	}
	return json.Marshal(out)
}

// DecodeBalances parses a balances object, rejecting negative or non-numeric values.
func DecodeBalances(payload []byte) (domain.Balances, error) {
	var raw map[string]json.Number
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errors.Wrap(err, "decode balances")
	}
	if raw == nil {
		return nil, errors.New("balances must be an object")
	}

	out := make(domain.Balances, len(raw))
	for asset, n := range raw {
		v, err := nonNegative(n)
		if err != nil {
			return nil, errors.Wrapf(err, "balance %s", asset)
		}
		out[domain.NormalizeSymbol(asset)] = v
	}
	return out, nil
}

// EncodeStaked renders staked positions as symbol to {"amount","rewards"}.
func EncodeStaked(s domain.StakedPositions) ([]byte, error) {
	out := make(map[string]stakedRecord, len(s))
	for asset, pos := range s {
		out[asset] = stakedRecord{Amount: domain.Number(pos.Amount), Rewards: domain.Number(pos.Rewards)}
	}
	return json.Marshal(out)
}

// DecodeStaked parses staked positions. A missing rewards field reads as zero.
func DecodeStaked(payload []byte) (domain.StakedPositions, error) {
	var raw map[string]stakedRecord
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errors.Wrap(err, "decode staked positions")
	}
	if raw == nil {
		return nil, errors.New("staked positions must be an object")
	}

	out := make(domain.StakedPositions, len(raw))
	for asset, rec := range raw {
		amount, err := nonNegative(rec.Amount)
		if err != nil {
			return nil, errors.Wrapf(err, "staked %s amount", asset)
		}
		rewards := decimal.Zero
		if rec.Rewards != "" {
			if rewards, err = nonNegative(rec.Rewards); err != nil {
				return nil, errors.Wrapf(err, "staked %s rewards", asset)
			}
		}
		out[domain.NormalizeSymbol(asset)] = domain.StakedPosition{Amount: amount, Rewards: rewards}
	}
	return out, nil
}

func nonNegative(n json.Number) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %q", n)
	}
	if v.IsNegative() {
		return decimal.Zero, errors.Errorf("negative value %s", v)
	}
	return v, nil
}

// load reads each structure independently; anything unusable falls back to its default.
func (lg *Ledger) load(ctx context.Context) {
	lg.balances = lg.seed.Clone()
	lg.staked = make(domain.StakedPositions)
	lg.history = nil

	if payload, ok := lg.read(ctx, lg.keys.portfolio); ok {
		if b, err := DecodeBalances(payload); err != nil {
			lg.l.Warn("malformed balances in storage, using seed", zap.Error(err))
		} else {
			lg.balances = b
		}
	}

	if payload, ok := lg.read(ctx, lg.keys.staked); ok {
		if s, err := DecodeStaked(payload); err != nil {
			lg.l.Warn("malformed staked positions in storage, starting empty", zap.Error(err))
		} else {
			lg.staked = s
		}
	}

	if payload, ok := lg.read(ctx, lg.keys.transactions); ok {
		if h, err := domain.UnmarshalTransactions(payload); err != nil {
			lg.l.Warn("malformed transaction history in storage, starting empty", zap.Error(err))
		} else {
			lg.history = h
		}
	}
}

func (lg *Ledger) read(ctx context.Context, key string) ([]byte, bool) {
	payload, err := lg.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			lg.l.Warn("failed to read ledger state", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return payload, true
}

// save writes all three structures. Callers hold mu.
func (lg *Ledger) save(ctx context.Context) error {
	balances, err := EncodeBalances(lg.balances)
	if err != nil {
		return err
	}
	staked, err := EncodeStaked(lg.staked)
	if err != nil {
		return err
	}
	history, err := domain.MarshalTransactions(lg.history)
	if err != nil {
		return err
	}

	for _, kv := range []struct {
		key   string
		value []byte
	}{
		{lg.keys.portfolio, balances},
		{lg.keys.staked, staked},
		{lg.keys.transactions, history},
	} {
		if err := lg.store.Set(ctx, kv.key, kv.value); err != nil {
			return errors.Wrapf(err, "write %s", kv.key)
		}
	}
	return nil
}
