package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Kind discriminates the variants of Transaction.
type Kind string

const (
	KindTrade    Kind = "trade"
	KindStake    Kind = "stake"
	KindUnstake  Kind = "unstake"
	KindReward   Kind = "reward"
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
)

// TxStatus is the settlement status of deposits and withdrawals.
type TxStatus string

const (
	StatusCompleted TxStatus = "completed"
	StatusPending   TxStatus = "pending"
	StatusFailed    TxStatus = "failed"
)

func (s TxStatus) valid() bool {
	switch s {
	case StatusCompleted, StatusPending, StatusFailed:
		return true
	}
	return false
}

// Transaction is an immutable record of one ledger-affecting event.
// The set of implementations is closed: Trade, Stake, Unstake, Reward, Deposit, Withdraw.
type Transaction interface {
	TxID() string
	When() time.Time
	Kind() Kind
	transaction()
}

// Meta holds the identity shared by all transaction variants.
type Meta struct {
	ID   string
	Time time.Time
}

// TxID returns the unique transaction identifier.
func (m Meta) TxID() string { return m.ID }

// When returns the creation time.
func (m Meta) When() time.Time { return m.Time }

func (Meta) transaction() {}

// Trade a filled buy or sell of Base priced in Quote.
type Trade struct {
	Meta
	Side   Side
	Base   string
	Quote  string
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// Kind returns KindTrade.
func (Trade) Kind() Kind { return KindTrade }

// Total returns the quote value of the trade.
func (t Trade) Total() decimal.Decimal { return t.Amount.Mul(t.Price) }

// Stake liquid balance moved into a staked position.
type Stake struct {
	Meta
	Asset  string
	Amount decimal.Decimal
}

// Kind returns KindStake.
func (Stake) Kind() Kind { return KindStake }

// Unstake staked principal moved back to the liquid balance.
type Unstake struct {
	Meta
	Asset  string
	Amount decimal.Decimal
}

// Kind returns KindUnstake.
func (Unstake) Kind() Kind { return KindUnstake }

// Reward staking yield credited to a staked position.
type Reward struct {
	Meta
	Asset  string
	Amount decimal.Decimal
}

// Kind returns KindReward.
func (Reward) Kind() Kind { return KindReward }

// Deposit funds credited to the liquid balance.
type Deposit struct {
	Meta
	Asset  string
	Amount decimal.Decimal
	Status TxStatus
}

// Kind returns KindDeposit.
func (Deposit) Kind() Kind { return KindDeposit }

// Withdraw funds debited from the liquid balance.
type Withdraw struct {
	Meta
	Asset  string
	Amount decimal.Decimal
	Status TxStatus
}

// Kind returns KindWithdraw.
func (Withdraw) Kind() Kind { return KindWithdraw }

// Describe renders a one-line human summary of tx.
func Describe(tx Transaction) (string, error) {
	switch v := tx.(type) {
	case Trade:
		return fmt.Sprintf("%s %s %s @ %s %s", strings.ToUpper(v.Side.String()), v.Amount.String(),
			strings.ToUpper(v.Base), v.Price.String(), strings.ToUpper(v.Quote)), nil
	case Stake:
		return fmt.Sprintf("STAKE %s %s", v.Amount.String(), strings.ToUpper(v.Asset)), nil
	case Unstake:
		return fmt.Sprintf("UNSTAKE %s %s", v.Amount.String(), strings.ToUpper(v.Asset)), nil
	case Reward:
		return fmt.Sprintf("REWARD %s %s", v.Amount.String(), strings.ToUpper(v.Asset)), nil
	case Deposit:
		return fmt.Sprintf("DEPOSIT %s %s (%s)", v.Amount.String(), strings.ToUpper(v.Asset), v.Status), nil
	case Withdraw:
		return fmt.Sprintf("WITHDRAW %s %s (%s)", v.Amount.String(), strings.ToUpper(v.Asset), v.Status), nil
	default:
		return "", fmt.Errorf("unsupported transaction type %T", tx)
	}
}

// txRecord is the persisted form of a transaction, tagged by Kind.
type txRecord struct {
	Kind      Kind        `json:"kind"`
	ID        string      `json:"id"`
	Timestamp int64       `json:"timestamp"`
	Side      Side        `json:"side,omitempty"`
	Base      string      `json:"base,omitempty"`
	Quote     string      `json:"quote,omitempty"`
	Asset     string      `json:"asset,omitempty"`
	Amount    json.Number `json:"amount"`
	Price     json.Number `json:"price,omitempty"`
	Status    TxStatus    `json:"status,omitempty"`
}

// Number converts a decimal into a JSON number literal.
func Number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// MarshalTransactions encodes txs as a JSON array of kind-tagged objects, preserving order.
func MarshalTransactions(txs []Transaction) ([]byte, error) {
	records := make([]txRecord, 0, len(txs))
	for _, tx := range txs {
		rec := txRecord{Kind: tx.Kind(), ID: tx.TxID(), Timestamp: tx.When().UnixMilli()}
		switch v := tx.(type) {
		case Trade:
			rec.Side, rec.Base, rec.Quote = v.Side, v.Base, v.Quote
			rec.Amount, rec.Price = Number(v.Amount), Number(v.Price)
		case Stake:
			rec.Asset, rec.Amount = v.Asset, Number(v.Amount)
		case Unstake:
			rec.Asset, rec.Amount = v.Asset, Number(v.Amount)
		case Reward:
			rec.Asset, rec.Amount = v.Asset, Number(v.Amount)
		case Deposit:
			rec.Asset, rec.Amount, rec.Status = v.Asset, Number(v.Amount), v.Status
		case Withdraw:
			rec.Asset, rec.Amount, rec.Status = v.Asset, Number(v.Amount), v.Status
		default:
			return nil, fmt.Errorf("unsupported transaction type %T", tx)
		}
		records = append(records, rec)
	}
	return json.Marshal(records)
}

// UnmarshalTransactions decodes a JSON array produced by MarshalTransactions.
// Any malformed element fails the whole decode.
func UnmarshalTransactions(payload []byte) ([]Transaction, error) {
	var records []txRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, errors.Wrap(err, "decode transactions")
	}

	txs := make([]Transaction, 0, len(records))
	for i, rec := range records {
		tx, err := rec.decode()
		if err != nil {
			return nil, errors.Wrapf(err, "transaction %d", i)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (r txRecord) decode() (Transaction, error) {
	if r.ID == "" {
		return nil, errors.New("missing id")
	}
	amount, err := positive(r.Amount, ErrInvalidAmount)
	if err != nil {
		return nil, err
	}
	meta := Meta{ID: r.ID, Time: time.UnixMilli(r.Timestamp)}

	switch r.Kind {
	case KindTrade:
		price, err := positive(r.Price, ErrInvalidPrice)
		if err != nil {
			return nil, err
		}
		if r.Side != SideBuy && r.Side != SideSell {
			return nil, errors.Wrapf(ErrUnknownSide, "side %q", r.Side)
		}
		if r.Base == "" || r.Quote == "" {
			return nil, ErrEmptyAsset
		}
		return Trade{Meta: meta, Side: r.Side, Base: r.Base, Quote: r.Quote, Amount: amount, Price: price}, nil
	}

	if r.Asset == "" {
		return nil, ErrEmptyAsset
	}

	switch r.Kind {
	case KindStake:
		return Stake{Meta: meta, Asset: r.Asset, Amount: amount}, nil
	case KindUnstake:
		return Unstake{Meta: meta, Asset: r.Asset, Amount: amount}, nil
	case KindReward:
		return Reward{Meta: meta, Asset: r.Asset, Amount: amount}, nil
	case KindDeposit, KindWithdraw:
		if !r.Status.valid() {
			return nil, errors.Errorf("unknown status %q", r.Status)
		}
		if r.Kind == KindDeposit {
			return Deposit{Meta: meta, Asset: r.Asset, Amount: amount, Status: r.Status}, nil
		}
		return Withdraw{Meta: meta, Asset: r.Asset, Amount: amount, Status: r.Status}, nil
	default:
		return nil, errors.Errorf("unknown transaction kind %q", r.Kind)
	}
}

func positive(n json.Number, invalid error) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, invalid
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %q", n)
	}
	if !d.IsPositive() {
		return decimal.Zero, invalid
	}
	return d, nil
}
