package domain

import "time"

// BalanceSnapshot portfolio state after a ledger mutation.
// Uses string fields to avoid float precision issues when consumed by web/UI layers.
type BalanceSnapshot struct {
	Timestamp time.Time         `json:"ts"`
	TxID      string            `json:"tx_id"`
	Kind      Kind              `json:"kind"`
	Balances  map[string]string `json:"balances"`
	Staked    map[string]string `json:"staked,omitempty"`
}

// NewBalanceSnapshot captures p after tx.
func NewBalanceSnapshot(tx Transaction, p Portfolio) BalanceSnapshot {
	s := BalanceSnapshot{
		Timestamp: tx.When(),
		TxID:      tx.TxID(),
		Kind:      tx.Kind(),
		Balances:  make(map[string]string, len(p.Balances)),
	}
	for asset, v := range p.Balances {
		s.Balances[asset] = v.String()
	}
	if len(p.Staked) > 0 {
		s.Staked = make(map[string]string, len(p.Staked))
		for asset, pos := range p.Staked {
			s.Staked[asset] = pos.Total().String()
		}
	}
	return s
}

// BalanceSnapshotRecord bundles a snapshot with its WAL index.
type BalanceSnapshotRecord struct {
	Index    uint64
	Snapshot BalanceSnapshot
}
