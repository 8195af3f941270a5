// Package events fans portfolio snapshots out to live subscribers and records
// them in the snapshot log.
package events

import (
	"context"
	"sync"

	"github.com/vadiminshakov/somtrade/internal/domain"
	"go.uber.org/zap"
)

// BalanceBroadcaster fans out snapshots to all subscribers via buffered channels.
type BalanceBroadcaster struct {
	mu     sync.RWMutex
	subs   map[chan domain.BalanceSnapshot]struct{}
	buffer int
}

// NewBalanceBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBalanceBroadcaster(buffer int) *BalanceBroadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &BalanceBroadcaster{
		subs:   make(map[chan domain.BalanceSnapshot]struct{}),
		buffer: buffer,
	}
}

// Publish sends the snapshot to all subscribers, dropping if a reader is slow.
func (b *BalanceBroadcaster) Publish(s domain.BalanceSnapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- s:
		default:
			// slow consumer, it will catch up from the log
		}
	}
}

// Subscribe returns a channel that receives snapshots until Unsubscribe is called.
func (b *BalanceBroadcaster) Subscribe() chan domain.BalanceSnapshot {
	ch := make(chan domain.BalanceSnapshot, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *BalanceBroadcaster) Unsubscribe(ch chan domain.BalanceSnapshot) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of live subscriptions.
func (b *BalanceBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// SnapshotSaver appends snapshots to durable storage.
type SnapshotSaver interface {
	Save(snapshot domain.BalanceSnapshot) error
}

// Recorder turns ledger changes into balance snapshots, saves them and
// publishes them. It satisfies ledger.Observer.
type Recorder struct {
	saver       SnapshotSaver
	broadcaster *BalanceBroadcaster
	l           *zap.Logger
}

// NewRecorder creates a Recorder. Either saver or broadcaster may be nil.
func NewRecorder(saver SnapshotSaver, broadcaster *BalanceBroadcaster, l *zap.Logger) *Recorder {
	if l == nil {
		l = zap.NewNop()
	}
	return &Recorder{saver: saver, broadcaster: broadcaster, l: l}
}

// LedgerChanged records the state after tx.
func (r *Recorder) LedgerChanged(_ context.Context, tx domain.Transaction, snapshot domain.Portfolio) {
	s := domain.NewBalanceSnapshot(tx, snapshot)
	if r.saver != nil {
		if err := r.saver.Save(s); err != nil {
			r.l.Warn("failed to save balance snapshot", zap.String("tx", s.TxID), zap.Error(err))
		}
	}
	if r.broadcaster != nil {
		r.broadcaster.Publish(s)
	}
}
