// Package poller runs a function on a fixed interval until it is stopped.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrAlreadyStarted is returned by Start on a running task.
var ErrAlreadyStarted = errors.New("poller already started")

// Task is a cancellable periodic job. Run is called once on Start and then on every tick.
// A Task can be started once.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
	Logger   *zap.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Start launches the loop in a goroutine. The loop ends when ctx is cancelled or Stop is called.
func (t *Task) Start(ctx context.Context) error {
	if t.Run == nil {
		return errors.Errorf("poller %s: run func is nil", t.Name)
	}
	if t.Interval <= 0 {
		return errors.Errorf("poller %s: interval must be positive", t.Name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true

	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})

	go t.loop(ctx)

	return nil
}

// Stop cancels the loop and waits for it to exit. Safe to call more than once, or before Start.
func (t *Task) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed once the loop has exited. Nil before Start.
func (t *Task) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.done
}

func (t *Task) loop(ctx context.Context) {
	defer close(t.done)

	logger := t.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("task", t.Name))

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	logger.Info("starting poll loop", zap.Duration("interval", t.Interval))

	t.tick(ctx, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info("poll loop stopped")
			return
		case <-ticker.C:
			t.tick(ctx, logger)
		}
	}
}

func (t *Task) tick(ctx context.Context, logger *zap.Logger) {
	if err := t.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		logger.Error("poll failed", zap.Error(err))
	}
}
