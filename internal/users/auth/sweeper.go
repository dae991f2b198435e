// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	stdctx "context"
	"log/slog"
	"sync"
	"time"

	"github.com/thejerf/abtime"

	"github.com/taibuivan/foundry/internal/platform/constants"
)

// sweepTimerID identifies the sweeper's wait on a manual clock.
const sweepTimerID = 1

// # Expiry Sweeper

// Sweeper periodically deletes expired sessions from a session store.
//
// It is an owned handle: Start launches exactly one goroutine and Stop cancels
// it and waits for it to exit. A failed pass is logged and retried on the next
// tick; it never stops the loop.
type Sweeper struct {
	deleter     ExpiredSessionDeleter
	logger      *slog.Logger
	clock       abtime.AbstractTime
	interval    time.Duration
	passTimeout time.Duration

	mu     sync.Mutex
	cancel stdctx.CancelFunc
	done   chan struct{}
}

// SweeperOption customises a [Sweeper].
type SweeperOption func(sweeper *Sweeper)

// WithSweepInterval overrides [DefaultSweepInterval].
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(sweeper *Sweeper) {
		if interval > 0 {
			sweeper.interval = interval
		}
	}
}

// WithSweepClock replaces the wall clock, mainly for tests.
func WithSweepClock(clock abtime.AbstractTime) SweeperOption {
	return func(sweeper *Sweeper) { sweeper.clock = clock }
}

// NewSweeper builds a stopped sweeper over deleter.
func NewSweeper(deleter ExpiredSessionDeleter, logger *slog.Logger, options ...SweeperOption) *Sweeper {
	sweeper := &Sweeper{
		deleter:     deleter,
		logger:      logger,
		clock:       abtime.NewRealTime(),
		interval:    DefaultSweepInterval,
		passTimeout: constants.SweepPassTimeout,
	}

	for _, option := range options {
		option(sweeper)
	}

	return sweeper
}

/*
Start launches the sweep loop. A sweeper runs at most once; later calls are no-ops.

Parameters:
  - context: context.Context (cancelling it stops the loop, like Stop)
*/
func (sweeper *Sweeper) Start(context stdctx.Context) {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()

	if sweeper.done != nil {
		return
	}

	loopCtx, cancel := stdctx.WithCancel(context)
	sweeper.cancel = cancel
	sweeper.done = make(chan struct{})

	go sweeper.run(loopCtx, sweeper.done)

	sweeper.logger.Info("session_sweeper_started", slog.Duration("interval", sweeper.interval))
}

// Stop cancels the loop and waits for it to return. It is safe to call more
// than once and on a sweeper that was never started.
func (sweeper *Sweeper) Stop() {
	sweeper.mu.Lock()
	cancel, done := sweeper.cancel, sweeper.done
	sweeper.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// Done is closed once the loop has exited. It is nil before Start.
func (sweeper *Sweeper) Done() <-chan struct{} {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()
	return sweeper.done
}

/*
SweepOnce runs a single pass immediately.

Parameters:
  - context: context.Context

Returns:
  - int64: Number of deleted sessions
  - error: Store failures
*/
func (sweeper *Sweeper) SweepOnce(context stdctx.Context) (int64, error) {
	passCtx, cancel := stdctx.WithTimeout(context, sweeper.passTimeout)
	defer cancel()

	return sweeper.deleter.DeleteExpired(passCtx, sweeper.clock.Now())
}

func (sweeper *Sweeper) run(context stdctx.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-context.Done():
			sweeper.logger.Info("session_sweeper_stopped")
			return
		case <-sweeper.clock.After(sweeper.interval, sweepTimerID):
		}

		deleted, err := sweeper.SweepOnce(context)
		switch {
		case err != nil && context.Err() != nil:
			// Shutdown interrupted the pass.
		case err != nil:
			sweeper.logger.Error("session_sweep_failed", slog.Any("error", err))
		case deleted > 0:
			sweeper.logger.Info("session_sweep_completed", slog.Int64("deleted", deleted))
		}
	}
}
