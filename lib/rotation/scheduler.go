// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rotation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/secretkeeper/secretkeeper/lib/clock"
)

// DefaultTick is the scheduler's tick interval when none is given.
const DefaultTick = time.Hour

// State is one of the scheduler's three observable states.
type State int

const (
	StateStopped State = iota
	StateRunning
	StateRotating
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateRotating:
		return "rotating"
	default:
		return "unknown"
	}
}

// Callback is invoked with the results of one due-rotation sweep,
// whether or not it found anything due. The daemon uses this to reload
// its secret map and scrubber and to append to its rotation log.
type Callback func(results []Result)

// Scheduler wakes on a fixed tick, asks a [Manager] for due rotations,
// and runs them — sequentially, never in parallel — delivering results
// to an optional [Callback]. Start is idempotent; Stop waits for any
// in-flight rotation sweep to finish before returning.
type Scheduler struct {
	manager  *Manager
	clock    clock.Clock
	tick     time.Duration
	callback Callback
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	ticker  *clock.Ticker
	stop    chan struct{}
	stopped chan struct{}
}

// NewScheduler returns a Scheduler that rotates due secrets from
// manager every tick, using clk for all timing. tick of zero means
// [DefaultTick]. callback may be nil.
func NewScheduler(manager *Manager, clk clock.Clock, tick time.Duration, callback Callback, logger *slog.Logger) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		manager:  manager,
		clock:    clk,
		tick:     tick,
		callback: callback,
		logger:   logger,
		state:    StateStopped,
	}
}

// State reports the scheduler's current observable state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins the periodic tick loop in a background goroutine.
// Calling Start on an already-running Scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.ticker = s.clock.NewTicker(s.tick)
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	ticker, stop, stopped := s.ticker, s.stop, s.stopped
	s.mu.Unlock()

	go s.loop(ctx, ticker, stop, stopped)
}

// Stop cancels any scheduled future tick and waits for an in-flight
// rotation sweep to complete before returning. Calling Stop on an
// already-stopped Scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	stop, stopped := s.stop, s.stopped
	s.mu.Unlock()

	close(stop)
	<-stopped
}

func (s *Scheduler) loop(ctx context.Context, ticker *clock.Ticker, stop, stopped chan struct{}) {
	defer close(stopped)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			s.mu.Lock()
			s.state = StateStopped
			s.mu.Unlock()
			return
		case <-ctx.Done():
			s.mu.Lock()
			s.state = StateStopped
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *Scheduler) runSweep(ctx context.Context) {
	s.mu.Lock()
	s.state = StateRotating
	s.mu.Unlock()

	results := s.manager.RunDue(ctx, s.clock.Now())
	if len(results) > 0 {
		s.logger.Info("rotation sweep completed", "rotated", len(results))
	}
	if s.callback != nil {
		s.callback(results)
	}

	s.mu.Lock()
	if s.state == StateRotating {
		s.state = StateRunning
	}
	s.mu.Unlock()
}
