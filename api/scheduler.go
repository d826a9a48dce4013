/*
scheduler.go - Automated hanging-shift reconciliation scheduler

PURPOSE:
  Periodically sweeps the roster for shifts left open across a day
  boundary and force-closes them at their day's midnight. The sweep is
  the same one the session manager runs inline before evaluating a user;
  the scheduler just guarantees it also happens for users who never come
  back.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - First sweep fires immediately on Start
  - A sweep within the five-minute grace window past midnight is a no-op
    for that day's shifts, so interval choice does not affect correctness

USAGE:
  scheduler := NewReconcileScheduler(sessions.Reconciler(), log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - duty/reconcile.go: The sweep itself
  - handlers.go: TriggerReconcile endpoint (manual sweep)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lssd/dutyclock/duty"
)

// ReconcileScheduler runs the hanging-shift sweep on a timer.
type ReconcileScheduler struct {
	Reconciler    *duty.Reconciler
	CheckInterval time.Duration
	Log           zerolog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconcileScheduler creates a scheduler with the default interval.
func NewReconcileScheduler(rec *duty.Reconciler, log zerolog.Logger) *ReconcileScheduler {
	return &ReconcileScheduler{
		Reconciler:    rec,
		CheckInterval: 10 * time.Minute,
		Log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *ReconcileScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)
	go rs.run()

	rs.Log.Info().Dur("interval", rs.CheckInterval).Msg("reconcile scheduler started")
}

// Stop stops the scheduler and waits for an in-flight sweep to finish.
func (rs *ReconcileScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.Log.Info().Msg("reconcile scheduler stopped")
	}
}

func (rs *ReconcileScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.sweep()

	for {
		select {
		case <-rs.ticker.C:
			rs.sweep()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReconcileScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	closed, err := rs.Reconciler.SweepAll(ctx)
	if err != nil {
		rs.Log.Error().Err(err).Int("closed", closed).Msg("reconcile sweep finished with errors")
		return
	}
	if closed > 0 {
		rs.Log.Info().Int("closed", closed).Msg("reconcile sweep closed hanging shifts")
	}
}
