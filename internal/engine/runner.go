// internal/engine/runner.go
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/birdwatch/internal/types"
)

// Runner drives the engine: it reloads the watch-list before each cycle,
// runs the cycle, and schedules the next one relative to cycle start, so a
// slow cycle shortens the idle gap and never extends it.
type Runner struct {
	engine    *Engine
	watchlist types.WatchListStore
	alerts    types.AlertChannel

	interval time.Duration
	window   time.Duration
	cooldown time.Duration

	notifyLifecycle bool
	onCycle         func(types.CycleReport)

	cancel context.CancelFunc
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLifecycleNotices sends start/stop notices through the alert channel.
func WithLifecycleNotices() RunnerOption {
	return func(r *Runner) { r.notifyLifecycle = true }
}

// WithCycleObserver registers a callback invoked after every cycle.
func WithCycleObserver(fn func(types.CycleReport)) RunnerOption {
	return func(r *Runner) { r.onCycle = fn }
}

// NewRunner creates a Runner that polls every interval with the given
// activity window and cooldown.
func NewRunner(e *Engine, watchlist types.WatchListStore, alerts types.AlertChannel, interval, window, cooldown time.Duration, opts ...RunnerOption) *Runner {
	r := &Runner{
		engine:    e,
		watchlist: watchlist,
		alerts:    alerts,
		interval:  interval,
		window:    window,
		cooldown:  cooldown,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run loops cycles until the context is cancelled or Shutdown is called.
// It returns the context error that ended the loop.
func (r *Runner) Run(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)
	defer r.cancel()

	if r.notifyLifecycle {
		r.notify(ctx, fmt.Sprintf(
			"Monitor started.\nCheck interval: %s\nActivity window: %s\nCooldown: %s",
			r.interval, r.window, r.cooldown,
		))
	}

	for {
		start := time.Now()

		accounts, err := r.watchlist.Load()
		if err != nil {
			slog.Error("load watch-list failed, skipping cycle", "error", err)
		} else {
			report := r.engine.RunCycle(ctx, accounts, r.window, r.cooldown)
			slog.Info("cycle complete",
				"cycle_id", report.CycleID,
				"checked", report.Checked,
				"alerted", report.Alerted,
				"already_seen", report.AlreadySeen,
				"no_activity", report.NoActivity,
				"errored", report.Errored,
				"skipped_cooldown", report.SkippedCooldown,
				"removed", report.Removed,
				"elapsed", time.Since(start),
			)
			if r.onCycle != nil {
				r.onCycle(report)
			}
		}

		// Next cycle is due interval after this cycle started.
		idle := r.interval - time.Since(start)
		if idle < 0 {
			idle = 0
		}
		timer := time.NewTimer(idle)
		select {
		case <-ctx.Done():
			timer.Stop()
			if r.notifyLifecycle {
				r.notifyShutdown()
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Shutdown requests a cooperative stop. The current account's in-flight
// operation finishes, remaining accounts in the cycle are skipped, and the
// loop exits.
func (r *Runner) Shutdown() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runner) notify(ctx context.Context, text string) {
	if err := r.alerts.SendText(ctx, text); err != nil {
		slog.Warn("lifecycle notice failed", "error", err)
	}
}

// notifyShutdown uses a short detached context: the run context is already
// cancelled when the stop notice goes out.
func (r *Runner) notifyShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.notify(ctx, "Monitor stopped.")
}
