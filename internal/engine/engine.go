// internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/birdwatch/internal/state"
	"github.com/user/birdwatch/internal/types"
)

// Engine orchestrates one polling cycle over the watch-list: it skips
// accounts in cooldown, queries the activity source under the rate limiter,
// decides novelty against the watch state, dispatches alerts, and drains
// operator commands between account checks.
//
// All collaborators are injected at construction; the engine holds no global
// state. It runs on a single logical thread: one cycle at a time, no parallel
// account checks, so rate-limit compliance never depends on coordination.
type Engine struct {
	source    types.ActivitySource
	alerts    types.AlertChannel
	watchlist types.WatchListStore
	limiter   *RateLimiter
	state     *state.WatchState
	now       func() time.Time

	mu sync.Mutex
	// lastAlerted is the account behind the most recent successful alert in
	// this process. It resolves the implicit "remove last" command target and
	// is not persisted: a restart loses the pointer.
	lastAlerted types.Account
	pending     []types.Command
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine wired to the given collaborators.
func New(source types.ActivitySource, alerts types.AlertChannel, watchlist types.WatchListStore, limiter *RateLimiter, st *state.WatchState, opts ...Option) *Engine {
	e := &Engine{
		source:    source,
		alerts:    alerts,
		watchlist: watchlist,
		limiter:   limiter,
		state:     st,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunCycle processes every eligible account once, in watch-list order. Per-
// account failures never abort the cycle; cancellation stops it between
// accounts, after the in-flight check finishes.
func (e *Engine) RunCycle(ctx context.Context, accounts []types.Account, window, cooldown time.Duration) types.CycleReport {
	report := types.CycleReport{CycleID: uuid.New().String()}
	log := slog.With("cycle_id", report.CycleID)

	now := e.now()
	eligible := make([]types.Account, 0, len(accounts))
	for _, account := range accounts {
		if e.state.IsInCooldown(account, cooldown, now) {
			report.SkippedCooldown++
			continue
		}
		eligible = append(eligible, account)
	}

	log.Info("cycle start",
		"accounts", len(accounts),
		"eligible", len(eligible),
		"on_cooldown", report.SkippedCooldown,
	)

	for _, account := range eligible {
		if ctx.Err() != nil {
			log.Info("cycle interrupted", "remaining", len(eligible)-report.Checked)
			break
		}

		// Operator commands are drained one per account check so a removal
		// can take effect mid-cycle.
		if removed := e.drainCommand(ctx, log); removed != "" {
			report.Removed++
			if removed == account {
				log.Info("skipping account removed by command", "account", account)
				continue
			}
		}

		e.checkAccount(ctx, account, window, &report, log)
	}

	return report
}

// checkAccount runs the Eligible -> Checking -> outcome path for one account.
func (e *Engine) checkAccount(ctx context.Context, account types.Account, window time.Duration, report *types.CycleReport, log *slog.Logger) {
	if err := e.limiter.WaitForSlot(ctx); err != nil {
		return
	}
	report.Checked++

	event, err := e.source.LatestEvent(ctx, account, window)
	if err != nil {
		report.Errored++
		if te, ok := types.AsThrottled(err); ok {
			e.limiter.PenalizeFor(te.RetryAfter)
			log.Warn("source throttled", "account", account, "retry_after", te.RetryAfter)
		} else {
			log.Warn("source query failed", "account", account, "error", err)
		}
		return
	}
	if event == nil {
		report.NoActivity++
		log.Debug("no recent activity", "account", account)
		return
	}

	if e.state.HasSeen(event.ID) {
		report.AlreadySeen++
		log.Info("event already alerted", "account", account, "event_id", event.ID)
		return
	}

	if err := e.alerts.Send(ctx, account, event); err != nil {
		// Not recorded as seen: a later cycle re-offers this event, giving
		// at-least-once delivery.
		report.Errored++
		log.Warn("alert dispatch failed", "account", account, "event_id", event.ID, "error", err)
		return
	}

	if err := e.state.RecordAlert(event.ID, account, e.now()); err != nil {
		log.Warn("state persist failed, in-memory state remains authoritative", "error", err)
	}
	e.mu.Lock()
	e.lastAlerted = account
	e.mu.Unlock()

	report.Alerted++
	log.Info("alert sent", "account", account, "event_id", event.ID, "link", event.Link)
}

// drainCommand consumes at most one pending operator command and returns the
// account it removed, if any.
func (e *Engine) drainCommand(ctx context.Context, log *slog.Logger) types.Account {
	cmd, ok := e.nextCommand(ctx, log)
	if !ok {
		return ""
	}
	return e.handleCommand(ctx, cmd, log)
}

// nextCommand pops one command from the buffer, refilling it from the alert
// channel when empty.
func (e *Engine) nextCommand(ctx context.Context, log *slog.Logger) (types.Command, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pending) == 0 {
		cmds, err := e.alerts.PollCommands(ctx)
		if err != nil {
			log.Warn("poll commands failed", "error", err)
			return types.Command{}, false
		}
		e.pending = cmds
	}
	if len(e.pending) == 0 {
		return types.Command{}, false
	}
	cmd := e.pending[0]
	e.pending = e.pending[1:]
	return cmd, true
}

// handleCommand resolves and applies one operator command, confirming the
// outcome through the alert channel. Unresolvable commands mutate nothing.
func (e *Engine) handleCommand(ctx context.Context, cmd types.Command, log *slog.Logger) types.Account {
	if cmd.Verb != types.VerbRemove {
		log.Warn("unknown command verb", "verb", cmd.Verb)
		e.confirm(ctx, log, fmt.Sprintf("Unknown command %q.", cmd.Verb))
		return ""
	}

	target := types.NormalizeAccount(cmd.Target)
	fromPointer := cmd.Target == types.TargetLastAlerted
	if fromPointer {
		e.mu.Lock()
		target = e.lastAlerted
		e.mu.Unlock()
		if target == "" {
			e.confirm(ctx, log, "No alert has been sent yet, nothing to remove.")
			return ""
		}
	}
	if target == "" {
		e.confirm(ctx, log, "Remove needs an account name.")
		return ""
	}

	removed, err := e.watchlist.Remove(target)
	if err != nil {
		log.Warn("watch-list removal failed", "account", target, "error", err)
		e.confirm(ctx, log, fmt.Sprintf("Could not remove @%s, try again later.", target))
		return ""
	}
	if !removed {
		e.confirm(ctx, log, fmt.Sprintf("@%s is not on the watch-list.", target))
		return ""
	}

	// The pointer is consumed by a successful implicit removal.
	if fromPointer {
		e.mu.Lock()
		e.lastAlerted = ""
		e.mu.Unlock()
	}

	log.Info("account removed via command", "account", target)
	e.confirm(ctx, log, fmt.Sprintf("Removed @%s from the watch-list.", target))
	return target
}

func (e *Engine) confirm(ctx context.Context, log *slog.Logger, text string) {
	if err := e.alerts.SendText(ctx, text); err != nil {
		log.Warn("command confirmation failed", "error", err)
	}
}
