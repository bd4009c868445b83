// internal/maintenance/maintenance.go
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/birdwatch/internal/state"
	"github.com/user/birdwatch/internal/types"
)

// Maintenance runs the periodic housekeeping job: compact the watch state
// down to its event budget and, when an alert channel is configured, post a
// short digest of the state to the chat.
type Maintenance struct {
	state     *state.WatchState
	watchlist types.WatchListStore
	alerts    types.AlertChannel
	maxEvents int
	cooldown  time.Duration
	schedule  string
	cron      *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a maintenance job on the given cron schedule. alerts may be nil
// to skip the digest message.
func New(st *state.WatchState, watchlist types.WatchListStore, alerts types.AlertChannel, maxEvents int, cooldown time.Duration, schedule string) *Maintenance {
	return &Maintenance{
		state:     st,
		watchlist: watchlist,
		alerts:    alerts,
		maxEvents: maxEvents,
		cooldown:  cooldown,
		schedule:  schedule,
		cron:      cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the schedule and starts the cron ticker.
func (m *Maintenance) Start() error {
	_, err := m.cron.AddFunc(m.schedule, func() {
		m.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", m.schedule, err)
	}
	slog.Info("scheduled maintenance", "schedule", m.schedule, "max_events", m.maxEvents)
	m.cron.Start()
	return nil
}

// Stop stops the cron ticker.
func (m *Maintenance) Stop() {
	m.cron.Stop()
}

// RunOnce performs a single maintenance pass. Errors are logged, never fatal;
// the next scheduled run retries.
func (m *Maintenance) RunOnce(ctx context.Context) {
	before := m.state.Snapshot(m.cooldown, time.Now())

	if err := m.state.Compact(m.maxEvents); err != nil {
		slog.Error("state compaction failed", "error", err)
		return
	}

	after := m.state.Snapshot(m.cooldown, time.Now())
	evicted := before.TrackedEvents - after.TrackedEvents
	slog.Info("maintenance run complete",
		"tracked_events", after.TrackedEvents,
		"evicted", evicted,
	)

	if m.alerts == nil {
		return
	}
	if err := m.alerts.SendText(ctx, m.digest(after, evicted)); err != nil {
		slog.Warn("maintenance digest delivery failed", "error", err)
	}
}

func (m *Maintenance) digest(st state.Stats, evicted int) string {
	watched := 0
	if accounts, err := m.watchlist.Load(); err == nil {
		watched = len(accounts)
	}
	return fmt.Sprintf(
		"🧹 <b>Maintenance</b>\nWatched accounts: %d\nTracked events: %d (evicted %d)\nAccounts in cooldown: %d",
		watched, st.TrackedEvents, evicted, st.AccountsInCooldown,
	)
}
