// internal/types/types.go
package types

import (
	"context"
	"strings"
	"time"
)

// Account is the case-normalized name of a watched entity. It is the
// monitoring key; display names and other profile attributes are collaborator
// concerns.
type Account string

// NormalizeAccount lowercases a raw name and strips whitespace and a leading
// "@" so that the same account always maps to the same key.
func NormalizeAccount(name string) Account {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "@")
	return Account(strings.ToLower(name))
}

// Event is one observed unit of activity from an account. Events are never
// mutated once observed; ID is stable per account+activity and serves as the
// dedup key.
type Event struct {
	ID         string    `json:"id"`
	Account    Account   `json:"account"`
	OccurredAt time.Time `json:"occurred_at"`
	Summary    string    `json:"summary"`
	Link       string    `json:"link"`
}

// Command verbs and targets accepted from the alert channel.
const (
	VerbRemove = "remove"

	// TargetLastAlerted resolves to whichever account most recently
	// triggered a successful alert in the current process.
	TargetLastAlerted = "last"
)

// Command is an inbound operator instruction received through the alert
// channel.
type Command struct {
	Verb   string
	Target string
}

// CycleReport summarizes one polling cycle over the watch-list.
type CycleReport struct {
	CycleID         string `json:"cycle_id"`
	Checked         int    `json:"checked"`
	Alerted         int    `json:"alerted"`
	AlreadySeen     int    `json:"already_seen"`
	NoActivity      int    `json:"no_activity"`
	Errored         int    `json:"errored"`
	SkippedCooldown int    `json:"skipped_cooldown"`
	Removed         int    `json:"removed"`
}

// ActivitySource returns the most recent event for an account if it occurred
// within the window, or nil if there is none. Throttling by the upstream API
// is reported as a *ThrottledError.
type ActivitySource interface {
	LatestEvent(ctx context.Context, account Account, window time.Duration) (*Event, error)
}

// AlertChannel delivers alerts and surfaces pending operator commands.
type AlertChannel interface {
	Send(ctx context.Context, account Account, event *Event) error
	SendText(ctx context.Context, text string) error

	// PollCommands returns any pending inbound commands without blocking.
	// An empty slice means nothing is pending.
	PollCommands(ctx context.Context) ([]Command, error)
}

// WatchListStore is the durable ordered list of monitored accounts.
type WatchListStore interface {
	Load() ([]Account, error)
	Remove(account Account) (bool, error)
}
