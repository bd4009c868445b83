// internal/state/watchstate.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/birdwatch/internal/types"
)

// WatchState is the persisted record of which events have already been
// alerted on and when each account last triggered an alert. It is written
// via atomic replace after every mutation so an unclean exit never loses an
// already-recorded alert or leaves a partially written file.
//
// The in-memory copy stays authoritative for the life of the process: a
// failed write degrades durability, not correctness, and the next mutation
// retries persistence.
type WatchState struct {
	path string
	mu   sync.RWMutex

	seen      map[string]struct{}
	order     []string // seen event IDs in insertion order, oldest first
	lastAlert map[types.Account]time.Time
}

// watchStateFile is the on-disk layout: a single JSON record holding the
// seen-event set (insertion-ordered) and the per-account last-alert map.
type watchStateFile struct {
	SeenEventIDs []string                    `json:"seen_event_ids"`
	LastAlertAt  map[types.Account]time.Time `json:"last_alert_at"`
}

// LoadWatchState reads the state file at path, returning empty state if the
// file does not exist. A malformed file is an error; the caller decides
// whether that halts startup.
func LoadWatchState(path string) (*WatchState, error) {
	s := &WatchState{
		path:      path,
		seen:      make(map[string]struct{}),
		lastAlert: make(map[types.Account]time.Time),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var file watchStateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal state file %s: %w", path, err)
	}

	for _, id := range file.SeenEventIDs {
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.order = append(s.order, id)
	}
	if file.LastAlertAt != nil {
		s.lastAlert = file.LastAlertAt
	}
	return s, nil
}

// Path returns the file path used by this store.
func (s *WatchState) Path() string {
	return s.path
}

// HasSeen reports whether an alert for the given event has already been
// dispatched. Pure lookup, no side effect.
func (s *WatchState) HasSeen(eventID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[eventID]
	return ok
}

// RecordAlert marks an event as alerted and stamps the account's last-alert
// time, then persists the aggregate atomically. Idempotent: recording the
// same event twice only refreshes the last-alert timestamp.
//
// The in-memory mutation is applied before the write, so a persistence error
// leaves current-session behavior intact; the caller should log it and move on.
func (s *WatchState) RecordAlert(eventID string, account types.Account, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[eventID]; !ok {
		s.seen[eventID] = struct{}{}
		s.order = append(s.order, eventID)
	}
	s.lastAlert[account] = now

	return s.save()
}

// IsInCooldown reports whether the account alerted within the last cooldown
// duration. The boundary is exclusive: at exactly now = lastAlert + cooldown
// the account is eligible again.
func (s *WatchState) IsInCooldown(account types.Account, cooldown time.Duration, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last, ok := s.lastAlert[account]
	if !ok {
		return false
	}
	return now.Sub(last) < cooldown
}

// CooldownRemaining returns how much cooldown time is left for the account,
// or false if the account is not in cooldown.
func (s *WatchState) CooldownRemaining(account types.Account, cooldown time.Duration, now time.Time) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last, ok := s.lastAlert[account]
	if !ok {
		return 0, false
	}
	remaining := cooldown - now.Sub(last)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// LastAlertAt returns the last-alert timestamp for the account, if any.
func (s *WatchState) LastAlertAt(account types.Account) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	last, ok := s.lastAlert[account]
	return last, ok
}

// Compact evicts seen-event IDs down to maxEvents, dropping the oldest by
// insertion order (deterministic bounded FIFO). Last-alert timestamps are
// never evicted; stale entries for unwatched accounts are harmless.
func (s *WatchState) Compact(maxEvents int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxEvents < 0 || len(s.order) <= maxEvents {
		return nil
	}

	evict := s.order[:len(s.order)-maxEvents]
	for _, id := range evict {
		delete(s.seen, id)
	}
	s.order = append([]string(nil), s.order[len(s.order)-maxEvents:]...)

	return s.save()
}

// Stats is a point-in-time summary of the watch state.
type Stats struct {
	TrackedEvents      int
	AccountsWithAlerts int
	AccountsInCooldown int
}

// Snapshot computes state statistics against the given cooldown duration.
func (s *WatchState) Snapshot(cooldown time.Duration, now time.Time) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		TrackedEvents:      len(s.order),
		AccountsWithAlerts: len(s.lastAlert),
	}
	for _, last := range s.lastAlert {
		if now.Sub(last) < cooldown {
			st.AccountsInCooldown++
		}
	}
	return st
}

// save writes the aggregate to disk using atomic write (temp file + rename).
// Caller must hold the lock.
func (s *WatchState) save() error {
	file := watchStateFile{
		SeenEventIDs: s.order,
		LastAlertAt:  s.lastAlert,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp state file: %w", err)
	}
	return nil
}
