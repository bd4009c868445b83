// internal/status/server.go
package status

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/user/birdwatch/internal/state"
	"github.com/user/birdwatch/internal/types"
)

// Server is a lightweight HTTP handler exposing monitor health and status.
type Server struct {
	state     *state.WatchState
	watchlist types.WatchListStore
	cooldown  time.Duration
	started   time.Time
	mux       *http.ServeMux

	mu         sync.RWMutex
	lastReport *types.CycleReport
	lastCycle  time.Time
}

// NewServer creates a status Server over the given stores.
func NewServer(st *state.WatchState, watchlist types.WatchListStore, cooldown time.Duration) *Server {
	s := &Server{
		state:     st,
		watchlist: watchlist,
		cooldown:  cooldown,
		started:   time.Now(),
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// SetLastReport records the most recent cycle outcome for /status. Safe to
// call from the polling loop.
func (s *Server) SetLastReport(report types.CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = &report
	s.lastCycle = time.Now()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// statusResponse is the JSON body for GET /status.
type statusResponse struct {
	UptimeSeconds      int64              `json:"uptime_seconds"`
	WatchedAccounts    int                `json:"watched_accounts"`
	TrackedEvents      int                `json:"tracked_events"`
	AccountsInCooldown int                `json:"accounts_in_cooldown"`
	LastCycleAt        string             `json:"last_cycle_at,omitempty"`
	LastCycle          *types.CycleReport `json:"last_cycle,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.watchlist.Load()
	if err != nil {
		slog.Error("load watchlist failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	stats := s.state.Snapshot(s.cooldown, time.Now())

	s.mu.RLock()
	resp := statusResponse{
		UptimeSeconds:      int64(time.Since(s.started).Seconds()),
		WatchedAccounts:    len(accounts),
		TrackedEvents:      stats.TrackedEvents,
		AccountsInCooldown: stats.AccountsInCooldown,
		LastCycle:          s.lastReport,
	}
	if !s.lastCycle.IsZero() {
		resp.LastCycleAt = s.lastCycle.Format(time.RFC3339)
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
