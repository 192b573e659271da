// Package schedule exposes the latest finalized plan over HTTP for dashboards
// and debugging. The executor consumes MQTT; this API is read-only.
package schedule

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/solbatt/solbatt/core/model"
)

// Store holds the most recent plan. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	plan *model.Plan
}

// NewStore creates an empty store.
func NewStore() *Store { return &Store{} }

// Set replaces the stored plan.
func (s *Store) Set(p *model.Plan) {
	s.mu.Lock()
	s.plan = p
	s.mu.Unlock()
}

// Latest returns the stored plan, or nil before the first run.
func (s *Store) Latest() *model.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan
}

// NewHandler returns an HTTP handler exposing the latest plan via
// GET /api/schedule.
func NewHandler(store *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		plan := store.Latest()
		if plan == nil {
			http.Error(w, "no plan generated yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(plan); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewHealthHandler reports liveness and the age of the latest plan.
func NewHealthHandler(store *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		type health struct {
			Status      string     `json:"status"`
			LastRunID   string     `json:"last_run_id,omitempty"`
			GeneratedAt *time.Time `json:"generated_at,omitempty"`
		}
		h := health{Status: "ok"}
		if plan := store.Latest(); plan != nil {
			h.LastRunID = plan.RunID
			h.GeneratedAt = &plan.GeneratedAt
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(h); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
