// Package metrics exposes a tiny read-only status endpoint on the
// coordinator: worker counts, cursor position, elapsed time. Off by
// default, enabled by an optional CLI argument, never required for the cracker
// protocol itself to function.
package metrics

import (
	"encoding/json"
	"net/http"
	"time"
)

// Source is the subset of coordinator.Server this package depends on,
// kept as an interface so internal/metrics never imports
// internal/coordinator (avoiding a cyclic-looking dependency and
// keeping the endpoint genuinely optional).
type Source interface {
	WorkerCount() int
	Progress() (next, total uint64)
	Winner() (candidate string, workerID string, found bool)
}

// Status is the JSON body served at GET /status.
type Status struct {
	Workers    int     `json:"workers"`
	NextIndex  uint64  `json:"next_index"`
	Keyspace   uint64  `json:"keyspace"`
	PercentRun float64 `json:"percent_done"`
	ElapsedSec float64 `json:"elapsed_seconds"`
	Found      bool    `json:"found"`
	Candidate  string  `json:"candidate,omitempty"`
	WorkerID   string  `json:"worker_id,omitempty"`
}

// Handler builds the single read-only status endpoint. started is the
// coordinator's own start time, used to report elapsed wall time.
func Handler(src Source, started time.Time) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		next, total := src.Progress()
		cand, workerID, found := src.Winner()

		st := Status{
			Workers:    src.WorkerCount(),
			NextIndex:  next,
			Keyspace:   total,
			ElapsedSec: time.Since(started).Seconds(),
			Found:      found,
			Candidate:  cand,
			WorkerID:   workerID,
		}
		if total > 0 {
			st.PercentRun = 100 * float64(next) / float64(total)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})
	return mux
}
