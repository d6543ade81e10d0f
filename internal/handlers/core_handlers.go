package handlers

import (
	"net/http"
	"time"
)

// HandleHealth reports liveness plus a few cheap runtime numbers.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":       "healthy",
			"active_calls": s.Calls.ActiveCallCount(),
			"metrics":      s.Metrics.Snapshot(),
			"server_time":  time.Now(),
		})
	}
}
