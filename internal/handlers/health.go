package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/tecnm-sys/apiserver/internal/logger"
)

const healthTimeout = 2 * time.Second

type pinger interface {
	PingContext(ctx context.Context) error
}

type HealthResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// Health reports whether the database is reachable.
func Health(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.FromRequest(r).Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Success: true, Status: "ok"})
	}
}
