package api

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse is the body of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler handles GET /api/healthz. With a nil pinger it always
// reports ok; otherwise a failed ping within two seconds yields 503.
func NewHealthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
				return
			}
		}
		WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}
