package leanmqadmin

import (
	"net/http"

	"github.com/leanmq-go/leanmq"
)

// HealthzHandler handles GET /healthz. Always returns 200 OK.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler handles GET /readyz: it pings the backend Gateway through
// svc and reports 503 with Retry-After if the backend is unreachable.
func ReadyzHandler(svc *leanmq.QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Ping(r.Context()); err != nil {
			w.Header().Set("Retry-After", "5")
			respondError(w, http.StatusServiceUnavailable, "backend unavailable")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
