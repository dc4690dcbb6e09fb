package observability

import (
	"encoding/json"
	"net/http"
)

// HealthHandler returns a liveness handler.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
}

// StatusHandler serves the JSON encoding of whatever status returns,
// computed per request.
func StatusHandler(status func() any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// Mux returns the monitoring mux with /metrics, /health, and /status.
func Mux(status func() any) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.Handle("/health", HealthHandler())
	mux.Handle("/status", StatusHandler(status))
	return mux
}
