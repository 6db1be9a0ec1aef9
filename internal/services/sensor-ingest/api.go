package sensor_ingest

import (
	"encoding/json"
	"net/http"
	"time"
)

// NewHTTPMux exposes /healthz and /stats.
func NewHTTPMux(svc *Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	// GET /stats: message counters and the time of the last stored reading.
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		type outT struct {
			Stats
			LastStoredAt string `json:"last_stored_at,omitempty"`
		}
		out := outT{Stats: svc.Stats()}
		if t := svc.LastStoredAt(); !t.IsZero() {
			out.LastStoredAt = t.UTC().Format(time.RFC3339)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	return mux
}
