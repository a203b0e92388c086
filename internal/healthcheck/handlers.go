package healthcheck

import (
	"encoding/json"
	"net/http"
	"time"
)

// Probe is the body served by the health endpoints.
type Probe struct {
	Status string   `json:"status"`
	Pass   Snapshot `json:"pass"`
}

const (
	probeOK          = "ok"
	probeUnavailable = "unavailable"
)

// HealthHandler serves /healthz: OK while passes keep landing within two
// poll intervals.
func HealthHandler(tracker *Tracker, pollInterval time.Duration) http.HandlerFunc {
	return probeHandler(tracker, func(t *Tracker) bool {
		return t.Healthy(time.Now().UTC(), pollInterval)
	})
}

// ReadyHandler serves /readyz: OK once a pass has succeeded.
func ReadyHandler(tracker *Tracker) http.HandlerFunc {
	return probeHandler(tracker, (*Tracker).Ready)
}

func probeHandler(tracker *Tracker, check func(*Tracker) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		code := http.StatusServiceUnavailable
		body := Probe{Status: probeUnavailable}
		if tracker != nil {
			body.Pass = tracker.Snapshot()
			if check(tracker) {
				code = http.StatusOK
				body.Status = probeOK
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		if r.Method == http.MethodHead {
			return
		}
		_ = json.NewEncoder(w).Encode(body)
	}
}
