package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsUpdates(t *testing.T) {
	m := New()

	m.ObservePass("config-changed", 2*time.Second, nil)
	m.ObservePass("start", time.Second, errors.New("boom"))
	m.IncAction("StartService", nil)
	m.IncAction("StartService", errors.New("boom"))
	m.IncProbe("unreachable")
	m.IncNotification(nil)
	m.SetStatusLevel("blocked")
	m.SetLastSuccessfulPassTimestamp(time.Unix(100, 0))

	if got := testutil.ToFloat64(m.passesTotal.WithLabelValues("config-changed", "ok")); got != 1 {
		t.Fatalf("expected ok passes 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.passesTotal.WithLabelValues("start", "error")); got != 1 {
		t.Fatalf("expected failed passes 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.actionsTotal.WithLabelValues("StartService", "error")); got != 1 {
		t.Fatalf("expected failed actions 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.probesTotal.WithLabelValues("unreachable")); got != 1 {
		t.Fatalf("expected unreachable probes 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.notificationsTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected notifications 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastSuccessfulPassGauge); got != 100 {
		t.Fatalf("expected last successful pass 100, got %v", got)
	}
	if count := testutil.CollectAndCount(m.passDurationSeconds); count == 0 {
		t.Fatalf("expected pass duration histogram to be collected")
	}
}

func TestSetStatusLevelIsExclusive(t *testing.T) {
	m := New()

	m.SetStatusLevel("maintenance")
	m.SetStatusLevel("active")

	if got := testutil.ToFloat64(m.statusLevel.WithLabelValues("active")); got != 1 {
		t.Fatalf("expected active 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.statusLevel.WithLabelValues("maintenance")); got != 0 {
		t.Fatalf("expected maintenance 0, got %v", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.IncProbe("reported")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "craft_sentinel_status_probes_total") {
		t.Fatalf("expected probe counter in output")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObservePass("start", time.Second, nil)
	m.IncAction("open_port", nil)
	m.SetStatusLevel("active")
	m.IncProbe("reported")
	m.IncNotification(nil)
	m.SetLastSuccessfulPassTimestamp(time.Now())
}
