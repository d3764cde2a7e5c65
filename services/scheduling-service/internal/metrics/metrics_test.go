package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker/v2"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestEngineObservations(t *testing.T) {
	c := NewCollector()
	c.ObserveBooking("ok", true)
	c.ObserveBooking("slot_conflict", false)
	c.ObserveCancellation("unauthorized")
	c.ObserveSearch(17, 3*time.Millisecond, true)
	c.OutboxBatch(3)
	c.BreakerChanged(gobreaker.StateClosed, gobreaker.StateOpen)

	if got := value(t, c.BookingsTotal.WithLabelValues("ok", "chat")); got != 1 {
		t.Fatalf("chat bookings: %v", got)
	}
	if got := value(t, c.BookingsTotal.WithLabelValues("slot_conflict", "api")); got != 1 {
		t.Fatalf("api conflicts: %v", got)
	}
	if got := value(t, c.OutboxPublished); got != 3 {
		t.Fatalf("outbox published: %v", got)
	}
	if got := value(t, c.BreakerState); got != float64(gobreaker.StateOpen) {
		t.Fatalf("breaker state: %v", got)
	}
}

func TestRouteUsesMuxPattern(t *testing.T) {
	c := NewCollector()
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/v1/appointments/{id}/cancel", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := c.Route(mux)

	for _, id := range []string{"a", "b", "c"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/v1/appointments/"+id+"/cancel", nil))
	}
	got := value(t, c.RequestsTotal.WithLabelValues(http.MethodPut, "PUT /api/v1/appointments/{id}/cancel", "204"))
	if got != 3 {
		t.Fatalf("expected 3 requests under one route label, got %v", got)
	}

	rw := httptest.NewRecorder()
	c.Handler().ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rw.Body)
	if !strings.Contains(string(body), "scheduling_http_requests_total") {
		t.Fatal("expected exposition to include request counter")
	}
}
