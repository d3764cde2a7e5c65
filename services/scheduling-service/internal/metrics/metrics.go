package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
)

const namespace = "scheduling"

// Collector owns its registry so several can coexist in one test binary.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	BookingsTotal      *prometheus.CounterVec
	CancellationsTotal *prometheus.CounterVec
	SearchProbes       prometheus.Histogram
	SearchDuration     *prometheus.HistogramVec

	OutboxPublished prometheus.Counter
	BreakerState    prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),

		BookingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome (ok or error kind) and channel.",
		}, []string{"outcome", "channel"}),

		CancellationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome.",
		}, []string{"outcome"}),

		SearchProbes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "search_probes",
			Help:      "Store lookups per next-available search.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),

		SearchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "search_duration_seconds",
			Help:      "Next-available search latency by result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"found"}),

		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Domain events relayed to Kafka.",
		}),

		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "breaker_state",
			Help:      "Appointment store circuit breaker: 0 closed, 1 half-open, 2 open.",
		}),
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveBooking(outcome string, viaChat bool) {
	channel := "api"
	if viaChat {
		channel = "chat"
	}
	c.BookingsTotal.WithLabelValues(outcome, channel).Inc()
}

func (c *Collector) ObserveCancellation(outcome string) {
	c.CancellationsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveSearch(probes int, elapsed time.Duration, found bool) {
	c.SearchProbes.Observe(float64(probes))
	c.SearchDuration.WithLabelValues(strconv.FormatBool(found)).Observe(elapsed.Seconds())
}

func (c *Collector) OutboxBatch(n int) {
	c.OutboxPublished.Add(float64(n))
}

func (c *Collector) BreakerChanged(_, to gobreaker.State) {
	c.BreakerState.Set(float64(to))
}

// Route labels requests with the matched ServeMux pattern instead of the raw
// path. It must wrap the mux directly: the mux records r.Pattern on the
// request it was handed.
func (c *Collector) Route(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		c.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		c.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
