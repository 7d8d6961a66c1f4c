package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "axix",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "axix",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "axix",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	transactionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "axix",
			Subsystem: "transactions",
			Name:      "created_total",
			Help:      "Total number of transactions created.",
		},
		[]string{"kind"},
	)

	transactionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "axix",
			Subsystem: "transactions",
			Name:      "transitions_total",
			Help:      "Total number of attempted status transitions.",
		},
		[]string{"kind", "action", "outcome"},
	)

	accrualRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "axix",
			Subsystem: "accrual",
			Name:      "credits_total",
			Help:      "Total number of daily profit credits applied.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		transactionsCreated,
		transactionTransitions,
		accrualRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordTransactionCreated counts a successfully created transaction.
func RecordTransactionCreated(kind string) {
	transactionsCreated.WithLabelValues(kind).Inc()
}

// RecordTransition counts an attempted status transition.
func RecordTransition(kind, action, outcome string) {
	transactionTransitions.WithLabelValues(kind, action, outcome).Inc()
}

// RecordAccrual counts a daily profit credit attempt.
func RecordAccrual(success bool) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	accrualRuns.WithLabelValues(outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses resource ids so metric label cardinality stays
// bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "plans":
		if len(parts) >= 2 && parts[1] != "recommend" {
			if len(parts) == 3 {
				return "/plans/:id/" + parts[2]
			}
			return "/plans/:id"
		}
		return "/" + strings.Join(parts, "/")
	case "transactions":
		if len(parts) == 2 {
			return "/transactions/:id"
		}
		if len(parts) == 3 {
			return "/transactions/:id/" + parts[2]
		}
		return "/transactions"
	case "users":
		if len(parts) == 3 {
			return "/users/:id/" + parts[2]
		}
		return "/users"
	default:
		return "/" + parts[0]
	}
}
