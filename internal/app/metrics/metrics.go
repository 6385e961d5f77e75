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
			Namespace: "backoffice",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "backoffice",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	billingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "billing",
			Name:      "runs_total",
			Help:      "Total number of billing drawdown runs.",
		},
		[]string{"trigger", "success"},
	)

	billingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "backoffice",
			Subsystem: "billing",
			Name:      "run_duration_seconds",
			Help:      "Duration of billing drawdown runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"trigger"},
	)

	drawdownsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "billing",
			Name:      "drawdowns_total",
			Help:      "Total number of drawdown transactions created.",
		},
		[]string{"frequency"},
	)

	claimExports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "claims",
			Name:      "exports_total",
			Help:      "Total number of claim CSV exports.",
		},
		[]string{"success"},
	)

	documentsRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "documents",
			Name:      "rendered_total",
			Help:      "Total number of contract documents rendered.",
		},
		[]string{"success"},
	)

	emailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "mailer",
			Name:      "emails_total",
			Help:      "Total number of outbound email attempts.",
		},
		[]string{"type", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		billingRuns,
		billingDuration,
		drawdownsCreated,
		claimExports,
		documentsRendered,
		emailsSent,
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

// RecordBillingRun records metrics for a complete drawdown run.
func RecordBillingRun(trigger string, duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	billingRuns.WithLabelValues(trigger, boolLabel(success)).Inc()
	billingDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

// RecordDrawdown records a single created drawdown transaction.
func RecordDrawdown(frequency string) {
	if frequency == "" {
		frequency = "unknown"
	}
	drawdownsCreated.WithLabelValues(frequency).Inc()
}

// RecordClaimExport records a claim CSV export attempt.
func RecordClaimExport(success bool) {
	claimExports.WithLabelValues(boolLabel(success)).Inc()
}

// RecordDocumentRender records a contract PDF render attempt.
func RecordDocumentRender(success bool) {
	documentsRendered.WithLabelValues(boolLabel(success)).Inc()
}

// RecordEmail records an outbound email attempt by notification type.
func RecordEmail(notificationType string, success bool) {
	if notificationType == "" {
		notificationType = "unknown"
	}
	emailsSent.WithLabelValues(notificationType, boolLabel(success)).Inc()
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
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

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "api" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/api"
	}
	resource := parts[1]
	if len(parts) == 2 {
		return "/api/" + resource
	}
	if len(parts) == 3 {
		return "/api/" + resource + "/:id"
	}
	return "/api/" + resource + "/:id/" + parts[3]
}
