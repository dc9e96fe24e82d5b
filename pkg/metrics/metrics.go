// Package metrics holds the Prometheus collectors of the server and the agent.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vce_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vce_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// Resolutions counts parameter map computations by outcome
	// (ok, unknown_source, error).
	Resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vce_resolutions_total",
			Help: "Parameter map computations by outcome.",
		},
		[]string{"outcome"},
	)

	// WatchSubscribers is the number of open websocket watchers.
	WatchSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vce_watch_subscribers",
		Help: "Open websocket parameter watchers.",
	})

	// AgentPolls counts agent polls by result (ok, not_found, error).
	AgentPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vce_agent_polls_total",
			Help: "Agent polls of the parameter server by result.",
		},
		[]string{"result"},
	)

	// AgentApplies counts batches applied after a change.
	AgentApplies = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vce_agent_applies_total",
		Help: "Changed parameter maps applied by the agent.",
	})

	// AgentShapingFailures counts per-destination shaping command failures.
	AgentShapingFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vce_agent_shaping_failures_total",
		Help: "Failed per-destination shaping commands.",
	})
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(Resolutions)
	prometheus.MustRegister(WatchSubscribers)
	prometheus.MustRegister(AgentPolls)
	prometheus.MustRegister(AgentApplies)
	prometheus.MustRegister(AgentShapingFailures)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware records request count and duration. Paths are labelled with
// the chi route pattern so per-host URLs share one series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
