package mgmt

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics registers and serves the three Prometheus series the management
// server publishes for the dispatch engine: total requests, response status
// counts, and response latency. Grounded on app/mgmt/metrics.go's Metrics,
// trimmed of the low-cardinality route-pattern option since the dispatch
// engine already groups by plugin name, a naturally low-cardinality label.
type Metrics struct {
	totalRequests  *prometheus.CounterVec
	responseStatus *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers the counters.
func NewMetrics() *Metrics {
	res := &Metrics{}

	res.totalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valor_requests_total",
			Help: "Number of dispatched requests.",
		},
		[]string{"plugin"},
	)

	res.responseStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valor_response_status",
			Help: "Status of dispatch responses.",
		},
		[]string{"status"},
	)

	res.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "valor_response_time_seconds",
		Help:    "Duration of dispatched requests.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5},
	}, []string{"plugin"})

	if err := prometheus.Register(res.totalRequests); err != nil {
		log.Printf("[WARN] can't register valor_requests_total, %v", err)
	}
	if err := prometheus.Register(res.responseStatus); err != nil {
		log.Printf("[WARN] can't register valor_response_status, %v", err)
	}
	if err := prometheus.Register(res.httpDuration); err != nil {
		log.Printf("[WARN] can't register valor_response_time_seconds, %v", err)
	}

	return res
}

// Middleware wraps the HTTP transport's handler, recording per-plugin
// counters. The plugin name is read back from the x-valor-plugin response
// header the dispatch engine stamps, so it reflects what actually answered
// rather than the raw request path.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := newResponseWriter(w)
		start := time.Now()
		next.ServeHTTP(rw, r)

		plugin := rw.Header().Get("x-valor-plugin")
		if plugin == "" {
			plugin = "[unmatched]"
		}
		m.totalRequests.WithLabelValues(plugin).Inc()
		m.responseStatus.WithLabelValues(strconv.Itoa(rw.statusCode)).Inc()
		m.httpDuration.WithLabelValues(plugin).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack delegates to the underlying writer if it implements http.Hijacker.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	conn, buf, err := h.Hijack()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hijack connection: %w", err)
	}
	return conn, buf, nil
}
