// Package metrics exports ledger metrics in the Prometheus format on a
// dedicated listener.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruteri/vaccine-ledger/interfaces"
)

// MetricsServer owns a private registry and the HTTP server exposing it at /metrics.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	Ledger *LedgerMetrics
	HTTP   *HTTPMetrics
}

// New creates the registry with process and Go runtime collectors, plus the
// ledger and HTTP metric families under namespace.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	namespace = sanitizeNamespace(namespace)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		registry: registry,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		Ledger: newLedgerMetrics(registry, namespace),
		HTTP:   newHTTPMetrics(registry, namespace),
	}, nil
}

// Registry returns the registry backing this server.
func (m *MetricsServer) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// LedgerMetrics records operation outcomes and ledger sizes.
// It satisfies ledger.Observer.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec

	height      prometheus.Gauge
	researchers prometheus.Gauge
	submissions prometheus.Gauge
	validators  prometheus.Gauge
}

func newLedgerMetrics(registry prometheus.Registerer, namespace string) *LedgerMetrics {
	factory := promauto.With(registry)
	return &LedgerMetrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger operations, labeled by operation and result code",
		}, []string{"operation", "result"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of ledger operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		height: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "height",
			Help:      "Number of committed ledger operations",
		}),
		researchers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "researchers",
			Help:      "Number of registered researchers",
		}),
		submissions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "submissions",
			Help:      "Number of recorded genome submissions",
		}),
		validators: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validators",
			Help:      "Number of validators in the directory",
		}),
	}
}

func (m *LedgerMetrics) ObserveOperation(operation, result string, duration time.Duration) {
	m.operations.WithLabelValues(operation, result).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *LedgerMetrics) ObserveState(counts interfaces.StateCounts, height uint64) {
	m.height.Set(float64(height))
	m.researchers.Set(float64(counts.Researchers))
	m.submissions.Set(float64(counts.Submissions))
	m.validators.Set(float64(counts.Validators))
}

// HTTPMetrics counts API requests by route pattern and status.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newHTTPMetrics(registry prometheus.Registerer, namespace string) *HTTPMetrics {
	factory := promauto.With(registry)
	return &HTTPMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests, labeled by method, route and status",
		}, []string{"method", "route", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Middleware records every request that passes through a chi router. The
// route label is the matched pattern, so path parameters do not explode cardinality.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// sanitizeNamespace maps a package name such as "vaccine-ledger" to a valid metric prefix.
func sanitizeNamespace(namespace string) string {
	out := []byte(namespace)
	for i, c := range out {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			out[i] = '_'
		}
	}
	return string(out)
}
