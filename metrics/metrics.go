// Package metrics exposes the daemon's prometheus collectors and the
// separate HTTP server serving them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Attempt outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeUnreachable = "unreachable"
	OutcomeTimeout     = "timeout"
	OutcomeCanceled    = "canceled"
	OutcomeIntegrity   = "integrity"
	OutcomeRejected    = "rejected"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	attempts        *prometheus.CounterVec
	attemptDuration prometheus.Histogram
	moduleSteps     *prometheus.CounterVec
	locks           *prometheus.CounterVec
	restores        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlock_attempts_total",
			Help:      "Unlock attempts by outcome.",
		}, []string{"outcome"}),
		attemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unlock_attempt_duration_seconds",
			Help:      "Duration of unlock attempts.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		moduleSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_steps_total",
			Help:      "Module advance calls by module and response status.",
		}, []string{"module", "status"}),
		locks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_locks_total",
			Help:      "Wallet lock transitions by reason.",
		}, []string{"reason"}),
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_restores_total",
			Help:      "Restore from backup operations by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.attempts, m.attemptDuration, m.moduleSteps, m.locks, m.restores)
	return m
}

func (m *Metrics) RecordAttempt(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
	m.attemptDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordModuleStep(module, status string) {
	if m == nil {
		return
	}
	m.moduleSteps.WithLabelValues(module, status).Inc()
}

func (m *Metrics) RecordLock(reason string) {
	if m == nil {
		return
	}
	m.locks.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordRestore(result string) {
	if m == nil {
		return
	}
	m.restores.WithLabelValues(result).Inc()
}

// MetricsServer serves the registry on its own listener.
type MetricsServer struct {
	Metrics  *Metrics
	registry *prometheus.Registry
	srv      *http.Server
}

// New creates a registry with process and Go collectors plus the daemon
// collectors, served on addr at /metrics.
func New(namespace, addr string) (*MetricsServer, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return &MetricsServer{
		Metrics:  NewMetrics(namespace, reg),
		registry: reg,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Gatherer exposes the registry for tests and custom collectors.
func (s *MetricsServer) Gatherer() prometheus.Gatherer {
	return s.registry
}

// Register adds an extra collector to the served registry.
func (s *MetricsServer) Register(c prometheus.Collector) error {
	return s.registry.Register(c)
}

// RegisterEventCounters exposes the event bus delivery counters.
func (s *MetricsServer) RegisterEventCounters(namespace string, published, dropped func() uint64) error {
	if err := s.registry.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Events published on the event bus.",
	}, func() float64 { return float64(published()) })); err != nil {
		return err
	}
	return s.registry.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Events dropped because a subscriber was slow.",
	}, func() float64 { return float64(dropped()) }))
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
