// Package monitoring exposes Prometheus metrics for dashboard sessions.
package monitoring

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

// Message directions.
const (
	Inbound  = "in"
	Outbound = "out"
)

// Metrics bundles the session metrics. A nil *Metrics records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	SessionsActive     prometheus.Gauge
	SessionsTotal      prometheus.Counter
	DatasetLoads       *prometheus.CounterVec
	DatasetLoadSeconds prometheus.Histogram
	ComposeSeconds     prometheus.Histogram
	ComposeFailures    prometheus.Counter
	Messages           *prometheus.CounterVec
	UnknownSites       prometheus.Counter
}

// NewMetrics registers the metrics against reg, defaulting to the global
// registry when nil. Re-registering returns the existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{gatherer: gatherer}
	var err error

	if m.SessionsActive, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "robotability_sessions_active",
		Help: "Number of connected map sessions.",
	})); err != nil {
		return nil, err
	}
	if m.SessionsTotal, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "robotability_sessions_total",
		Help: "Total map sessions opened.",
	})); err != nil {
		return nil, err
	}
	if m.DatasetLoads, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "robotability_dataset_loads_total",
		Help: "Dataset loads by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.DatasetLoadSeconds, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "robotability_dataset_load_seconds",
		Help:    "Time to load and prepare a session dataset.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})); err != nil {
		return nil, err
	}
	if m.ComposeSeconds, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "robotability_compose_seconds",
		Help:    "Time to compose a layer payload.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})); err != nil {
		return nil, err
	}
	if m.ComposeFailures, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "robotability_compose_failures_total",
		Help: "Layer compositions that returned an error.",
	})); err != nil {
		return nil, err
	}
	if m.Messages, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "robotability_messages_total",
		Help: "Session messages by direction and type.",
	}, []string{"direction", "type"})); err != nil {
		return nil, err
	}
	if m.UnknownSites, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "robotability_unknown_deployment_requests_total",
		Help: "Fly-to requests naming a deployment that is not configured.",
	})); err != nil {
		return nil, err
	}

	return m, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SessionOpened records a new session.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
}

// SessionClosed records a session ending.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// ObserveLoad records a dataset load.
func (m *Metrics) ObserveLoad(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.DatasetLoads.WithLabelValues("error").Inc()
		return
	}
	m.DatasetLoads.WithLabelValues("ok").Inc()
	m.DatasetLoadSeconds.Observe(d.Seconds())
}

// ObserveCompose records a composition.
func (m *Metrics) ObserveCompose(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ComposeFailures.Inc()
		return
	}
	m.ComposeSeconds.Observe(d.Seconds())
}

// CountMessage records one message.
func (m *Metrics) CountMessage(direction, kind string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(direction, kind).Inc()
}

// UnknownSite records a fly-to for a deployment that does not exist.
func (m *Metrics) UnknownSite() {
	if m == nil {
		return
	}
	m.UnknownSites.Inc()
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return c, eris.Errorf("monitoring: collector already registered with incompatible type %T", are.ExistingCollector)
		}
		return c, eris.Wrap(err, "monitoring: register collector")
	}
	return c, nil
}
