// Package metrics exports store activity as Prometheus metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/statetree/internal/reactive"
	"github.com/roach88/statetree/internal/store"
)

// PluginName is the name the plugin installs under.
const PluginName = "statetree/metrics"

// Dispatch outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Plugin counts commits and dispatches and observes dispatch latency.
// Install it with store.WithPlugins or Store.Use.
type Plugin struct {
	commits    *prometheus.CounterVec
	dispatches *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	inFlight   prometheus.Gauge

	mu      sync.Mutex
	started map[int64]time.Time
	now     func() time.Time
}

var _ store.Plugin = (*Plugin)(nil)

// New registers the plugin's collectors with reg. Like promauto, it panics
// if they are already registered there.
func New(reg prometheus.Registerer) *Plugin {
	factory := promauto.With(reg)
	return &Plugin{
		commits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statetree",
			Subsystem: "store",
			Name:      "commits_total",
			Help:      "Total committed mutations by type",
		}, []string{"type"}),

		dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statetree",
			Subsystem: "store",
			Name:      "dispatches_total",
			Help:      "Total finished dispatches by type and outcome",
		}, []string{"type", "outcome"}),

		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "statetree",
			Subsystem: "store",
			Name:      "dispatch_duration_seconds",
			Help:      "Time from dispatch to action completion in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"type"}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "statetree",
			Subsystem: "store",
			Name:      "dispatches_in_flight",
			Help:      "Dispatches whose actions have not finished",
		}),

		started: make(map[int64]time.Time),
		now:     time.Now,
	}
}

// Name implements store.Plugin.
func (p *Plugin) Name() string { return PluginName }

// Apply implements store.Plugin.
func (p *Plugin) Apply(s *store.Store) error {
	s.Subscribe(func(m store.Mutation, _ *reactive.Object) {
		p.commits.WithLabelValues(m.Type).Inc()
	})
	s.SubscribeAction(store.ActionSubscriber{
		Before: func(ev store.ActionEvent, _ *reactive.Object) {
			p.mu.Lock()
			p.started[ev.Seq] = p.now()
			p.mu.Unlock()
			p.inFlight.Inc()
		},
		After: func(ev store.ActionEvent, _ *reactive.Object) {
			p.finish(ev, OutcomeSuccess)
		},
		Error: func(ev store.ActionEvent, _ *reactive.Object, _ error) {
			p.finish(ev, OutcomeError)
		},
	})
	return nil
}

func (p *Plugin) finish(ev store.ActionEvent, outcome string) {
	p.mu.Lock()
	start, ok := p.started[ev.Seq]
	delete(p.started, ev.Seq)
	p.mu.Unlock()

	p.dispatches.WithLabelValues(ev.Type, outcome).Inc()
	if ok {
		p.inFlight.Dec()
		p.latency.WithLabelValues(ev.Type).Observe(p.now().Sub(start).Seconds())
	}
}
