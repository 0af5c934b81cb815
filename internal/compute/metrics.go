package compute

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "portfolio_analytics"
	metricsSubsystem = "compute"

	pathAccelerated = "accelerated"
	pathReference   = "reference"
)

// Fallback reasons
const (
	reasonDisabled    = "disabled"
	reasonLoadError   = "load_error"
	reasonLoadTimeout = "load_timeout"
	reasonLoadPanic   = "load_panic"
	reasonExecError   = "exec_error"
	reasonExecPanic   = "exec_panic"
)

type metrics struct {
	calls     *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	state     prometheus.Gauge
}

// newMetrics registers the dispatcher collectors on reg. A nil reg leaves
// them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "calls_total",
				Help:      "Dispatched calculations by operation and execution path",
			},
			[]string{"op", "path"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "fallbacks_total",
				Help:      "Transitions to the reference backend by reason",
			},
			[]string{"reason"},
		),
		state: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "backend_state",
				Help:      "Backend state: 0 unloaded, 1 ready, 2 fallback",
			},
		),
	}
}
