package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	InboundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_inbound_total",
			Help: "Normalized inbound emails by provider shape",
		},
		[]string{"provider"},
	)

	PipelineTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_pipeline_total",
			Help: "Pipeline runs by kind and outcome",
		},
		[]string{"pipeline", "outcome"}, // event|newsletter_item|inbox , created|invalid|failed|duplicate
	)

	SideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_side_effect_failures_total",
			Help: "Best-effort side effects that failed",
		},
		[]string{"channel"}, // comment|notification|email|week_link
	)
)

var once sync.Once

// MustRegister registers the relay collectors once; later calls are no-ops.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			InboundTotal,
			PipelineTotal,
			SideEffectFailures,
		)
	})
}
