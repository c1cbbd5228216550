package advisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	predictions *prometheus.CounterVec
	riskTiers   *prometheus.CounterVec
	probability prometheus.Histogram
	adaptations prometheus.Counter
	outcomes    *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trajectory",
			Name:      "predictions_total",
			Help:      "Predictions computed, by whether an observed outcome adjusted them.",
		}, []string{"kind"}),
		riskTiers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trajectory",
			Name:      "risk_tier_total",
			Help:      "Risk classifications issued, by tier.",
		}, []string{"tier"}),
		probability: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trajectory",
			Name:      "success_probability",
			Help:      "Distribution of the final success probability.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		adaptations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "trajectory",
			Name:      "weight_adaptations_total",
			Help:      "Predictions whose weights were corrected by an observed outcome.",
		}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trajectory",
			Name:      "outcomes_received_total",
			Help:      "Outcome events consumed from the message bus, by result.",
		}, []string{"result"}),
	}
}
