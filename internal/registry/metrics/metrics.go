package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the uniqueness registry.
type Metrics struct {
	Registrations      prometheus.Counter
	DuplicatesDetected *prometheus.CounterVec
	SuspiciousFlagged  prometheus.Counter
	RegisterDuration   prometheus.Histogram
}

// New creates and registers all registry metrics.
func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presentia_registrations_total",
			Help: "Total number of successful biometric registrations",
		}),
		DuplicatesDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presentia_registration_duplicates_total",
			Help: "Duplicate registration attempts by kind (commitment or nullifier)",
		}, []string{"kind"}),
		SuspiciousFlagged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presentia_registrations_flagged_suspicious_total",
			Help: "Registrations whose duplicate-attempt counter crossed the suspicion threshold",
		}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "presentia_registry_register_duration_seconds",
			Help:    "Duration of Register operations including uniqueness checks",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}
