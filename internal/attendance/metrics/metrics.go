package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attendance orchestrator.
type Metrics struct {
	Enrollments      prometheus.Counter
	AttendanceMarked prometheus.Counter
	LocationRejected *prometheus.CounterVec
	ProofsVerified   *prometheus.CounterVec
	ProofDuration    prometheus.Histogram
}

// New creates and registers all attendance metrics.
func New() *Metrics {
	return &Metrics{
		Enrollments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presentia_enrollments_total",
			Help: "Total number of successful biometric enrollments",
		}),
		AttendanceMarked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presentia_attendance_marked_total",
			Help: "Total number of attendance proofs issued",
		}),
		LocationRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presentia_attendance_location_rejected_total",
			Help: "Attendance attempts rejected at the location gate by reason",
		}, []string{"reason"}),
		ProofsVerified: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presentia_attendance_proofs_verified_total",
			Help: "Attendance proof verifications by result",
		}, []string{"result"}),
		ProofDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "presentia_attendance_proof_duration_seconds",
			Help:    "Duration of proof generation including witness preparation",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
