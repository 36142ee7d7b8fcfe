package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejections    *prometheus.CounterVec
	StoreFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presentia_ratelimit_rejections_total",
			Help: "Requests rejected by the rate limiter, by endpoint class",
		}, []string{"class"}),
		StoreFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presentia_ratelimit_store_failures_total",
			Help: "Primary rate limit store errors that triggered the fallback",
		}),
	}
}
