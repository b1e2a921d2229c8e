package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	FormSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fooforms", Name: "form_saves_total", Help: "Form saves by operation (insert|update) and result (ok|invalid|error)."},
		[]string{"op", "result"},
	)
	FormCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fooforms", Name: "form_cache_requests_total", Help: "Form cache lookups by outcome (hit|miss)."},
		[]string{"outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fooforms", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fooforms", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(FormSaves)
	reg.MustRegister(FormCacheRequests)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
