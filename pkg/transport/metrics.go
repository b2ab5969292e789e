package transport

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "immodoc",
		Name:      "http_requests_total",
		Help:      "API requests issued by the client, by method and status class.",
	}, []string{"method", "status"})

	metricLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "immodoc",
		Name:      "http_request_seconds",
		Help:      "Wall-clock latency of API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	metricTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "immodoc",
		Name:      "http_timeouts_total",
		Help:      "API requests that exceeded their deadline.",
	})
)

func observeRequest(method string, status int, seconds float64, timedOut bool) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status/100) + "xx"
	}
	metricRequests.WithLabelValues(method, label).Inc()
	metricLatency.WithLabelValues(method).Observe(seconds)
	if timedOut {
		metricTimeouts.Inc()
	}
}
