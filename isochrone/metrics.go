package isochrone

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "isoreach",
		Subsystem: "engine",
		Name:      "requests_total",
		Help:      "Isochrone requests by profile and outcome",
	}, []string{"profile", "outcome"})

	computeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "isoreach",
		Subsystem: "engine",
		Name:      "compute_duration_seconds",
		Help:      "Time spent computing one request",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"profile"})

	boundaryPoints = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "isoreach",
		Subsystem: "sampler",
		Name:      "boundary_points",
		Help:      "Points handed to the hull builder per threshold",
		Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
	})

	hullFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "isoreach",
		Subsystem: "hull",
		Name:      "failures_total",
		Help:      "Thresholds skipped because no simple hull could be built",
	})

	// MQTTRequests counts requests received over MQTT by outcome
	MQTTRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "isoreach",
		Subsystem: "mqtt",
		Name:      "requests_total",
		Help:      "Isochrone requests received over MQTT",
	}, []string{"outcome"})
)
