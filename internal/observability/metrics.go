package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	busDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camctl",
			Subsystem: "bus",
			Name:      "deliveries_total",
			Help:      "Messages delivered to a module, by message type.",
		},
		[]string{"module", "type"},
	)
	busFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camctl",
			Subsystem: "bus",
			Name:      "failures_total",
			Help:      "Failed message outcomes recorded by a module.",
		},
		[]string{"module", "type"},
	)
	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "camctl",
			Subsystem: "task",
			Name:      "duration_seconds",
			Help:      "Scoped task duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"runner"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"app", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "camctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"app", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(busDeliveries, busFailures, taskDuration, httpRequests, httpDuration)
	})
}

func RecordBusDelivery(module, mtype string) {
	RegisterMetrics()
	busDeliveries.WithLabelValues(module, mtype).Inc()
}

func RecordBusFailure(module, mtype string) {
	RegisterMetrics()
	busFailures.WithLabelValues(module, mtype).Inc()
}

func ObserveTask(runner string, duration time.Duration) {
	RegisterMetrics()
	taskDuration.WithLabelValues(runner).Observe(duration.Seconds())
}

func RecordHTTPRequest(app, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(app, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(app, method, path, statusLabel).Observe(duration.Seconds())
}
