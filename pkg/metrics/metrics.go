// Package metrics exposes this broker's Prometheus metrics and the
// /health, /ready, /live HTTP endpoints cmd/storage-serviced serves
// alongside /metrics: disk/volume inventory gauges, per-handler call
// counters and latencies, and image-operation throughput and duration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DisksTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storagebroker_disks_total",
			Help: "Number of block devices currently visible to the broker",
		},
	)

	VolumesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storagebroker_volumes_total",
			Help: "Number of volumes (partitions and whole-disk filesystems) currently visible to the broker",
		},
	)

	MountedVolumesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storagebroker_mounted_volumes_total",
			Help: "Number of volumes currently mounted",
		},
	)

	UnlockedContainersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storagebroker_unlocked_containers_total",
			Help: "Number of LUKS containers currently unlocked",
		},
	)

	HandlerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storagebroker_handler_calls_total",
			Help: "Total calls into each domain handler method",
		},
		[]string{"domain", "method", "result"},
	)

	HandlerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storagebroker_handler_call_duration_seconds",
			Help:    "Domain handler method call duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"domain", "method"},
	)

	OperationsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storagebroker_image_operations_active",
			Help: "In-flight backup/restore image operations",
		},
	)

	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storagebroker_image_operations_total",
			Help: "Completed image operations by kind and outcome",
		},
		[]string{"kind", "result"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storagebroker_image_operation_duration_seconds",
			Help:    "Image operation wall-clock duration",
			Buckets: []float64{1, 5, 15, 30, 60, 180, 600, 1800, 3600},
		},
		[]string{"kind"},
	)

	OperationBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storagebroker_image_operation_bytes_total",
			Help: "Bytes copied by completed image operations",
		},
		[]string{"kind"},
	)

	AuthDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storagebroker_auth_denials_total",
			Help: "Authorization gate denials by action",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(DisksTotal)
	prometheus.MustRegister(VolumesTotal)
	prometheus.MustRegister(MountedVolumesTotal)
	prometheus.MustRegister(UnlockedContainersTotal)
	prometheus.MustRegister(HandlerCallsTotal)
	prometheus.MustRegister(HandlerCallDuration)
	prometheus.MustRegister(OperationsActive)
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(OperationBytesTotal)
	prometheus.MustRegister(AuthDenialsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
