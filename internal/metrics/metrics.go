// Package metrics is the single Prometheus registration point for the
// service. Domain packages (supervisor, anpr, eventbus, retention) call the
// exported Inc/Set/Observe helpers here rather than declaring their own
// collectors, so a component can be imported by tests without dragging in a
// second registration of the same metric name.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CameraStatus reports the current status of each camera as a gauge of
	// 1 (current) keyed by camera id and status value; callers must clear
	// the previous status label before setting a new one.
	CameraStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vms_camera_status",
		Help: "Current camera status (1 = current value), by camera_id and status.",
	}, []string{"camera_id", "status"})

	// ActiveRecordings tracks the number of recordings currently in
	// progress (end_time unset), by camera.
	ActiveRecordings = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vms_active_recordings",
		Help: "Number of recordings currently in progress, by camera_id.",
	}, []string{"camera_id"})

	// ANPREventsTotal counts ANPR events actually emitted to the Event Bus.
	ANPREventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_anpr_events_total",
		Help: "Total ANPR events emitted, by camera_id.",
	}, []string{"camera_id"})

	// ANPRSuppressedTotal counts detections the dedup filter suppressed
	// before they reached the Event Bus.
	ANPRSuppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_anpr_suppressed_total",
		Help: "Total ANPR detections suppressed by the dedup filter, by camera_id.",
	}, []string{"camera_id"})

	// EventBusPublishedTotal counts messages accepted for delivery, by topic.
	EventBusPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_eventbus_published_total",
		Help: "Total messages published on the event bus, by topic.",
	}, []string{"topic"})

	// EventBusDroppedTotal counts messages dropped by a subscriber's
	// bounded queue overflowing, by topic.
	EventBusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_eventbus_dropped_total",
		Help: "Total messages dropped for backpressure, by topic.",
	}, []string{"topic"})

	// EventBusSubscribers tracks the current number of live subscriptions.
	EventBusSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vms_eventbus_subscribers",
		Help: "Current number of event bus subscribers.",
	})

	// RetentionDeletedTotal counts recordings removed by the retention
	// sweep, by outcome (deleted, file_missing).
	RetentionDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_retention_deleted_total",
		Help: "Total recordings removed by the retention sweep, by outcome.",
	}, []string{"outcome"})

	// RetentionSweepDuration observes the wall time of a full retention
	// sweep pass.
	RetentionSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vms_retention_sweep_duration_seconds",
		Help:    "Duration of a full retention sweep pass.",
		Buckets: prometheus.DefBuckets,
	})

	// HealthProbeFailuresTotal counts reachability probe failures, by
	// camera and failure class (timeout, refused, unreachable).
	HealthProbeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_health_probe_failures_total",
		Help: "Total health probe failures, by camera_id and reason.",
	}, []string{"camera_id", "reason"})

	// TranscoderProcessExitsTotal counts transcoder child process exits,
	// by activity kind and whether the exit was clean.
	TranscoderProcessExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_transcoder_process_exits_total",
		Help: "Total transcoder child process exits, by activity and outcome.",
	}, []string{"activity", "outcome"})
)

// SetCameraStatus records status as the only current value for cameraID,
// clearing the gauge's prior status label so stale series don't linger.
func SetCameraStatus(cameraID string, previous, current string) {
	if previous != "" && previous != current {
		CameraStatus.WithLabelValues(cameraID, previous).Set(0)
	}
	CameraStatus.WithLabelValues(cameraID, current).Set(1)
}
