package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "netsentinel"

var (
	// FramesDropped counts frames discarded because the hand-off queue was full.
	FramesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_dropped_total",
		Help:      "Captured frames dropped on a full queue.",
	})

	// FramesProcessed counts frames that went through the whole pipeline.
	FramesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_processed_total",
		Help:      "Frames decoded and fed to metrics and detectors.",
	})

	// ExtractErrors counts frames the extractor could not decode.
	ExtractErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extract_errors_total",
		Help:      "Frames skipped because feature extraction failed.",
	})

	// DetectorFailures counts recovered detector panics.
	DetectorFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "detector_failures_total",
		Help:      "Detector invocations that panicked, by detector.",
	}, []string{"detector"})

	// AlertsAccepted counts alerts stored, by kind.
	AlertsAccepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_accepted_total",
		Help:      "Findings accepted as alerts, by kind.",
	}, []string{"kind"})

	// AlertsSuppressed counts findings discarded by the cooldown, by kind.
	AlertsSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_suppressed_total",
		Help:      "Findings suppressed as duplicates within the cooldown, by kind.",
	}, []string{"kind"})

	// ListenerFailures counts recovered alert listener panics.
	ListenerFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listener_failures_total",
		Help:      "Alert listener invocations that panicked.",
	})

	// NotificationsDropped counts alerts an export sink could not accept in time.
	NotificationsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dropped_total",
		Help:      "Alerts dropped because an export buffer was full, by sink.",
	}, []string{"sink"})

	// NotificationsFailed counts failed export deliveries.
	NotificationsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_failed_total",
		Help:      "Alert batches an export sink failed to deliver, by sink.",
	}, []string{"sink"})
)

// Register attaches the collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		FramesDropped,
		FramesProcessed,
		ExtractErrors,
		DetectorFailures,
		AlertsAccepted,
		AlertsSuppressed,
		ListenerFailures,
		NotificationsDropped,
		NotificationsFailed,
	}
	for _, collector := range collectors {
		if err := registerOnce(reg, collector); err != nil {
			return err
		}
	}
	return nil
}

// RegisterGauge exposes a live reading, such as the queue depth, as a gauge.
func RegisterGauge(reg prometheus.Registerer, name, help string, fn func() float64) error {
	return registerOnce(reg, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

func registerOnce(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}
