// Package metrics provides the Prometheus collectors for the TTS proxy.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "xftts"

// Synthesis outcomes used as the "outcome" label.
const (
	OutcomeSuccess        = "success"
	OutcomeVendorError    = "vendor_error"
	OutcomeTimeout        = "timeout"
	OutcomeNoAudio        = "no_audio"
	OutcomeTransportError = "transport_error"
	OutcomeCanceled       = "canceled"
)

var (
	// requestsTotal counts HTTP responses by status code.
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of TTS HTTP requests by response status",
		},
		[]string{"code"},
	)

	// synthesisDuration is a histogram of vendor session duration, dial included.
	synthesisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Duration of xfyun synthesis sessions in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2, 3, 5, 7.5, 10, 15},
		},
		[]string{"outcome"},
	)

	// synthesesTotal counts sessions by outcome.
	synthesesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syntheses_total",
			Help:      "Total number of xfyun synthesis sessions by outcome",
		},
		[]string{"outcome"},
	)

	// audioBytesTotal counts audio bytes returned to callers.
	audioBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Total bytes of synthesized audio returned",
		},
	)

	// sessionsActive is a gauge of in-flight vendor sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of in-flight xfyun sessions",
		},
	)

	allMetrics = []prometheus.Collector{
		requestsTotal,
		synthesisDuration,
		synthesesTotal,
		audioBytesTotal,
		sessionsActive,
	}
)

// Register adds all collectors to reg. Collectors already registered are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range allMetrics {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// RecordRequest records one HTTP response status.
func RecordRequest(code string) {
	requestsTotal.WithLabelValues(code).Inc()
}

// RecordSessionStart records a session start.
func RecordSessionStart() {
	sessionsActive.Inc()
}

// RecordSessionEnd records a session completion.
func RecordSessionEnd(outcome string, durationSeconds float64, audioBytes int) {
	sessionsActive.Dec()
	synthesisDuration.WithLabelValues(outcome).Observe(durationSeconds)
	synthesesTotal.WithLabelValues(outcome).Inc()
	if audioBytes > 0 {
		audioBytesTotal.Add(float64(audioBytes))
	}
}
