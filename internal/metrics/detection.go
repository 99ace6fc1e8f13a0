// Package metrics provides Prometheus metrics for signal detection.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	detectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalnode",
		Subsystem: "detect",
		Name:      "detections_total",
		Help:      "Detector runs by result",
	}, []string{"subdevice", "result"})

	detectionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signalnode",
		Subsystem: "detect",
		Name:      "duration_seconds",
		Help:      "Time spent in one detector run",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"subdevice"})

	streamTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalnode",
		Subsystem: "stream",
		Name:      "transitions_total",
		Help:      "Stream lifecycle transitions by target state",
	}, []string{"subdevice", "state"})
)

// Detection results.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Observer records detections and transitions reported by subdevices.
type Observer struct{}

// DetectionCompleted counts one detector run.
func (Observer) DetectionCompleted(subdevice string, elapsed time.Duration, err error) {
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	detectionsTotal.WithLabelValues(subdevice, result).Inc()
	detectionDuration.WithLabelValues(subdevice).Observe(elapsed.Seconds())
}

// StateChanged counts one lifecycle transition.
func (Observer) StateChanged(subdevice string, streaming bool) {
	state := "idle"
	if streaming {
		state = "streaming"
	}
	streamTransitions.WithLabelValues(subdevice, state).Inc()
}

// DeleteSubdeviceMetrics removes every series of a subdevice.
func DeleteSubdeviceMetrics(subdevice string) {
	labels := prometheus.Labels{"subdevice": subdevice}
	detectionsTotal.DeletePartialMatch(labels)
	detectionDuration.DeletePartialMatch(labels)
	streamTransitions.DeletePartialMatch(labels)
}
