package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec

	predictions    prometheus.Counter
	lastConfidence prometheus.Gauge
	trainEpoch     prometheus.Gauge
	trainLoss      prometheus.Gauge
	valLoss        prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		messagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexpulse_messages_sent_total",
				Help: "Total number of messages sent to backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		predictions: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "indexpulse_predictions_total",
				Help: "Total number of index predictions served",
			},
		),
		lastConfidence: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexpulse_prediction_confidence",
				Help: "Confidence of the most recent prediction",
			},
		),
		trainEpoch: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexpulse_training_epoch",
				Help: "Most recently completed training epoch",
			},
		),
		trainLoss: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexpulse_training_loss",
				Help: "Training loss of the most recent epoch",
			},
		),
		valLoss: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexpulse_validation_loss",
				Help: "Validation loss of the most recent epoch",
			},
		),
	}
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordPrediction records a served prediction and its confidence.
func (r *Recorder) RecordPrediction(confidence float64) {
	r.predictions.Inc()
	r.lastConfidence.Set(confidence)
}

// RecordEpoch records per-epoch training progress.
func (r *Recorder) RecordEpoch(epoch int, trainLoss, valLoss float64) {
	r.trainEpoch.Set(float64(epoch))
	r.trainLoss.Set(trainLoss)
	r.valLoss.Set(valLoss)
}
