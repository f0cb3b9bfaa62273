// Package metrics holds Prometheus collectors for the recognition pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Error kinds used as label values of PredictionErrors
const (
	KindInvalidImage  = "invalid_image"
	KindShapeMismatch = "shape_mismatch"
	KindInference     = "inference"
	KindStorage       = "storage"
)

var Predictions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "digit_predictions_total",
	Help: "Successful predictions by recognized digit",
}, []string{"digit"})

var PredictionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "digit_prediction_errors_total",
	Help: "Failed prediction requests by error kind",
}, []string{"kind"})

var InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "digit_inference_seconds",
	Help:    "Time spent in a single engine invocation",
	Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
})

var EngineWait = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "digit_engine_wait_seconds",
	Help:    "Time spent waiting for a free engine in the pool",
	Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
})

var EnginesInUse = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "digit_engines_in_use",
	Help: "Engines currently taken from the pool",
})
