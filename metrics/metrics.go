// Package metrics exposes the prometheus collectors the dispatch core
// reports through. Every metric here is incremented from dispatch's hot
// path (batch loop, cache lookup, admission check), either directly or
// through the Record* helpers, which bundle the updates for one event.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transdispatch_batches_generated_total",
			Help: "Total number of batches handed to a backend",
		},
		[]string{"model"},
	)

	BatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transdispatch_batch_size_sentences",
			Help:    "Number of sentences per generated batch",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"model"},
	)

	BatchPaddedWords = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transdispatch_batch_padded_words",
			Help:    "Padded word count (size * max length) per generated batch",
			Buckets: []float64{64, 128, 256, 512, 1024, 2048, 4096},
		},
		[]string{"model"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transdispatch_queue_pending_sentences",
			Help: "Sentences currently queued in a model's batching pool",
		},
		[]string{"model"},
	)

	WorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transdispatch_workers_busy",
			Help: "Number of AsyncService worker goroutines currently executing a backend call",
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transdispatch_cache_hits_total",
			Help: "Total number of sentence cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transdispatch_cache_misses_total",
			Help: "Total number of sentence cache misses",
		},
	)

	AdmissionRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transdispatch_admission_rejected_total",
			Help: "Total number of Translate calls rejected by the admission limiter",
		},
	)

	BackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transdispatch_backend_errors_total",
			Help: "Total number of backend TranslateBatch calls that returned an error",
		},
		[]string{"model"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transdispatch_request_duration_seconds",
			Help:    "End-to-end latency from Translate/Pivot call to callback",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model", "op"},
	)
)

// RecordBatch records the size and padded-word cost of a batch just
// handed to a backend, for the named model.
func RecordBatch(model string, size, paddedWords int) {
	BatchesGenerated.WithLabelValues(model).Inc()
	BatchSize.WithLabelValues(model).Observe(float64(size))
	BatchPaddedWords.WithLabelValues(model).Observe(float64(paddedWords))
}

// RecordCacheLookup increments the hit or miss counter.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheHits.Inc()
		return
	}
	CacheMisses.Inc()
}

// RecordRequestDuration observes the end-to-end latency of one completed
// Translate/Pivot request, from the original call to the callback firing.
func RecordRequestDuration(model, op string, d time.Duration) {
	RequestDuration.WithLabelValues(model, op).Observe(d.Seconds())
}
