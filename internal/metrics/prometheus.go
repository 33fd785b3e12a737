package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the live transcriber
type Metrics struct {
	// Capture metrics
	FramesCaptured  prometheus.Counter
	SamplesCaptured prometheus.Counter

	// Chunking metrics
	ChunksEmitted        prometheus.Counter
	PartialChunksDropped prometheus.Counter
	ChunkQueueSize       prometheus.Gauge
	ChunkDuration        prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	WordsTranscribed       prometheus.Counter

	// Merge metrics
	OverlapMatches prometheus.Counter
	OverlapMisses  prometheus.Counter
	WordsEmitted   prometheus.Counter
	WordsTrimmed   prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// New creates all Prometheus metrics and registers them with the given
// registerer. Tests pass a private registry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Capture metrics
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_frames_captured_total",
			Help: "Total number of audio frames captured from the device",
		}),
		SamplesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_samples_captured_total",
			Help: "Total number of PCM samples captured",
		}),

		// Chunking metrics
		ChunksEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_chunks_emitted_total",
			Help: "Total number of full audio chunks emitted by the chunker",
		}),
		PartialChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_partial_chunks_dropped_total",
			Help: "Total number of partial trailing chunks dropped at session end",
		}),
		ChunkQueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "transcriber_chunk_queue_size",
			Help: "Current number of chunks waiting for transcription",
		}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcriber_chunk_duration_seconds",
			Help:    "Duration of emitted audio chunks",
			Buckets: prometheus.LinearBuckets(0.5, 0.5, 16), // 0.5s to 8s
		}),

		// Transcription metrics
		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcriber_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		WordsTranscribed: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_words_transcribed_total",
			Help: "Total number of words returned by the transcription API",
		}),

		// Merge metrics
		OverlapMatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_overlap_matches_total",
			Help: "Total number of chunks whose overlap matched the previous chunk",
		}),
		OverlapMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_overlap_misses_total",
			Help: "Total number of chunks with no qualifying overlap match",
		}),
		WordsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_words_emitted_total",
			Help: "Total number of words emitted to the transcript",
		}),
		WordsTrimmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_words_trimmed_total",
			Help: "Total number of duplicated overlap words suppressed",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcriber_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transcriber_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcriber_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordFrameCaptured records one captured frame of the given sample count
func (m *Metrics) RecordFrameCaptured(samples int) {
	m.FramesCaptured.Inc()
	m.SamplesCaptured.Add(float64(samples))
}

// RecordChunkEmitted records an emitted chunk
func (m *Metrics) RecordChunkEmitted(durationSeconds float64) {
	m.ChunksEmitted.Inc()
	m.ChunkDuration.Observe(durationSeconds)
}

// RecordPartialChunkDropped increments the dropped partial chunks counter
func (m *Metrics) RecordPartialChunkDropped() {
	m.PartialChunksDropped.Inc()
}

// SetChunkQueueSize sets the current chunk queue depth
func (m *Metrics) SetChunkQueueSize(size int) {
	m.ChunkQueueSize.Set(float64(size))
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64, words int) {
	m.TranscriptionRequests.Inc()
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
	m.WordsTranscribed.Add(float64(words))
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionRequests.Inc()
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordMerge records the outcome of merging one chunk
func (m *Metrics) RecordMerge(overlapFound bool, emitted, trimmed int) {
	if overlapFound {
		m.OverlapMatches.Inc()
	} else {
		m.OverlapMisses.Inc()
	}
	m.WordsEmitted.Add(float64(emitted))
	m.WordsTrimmed.Add(float64(trimmed))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
