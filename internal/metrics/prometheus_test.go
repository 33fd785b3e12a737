package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordFrameCaptured(1024)
	m.RecordChunkEmitted(4.0)
	m.RecordTranscriptionSuccess(0.8, 12)
	m.RecordTranscriptionFailure(1.2)
	m.RecordMerge(true, 5, 3)
	m.RecordMerge(false, 4, 0)

	if got := testutil.ToFloat64(m.FramesCaptured); got != 1 {
		t.Errorf("Expected 1 captured frame, got %f", got)
	}
	if got := testutil.ToFloat64(m.SamplesCaptured); got != 1024 {
		t.Errorf("Expected 1024 captured samples, got %f", got)
	}
	if got := testutil.ToFloat64(m.TranscriptionRequests); got != 2 {
		t.Errorf("Expected 2 transcription requests, got %f", got)
	}
	if got := testutil.ToFloat64(m.WordsTranscribed); got != 12 {
		t.Errorf("Expected 12 transcribed words, got %f", got)
	}
	if got := testutil.ToFloat64(m.OverlapMatches); got != 1 {
		t.Errorf("Expected 1 overlap match, got %f", got)
	}
	if got := testutil.ToFloat64(m.OverlapMisses); got != 1 {
		t.Errorf("Expected 1 overlap miss, got %f", got)
	}
	if got := testutil.ToFloat64(m.WordsEmitted); got != 9 {
		t.Errorf("Expected 9 emitted words, got %f", got)
	}
	if got := testutil.ToFloat64(m.WordsTrimmed); got != 3 {
		t.Errorf("Expected 3 trimmed words, got %f", got)
	}
}

func TestMetricsQueueGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetChunkQueueSize(7)
	if got := testutil.ToFloat64(m.ChunkQueueSize); got != 7 {
		t.Errorf("Expected queue size 7, got %f", got)
	}

	m.SetChunkQueueSize(0)
	if got := testutil.ToFloat64(m.ChunkQueueSize); got != 0 {
		t.Errorf("Expected queue size 0, got %f", got)
	}
}
