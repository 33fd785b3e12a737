package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/skypro1111/live-transcriber/internal/audio"
	"github.com/skypro1111/live-transcriber/internal/capture"
	"github.com/skypro1111/live-transcriber/internal/transcript"
	"github.com/skypro1111/live-transcriber/internal/transcription"
)

// scriptedEngine returns a fixed transcription per chunk index and records
// the order in which chunks arrive.
type scriptedEngine struct {
	words  map[uint64][]transcription.Word
	errors map[uint64]error
	order  []uint64
	mu     sync.Mutex
}

func (e *scriptedEngine) Transcribe(ctx context.Context, chunk *audio.Chunk) ([]transcription.Word, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.order = append(e.order, chunk.Index)

	if err := e.errors[chunk.Index]; err != nil {
		return nil, err
	}
	return e.words[chunk.Index], nil
}

func (e *scriptedEngine) receivedOrder() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint64(nil), e.order...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestCoordinator builds a pipeline over a PCM byte stream with tiny
// windows: 100 samples per chunk, 50 samples per frame.
func newTestCoordinator(pcmBytes int, engine transcription.Engine, minMatch int,
	cfg Config, sinks ...FragmentSink) (*Coordinator, *transcript.Merger) {

	device := capture.NewReaderDevice(bytes.NewReader(make([]byte, pcmBytes)))
	source := capture.NewSource(device, capture.Config{FrameSize: 50, QueueSize: 8}, testLogger())
	chunker := audio.NewChunker(audio.ChunkingConfig{
		ChunkDuration: 1 * time.Second,
		SampleRate:    100,
	})
	merger := transcript.NewMerger(1.0, minMatch)

	return New(cfg, testLogger(), nil, source, chunker, engine, merger, sinks...), merger
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func w(text string, start, end float64) transcription.Word {
	return transcription.Word{Text: text, Start: start, End: end}
}

func TestPipelineEndToEnd(t *testing.T) {
	engine := &scriptedEngine{
		words: map[uint64][]transcription.Word{
			0: {w("hello", 0.0, 0.5), w("world", 0.5, 1.0), w("how", 3.2, 3.5), w("are", 3.5, 3.8)},
			1: {w("how", 0.1, 0.4), w("are", 0.4, 0.7), w("you", 0.7, 1.0)},
		},
	}

	store := transcript.NewStore()

	// 400 bytes = 200 samples = two full chunks
	coordinator, _ := newTestCoordinator(400, engine, 1, Config{ChunkQueueSize: 8}, store)

	if err := coordinator.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "both chunks processed", func() bool {
		return coordinator.GetStats().ChunksProcessed == 2
	})

	coordinator.Stop()

	if got := store.Text(); got != "hello world how are you" {
		t.Errorf("Expected transcript %q, got %q", "hello world how are you", got)
	}
}

func TestPipelineTranscriptionFailureCarriesMergeStateOver(t *testing.T) {
	engine := &scriptedEngine{
		words: map[uint64][]transcription.Word{
			0: {w("foo", 3.2, 3.5), w("bar", 3.5, 3.9)},
			2: {w("foo", 0.1, 0.3), w("bar", 0.3, 0.5), w("baz", 0.5, 0.8)},
		},
		errors: map[uint64]error{
			1: &transcription.Error{ChunkID: "chunk-1", Err: errors.New("service unavailable")},
		},
	}

	store := transcript.NewStore()

	// 600 bytes = three full chunks; the middle one fails
	coordinator, _ := newTestCoordinator(600, engine, 1, Config{ChunkQueueSize: 8}, store)

	if err := coordinator.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "all chunks handled", func() bool {
		stats := coordinator.GetStats()
		return stats.ChunksProcessed+stats.ChunksFailed == 3
	})

	coordinator.Stop()

	stats := coordinator.GetStats()
	if stats.ChunksFailed != 1 {
		t.Errorf("Expected 1 failed chunk, got %d", stats.ChunksFailed)
	}
	if stats.ChunksProcessed != 2 {
		t.Errorf("Expected 2 processed chunks, got %d", stats.ChunksProcessed)
	}

	// Chunk 2 still deduplicates against chunk 0: the failed chunk left
	// the merge state untouched
	if got := store.Text(); got != "foo bar baz" {
		t.Errorf("Expected transcript %q, got %q", "foo bar baz", got)
	}
}

func TestPipelineProcessesChunksInOrder(t *testing.T) {
	words := make(map[uint64][]transcription.Word)
	for i := uint64(0); i < 5; i++ {
		words[i] = []transcription.Word{w("word", float64(i), float64(i)+0.5)}
	}
	engine := &scriptedEngine{words: words}

	// 1000 bytes = five full chunks
	coordinator, _ := newTestCoordinator(1000, engine, 2, Config{ChunkQueueSize: 8})

	if err := coordinator.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "all chunks processed", func() bool {
		return coordinator.GetStats().ChunksProcessed == 5
	})

	coordinator.Stop()

	order := engine.receivedOrder()
	if len(order) != 5 {
		t.Fatalf("Expected 5 chunks, got %d", len(order))
	}
	for i, index := range order {
		if index != uint64(i) {
			t.Errorf("Chunk %d arrived out of order: got index %d", i, index)
		}
	}
}

func TestPipelineDiscardsPartialTrailingChunk(t *testing.T) {
	engine := &scriptedEngine{
		words: map[uint64][]transcription.Word{
			0: {w("first", 0.0, 0.5)},
			1: {w("second", 0.0, 0.5)},
		},
	}

	// 500 bytes = two full chunks plus 50 trailing samples
	coordinator, _ := newTestCoordinator(500, engine, 2, Config{ChunkQueueSize: 8})

	if err := coordinator.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "both full chunks processed", func() bool {
		return coordinator.GetStats().ChunksProcessed == 2
	})

	coordinator.Stop()

	if order := engine.receivedOrder(); len(order) != 2 {
		t.Errorf("Expected only the 2 full chunks transcribed, got %d", len(order))
	}

	chunkerStats := coordinator.GetChunkerStats()
	if chunkerStats.SamplesDropped != 50 {
		t.Errorf("Expected 50 dropped trailing samples, got %d", chunkerStats.SamplesDropped)
	}
}

func TestPipelineFlushesPartialTrailingChunkWhenConfigured(t *testing.T) {
	engine := &scriptedEngine{
		words: map[uint64][]transcription.Word{
			0: {w("first", 0.0, 0.5)},
			1: {w("second", 0.0, 0.5)},
			2: {w("tail", 0.0, 0.3)},
		},
	}

	store := transcript.NewStore()

	// 500 bytes = two full chunks plus a 50-sample tail
	coordinator, _ := newTestCoordinator(500, engine, 2,
		Config{ChunkQueueSize: 8, FlushPartialOnStop: true}, store)

	if err := coordinator.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "all three chunks processed", func() bool {
		return coordinator.GetStats().ChunksProcessed == 3
	})

	coordinator.Stop()

	if got := store.Text(); got != "first second tail" {
		t.Errorf("Expected transcript %q, got %q", "first second tail", got)
	}
}

func TestPipelineNoOutputAfterStop(t *testing.T) {
	engine := &scriptedEngine{
		words: map[uint64][]transcription.Word{
			0: {w("only", 0.0, 0.5)},
		},
	}

	store := transcript.NewStore()
	coordinator, _ := newTestCoordinator(200, engine, 2, Config{ChunkQueueSize: 8}, store)

	if err := coordinator.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	coordinator.Stop()

	// Stop blocks until both stages have quiesced: whatever the store
	// holds now is final
	final := store.Text()
	time.Sleep(50 * time.Millisecond)

	if got := store.Text(); got != final {
		t.Errorf("Transcript changed after Stop: %q -> %q", final, got)
	}
}

// failingDevice delivers a few frames, then fails like an unplugged input.
type failingDevice struct {
	reads int
	mu    sync.Mutex
}

var errUnplugged = errors.New("input device unplugged")

func (d *failingDevice) Read(n int) ([]int16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reads >= 2 {
		return nil, errUnplugged
	}
	d.reads++
	return make([]int16, n), nil
}

func (d *failingDevice) Close() error { return nil }

func TestPipelineReportsFatalCaptureError(t *testing.T) {
	source := capture.NewSource(&failingDevice{}, capture.Config{FrameSize: 10, QueueSize: 8}, testLogger())
	chunker := audio.NewChunker(audio.ChunkingConfig{
		ChunkDuration: 1 * time.Second,
		SampleRate:    100,
	})
	merger := transcript.NewMerger(1.0, 2)
	engine := &scriptedEngine{}

	coordinator := New(Config{ChunkQueueSize: 8}, testLogger(), nil, source, chunker, engine, merger)

	if err := coordinator.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case err := <-coordinator.Fatal():
		var captureErr *capture.CaptureError
		if !errors.As(err, &captureErr) {
			t.Errorf("Expected CaptureError, got %T: %v", err, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected fatal error from failing device")
	}

	coordinator.Abort()
}

func TestPipelineDoubleStart(t *testing.T) {
	engine := &scriptedEngine{}
	coordinator, _ := newTestCoordinator(0, engine, 2, Config{ChunkQueueSize: 8})

	if err := coordinator.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := coordinator.Start(); err == nil {
		t.Error("Expected error on second Start")
	}

	coordinator.Stop()
}
