package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/skypro1111/live-transcriber/internal/audio"
	"github.com/skypro1111/live-transcriber/internal/capture"
	"github.com/skypro1111/live-transcriber/internal/metrics"
	"github.com/skypro1111/live-transcriber/internal/transcript"
	"github.com/skypro1111/live-transcriber/internal/transcription"
)

// Config contains pipeline coordination configuration
type Config struct {
	ChunkQueueSize     int
	FlushPartialOnStop bool
}

// Coordinator wires the capture source, chunker, transcription engine and
// merger into two concurrent stages: a chunking stage fed by the frame
// queue, and a processing stage fed by the chunk queue. Chunks are processed
// in strict FIFO order; the merger's correctness depends on it, so the
// processing stage is a single goroutine.
type Coordinator struct {
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	source  *capture.Source
	chunker *audio.Chunker
	engine  transcription.Engine
	merger  *transcript.Merger
	sinks   []FragmentSink

	chunks chan *audio.Chunk
	fatal  chan error

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopOnce sync.Once

	// Statistics
	chunksProcessed  uint64
	chunksFailed     uint64
	fragmentsEmitted uint64

	mu sync.RWMutex
}

// Stats represents pipeline statistics
type Stats struct {
	ChunksProcessed  uint64 `json:"chunks_processed"`
	ChunksFailed     uint64 `json:"chunks_failed"`
	FragmentsEmitted uint64 `json:"fragments_emitted"`
	ChunkQueueSize   int    `json:"chunk_queue_size"`
}

// New creates a pipeline coordinator. The metrics argument may be nil.
func New(config Config, logger *slog.Logger, m *metrics.Metrics,
	source *capture.Source, chunker *audio.Chunker, engine transcription.Engine,
	merger *transcript.Merger, sinks ...FragmentSink) *Coordinator {

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		config:  config,
		logger:  logger,
		metrics: m,
		source:  source,
		chunker: chunker,
		engine:  engine,
		merger:  merger,
		sinks:   sinks,
		chunks:  make(chan *audio.Chunk, config.ChunkQueueSize),
		fatal:   make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the capture source and both pipeline stages
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("pipeline already started")
	}
	c.started = true
	c.mu.Unlock()

	if err := c.source.Start(); err != nil {
		return fmt.Errorf("failed to start capture source: %w", err)
	}

	c.wg.Add(2)
	go c.chunkingLoop()
	go c.processingLoop()

	c.logger.Info("Pipeline started",
		slog.Int("chunk_queue_size", c.config.ChunkQueueSize),
		slog.Bool("flush_partial_on_stop", c.config.FlushPartialOnStop),
	)

	return nil
}

// chunkingLoop drains the frame queue into the chunker and forwards
// completed chunks. It terminates when the frame channel closes, then
// applies the trailing-chunk policy and closes the chunk queue so the
// processing stage can drain to completion.
func (c *Coordinator) chunkingLoop() {
	defer c.wg.Done()
	defer close(c.chunks)

	for frame := range c.source.Frames() {
		if c.metrics != nil {
			c.metrics.RecordFrameCaptured(len(frame))
		}

		chunk := c.chunker.AddFrame(frame)
		if chunk == nil {
			continue
		}

		if !c.enqueue(chunk) {
			return
		}
	}

	if err := c.source.Err(); err != nil {
		// Fatal capture error: report and abandon any partial audio
		select {
		case c.fatal <- err:
		default:
		}
		return
	}

	c.finishTrailingChunk()
}

// finishTrailingChunk applies the configured policy to samples accumulated
// past the last full chunk: flush through the pipeline, or drop (the
// baseline contract).
func (c *Coordinator) finishTrailingChunk() {
	if c.config.FlushPartialOnStop {
		if chunk := c.chunker.Flush(); chunk != nil {
			c.logger.Info("Flushing partial trailing chunk",
				slog.String("chunk_id", chunk.ID),
				slog.Float64("duration", chunk.Duration()),
			)
			c.enqueue(chunk)
		}
		return
	}

	if dropped := c.chunker.Discard(); dropped > 0 {
		c.logger.Info("Dropped partial trailing chunk",
			slog.Int("samples", dropped),
		)
		if c.metrics != nil {
			c.metrics.RecordPartialChunkDropped()
		}
	}
}

// enqueue pushes a chunk onto the chunk queue, respecting cancellation.
// Returns false when the pipeline is shutting down.
func (c *Coordinator) enqueue(chunk *audio.Chunk) bool {
	if c.metrics != nil {
		c.metrics.RecordChunkEmitted(chunk.Duration())
	}

	c.logger.Debug("Audio chunk emitted",
		slog.String("chunk_id", chunk.ID),
		slog.Uint64("index", chunk.Index),
		slog.Float64("duration", chunk.Duration()),
	)

	select {
	case c.chunks <- chunk:
		if c.metrics != nil {
			c.metrics.SetChunkQueueSize(len(c.chunks))
		}
		return true
	case <-c.ctx.Done():
		return false
	}
}

// processingLoop consumes chunks in capture order, transcribes each one and
// merges the result into the transcript. The loop drains the chunk queue to
// completion once it closes.
func (c *Coordinator) processingLoop() {
	defer c.wg.Done()

	for chunk := range c.chunks {
		if c.metrics != nil {
			c.metrics.SetChunkQueueSize(len(c.chunks))
		}
		c.process(chunk)
	}
}

// process runs one chunk through transcription and merging. Transcription
// failures are non-fatal: the chunk contributes zero words and the merge
// state carries over unchanged.
func (c *Coordinator) process(chunk *audio.Chunk) {
	startTime := time.Now()

	words, err := c.engine.Transcribe(c.ctx, chunk)
	duration := time.Since(startTime)

	if err != nil {
		c.mu.Lock()
		c.chunksFailed++
		c.mu.Unlock()

		if c.metrics != nil {
			c.metrics.RecordTranscriptionFailure(duration.Seconds())
		}

		c.logger.Warn("Transcription failed, chunk contributes no words",
			slog.String("chunk_id", chunk.ID),
			slog.Uint64("index", chunk.Index),
			slog.String("error", err.Error()),
			slog.Float64("duration", duration.Seconds()),
		)
		return
	}

	if c.metrics != nil {
		c.metrics.RecordTranscriptionSuccess(duration.Seconds(), len(words))
	}

	emitted := c.merger.Merge(words)
	trimmed := len(words) - len(emitted)

	if c.metrics != nil {
		c.metrics.RecordMerge(trimmed > 0, len(emitted), trimmed)
	}

	c.mu.Lock()
	c.chunksProcessed++
	c.mu.Unlock()

	c.logger.Debug("Chunk merged",
		slog.String("chunk_id", chunk.ID),
		slog.Uint64("index", chunk.Index),
		slog.Int("words", len(words)),
		slog.Int("emitted", len(emitted)),
		slog.Int("trimmed", trimmed),
	)

	if len(emitted) == 0 {
		return
	}

	c.emit(emitted)
}

// emit fans one fragment out to every sink
func (c *Coordinator) emit(words []transcription.Word) {
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}
	fragment := strings.Join(texts, " ")

	for _, sink := range c.sinks {
		if err := sink.WriteFragment(fragment); err != nil {
			c.logger.Warn("Fragment sink write failed",
				slog.String("error", err.Error()),
			)
		}
	}

	c.mu.Lock()
	c.fragmentsEmitted++
	c.mu.Unlock()
}

// Fatal returns a channel that receives the fatal pipeline error, if one
// occurs. Only capture-path errors are fatal.
func (c *Coordinator) Fatal() <-chan error {
	return c.fatal
}

// Stop shuts the pipeline down: halts the source, lets the chunking stage
// drain remaining frames, lets the processing stage drain queued chunks to
// completion, and joins both goroutines before returning. After Stop
// returns, no further output is emitted.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.logger.Info("Stopping pipeline...")

		if err := c.source.Stop(); err != nil {
			c.logger.Warn("Error stopping capture source",
				slog.String("error", err.Error()),
			)
		}

		c.wg.Wait()
		c.cancel()

		stats := c.GetStats()
		mergerStats := c.merger.GetStats()
		c.logger.Info("Pipeline stopped",
			slog.Uint64("chunks_processed", stats.ChunksProcessed),
			slog.Uint64("chunks_failed", stats.ChunksFailed),
			slog.Uint64("fragments_emitted", stats.FragmentsEmitted),
			slog.Uint64("words_emitted", mergerStats.WordsEmitted),
		)
	})
}

// Abort cancels in-flight work before stopping. Used on fatal errors, where
// draining queued chunks through a failed session is pointless.
func (c *Coordinator) Abort() {
	c.cancel()
	c.Stop()
}

// GetStats returns current pipeline statistics
func (c *Coordinator) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		ChunksProcessed:  c.chunksProcessed,
		ChunksFailed:     c.chunksFailed,
		FragmentsEmitted: c.fragmentsEmitted,
		ChunkQueueSize:   len(c.chunks),
	}
}

// GetMergerStats returns current merger statistics
func (c *Coordinator) GetMergerStats() transcript.MergerStats {
	return c.merger.GetStats()
}

// GetChunkerStats returns current chunker statistics
func (c *Coordinator) GetChunkerStats() audio.ChunkerStats {
	return c.chunker.GetStats()
}

// GetSourceStats returns current capture statistics
func (c *Coordinator) GetSourceStats() capture.SourceStats {
	return c.source.GetStats()
}
