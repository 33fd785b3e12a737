package audio

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Chunk represents a fixed-duration window of audio ready for transcription.
// Chunks are immutable once emitted by the Chunker.
type Chunk struct {
	ID         string    `json:"chunk_id"`
	Index      uint64    `json:"index"`
	SampleRate int       `json:"sample_rate"`
	Samples    []int16   `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Duration returns the chunk length in seconds
func (c *Chunk) Duration() float64 {
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// ChunkingConfig contains configuration for the chunking process
type ChunkingConfig struct {
	ChunkDuration time.Duration
	SampleRate    int
}

// Chunker accumulates sample frames and emits full fixed-duration chunks.
// The accumulator resets to empty after each emission: no samples are carried
// between chunks, the merger deduplicates by word timestamps instead.
type Chunker struct {
	config          ChunkingConfig
	samplesPerChunk int

	acc   []int16
	count int
	index uint64

	// Statistics
	chunksEmitted  uint64
	samplesDropped uint64
	totalSamples   uint64

	mu sync.Mutex
}

// ChunkerStats represents chunker statistics
type ChunkerStats struct {
	ChunksEmitted  uint64 `json:"chunks_emitted"`
	TotalSamples   uint64 `json:"total_samples"`
	PendingSamples int    `json:"pending_samples"`
	SamplesDropped uint64 `json:"samples_dropped"`
}

// NewChunker creates a new fixed-duration audio chunker
func NewChunker(config ChunkingConfig) *Chunker {
	samplesPerChunk := int(config.ChunkDuration.Seconds() * float64(config.SampleRate))

	return &Chunker{
		config:          config,
		samplesPerChunk: samplesPerChunk,
		acc:             make([]int16, 0, samplesPerChunk),
	}
}

// AddFrame appends a frame of samples to the accumulator. When the
// accumulated count reaches a full chunk, the entire accumulated buffer is
// emitted as one Chunk and the accumulator resets to empty. Returns nil when
// no chunk completed on this frame.
func (c *Chunker) AddFrame(frame []int16) *Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.acc = append(c.acc, frame...)
	c.count += len(frame)
	c.totalSamples += uint64(len(frame))

	if c.count < c.samplesPerChunk {
		return nil
	}

	return c.emit()
}

// Flush emits whatever partial audio has accumulated since the last full
// chunk. Returns nil when the accumulator is empty. The caller decides
// whether the partial trailing chunk enters the pipeline or is dropped.
func (c *Chunker) Flush() *Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.count == 0 {
		return nil
	}

	return c.emit()
}

// Discard drops the accumulated partial audio and records it as lost.
// Enforces the strict full-chunks-only policy at session end.
func (c *Chunker) Discard() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := c.count
	c.samplesDropped += uint64(dropped)
	c.acc = make([]int16, 0, c.samplesPerChunk)
	c.count = 0

	return dropped
}

// emit packages the accumulator into a Chunk. Caller must hold the lock.
func (c *Chunker) emit() *Chunk {
	chunk := &Chunk{
		ID:         uuid.NewString(),
		Index:      c.index,
		SampleRate: c.config.SampleRate,
		Samples:    c.acc,
		CreatedAt:  time.Now(),
	}

	c.index++
	c.chunksEmitted++
	c.acc = make([]int16, 0, c.samplesPerChunk)
	c.count = 0

	return chunk
}

// SamplesPerChunk returns the configured full-chunk size in samples
func (c *Chunker) SamplesPerChunk() int {
	return c.samplesPerChunk
}

// PendingSamples returns the number of samples accumulated toward the next chunk
func (c *Chunker) PendingSamples() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count
}

// GetStats returns current chunker statistics
func (c *Chunker) GetStats() ChunkerStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ChunkerStats{
		ChunksEmitted:  c.chunksEmitted,
		TotalSamples:   c.totalSamples,
		PendingSamples: c.count,
		SamplesDropped: c.samplesDropped,
	}
}
