package transcription

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/skypro1111/live-transcriber/internal/audio"
)

// Config contains Whisper engine configuration
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	Language      string
	Prompt        string
	Temperature   float32
	Timeout       time.Duration
	MaxConcurrent int
}

// WhisperEngine transcribes audio chunks through the OpenAI audio API,
// requesting per-word timestamp granularity.
type WhisperEngine struct {
	config    Config
	client    *openai.Client
	semaphore chan struct{} // Concurrency cap

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// EngineStats represents engine statistics
type EngineStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// NewWhisperEngine creates a new Whisper transcription engine
func NewWhisperEngine(config Config) (*WhisperEngine, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if config.Model == "" {
		config.Model = "whisper-1"
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &WhisperEngine{
		config:    config,
		client:    openai.NewClientWithConfig(clientConfig),
		semaphore: make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Transcribe encodes the chunk as WAV and submits it for word-level
// transcription. Failures are wrapped as *Error; there are no retries, the
// chunk simply contributes no words.
func (e *WhisperEngine) Transcribe(ctx context.Context, chunk *audio.Chunk) ([]Word, error) {
	select {
	case e.semaphore <- struct{}{}:
		defer func() { <-e.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()
	e.incrementTotalRequests()

	wavData, err := audio.EncodeWAV(chunk.Samples, chunk.SampleRate)
	if err != nil {
		e.incrementFailedRequests()
		return nil, &Error{ChunkID: chunk.ID, Err: fmt.Errorf("encode WAV: %w", err)}
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	request := openai.AudioRequest{
		Model:       e.config.Model,
		FilePath:    chunk.ID + ".wav",
		Reader:      bytes.NewReader(wavData),
		Language:    e.config.Language,
		Prompt:      e.config.Prompt,
		Temperature: e.config.Temperature,
		Format:      openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	}

	response, err := e.client.CreateTranscription(reqCtx, request)
	if err != nil {
		e.incrementFailedRequests()
		return nil, &Error{ChunkID: chunk.ID, Err: err}
	}

	e.recordSuccess(time.Since(startTime))

	words := make([]Word, 0, len(response.Words))
	for _, w := range response.Words {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		words = append(words, Word{
			Text:  text,
			Start: w.Start,
			End:   w.End,
		})
	}

	return words, nil
}

func (e *WhisperEngine) incrementTotalRequests() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.totalRequests++
}

func (e *WhisperEngine) incrementFailedRequests() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failedRequests++
}

func (e *WhisperEngine) recordSuccess(responseTime time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.successRequests++

	// Simple moving average
	if e.avgResponseTime == 0 {
		e.avgResponseTime = responseTime
	} else {
		e.avgResponseTime = (e.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current engine statistics
func (e *WhisperEngine) GetStats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	successRate := float64(0)
	if e.totalRequests > 0 {
		successRate = float64(e.successRequests) / float64(e.totalRequests) * 100
	}

	return EngineStats{
		TotalRequests:   e.totalRequests,
		SuccessRequests: e.successRequests,
		FailedRequests:  e.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: e.avgResponseTime,
		ActiveRequests:  len(e.semaphore),
	}
}

// Close waits for all active requests to complete
func (e *WhisperEngine) Close() error {
	for i := 0; i < e.config.MaxConcurrent; i++ {
		e.semaphore <- struct{}{}
	}

	return nil
}
