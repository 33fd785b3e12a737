package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	Capture       CaptureConfig       `yaml:"capture"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Merge         MergeConfig         `yaml:"merge"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AudioConfig contains the fixed audio format and windowing parameters.
// Sample rate, channels and bit depth are invariant for the lifetime of a session.
type AudioConfig struct {
	SampleRate      int     `yaml:"sample_rate"`
	Channels        int     `yaml:"channels"`
	BitDepth        int     `yaml:"bit_depth"`
	FrameSize       int     `yaml:"frame_size"`       // samples per device read
	ChunkDuration   float64 `yaml:"chunk_duration"`   // seconds
	OverlapDuration float64 `yaml:"overlap_duration"` // seconds
}

// CaptureConfig contains audio capture configuration
type CaptureConfig struct {
	Input              string `yaml:"input"` // "stdin" or a PCM file path
	QueueSize          int    `yaml:"queue_size"`
	FlushPartialOnStop bool   `yaml:"flush_partial_on_stop"`
}

// PipelineConfig contains pipeline coordination parameters
type PipelineConfig struct {
	ChunkQueueSize int `yaml:"chunk_queue_size"`
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	APIKey        string  `yaml:"api_key"` // falls back to OPENAI_API_KEY
	BaseURL       string  `yaml:"base_url"`
	Model         string  `yaml:"model"`
	Language      string  `yaml:"language"`
	Prompt        string  `yaml:"prompt"`
	Temperature   float32 `yaml:"temperature"`
	Timeout       int     `yaml:"timeout"` // seconds
	MaxConcurrent int     `yaml:"max_concurrent"`
}

// MergeConfig contains transcript merge parameters
type MergeConfig struct {
	// MinMatchTokens is the threshold the longest common token run must
	// exceed before it is accepted as a genuine overlap.
	MinMatchTokens int `yaml:"min_match_tokens"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyDefaults()
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults fills in zero-valued optional fields
func (c *Config) applyDefaults() {
	if c.Audio.FrameSize == 0 {
		c.Audio.FrameSize = 1024
	}
	if c.Capture.Input == "" {
		c.Capture.Input = "stdin"
	}
	if c.Capture.QueueSize == 0 {
		c.Capture.QueueSize = 32
	}
	if c.Pipeline.ChunkQueueSize == 0 {
		c.Pipeline.ChunkQueueSize = 64
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = "whisper-1"
	}
	if c.Transcription.Timeout == 0 {
		c.Transcription.Timeout = 30
	}
	if c.Transcription.MaxConcurrent == 0 {
		c.Transcription.MaxConcurrent = 4
	}
	if c.Merge.MinMatchTokens == 0 {
		c.Merge.MinMatchTokens = 2
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		// Transcript fragments go to stdout, logs must not interleave with them
		c.Logging.Output = "stderr"
	}
}

// applyEnv resolves values that may come from the environment
func (c *Config) applyEnv() {
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Merge.Validate(); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.FrameSize < 1 {
		return fmt.Errorf("frame_size must be at least 1 sample, got %d", a.FrameSize)
	}

	if a.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %f", a.ChunkDuration)
	}

	if a.OverlapDuration <= 0 {
		return fmt.Errorf("overlap_duration must be positive, got %f", a.OverlapDuration)
	}

	if a.OverlapDuration >= a.ChunkDuration {
		return fmt.Errorf("overlap_duration (%f) must be less than chunk_duration (%f)",
			a.OverlapDuration, a.ChunkDuration)
	}

	return nil
}

// Validate validates capture configuration
func (c *CaptureConfig) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize)
	}

	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.ChunkQueueSize < 1 {
		return fmt.Errorf("chunk_queue_size must be at least 1, got %d", p.ChunkQueueSize)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty (set it in the config or via OPENAI_API_KEY)")
	}

	if t.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	if t.Temperature < 0 || t.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", t.Temperature)
	}

	return nil
}

// Validate validates merge configuration
func (m *MergeConfig) Validate() error {
	if m.MinMatchTokens < 1 {
		return fmt.Errorf("min_match_tokens must be at least 1, got %d", m.MinMatchTokens)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetChunkDuration returns the chunk duration as a time.Duration
func (a *AudioConfig) GetChunkDuration() time.Duration {
	return time.Duration(a.ChunkDuration * float64(time.Second))
}

// GetOverlapDuration returns the overlap duration as a time.Duration
func (a *AudioConfig) GetOverlapDuration() time.Duration {
	return time.Duration(a.OverlapDuration * float64(time.Second))
}

// SamplesPerChunk returns the number of samples in one full chunk
func (a *AudioConfig) SamplesPerChunk() int {
	return int(a.ChunkDuration * float64(a.SampleRate))
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
