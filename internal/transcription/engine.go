package transcription

import (
	"context"
	"fmt"

	"github.com/skypro1111/live-transcriber/internal/audio"
)

// Word is a single transcribed token with chunk-relative timing in seconds.
// Ordering within a chunk's word list is chronological.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Engine transcribes one audio chunk into an ordered word list.
// The pipeline treats it as a black box: confidence scores and alternate
// hypotheses are not interpreted.
type Engine interface {
	Transcribe(ctx context.Context, chunk *audio.Chunk) ([]Word, error)
}

// Error is a per-chunk transcription failure. It is recoverable: the
// affected chunk contributes zero words and the pipeline continues.
type Error struct {
	ChunkID string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcription of chunk %s: %v", e.ChunkID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
