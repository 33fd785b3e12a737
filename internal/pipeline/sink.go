package pipeline

import (
	"fmt"
	"io"
)

// FragmentSink receives each emitted transcript fragment as it is produced.
// Implementations must not buffer: fragments have to reach the reader the
// moment they are emitted.
type FragmentSink interface {
	WriteFragment(text string) error
}

// WriterSink writes fragments to an io.Writer, each prefixed by a single
// space, exactly as they are emitted. os.Stdout is unbuffered, so writes
// appear immediately.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink creates a sink over the given writer
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// WriteFragment writes one space-prefixed fragment
func (s *WriterSink) WriteFragment(text string) error {
	if _, err := fmt.Fprint(s.w, " ", text); err != nil {
		return fmt.Errorf("write fragment: %w", err)
	}

	return nil
}
