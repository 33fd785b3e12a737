package capture

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Device is the boundary collaborator providing blocking audio reads.
// Implementations own the exclusive hardware (or stream) handle.
type Device interface {
	// Read blocks until up to n samples are available and returns them.
	// A short read is valid; io.EOF signals the end of the input stream.
	Read(n int) ([]int16, error)

	// Close releases the device handle.
	Close() error
}

// ReaderDevice adapts a PCM-16LE byte stream (stdin, a pipe from arecord,
// or a raw capture file) to the Device interface.
type ReaderDevice struct {
	r      *bufio.Reader
	closer io.Closer
}

// NewReaderDevice creates a Device backed by the given reader. If the reader
// is also an io.Closer it is closed when the device closes.
func NewReaderDevice(r io.Reader) *ReaderDevice {
	d := &ReaderDevice{r: bufio.NewReaderSize(r, 1<<16)}
	if c, ok := r.(io.Closer); ok {
		d.closer = c
	}
	return d
}

// Read reads up to n little-endian 16-bit samples from the stream
func (d *ReaderDevice) Read(n int) ([]int16, error) {
	buf := make([]byte, n*2)

	read, err := io.ReadFull(d.r, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}

	// Drop a trailing odd byte, a sample must be complete
	read -= read % 2

	samples := make([]int16, read/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}

	if len(samples) == 0 {
		return nil, io.EOF
	}

	return samples, nil
}

// Close closes the underlying reader when it supports closing
func (d *ReaderDevice) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
