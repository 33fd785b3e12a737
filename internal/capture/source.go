package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// CaptureError is a fatal device failure. A device read error terminates the
// capture loop and is never retried; the coordinator treats it as a reason
// for full shutdown.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Config contains capture source configuration
type Config struct {
	FrameSize int // samples per device read
	QueueSize int // frames buffered toward the chunking stage
}

// Source continuously reads fixed-size sample frames from a Device on a
// background goroutine and pushes them onto a bounded frame queue.
type Source struct {
	device Device
	config Config
	logger *slog.Logger

	frames chan []int16

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started  bool
	stopOnce sync.Once

	// Statistics
	framesCaptured  uint64
	samplesCaptured uint64

	err error
	mu  sync.RWMutex
}

// SourceStats represents capture statistics
type SourceStats struct {
	FramesCaptured  uint64 `json:"frames_captured"`
	SamplesCaptured uint64 `json:"samples_captured"`
}

// NewSource creates a new capture source over the given device
func NewSource(device Device, config Config, logger *slog.Logger) *Source {
	ctx, cancel := context.WithCancel(context.Background())

	return &Source{
		device: device,
		config: config,
		logger: logger,
		frames: make(chan []int16, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins continuous capture on a background goroutine
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("capture source already started")
	}
	s.started = true

	s.wg.Add(1)
	go s.captureLoop()

	s.logger.Info("Capture source started",
		slog.Int("frame_size", s.config.FrameSize),
		slog.Int("queue_size", s.config.QueueSize),
	)

	return nil
}

// captureLoop reads frames from the device until stopped, the stream ends,
// or a read fails. The liveness check happens once per iteration.
func (s *Source) captureLoop() {
	defer s.wg.Done()
	defer close(s.frames)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		frame, err := s.device.Read(s.config.FrameSize)
		if err != nil {
			if err == io.EOF {
				s.logger.Info("Audio input stream ended")
				return
			}

			// Stop closes the device to unblock a pending read; the
			// resulting error is part of shutdown, not a device failure
			if s.ctx.Err() != nil {
				return
			}

			s.setErr(&CaptureError{Op: "read", Err: err})
			s.logger.Error("Device read failed, capture terminating",
				slog.String("error", err.Error()),
			)
			return
		}

		select {
		case s.frames <- frame:
			s.mu.Lock()
			s.framesCaptured++
			s.samplesCaptured += uint64(len(frame))
			s.mu.Unlock()
		case <-s.ctx.Done():
			return
		}
	}
}

// Frames returns the frame queue. The channel closes when capture has
// terminated, whether by Stop, end of stream, or a fatal device error.
func (s *Source) Frames() <-chan []int16 {
	return s.frames
}

// Stop halts capture and blocks until the capture goroutine has fully
// quiesced. The device is closed before the join so that a read blocked on
// the device unblocks instead of stalling shutdown.
func (s *Source) Stop() error {
	var closeErr error

	s.stopOnce.Do(func() {
		s.cancel()
		closeErr = s.device.Close()
		s.wg.Wait()

		stats := s.GetStats()
		s.logger.Info("Capture source stopped",
			slog.Uint64("frames_captured", stats.FramesCaptured),
			slog.Uint64("samples_captured", stats.SamplesCaptured),
		)
	})

	return closeErr
}

// Err returns the fatal capture error, if any
func (s *Source) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Source) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// GetStats returns current capture statistics
func (s *Source) GetStats() SourceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SourceStats{
		FramesCaptured:  s.framesCaptured,
		SamplesCaptured: s.samplesCaptured,
	}
}
