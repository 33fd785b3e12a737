// Package capture produces raw PCM sample frames from a live audio input.
// The hardware boundary is the Device interface; Source owns the capture
// goroutine and the bounded frame queue feeding the chunking stage.
package capture
