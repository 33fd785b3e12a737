// Package pipeline wires capture, chunking, transcription and merging into
// two concurrent stages connected by queues, and owns start/stop and
// graceful shutdown of the whole session.
package pipeline
