// Package transcription implements the client for the speech-to-text API.
// It frames audio chunks as WAV payloads, requests word-level timestamps,
// and manages request concurrency limits and statistics.
package transcription
