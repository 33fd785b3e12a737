// Package audio handles PCM accumulation, fixed-duration chunking, and format conversion.
// It slices the incoming sample stream into full chunks for transcription and
// encodes them as WAV payloads.
package audio
