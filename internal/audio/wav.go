package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const wavHeaderSize = 44

// wavHeader is the canonical 44-byte RIFF/WAVE header for PCM audio
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// EncodeWAV wraps PCM-16 mono samples in a playable WAV container.
// This is the payload format sent to the transcription API.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	const (
		numChannels   = uint16(1)  // Mono
		bitsPerSample = uint16(16) // 16-bit PCM
	)
	dataSize := uint32(len(samples) * 2)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(wavHeaderSize-8) + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)*2))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV decodes a PCM-16 mono WAV payload back into samples and its sample rate
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < wavHeaderSize {
		return nil, 0, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	buf := bytes.NewReader(data)
	var header wavHeader

	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing RIFF/WAVE header")
	}

	if string(header.Subchunk1ID[:]) != "fmt " {
		return nil, 0, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}

	if string(header.Subchunk2ID[:]) != "data" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing data chunk")
	}

	if header.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", header.AudioFormat)
	}

	if header.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", header.BitsPerSample)
	}

	if header.NumChannels != 1 {
		return nil, 0, fmt.Errorf("unsupported channel count: %d (only mono is supported)", header.NumChannels)
	}

	numSamples := int(header.Subchunk2Size) / 2
	if numSamples <= 0 {
		return nil, 0, fmt.Errorf("no audio data found")
	}

	samples := make([]int16, numSamples)
	if err := binary.Read(buf, binary.LittleEndian, samples); err != nil {
		return nil, 0, fmt.Errorf("failed to read audio samples: %w", err)
	}

	return samples, int(header.SampleRate), nil
}

// WAVDuration calculates the duration of a WAV payload in seconds
func WAVDuration(data []byte) (float64, error) {
	if len(data) < wavHeaderSize {
		return 0, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	if sampleRate == 0 {
		return 0, fmt.Errorf("invalid sample rate: 0")
	}

	dataSize := binary.LittleEndian.Uint32(data[40:44])
	numSamples := dataSize / 2

	return float64(numSamples) / float64(sampleRate), nil
}
