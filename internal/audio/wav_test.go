package audio

import (
	"math"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	// Generate test audio samples (440Hz sine wave for 0.1 seconds at 16kHz)
	sampleRate := 16000
	duration := 0.1
	frequency := 440.0

	numSamples := int(float64(sampleRate) * duration)
	samples := make([]int16, numSamples)

	for i := 0; i < numSamples; i++ {
		ts := float64(i) / float64(sampleRate)
		amplitude := 16383.0 // Half of max int16 to avoid clipping
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*frequency*ts))
	}

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	// WAV header should be 44 bytes followed by the raw samples
	expectedSize := 44 + len(samples)*2
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	if string(wavData[0:4]) != "RIFF" || string(wavData[8:12]) != "WAVE" {
		t.Error("Generated WAV is missing RIFF/WAVE header")
	}

	wavDuration, err := WAVDuration(wavData)
	if err != nil {
		t.Fatalf("WAVDuration failed: %v", err)
	}

	expectedDuration := float64(numSamples) / float64(sampleRate)
	if math.Abs(wavDuration-expectedDuration) > 0.001 {
		t.Errorf("Expected duration %.3f, got %.3f", expectedDuration, wavDuration)
	}
}

func TestDecodeWAV(t *testing.T) {
	originalSamples := []int16{100, -200, 300, -400, 500}
	sampleRate := 16000

	wavData, err := EncodeWAV(originalSamples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decodedSamples, decodedSampleRate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decodedSampleRate != sampleRate {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, decodedSampleRate)
	}

	if len(decodedSamples) != len(originalSamples) {
		t.Errorf("Expected %d samples, got %d", len(originalSamples), len(decodedSamples))
	}

	for i, original := range originalSamples {
		if i >= len(decodedSamples) {
			break
		}
		if decodedSamples[i] != original {
			t.Errorf("Sample %d: expected %d, got %d", i, original, decodedSamples[i])
		}
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	_, err := EncodeWAV([]int16{}, 16000)
	if err == nil {
		t.Error("Expected error for empty samples")
	}
}

func TestEncodeWAVInvalidSampleRate(t *testing.T) {
	samples := []int16{100, 200, 300}

	_, err := EncodeWAV(samples, 0)
	if err == nil {
		t.Error("Expected error for zero sample rate")
	}

	_, err = EncodeWAV(samples, -1000)
	if err == nil {
		t.Error("Expected error for negative sample rate")
	}
}

func TestDecodeWAVInvalid(t *testing.T) {
	// Too short
	if _, _, err := DecodeWAV([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for too short WAV data")
	}

	// Corrupted header
	invalidWAV := make([]byte, 50)
	copy(invalidWAV[0:4], []byte("FAKE"))
	if _, _, err := DecodeWAV(invalidWAV); err == nil {
		t.Error("Expected error for invalid RIFF header")
	}
}

func TestWAVDurationFullSecond(t *testing.T) {
	sampleRate := 16000
	samples := make([]int16, sampleRate) // 1 second
	for i := range samples {
		samples[i] = int16(i % 1000)
	}

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	duration, err := WAVDuration(wavData)
	if err != nil {
		t.Fatalf("WAVDuration failed: %v", err)
	}

	if math.Abs(duration-1.0) > 0.001 {
		t.Errorf("Expected duration 1.000, got %.3f", duration)
	}
}
