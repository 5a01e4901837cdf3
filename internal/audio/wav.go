// Package audio provides WAV decoding helpers for the model engines.
package audio

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// WhisperSampleRate is the sample rate expected by the speech models.
const WhisperSampleRate = 16000

// Duration reads a WAV file header and returns its play time.
func Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, errors.New("invalid wav file")
	}
	return dec.Duration()
}

// DecodeFloat32 decodes a WAV file into normalized 32-bit float PCM samples
// and returns the sample rate.
func DecodeFloat32(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return nil, 0, err
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, errors.New("empty wav buffer")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	max := float32(int(1) << (bitDepth - 1))

	out := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = float32(v) / max
	}

	rate := int(dec.SampleRate)
	if rate == 0 && buf.Format != nil {
		rate = buf.Format.SampleRate
	}
	if rate == 0 {
		rate = WhisperSampleRate
	}
	return out, rate, nil
}

// Window returns the sample slice covering [offset, offset+length) at the
// given rate, clamped to the available samples.
func Window(samples []float32, rate int, offset, length time.Duration) []float32 {
	if rate <= 0 || len(samples) == 0 {
		return nil
	}

	start := int(offset.Seconds() * float64(rate))
	if start >= len(samples) {
		return nil
	}
	if start < 0 {
		start = 0
	}

	end := start + int(length.Seconds()*float64(rate))
	if end > len(samples) || length <= 0 {
		end = len(samples)
	}
	return samples[start:end]
}
