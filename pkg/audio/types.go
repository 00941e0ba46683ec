// Package audio decodes recorded audio into the 16-bit PCM chunks that STT
// providers consume.
//
// Only WAV input is accepted. Decoding and resampling are delegated to
// gopxl/beep; this package only adapts its float samples to little-endian
// int16 mono PCM and keeps track of the stream position.
package audio

import (
	"errors"
	"time"
)

// ErrUnsupportedFormat is returned when a file is not a WAV file.
var ErrUnsupportedFormat = errors.New("audio: unsupported format, only .wav files are accepted")

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond is the PCM data rate of f at 16 bits per sample.
func (f Format) BytesPerSecond() int { return f.SampleRate * f.Channels * 2 }

// Chunk is one slice of decoded PCM audio.
type Chunk struct {
	// Data is 16-bit signed little-endian PCM in the stream's Format.
	Data []byte

	// Offset is where the chunk starts, relative to the start of the stream.
	Offset time.Duration

	// Duration is the length of the chunk.
	Duration time.Duration
}

// Stream is a finite source of PCM chunks.
type Stream interface {
	// Next returns the next chunk, or io.EOF once the stream is exhausted.
	Next() (Chunk, error)

	// Format reports the PCM format of every chunk.
	Format() Format

	// Total is the full length of the stream, 0 when unknown.
	Total() time.Duration

	// Close releases the underlying file.
	Close() error
}
