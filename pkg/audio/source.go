package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

const (
	defaultSampleRate    = 16000
	defaultChunkDuration = 100 * time.Millisecond

	// resampleQuality trades CPU for fidelity; 4 is plenty for speech.
	resampleQuality = 4
)

// Option configures a Source.
type Option func(*Source)

// WithSampleRate sets the output sample rate. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(s *Source) {
		if rate > 0 {
			s.format.SampleRate = rate
		}
	}
}

// WithChunkDuration sets how much audio each call to Next returns.
// Defaults to 100ms.
func WithChunkDuration(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.chunk = d
		}
	}
}

// Source streams a WAV file as mono 16-bit PCM at a fixed sample rate.
// A Source is not safe for concurrent use.
type Source struct {
	path   string
	format Format
	chunk  time.Duration

	decoder beep.StreamSeekCloser
	stream  beep.Streamer
	buf     [][2]float64

	emitted int // output samples returned so far
	total   time.Duration
}

var _ Stream = (*Source)(nil)

// Open decodes the WAV file at path. The caller must Close the source.
func Open(path string, opts ...Option) (*Source, error) {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return nil, fmt.Errorf("audio: open %q: %w", path, ErrUnsupportedFormat)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %q: %w", path, err)
	}
	s, err := Decode(f, opts...)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("audio: open %q: %w", path, err)
	}
	s.path = path
	return s, nil
}

// Decode reads WAV data from rc. Closing the returned Source closes rc.
func Decode(rc io.ReadCloser, opts ...Option) (*Source, error) {
	decoder, srcFormat, err := wav.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}

	s := &Source{
		format:  Format{SampleRate: defaultSampleRate, Channels: 1},
		chunk:   defaultChunkDuration,
		decoder: decoder,
		stream:  decoder,
		total:   srcFormat.SampleRate.D(decoder.Len()),
	}
	for _, o := range opts {
		o(s)
	}

	target := beep.SampleRate(s.format.SampleRate)
	if srcFormat.SampleRate != target {
		s.stream = beep.Resample(resampleQuality, srcFormat.SampleRate, target, decoder)
	}
	s.buf = make([][2]float64, max(target.N(s.chunk), 1))
	return s, nil
}

// Path returns the file the source was opened from, "" for Decode.
func (s *Source) Path() string { return s.path }

// Format returns the output PCM format: mono at the configured rate.
func (s *Source) Format() Format { return s.format }

// Total returns the length of the decoded file.
func (s *Source) Total() time.Duration { return s.total }

// Position returns how much audio Next has returned so far.
func (s *Source) Position() time.Duration {
	return beep.SampleRate(s.format.SampleRate).D(s.emitted)
}

// Next returns the next chunk of PCM or io.EOF at the end of the file.
func (s *Source) Next() (Chunk, error) {
	n, _ := s.stream.Stream(s.buf)
	if n == 0 {
		if err := s.decoder.Err(); err != nil {
			return Chunk{}, fmt.Errorf("audio: decode: %w", err)
		}
		return Chunk{}, io.EOF
	}

	rate := beep.SampleRate(s.format.SampleRate)
	c := Chunk{
		Data:     FramesToPCM16Mono(s.buf[:n]),
		Offset:   rate.D(s.emitted),
		Duration: rate.D(n),
	}
	s.emitted += n
	return c, nil
}

// Close releases the decoder and the underlying file.
func (s *Source) Close() error {
	if err := s.decoder.Close(); err != nil {
		return fmt.Errorf("audio: close: %w", err)
	}
	return nil
}
