// Package mock provides an in-memory implementation of [audio.Stream] for
// unit tests.
//
// The mock is safe for concurrent use. It records calls so tests can assert
// on them, and exposes fields that control the returned values.
//
// Typical usage:
//
//	s := mock.NewStream(16000, 100*time.Millisecond, 5) // five 100ms chunks
//	rec := recognize.New(provider)
//	err := rec.Run(ctx, s, func(ev recognize.Event) { ... })
package mock

import (
	"io"
	"sync"
	"time"

	"github.com/MrWong99/scribe/pkg/audio"
)

// Stream is a mock implementation of [audio.Stream]. It returns Chunks in
// order and io.EOF afterwards.
type Stream struct {
	mu sync.Mutex

	// Chunks are returned by Next in order.
	Chunks []audio.Chunk

	// FormatResult is returned by [Stream.Format].
	FormatResult audio.Format

	// TotalResult is returned by [Stream.Total].
	TotalResult time.Duration

	// NextErr, when set, is returned by Next once all Chunks are consumed
	// instead of io.EOF.
	NextErr error

	// CloseErr is returned by [Stream.Close].
	CloseErr error

	// CallCountNext records how many times Next was called.
	CallCountNext int

	// Closed reports whether Close was called.
	Closed bool

	pos int
}

var _ audio.Stream = (*Stream)(nil)

// NewStream returns a Stream with n silent mono chunks of length chunk at the
// given sample rate.
func NewStream(sampleRate int, chunk time.Duration, n int) *Stream {
	f := audio.Format{SampleRate: sampleRate, Channels: 1}
	size := int(chunk.Seconds()*float64(f.BytesPerSecond())) &^ 1
	s := &Stream{FormatResult: f, TotalResult: chunk * time.Duration(n)}
	for i := range n {
		s.Chunks = append(s.Chunks, audio.Chunk{
			Data:     make([]byte, size),
			Offset:   chunk * time.Duration(i),
			Duration: chunk,
		})
	}
	return s
}

// Next implements [audio.Stream].
func (s *Stream) Next() (audio.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountNext++
	if s.pos >= len(s.Chunks) {
		if s.NextErr != nil {
			return audio.Chunk{}, s.NextErr
		}
		return audio.Chunk{}, io.EOF
	}
	c := s.Chunks[s.pos]
	s.pos++
	return c, nil
}

// Format implements [audio.Stream].
func (s *Stream) Format() audio.Format { return s.FormatResult }

// Total implements [audio.Stream].
func (s *Stream) Total() time.Duration { return s.TotalResult }

// Close implements [audio.Stream].
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return s.CloseErr
}

// Consumed returns how many chunks Next has handed out.
func (s *Stream) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}
