package whisper

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/scribe/pkg/provider/stt"
)

// closeFlushTimeout bounds the inference of audio still buffered at Close.
const closeFlushTimeout = 30 * time.Second

// inferFunc transcribes one utterance. Word and transcript timings in the
// result are relative to the start of pcm; the caller shifts them.
type inferFunc func(ctx context.Context, pcm []byte, prompt string) (stt.Transcript, error)

// stream simulates a streaming session on top of a batch engine. It is shared
// by the HTTP and native providers and implements stt.SessionHandle. All
// segmentation state is confined to the run goroutine.
type stream struct {
	seg   *segmenter
	infer inferFunc
	name  string

	promptMu sync.RWMutex
	prompt   string

	audioCh  chan []byte
	partials chan stt.Transcript
	finals   chan stt.Transcript

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

var _ stt.SessionHandle = (*stream)(nil)

func newStream(ctx context.Context, name string, seg *segmenter, keywords []stt.KeywordBoost, infer inferFunc) *stream {
	s := &stream{
		seg:      seg,
		infer:    infer,
		name:     name,
		prompt:   promptFromKeywords(keywords),
		audioCh:  make(chan []byte, 256),
		partials: make(chan stt.Transcript, 64),
		finals:   make(chan stt.Transcript, 64),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run(ctx)
	return s
}

// SendAudio queues a chunk of raw 16-bit little-endian signed PCM audio.
// Calling SendAudio after Close returns an error.
func (s *stream) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("whisper: session is closed")
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errors.New("whisper: session is closed")
	}
}

// Partials emits a copy of every final, since whisper.cpp has no interim
// results. Partials are dropped when the channel is full.
func (s *stream) Partials() <-chan stt.Transcript { return s.partials }

// Finals emits one transcript per detected utterance.
func (s *stream) Finals() <-chan stt.Transcript { return s.finals }

// SetKeywords replaces the vocabulary hint. whisper.cpp has no keyword
// boosting, so the keywords are passed as the initial prompt of every
// following inference.
func (s *stream) SetKeywords(keywords []stt.KeywordBoost) error {
	s.promptMu.Lock()
	s.prompt = promptFromKeywords(keywords)
	s.promptMu.Unlock()
	return nil
}

// Close stops accepting audio, transcribes whatever speech is still buffered
// and closes both output channels. Calling Close more than once is safe.
func (s *stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *stream) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	// The final flush gets its own context: ctx may already be cancelled.
	finish := func() {
		fc, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
		defer cancel()
		// Audio queued before Close still belongs to the stream.
	drain:
		for {
			select {
			case chunk := <-s.audioCh:
				if u, ok := s.seg.push(chunk); ok {
					s.transcribe(fc, u)
				}
			default:
				break drain
			}
		}
		if u, ok := s.seg.flush(); ok {
			s.transcribe(fc, u)
		}
	}

	for {
		select {
		case <-ctx.Done():
			finish()
			return
		case <-s.done:
			finish()
			return
		case chunk := <-s.audioCh:
			if u, ok := s.seg.push(chunk); ok {
				s.transcribe(ctx, u)
			}
		}
	}
}

func (s *stream) transcribe(ctx context.Context, u utterance) {
	s.promptMu.RLock()
	prompt := s.prompt
	s.promptMu.RUnlock()

	t, err := s.infer(ctx, u.pcm, prompt)
	if err != nil {
		slog.Error("whisper inference failed", "engine", s.name, "offset", u.offset, "error", err)
		return
	}
	t.Text = strings.TrimSpace(t.Text)
	if t.Text == "" {
		return
	}

	t.Timestamp = u.offset
	if t.Duration == 0 {
		t.Duration = s.seg.position(len(u.pcm))
	}
	for i := range t.Words {
		t.Words[i].Start += u.offset
		t.Words[i].End += u.offset
	}

	partial := t
	partial.IsFinal = false
	select {
	case s.partials <- partial:
	default:
	}

	t.IsFinal = true
	select {
	case s.finals <- t:
	case <-ctx.Done():
		slog.Warn("whisper: dropped final transcript", "engine", s.name, "offset", u.offset)
	}
}

// promptFromKeywords joins keyword hints into an initial prompt.
func promptFromKeywords(keywords []stt.KeywordBoost) string {
	if len(keywords) == 0 {
		return ""
	}
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if k := strings.TrimSpace(kw.Keyword); k != "" {
			parts = append(parts, k)
		}
	}
	return strings.Join(parts, ", ")
}

// meanConfidence averages word confidences, 0 when there are none.
func meanConfidence(words []stt.WordDetail) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
