// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// StreamConfig. Use Session to feed controlled Transcript values and inspect
// which audio chunks were delivered.
//
// Example:
//
//	sess := mock.NewSession(mock.Final("hello", 0, time.Second))
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.StartStream(ctx, cfg)
//	// ... send audio, then Close; Finals drains the queued transcripts.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/scribe/pkg/provider/stt"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by StartStream. If nil, StartStream
	// returns a new default Session with buffered channels.
	Session stt.SessionHandle

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall
}

// StartStream records the call and returns Session, StartStreamErr.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return NewSession(), nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// SetKeywordsCall records a single invocation of Session.SetKeywords.
type SetKeywordsCall struct {
	// Keywords is a copy of the keyword list passed to SetKeywords.
	Keywords []stt.KeywordBoost
}

// Session is a mock implementation of stt.SessionHandle.
// Callers either pre-populate PartialsCh and FinalsCh and close them
// themselves, or build the session with NewSession, which closes both
// channels on Close the way real providers do.
type Session struct {
	mu        sync.Mutex
	closeOnce sync.Once

	// CloseChannels makes Close close PartialsCh and FinalsCh.
	CloseChannels bool

	// OnSendAudio, if set, is invoked for every SendAudio call after it has
	// been recorded. It runs without the session lock held.
	OnSendAudio func(chunk []byte)

	// PartialsCh is the channel returned by Partials(). Callers own this channel
	// and are responsible for sending to and closing it in tests.
	PartialsCh chan stt.Transcript

	// FinalsCh is the channel returned by Finals(). Callers own this channel.
	FinalsCh chan stt.Transcript

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// SetKeywordsErr, if non-nil, is returned by every SetKeywords call.
	SetKeywordsErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// SetKeywordsCalls records every call to SetKeywords in order.
	SetKeywordsCalls []SetKeywordsCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewSession returns a Session whose FinalsCh already holds finals and whose
// channels are closed by Close.
func NewSession(finals ...stt.Transcript) *Session {
	s := &Session{
		PartialsCh:    make(chan stt.Transcript, 16),
		FinalsCh:      make(chan stt.Transcript, len(finals)+16),
		CloseChannels: true,
	}
	for _, f := range finals {
		s.FinalsCh <- f
	}
	return s
}

// Final builds a final transcript spanning [start, start+dur). Words are
// split from text and share the given confidence.
func Final(text string, start, dur time.Duration, confidence float64) stt.Transcript {
	t := stt.Transcript{
		Text:       text,
		IsFinal:    true,
		Confidence: confidence,
		Timestamp:  start,
		Duration:   dur,
	}
	for _, w := range strings.Fields(text) {
		t.Words = append(t.Words, stt.WordDetail{Word: w, Confidence: confidence})
	}
	return t
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	err, hook := s.SendAudioErr, s.OnSendAudio
	s.mu.Unlock()

	if hook != nil && err == nil {
		hook(cp)
	}
	return err
}

// Partials returns PartialsCh. The caller must have initialised PartialsCh before
// calling this method.
func (s *Session) Partials() <-chan stt.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PartialsCh
}

// Finals returns FinalsCh.
func (s *Session) Finals() <-chan stt.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FinalsCh
}

// SetKeywords records the call and returns SetKeywordsErr.
func (s *Session) SetKeywords(keywords []stt.KeywordBoost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kw := make([]stt.KeywordBoost, len(keywords))
	copy(kw, keywords)
	s.SetKeywordsCalls = append(s.SetKeywordsCalls, SetKeywordsCall{Keywords: kw})
	return s.SetKeywordsErr
}

// SendAudioCallCount returns the number of SendAudio calls. Thread-safe.
func (s *Session) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// Close records the call and returns CloseErr. With CloseChannels set the
// first call closes both transcript channels.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if s.CloseChannels {
		s.closeOnce.Do(func() {
			close(s.PartialsCh)
			close(s.FinalsCh)
		})
	}
	return s.CloseErr
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.SetKeywordsCalls = nil
	s.CloseCallCount = 0
}

// Ensure Session implements stt.SessionHandle at compile time.
var _ stt.SessionHandle = (*Session)(nil)
