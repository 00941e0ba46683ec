// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. It implements the stt.Provider interface.
//
// Deepgram reports both a raw "word" and a "punctuated_word" for every token.
// The punctuated form becomes the display text and the raw form is carried as
// [stt.WordDetail.LexicalForm] when the two differ.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/scribe/pkg/provider/stt"
	"github.com/coder/websocket"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000

	// closeGrace bounds how long Close waits for Deepgram to deliver the
	// results for audio flushed by CloseStream.
	closeGrace = 5 * time.Second
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithSampleRate sets the audio sample rate in Hz for the provider-level default.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithEndpoint overrides the streaming endpoint. Used by tests and
// self-hosted Deepgram deployments.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey     string
	endpoint   string
	model      string
	language   string
	sampleRate int
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   deepgramEndpoint,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session with Deepgram.
// It respects cfg.SampleRate, cfg.Language, and cfg.Keywords.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	sessCtx, cancel := context.WithCancel(ctx)
	sess := &session{
		conn:     conn,
		ctx:      sessCtx,
		cancel:   cancel,
		partials: make(chan stt.Transcript, 64),
		finals:   make(chan stt.Transcript, 64),
		audio:    make(chan []byte, 256),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.readLoop()
	go sess.writeLoop()

	return sess, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the given config.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sr))
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}

	// Nova-3 replaced weighted keywords with plain key terms.
	useKeyterm := strings.HasPrefix(p.model, "nova-3")
	for _, kw := range cfg.Keywords {
		if useKeyterm {
			q.Add("keyterm", kw.Keyword)
			continue
		}
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word           string  `json:"word"`
				PunctuatedWord string  `json:"punctuated_word"`
				Start          float64 `json:"start"`
				End            float64 `json:"end"`
				Confidence     float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// session is a live Deepgram streaming session. It implements stt.SessionHandle.
type session struct {
	conn     *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	partials chan stt.Transcript
	finals   chan stt.Transcript
	audio    chan []byte

	done     chan struct{}
	readDone chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

var _ stt.SessionHandle = (*session)(nil)

// SendAudio queues a PCM audio chunk for delivery to Deepgram.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("deepgram: session is closed")
	}
}

// Partials returns the channel of interim transcripts.
func (s *session) Partials() <-chan stt.Transcript { return s.partials }

// Finals returns the channel of final transcripts.
func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// SetKeywords always fails: Deepgram fixes keywords when the stream opens.
func (s *session) SetKeywords(_ []stt.KeywordBoost) error {
	return fmt.Errorf("deepgram: mid-session keyword updates: %w", stt.ErrNotSupported)
}

// Close flushes queued audio, asks Deepgram to finalise the stream and waits
// a bounded time for the remaining results before tearing the socket down.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		select {
		case <-s.readDone:
		case <-time.After(closeGrace):
			slog.Warn("deepgram: timed out waiting for final results")
		}
		s.cancel()
		s.wg.Wait()
		_ = s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// writeLoop forwards audio to Deepgram. Once the session is closing it drains
// the queue and sends CloseStream so the server emits its last results.
func (s *session) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(s.ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			for {
				select {
				case chunk := <-s.audio:
					if err := s.conn.Write(s.ctx, websocket.MessageBinary, chunk); err != nil {
						return
					}
				default:
					_ = s.conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
					return
				}
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// readLoop receives JSON messages from Deepgram and dispatches them to the
// partials and finals channels. Partials are dropped when nobody keeps up;
// finals are never dropped while the session context is alive.
func (s *session) readLoop() {
	defer s.wg.Done()
	defer close(s.readDone)
	defer close(s.partials)
	defer close(s.finals)

	for {
		_, msg, err := s.conn.Read(s.ctx)
		if err != nil {
			return
		}

		t, ok := parseDeepgramResponse(msg)
		if !ok {
			continue
		}

		if !t.IsFinal {
			select {
			case s.partials <- t:
			default:
			}
			continue
		}
		if t.Text == "" {
			continue
		}
		select {
		case s.finals <- t:
		case <-s.ctx.Done():
			return
		}
	}
}

// parseDeepgramResponse parses a raw Deepgram WebSocket message into a Transcript.
// Returns (Transcript, true) on success, or (zero, false) if the message should be ignored.
func parseDeepgramResponse(data []byte) (stt.Transcript, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Transcript{}, false
	}
	if resp.Type != "Results" {
		return stt.Transcript{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return stt.Transcript{}, false
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]stt.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		display := w.PunctuatedWord
		if display == "" {
			display = w.Word
		}
		var lexical string
		if w.Word != display {
			lexical = w.Word
		}
		words = append(words, stt.WordDetail{
			Word:        display,
			LexicalForm: lexical,
			Start:       seconds(w.Start),
			End:         seconds(w.End),
			Confidence:  w.Confidence,
		})
	}

	return stt.Transcript{
		Text:       alt.Transcript,
		IsFinal:    resp.IsFinal,
		Confidence: alt.Confidence,
		Words:      words,
		Timestamp:  seconds(resp.Start),
		Duration:   seconds(resp.Duration),
	}, true
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
