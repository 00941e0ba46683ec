// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/scribe/pkg/audio"
	"github.com/MrWong99/scribe/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO). The model is loaded once and shared across all sessions.
type NativeProvider struct {
	model    whisperlib.Model
	language string

	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int

	// whisper.cpp contexts are expensive; inference is serialised per
	// provider so concurrent sessions do not multiply memory use.
	mu sync.Mutex
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeSampleRate sets the audio sample rate in Hz. Defaults to 16000.
func WithNativeSampleRate(rate int) NativeOption {
	return func(p *NativeProvider) { p.sampleRate = rate }
}

// WithNativeSilenceThresholdMs sets the consecutive-silence duration (ms) that
// ends an utterance. Defaults to 500 ms.
func WithNativeSilenceThresholdMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.silenceThresholdMs = ms }
}

// WithNativeMaxBufferDurationMs sets the maximum buffered audio duration (ms)
// before a forced flush. Defaults to 10 000 ms.
func WithNativeMaxBufferDurationMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.maxBufferDurationMs = ms }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:               model,
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// StartStream opens a new transcription session. Zero values in cfg fall
// back to the provider defaults. Keywords become the initial prompt.
func (p *NativeProvider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cmp.Or(cfg.Language, p.language)
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = p.sampleRate
	}
	ch := max(cfg.Channels, 1)

	seg := newSegmenter(sr, ch, p.silenceThresholdMs, p.maxBufferDurationMs)
	infer := func(_ context.Context, pcm []byte, prompt string) (stt.Transcript, error) {
		return p.infer(audio.Float32Mono(pcm, ch), lang, prompt)
	}
	return newStream(ctx, "native", seg, cfg.Keywords, infer), nil
}

// infer runs whisper.cpp on mono float32 samples using a fresh context and
// assembles sub-word tokens into words. A word's confidence is the lowest
// probability among its tokens.
func (p *NativeProvider) infer(samples []float32, lang, prompt string) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wctx, err := p.model.NewContext()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}
	wctx.SetTokenTimestamps(true)
	if prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		t     stt.Transcript
		parts []string
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcript{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
		if segment.End > t.Duration {
			t.Duration = segment.End
		}

		var cur *stt.WordDetail
		for _, tok := range segment.Tokens {
			if !wctx.IsText(tok) {
				continue
			}
			prob := float64(tok.P)
			if cur == nil || strings.HasPrefix(tok.Text, " ") {
				t.Words = append(t.Words, stt.WordDetail{
					Word:       strings.TrimSpace(tok.Text),
					Start:      tok.Start,
					End:        tok.End,
					Confidence: prob,
				})
				cur = &t.Words[len(t.Words)-1]
				continue
			}
			cur.Word += tok.Text
			cur.End = tok.End
			cur.Confidence = min(cur.Confidence, prob)
		}
	}

	t.Words = dropEmptyWords(t.Words)
	t.Text = strings.Join(parts, " ")
	t.Confidence = meanConfidence(t.Words)
	return t, nil
}

func dropEmptyWords(words []stt.WordDetail) []stt.WordDetail {
	out := words[:0]
	for _, w := range words {
		if strings.TrimSpace(w.Word) != "" {
			out = append(out, w)
		}
	}
	return out
}
