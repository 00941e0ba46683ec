// Package recognize streams decoded audio into a speech-to-text session and
// turns each final transcript into a line of classified transcript words.
//
// Classification happens here, before words reach the transcript buffer: a
// word whose confidence is at or above the threshold keeps its text, anything
// below is displayed as the skip marker and keeps the engine's word as its
// lexical form so the user can restore or correct it.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/pkg/audio"
	"github.com/MrWong99/scribe/pkg/provider/stt"
	"github.com/MrWong99/scribe/pkg/transcript"
)

// ErrNoProvider is returned by [Recognizer.Run] when no STT provider is
// configured.
var ErrNoProvider = errors.New("recognize: no stt provider configured")

const (
	defaultThreshold  = 0.7
	defaultSkipMarker = "[SKIPPED]"
)

// Event is one of [Line], [Partial], [Progress] or [Done].
type Event interface {
	runID() string
}

// Line is a recognised segment ready for [transcript.Buffer.AddLine].
type Line struct {
	RunID string
	Stop  time.Duration
	Words []*transcript.WordAnnotation
}

// Partial carries interim text for status display. It never becomes a line.
type Partial struct {
	RunID string
	Text  string
}

// Progress reports how much audio has been sent to the engine.
type Progress struct {
	RunID    string
	Position time.Duration
	Total    time.Duration
}

// Done is always the last event of a run. Stopped is set when the run was
// cancelled rather than running out of audio.
type Done struct {
	RunID   string
	Stopped bool
	Err     error
}

func (e Line) runID() string     { return e.RunID }
func (e Partial) runID() string  { return e.RunID }
func (e Progress) runID() string { return e.RunID }
func (e Done) runID() string     { return e.RunID }

// RunIDOf returns the identifier of the run that produced ev.
func RunIDOf(ev Event) string { return ev.runID() }

// Recognizer drives recognition runs. Threshold, skip marker and keywords
// may be changed while a run is in progress; the change applies to the next
// final transcript.
type Recognizer struct {
	provider     stt.Provider
	providerName string
	metrics      *observe.Metrics
	language     string
	realtime     bool
	sleep        func(ctx context.Context, d time.Duration) error

	threshold atomic.Uint64

	mu         sync.Mutex
	skipMarker string
	keywords   []stt.KeywordBoost
	session    stt.SessionHandle
}

// Option configures a [Recognizer].
type Option func(*Recognizer)

// WithMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Recognizer) { r.metrics = m }
}

// WithProviderName labels provider errors in metrics and logs.
func WithProviderName(name string) Option {
	return func(r *Recognizer) {
		if name != "" {
			r.providerName = name
		}
	}
}

// WithLanguage sets the BCP-47 language passed to the provider.
func WithLanguage(lang string) Option {
	return func(r *Recognizer) { r.language = lang }
}

// WithThreshold sets the initial confidence threshold.
func WithThreshold(t float64) Option {
	return func(r *Recognizer) { r.threshold.Store(math.Float64bits(clamp01(t))) }
}

// WithSkipMarker sets the display text of words below the threshold.
func WithSkipMarker(marker string) Option {
	return func(r *Recognizer) { r.skipMarker = marker }
}

// WithKeywords sets the vocabulary hints sent when a session starts.
func WithKeywords(kw []stt.KeywordBoost) Option {
	return func(r *Recognizer) { r.keywords = append([]stt.KeywordBoost(nil), kw...) }
}

// WithRealtime paces audio at playback speed instead of sending it as fast
// as the provider accepts it.
func WithRealtime(on bool) Option {
	return func(r *Recognizer) { r.realtime = on }
}

// New returns a Recognizer for provider. provider may be nil, in which case
// every run fails with [ErrNoProvider].
func New(provider stt.Provider, opts ...Option) *Recognizer {
	r := &Recognizer{
		provider:     provider,
		providerName: "stt",
		skipMarker:   defaultSkipMarker,
		sleep:        sleepCtx,
	}
	r.threshold.Store(math.Float64bits(defaultThreshold))
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Threshold returns the current confidence threshold in [0, 1].
func (r *Recognizer) Threshold() float64 {
	return math.Float64frombits(r.threshold.Load())
}

// SetThreshold changes the confidence threshold, clamped to [0, 1].
func (r *Recognizer) SetThreshold(t float64) {
	r.threshold.Store(math.Float64bits(clamp01(t)))
}

// SetSkipMarker changes the display text of words below the threshold.
func (r *Recognizer) SetSkipMarker(marker string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipMarker = marker
}

// SetKeywords replaces the vocabulary hints. A running session is updated
// when its provider supports it.
func (r *Recognizer) SetKeywords(kw []stt.KeywordBoost) error {
	r.mu.Lock()
	r.keywords = append([]stt.KeywordBoost(nil), kw...)
	sess := r.session
	r.mu.Unlock()

	if sess == nil {
		return nil
	}
	if err := sess.SetKeywords(kw); err != nil {
		if errors.Is(err, stt.ErrNotSupported) {
			return nil
		}
		return fmt.Errorf("recognize: set keywords: %w", err)
	}
	return nil
}

// Run streams src into a new STT session and calls emit for every event.
// emit is called from several goroutines but never concurrently. Run
// returns when the audio is exhausted and the provider has delivered its
// last final, or when ctx is cancelled. Cancellation is a normal stop and
// returns nil; the final [Done] event reports it.
func (r *Recognizer) Run(ctx context.Context, src audio.Stream, emit func(Event)) error {
	runID := uuid.NewString()
	var emitMu sync.Mutex
	send := func(ev Event) {
		emitMu.Lock()
		defer emitMu.Unlock()
		emit(ev)
	}

	if r.provider == nil {
		send(Done{RunID: runID, Err: ErrNoProvider})
		return ErrNoProvider
	}

	ctx, span := observe.StartSpan(ctx, "recognize.run",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()
	log := observe.Logger(ctx).With("run_id", runID, "provider", r.providerName)

	r.metrics.ActiveRecognitions.Add(ctx, 1)
	defer r.metrics.ActiveRecognitions.Add(ctx, -1)

	format := src.Format()
	r.mu.Lock()
	keywords := append([]stt.KeywordBoost(nil), r.keywords...)
	r.mu.Unlock()

	sess, err := r.provider.StartStream(ctx, stt.StreamConfig{
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Language:   r.language,
		Keywords:   keywords,
	})
	if err != nil {
		r.metrics.RecordProviderError(ctx, r.providerName, "start")
		err = fmt.Errorf("recognize: start stream: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		send(Done{RunID: runID, Err: err})
		return err
	}
	r.mu.Lock()
	r.session = sess
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		// A restarted run may already have stored its own session.
		if r.session == sess {
			r.session = nil
		}
		r.mu.Unlock()
		_ = sess.Close()
	}()

	log.Info("recognition started", "total", src.Total(), "sample_rate", format.SampleRate)

	var (
		sent       atomic.Int64 // end of the audio handed to the provider
		firstAudio atomic.Int64 // unix nanos of the first chunk
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Close flushes the provider and closes the transcript channels,
		// which ends the receiving goroutines.
		defer sess.Close()
		total := src.Total()
		for {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunk, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("recognize: read audio: %w", err)
			}
			firstAudio.CompareAndSwap(0, time.Now().UnixNano())
			pos := chunk.Offset + chunk.Duration
			sent.Store(int64(pos))
			if err := sess.SendAudio(chunk.Data); err != nil {
				r.metrics.RecordProviderError(gctx, r.providerName, "send")
				return fmt.Errorf("recognize: send audio: %w", err)
			}
			send(Progress{RunID: runID, Position: pos, Total: total})
			if r.realtime {
				if err := r.sleep(gctx, chunk.Duration); err != nil {
					return err
				}
			}
		}
	})

	g.Go(func() error {
		var lastStop time.Duration
		finals := sess.Finals()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case t, ok := <-finals:
				if !ok {
					return nil
				}
				if strings.TrimSpace(t.Text) == "" && len(t.Words) == 0 {
					continue
				}
				if start := firstAudio.Load(); start != 0 {
					r.metrics.STTDuration.Record(gctx, time.Since(time.Unix(0, start)).Seconds())
				}
				stop := t.End()
				if stop <= 0 {
					stop = time.Duration(sent.Load())
				}
				stop = max(stop, lastStop)
				lastStop = stop

				words, skipped := r.classify(t)
				r.metrics.RecordWords(gctx, len(words)-skipped, skipped)
				log.Debug("final transcript", "stop", stop, "words", len(words))
				send(Line{RunID: runID, Stop: stop, Words: words})
			}
		}
	})

	g.Go(func() error {
		partials := sess.Partials()
		if partials == nil {
			return nil
		}
		for {
			select {
			case <-gctx.Done():
				return nil
			case t, ok := <-partials:
				if !ok {
					return nil
				}
				send(Partial{RunID: runID, Text: t.Text})
			}
		}
	})

	err = g.Wait()
	stopped := errors.Is(err, context.Canceled) && ctx.Err() != nil
	switch {
	case stopped:
		log.Info("recognition stopped")
		err = nil
	case err != nil:
		log.Error("recognition failed", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		log.Info("recognition completed", "position", time.Duration(sent.Load()))
	}
	send(Done{RunID: runID, Stopped: stopped, Err: err})
	return err
}

// Classify converts a final transcript into transcript words using the
// current threshold and skip marker. Transcripts without word detail are
// split on whitespace and every word inherits the transcript confidence.
func (r *Recognizer) Classify(t stt.Transcript) []*transcript.WordAnnotation {
	words, _ := r.classify(t)
	return words
}

func (r *Recognizer) classify(t stt.Transcript) (words []*transcript.WordAnnotation, skipped int) {
	threshold := r.Threshold()
	r.mu.Lock()
	marker := r.skipMarker
	r.mu.Unlock()

	details := t.Words
	if len(details) == 0 {
		for _, f := range strings.Fields(t.Text) {
			details = append(details, stt.WordDetail{Word: f, Confidence: t.Confidence})
		}
	}

	words = make([]*transcript.WordAnnotation, 0, len(details))
	for _, d := range details {
		if d.Word == "" {
			continue
		}
		label := ConfidenceLabel(d.Confidence)
		if d.Confidence < threshold {
			lexical := d.LexicalForm
			if lexical == "" {
				lexical = d.Word
			}
			words = append(words, transcript.NewWordWithLexical(marker, label, lexical))
			skipped++
			continue
		}
		if d.LexicalForm != "" && normalize(d.LexicalForm) != normalize(d.Word) {
			words = append(words, transcript.NewWordWithLexical(d.Word, label, d.LexicalForm))
			continue
		}
		words = append(words, transcript.NewWord(d.Word, label))
	}
	return words, skipped
}

// normalize folds case and strips surrounding punctuation so that a
// punctuated display form matches its bare lexical form.
func normalize(s string) string {
	return strings.ToLower(strings.TrimFunc(s, unicode.IsPunct))
}

// ConfidenceLabel formats a confidence in [0, 1] as a rounded percentage,
// e.g. 0.873 becomes "87".
func ConfidenceLabel(c float64) string {
	return fmt.Sprintf("%.0f", c*100)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
