// Package session is the application layer around the transcript buffer.
//
// A Session owns one [transcript.Buffer] and pairs every mutation with the
// render pass the buffer requires, so callers always see up-to-date text and
// offsets. It adds the correction rules of the editor (only uncertain words
// may be corrected), suggestion lookup, export and metrics.
//
// A Session is not safe for concurrent use. The terminal UI drives it from
// its single update goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/internal/suggest"
	"github.com/MrWong99/scribe/pkg/transcript"
)

var (
	// ErrUnknownWord is returned for word ids not present in the transcript.
	ErrUnknownWord = errors.New("session: unknown word")

	// ErrNotUncertain is returned when correcting a word the engine was sure about.
	ErrNotUncertain = errors.New("session: word is not uncertain")

	// ErrInvalidCorrection is returned for empty or multi-line corrections.
	ErrInvalidCorrection = errors.New("session: correction must be a single non-empty line")
)

// Stats summarises the transcript.
type Stats struct {
	Lines     int
	Words     int
	Uncertain int
	Corrected int
}

// Option configures a [Session].
type Option func(*Session)

// WithMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithSuggester sets the source of correction candidates.
func WithSuggester(sg *suggest.Suggester) Option {
	return func(s *Session) { s.suggester = sg }
}

// WithExportPath sets the file [Session.Export] writes when given no path.
func WithExportPath(path string) Option {
	return func(s *Session) { s.exportPath = path }
}

// Session wraps a transcript buffer.
type Session struct {
	buf        *transcript.Buffer
	metrics    *observe.Metrics
	suggester  *suggest.Suggester
	exportPath string
	corrected  map[int64]struct{}
}

// New returns an empty session.
func New(opts ...Option) *Session {
	s := &Session{
		buf:        transcript.New(),
		exportPath: "RecognizedText.txt",
		corrected:  make(map[int64]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.suggester == nil {
		s.suggester = suggest.New(suggest.WithMetrics(s.metrics))
	}
	return s
}

// Append adds a recognised line and returns the refreshed text.
func (s *Session) Append(ctx context.Context, stop time.Duration, words []*transcript.WordAnnotation) string {
	s.buf.AddLine(stop, words)
	s.metrics.LinesAppended.Add(ctx, 1)
	return s.refresh(ctx)
}

func (s *Session) refresh(ctx context.Context) string {
	start := time.Now()
	text := s.buf.RefreshText()
	s.metrics.RenderDuration.Record(ctx, time.Since(start).Seconds())
	return text
}

// Text returns the rendered transcript.
func (s *Session) Text() string { return s.buf.Text() }

// Cursor returns the offset of the last rendered rune.
func (s *Session) Cursor() int { return s.buf.SelectionCursor() }

// Buffer exposes the underlying buffer for read-only use.
func (s *Session) Buffer() *transcript.Buffer { return s.buf }

// WordAt returns the word at the rune offset in [Session.Text].
func (s *Session) WordAt(offset int) (*transcript.WordAnnotation, bool) {
	return s.buf.LocateWord(offset)
}

// WordOffset returns the offset of the first rune of the word with id.
func (s *Session) WordOffset(id int64) (int, bool) {
	return s.buf.WordOffset(id)
}

// Describe returns the label shown for a selected word: "text : conf" for
// words the engine was sure about and "Confidence: N%" for uncertain ones.
func Describe(w *transcript.WordAnnotation) string {
	if w.Uncertain() {
		return "Confidence: " + w.Confidence() + "%"
	}
	return strings.TrimRight(w.Text(), " ") + " : " + w.Confidence()
}

// Corrected reports whether the word with id was corrected.
func (s *Session) Corrected(id int64) bool {
	_, ok := s.corrected[id]
	return ok
}

// Suggest returns correction candidates for the uncertain word with id.
func (s *Session) Suggest(ctx context.Context, id int64) ([]suggest.Suggestion, error) {
	req, err := s.SuggestRequest(id)
	if err != nil {
		return nil, err
	}
	return s.suggester.Suggest(ctx, req), nil
}

// SuggestRequest builds the suggestion request for the uncertain word with
// id. Unlike [Session.Suggest] it only reads the buffer, so the request can
// be handed to [Session.Suggester] on another goroutine.
func (s *Session) SuggestRequest(id int64) (suggest.Request, error) {
	w, err := s.uncertainWord(id)
	if err != nil {
		return suggest.Request{}, err
	}
	req := suggest.Request{Lexical: w.LexicalForm()}
	off, ok := s.buf.WordOffset(id)
	if !ok {
		return req, nil
	}
	li, ok := s.buf.LineAt(off)
	if !ok {
		return req, nil
	}
	words := s.buf.Lines()[li].Words()
	req.Line = make([]string, len(words))
	for i, lw := range words {
		req.Line[i] = strings.TrimRight(lw.Text(), " ")
		if lw.ID() == id {
			req.Index = i
		}
	}
	return req, nil
}

// Suggester returns the suggestion engine. It is safe for concurrent use.
func (s *Session) Suggester() *suggest.Suggester { return s.suggester }

// Correct replaces the text of the uncertain word with id and returns the
// refreshed text.
func (s *Session) Correct(ctx context.Context, id int64, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, "\r\n") {
		return "", ErrInvalidCorrection
	}
	if _, err := s.uncertainWord(id); err != nil {
		return "", err
	}
	s.buf.EditWord(id, text)
	s.corrected[id] = struct{}{}
	s.metrics.WordsEdited.Add(ctx, 1)
	observe.Logger(ctx).Debug("word corrected", "id", id, "text", text)
	return s.refresh(ctx), nil
}

func (s *Session) uncertainWord(id int64) (*transcript.WordAnnotation, error) {
	w, ok := s.buf.Word(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownWord, id)
	}
	if !w.Uncertain() {
		return nil, fmt.Errorf("%w: %d", ErrNotUncertain, id)
	}
	return w, nil
}

// ExportPath returns the default export file.
func (s *Session) ExportPath() string { return s.exportPath }

// Export writes the plain-text export to path, or to the default export
// file when path is empty, and returns the path written.
func (s *Session) Export(ctx context.Context, path string) (string, error) {
	if path == "" {
		path = s.exportPath
	}
	err := transcript.SaveExport(path, s.buf.Text())
	s.metrics.RecordExport(ctx, err)
	if err != nil {
		return "", fmt.Errorf("session: export: %w", err)
	}
	observe.Logger(ctx).Info("transcript exported", "path", path, "lines", s.buf.Len())
	return path, nil
}

// Reset drops the transcript.
func (s *Session) Reset() {
	s.buf.Clear()
	clear(s.corrected)
}

// Stats counts lines and words.
func (s *Session) Stats() Stats {
	st := Stats{Lines: s.buf.Len(), Corrected: len(s.corrected)}
	for _, l := range s.buf.Lines() {
		for _, w := range l.Words() {
			st.Words++
			if w.Uncertain() {
				st.Uncertain++
			}
		}
	}
	return st
}
