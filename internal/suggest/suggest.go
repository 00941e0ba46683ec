// Package suggest produces correction candidates for uncertain transcript
// words.
//
// Candidates come from up to three sources, in this order: the engine's
// lexical form of the word, vocabulary terms that sound alike, and
// optionally a language model that sees the surrounding line. The combined
// list is de-duplicated ignoring case and capped.
package suggest

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/internal/suggest/llmsuggest"
	"github.com/MrWong99/scribe/internal/suggest/phonetic"
	"github.com/MrWong99/scribe/pkg/provider/llm"
)

// Suggestion sources.
const (
	SourceLexical  = "lexical"
	SourcePhonetic = "phonetic"
	SourceLLM      = "llm"
)

// DefaultMax is the cap used when none is configured.
const DefaultMax = 5

// contextMarker replaces the word being corrected in the line sent to the
// language model.
const contextMarker = "[?]"

// Suggestion is one correction candidate.
type Suggestion struct {
	Text       string
	Source     string
	Confidence float64
}

// Request describes an uncertain word.
type Request struct {
	// Lexical is the engine's raw form of the word.
	Lexical string

	// Line holds the display texts of the word's line, and Index the
	// position of the word in it. Both are optional and only used for the
	// language model.
	Line  []string
	Index int
}

// Option configures a [Suggester].
type Option func(*Suggester)

// WithVocabulary sets the terms offered as phonetic matches.
func WithVocabulary(terms []string) Option {
	return func(s *Suggester) { s.vocabulary = cleanVocabulary(terms) }
}

// WithMax caps the number of suggestions.
func WithMax(n int) Option {
	return func(s *Suggester) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithLLM enables language model candidates.
func WithLLM(p llm.Provider, opts ...llmsuggest.Option) Option {
	return func(s *Suggester) {
		if p != nil {
			s.llm = llmsuggest.New(p, opts...)
		}
	}
}

// WithRanker replaces the phonetic ranker.
func WithRanker(r *phonetic.Ranker) Option {
	return func(s *Suggester) { s.ranker = r }
}

// WithMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Suggester) { s.metrics = m }
}

// Suggester combines the suggestion sources. It is safe for concurrent use.
type Suggester struct {
	ranker  *phonetic.Ranker
	llm     *llmsuggest.Suggester
	metrics *observe.Metrics
	max     int

	mu         sync.RWMutex
	vocabulary []string
}

// New returns a Suggester. Without options it offers only lexical forms.
func New(opts ...Option) *Suggester {
	s := &Suggester{
		ranker: phonetic.New(),
		max:    DefaultMax,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// SetVocabulary replaces the vocabulary.
func (s *Suggester) SetVocabulary(terms []string) {
	v := cleanVocabulary(terms)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vocabulary = v
}

// Vocabulary returns a copy of the current vocabulary.
func (s *Suggester) Vocabulary() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.vocabulary...)
}

// LLMEnabled reports whether language model candidates are requested.
func (s *Suggester) LLMEnabled() bool { return s.llm != nil }

// Suggest returns candidates for req, best first. A failing language model
// is logged and skipped; the other sources are still returned.
func (s *Suggester) Suggest(ctx context.Context, req Request) []Suggestion {
	lexical := strings.TrimSpace(req.Lexical)
	vocab := s.Vocabulary()
	out := newCollector(s.max)

	if lexical != "" {
		out.add(Suggestion{Text: lexical, Source: SourceLexical, Confidence: 1})
	}
	for _, m := range s.ranker.Rank(lexical, vocab, s.max) {
		out.add(Suggestion{Text: m.Term, Source: SourcePhonetic, Confidence: m.Score})
	}

	if s.llm != nil && !out.full() {
		cands, err := s.llm.Suggest(ctx, llmsuggest.Request{
			Heard:      lexical,
			Context:    lineContext(req.Line, req.Index),
			Vocabulary: vocab,
			Limit:      s.max,
		})
		if err != nil {
			s.metrics.RecordProviderError(ctx, "llm", "suggest")
			observe.Logger(ctx).Warn("llm suggestions failed", "err", err)
		}
		for _, c := range cands {
			out.add(Suggestion{Text: c.Text, Source: SourceLLM, Confidence: c.Confidence})
		}
	}

	for source, n := range out.counts {
		s.metrics.RecordSuggestions(ctx, source, n)
	}
	slog.Debug("suggestions", "lexical", lexical, "count", len(out.items))
	return out.items
}

// collector keeps the first occurrence of every text, ignoring case.
type collector struct {
	limit  int
	seen   map[string]struct{}
	items  []Suggestion
	counts map[string]int
}

func newCollector(limit int) *collector {
	return &collector{
		limit:  limit,
		seen:   make(map[string]struct{}),
		counts: make(map[string]int),
	}
}

func (c *collector) full() bool { return len(c.items) >= c.limit }

func (c *collector) add(s Suggestion) {
	if c.full() {
		return
	}
	key := strings.ToLower(strings.TrimSpace(s.Text))
	if key == "" {
		return
	}
	if _, dup := c.seen[key]; dup {
		return
	}
	c.seen[key] = struct{}{}
	c.items = append(c.items, s)
	c.counts[s.Source]++
}

func lineContext(line []string, index int) string {
	if len(line) == 0 {
		return ""
	}
	parts := make([]string, len(line))
	for i, w := range line {
		if i == index {
			parts[i] = contextMarker
			continue
		}
		parts[i] = strings.TrimSpace(w)
	}
	return strings.Join(parts, " ")
}

func cleanVocabulary(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
