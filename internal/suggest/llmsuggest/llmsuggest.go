// Package llmsuggest asks a language model for replacements of a single
// uncertain transcript word.
//
// The model sees the line the word sits in, the engine's raw form of the
// word and the user's vocabulary, and answers with a JSON array of
// candidates. Answers that cannot be parsed yield no candidates instead of
// an error, so a misbehaving model never blocks the correction menu.
package llmsuggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/scribe/pkg/provider/llm"
)

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 256
)

const systemPrompt = `You help a person correct a speech recognition transcript.

One word in the transcript was recognised with low confidence. Propose what the speaker most likely said at that position.

Rules:
- Propose at most %d candidates, most likely first.
- Each candidate replaces exactly the marked word; it may be more than one word only if the speaker clearly said a compound.
- Prefer terms from the vocabulary when they fit the sound and the context.
- Keep the language of the transcript.
%s
Respond with ONLY a JSON array (no markdown, no prose):
[{"text": "<candidate>", "confidence": <0.0-1.0>}]`

// Candidate is one proposal from the model.
type Candidate struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Request describes the word to replace.
type Request struct {
	// Heard is the engine's raw form of the word.
	Heard string

	// Context is the full line with the word replaced by a marker.
	Context string

	// Vocabulary lists preferred terms.
	Vocabulary []string

	// Limit caps the number of candidates requested.
	Limit int
}

// Option configures a [Suggester].
type Option func(*Suggester)

// WithTemperature sets the sampling temperature. Default: 0.2.
func WithTemperature(t float64) Option {
	return func(s *Suggester) { s.temperature = t }
}

// Suggester produces candidates with an [llm.Provider]. It is safe for
// concurrent use when the provider is.
type Suggester struct {
	llm         llm.Provider
	temperature float64
}

// New returns a Suggester backed by provider.
func New(provider llm.Provider, opts ...Option) *Suggester {
	s := &Suggester{llm: provider, temperature: defaultTemperature}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Suggest asks the model for replacements. Provider failures are returned
// as errors; unparseable answers return (nil, nil).
func (s *Suggester) Suggest(ctx context.Context, req Request) ([]Candidate, error) {
	if strings.TrimSpace(req.Heard) == "" && strings.TrimSpace(req.Context) == "" {
		return nil, nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Transcript line: %s\n", req.Context)
	if req.Heard != "" {
		fmt.Fprintf(&user, "The recogniser heard: %s\n", req.Heard)
	}

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(limit, req.Vocabulary),
		Temperature:  s.temperature,
		MaxTokens:    defaultMaxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: user.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llmsuggest: complete: %w", err)
	}
	if resp == nil {
		return nil, nil
	}

	cands, err := parseResponse(resp.Content)
	if err != nil {
		return nil, nil //nolint:nilerr // unusable answers are dropped
	}
	if len(cands) > limit {
		cands = cands[:limit]
	}
	return cands, nil
}

func buildSystemPrompt(limit int, vocabulary []string) string {
	var vocab string
	if len(vocabulary) > 0 {
		var sb strings.Builder
		sb.WriteString("\nVocabulary:\n")
		for _, v := range vocabulary {
			sb.WriteString("- ")
			sb.WriteString(v)
			sb.WriteByte('\n')
		}
		vocab = sb.String()
	}
	return fmt.Sprintf(systemPrompt, limit, vocab)
}

// parseResponse accepts a JSON array of candidate objects or of plain
// strings, optionally wrapped in a markdown code fence.
func parseResponse(content string) ([]Candidate, error) {
	cleaned := stripMarkdown(content)

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("llmsuggest: parse response: %w", err)
	}
	out := make([]Candidate, 0, len(raw))
	for _, r := range raw {
		var c Candidate
		if err := json.Unmarshal(r, &c); err != nil {
			var text string
			if err := json.Unmarshal(r, &text); err != nil {
				continue
			}
			c = Candidate{Text: text}
		}
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" {
			continue
		}
		c.Confidence = min(max(c.Confidence, 0), 1)
		out = append(out, c)
	}
	return out, nil
}

// stripMarkdown removes a ```json ... ``` fence around the answer.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
