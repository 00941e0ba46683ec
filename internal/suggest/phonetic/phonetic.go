// Package phonetic ranks vocabulary terms by how much they sound like a
// misheard word.
//
// A term is a phonetic candidate when one of its Double Metaphone codes
// matches a code of the word; candidates are then scored with Jaro-Winkler
// similarity on the lower-cased strings and must reach the phonetic
// threshold. Terms that share no code can still be offered when their
// spelling alone is close enough (the fuzzy threshold). Phonetic candidates
// always rank before fuzzy ones.
//
// Multi-word terms ("Tower of Whispers") are compared as whole strings, with
// spaces removed, and token by token; the best of the three scores counts.
package phonetic

import (
	"cmp"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Match is one ranked vocabulary term.
type Match struct {
	Term     string
	Score    float64
	Phonetic bool
}

// Option configures a [Ranker].
type Option func(*Ranker)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score of a term that
// shares a phonetic code with the word. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(r *Ranker) { r.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score of a term without
// phonetic overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(r *Ranker) { r.fuzzyThreshold = threshold }
}

// Ranker scores vocabulary terms. It is read-only after construction and
// safe for concurrent use.
type Ranker struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Ranker with the supplied options applied over the defaults.
func New(opts ...Option) *Ranker {
	r := &Ranker{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Rank returns up to limit vocabulary terms similar to word, best first.
// Ties keep vocabulary order. A limit <= 0 means no limit.
func (r *Ranker) Rank(word string, vocabulary []string, limit int) []Match {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" || len(vocabulary) == 0 {
		return nil
	}
	wordTokens := strings.Fields(word)
	wordCodes := codes(wordTokens)

	var out []Match
	for _, term := range vocabulary {
		lower := strings.ToLower(strings.TrimSpace(term))
		if lower == "" {
			continue
		}
		termTokens := strings.Fields(lower)
		score := similarity(wordTokens, termTokens, word, lower)
		phonetic := overlaps(wordCodes, codes(termTokens))

		switch {
		case phonetic && score >= r.phoneticThreshold:
		case !phonetic && score >= r.fuzzyThreshold:
		default:
			continue
		}
		out = append(out, Match{Term: strings.TrimSpace(term), Score: score, Phonetic: phonetic})
	}

	slices.SortStableFunc(out, func(a, b Match) int {
		if a.Phonetic != b.Phonetic {
			if a.Phonetic {
				return -1
			}
			return 1
		}
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Best returns the single best term for word, if any.
func (r *Ranker) Best(word string, vocabulary []string) (Match, bool) {
	m := r.Rank(word, vocabulary, 1)
	if len(m) == 0 {
		return Match{}, false
	}
	return m[0], true
}

// codes returns the Double Metaphone codes of all tokens. Tokens without
// consonants produce empty codes, which are left out.
func codes(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		for _, c := range []string{primary, secondary} {
			if c != "" {
				set[c] = struct{}{}
			}
		}
	}
	return set
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

func similarity(wordTokens, termTokens []string, word, term string) float64 {
	best := matchr.JaroWinkler(word, term, false)
	if len(wordTokens) > 1 || len(termTokens) > 1 {
		best = max(best, matchr.JaroWinkler(strings.Join(wordTokens, ""), strings.Join(termTokens, ""), false))
	}
	for _, wt := range wordTokens {
		for _, tt := range termTokens {
			best = max(best, matchr.JaroWinkler(wt, tt, false))
		}
	}
	return best
}
