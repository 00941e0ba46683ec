package stt

import "time"

// Transcript represents a speech-to-text result from an STT provider.
// Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial (interim) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the provider
	// does not report confidence.
	Confidence float64

	// Words contains per-word detail when available. May be nil for providers
	// that only return plain text.
	Words []WordDetail

	// Timestamp marks where the utterance starts, relative to the first audio
	// delivered to the session.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// End returns the offset at which the utterance stops.
func (t Transcript) End() time.Duration { return t.Timestamp + t.Duration }

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail struct {
	// Word is the display form, punctuated and cased when the provider
	// supports it.
	Word string

	// LexicalForm is the raw recogniser output for the word (for example
	// Deepgram's unpunctuated "word" next to its "punctuated_word"). Empty when
	// the provider reports only one form.
	LexicalForm string

	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// KeywordBoost represents a keyword to boost in STT recognition.
// Used to improve recognition of domain vocabulary such as names or jargon.
type KeywordBoost struct {
	// Keyword is the text to boost (e.g., "Kubernetes").
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}
