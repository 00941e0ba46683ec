// Package transcript holds the annotated transcript buffer: timestamped lines
// of recognised words that are rendered into one flat text stream, mapped
// back from a character offset to the originating word, and corrected in
// place.
//
// Offsets are measured in runes, never bytes, so that callers driving a
// terminal or text widget can pass caret positions straight through.
//
// Word offsets follow a "cumulative length minus line index" convention: a
// word's Start is the rune length of everything rendered before it, minus the
// zero-based index of the line it sits on. [Buffer.LocateWord] applies the
// same subtraction to the absolute offset it receives, so both sides agree.
// Ranges are half-open: a word occupies [Start, Stop).
//
// A [Buffer] is not safe for concurrent use. All mutating calls, and the
// render pass performed by [Buffer.RefreshText], must be serialised by the
// caller.
package transcript

import "sync/atomic"

// lastID is the process-wide word identifier counter. It is never reset.
var lastID atomic.Int64

// WordAnnotation is a single recognised (or corrected) word together with the
// metadata the recognition engine supplied for it.
//
// The display text is mutable only through [Buffer.EditWord]; offsets are
// written only by the buffer's render pass and are valid until the next one.
type WordAnnotation struct {
	id          int64
	text        string
	confidence  string
	lexicalForm string
	uncertain   bool

	start int
	stop  int
}

// NewWord returns a word that is not eligible for correction.
func NewWord(text, confidence string) *WordAnnotation {
	return NewWordWithLexical(text, confidence, "")
}

// NewWordWithLexical returns a word carrying the engine's raw lexical form.
// The word is uncertain exactly when lexicalForm is non-empty.
func NewWordWithLexical(text, confidence, lexicalForm string) *WordAnnotation {
	return &WordAnnotation{
		id:          lastID.Add(1),
		text:        text,
		confidence:  confidence,
		lexicalForm: lexicalForm,
		uncertain:   lexicalForm != "",
	}
}

// ID returns the word's process-unique identifier. Identifiers increase
// strictly with creation order and are never reused.
func (w *WordAnnotation) ID() int64 { return w.id }

// Text returns the current display text, including any padding added by
// [Buffer.EditWord].
func (w *WordAnnotation) Text() string { return w.text }

// Confidence returns the confidence label, e.g. "87".
func (w *WordAnnotation) Confidence() string { return w.confidence }

// LexicalForm returns the engine's raw form or "".
func (w *WordAnnotation) LexicalForm() string { return w.lexicalForm }

// Uncertain reports whether the word may be corrected by the user.
func (w *WordAnnotation) Uncertain() bool { return w.uncertain }

// Start returns the first rune offset of the word at the last render.
func (w *WordAnnotation) Start() int { return w.start }

// Stop returns the offset one past the word's last rune at the last render.
func (w *WordAnnotation) Stop() int { return w.stop }
