package transcript

import (
	"strings"
	"time"
	"unicode/utf8"
)

// lineTerminator ends every rendered line.
const lineTerminator = "\n"

// wordRef locates a word inside the buffer.
type wordRef struct {
	word *WordAnnotation
	line int
}

// Buffer accumulates transcript lines and renders them to flat text.
//
// Lines added with [Buffer.AddLine] become visible in [Buffer.Text] after the
// next [Buffer.RefreshText]. Callers always pair the two.
type Buffer struct {
	lines []*Line
	index map[int64]wordRef

	// running render buffer and its length in runes
	sb    strings.Builder
	runes int

	text       string
	textRunes  int
	lineStarts []int
	cursor     int
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{index: make(map[int64]wordRef)}
}

// AddLine appends a line holding words and renders it onto the running
// render buffer.
//
// The new line starts where the previous one stopped and stops at stop. The
// very first line of a buffer ignores stop: both its start and stop are zero.
// Nil words are skipped.
func (b *Buffer) AddLine(stop time.Duration, words []*WordAnnotation) {
	line := &Line{stopTime: stop}
	if n := len(b.lines); n > 0 {
		line.startTime = b.lines[n-1].stopTime
	} else {
		line.stopTime = 0
	}

	line.words = make([]*WordAnnotation, 0, len(words))
	for _, w := range words {
		if w == nil {
			continue
		}
		line.words = append(line.words, w)
	}

	b.lines = append(b.lines, line)
	idx := len(b.lines) - 1
	for _, w := range line.words {
		b.index[w.id] = wordRef{word: w, line: idx}
	}

	b.renderLine(idx, line)
}

// RefreshText rebuilds the rendered text from every line, recomputes every
// word offset and places the selection cursor on the last rendered rune.
// It returns the new text, which is "" for an empty buffer.
func (b *Buffer) RefreshText() string {
	b.resetRender()
	b.lineStarts = make([]int, 0, len(b.lines))
	for i, line := range b.lines {
		b.lineStarts = append(b.lineStarts, b.runes)
		b.renderLine(i, line)
	}

	b.text = b.sb.String()
	b.textRunes = b.runes
	b.cursor = max(b.textRunes-1, 0)
	return b.text
}

// renderLine writes the header and words of the line at index i, recording
// each word's offsets as running length minus i.
func (b *Buffer) renderLine(i int, line *Line) {
	b.write(FormatTimestamp(line.startTime))
	b.write(headerSeparator)
	for _, w := range line.words {
		w.start = b.runes - i
		b.write(w.text)
		w.stop = b.runes - i
		b.write(" ")
	}
	b.write(lineTerminator)
}

func (b *Buffer) write(s string) {
	b.sb.WriteString(s)
	b.runes += utf8.RuneCountInString(s)
}

func (b *Buffer) resetRender() {
	b.sb.Reset()
	b.runes = 0
}

// EditWord replaces the display text of the word with the given id and
// reports whether such a word exists.
//
// Text shorter than the current display text is right-padded with spaces to
// the same rune length, which leaves every other offset on the line intact.
// Longer text is stored as is; the caller must then call
// [Buffer.RefreshText] before resolving offsets again.
func (b *Buffer) EditWord(id int64, newText string) bool {
	ref, ok := b.index[id]
	if !ok {
		return false
	}
	w := ref.word
	if pad := utf8.RuneCountInString(w.text) - utf8.RuneCountInString(newText); pad > 0 {
		newText += strings.Repeat(" ", pad)
	}
	w.text = newText
	return true
}

// Clear drops every line and all rendered state. Word identifiers keep
// increasing afterwards.
func (b *Buffer) Clear() {
	b.lines = nil
	b.index = make(map[int64]wordRef)
	b.resetRender()
	b.text = ""
	b.textRunes = 0
	b.lineStarts = nil
	b.cursor = 0
}

// Text returns the text produced by the last [Buffer.RefreshText].
func (b *Buffer) Text() string { return b.text }

// SelectionCursor returns the rune offset of the last rendered rune. For an
// empty rendered text it returns 0, never -1, so the result is always a valid
// caret position.
func (b *Buffer) SelectionCursor() int { return b.cursor }

// Len returns the number of lines.
func (b *Buffer) Len() int { return len(b.lines) }

// Lines returns the buffer's lines in order. The returned slice is a copy; the
// lines themselves are shared.
func (b *Buffer) Lines() []*Line {
	out := make([]*Line, len(b.lines))
	copy(out, b.lines)
	return out
}

// Word returns the word with the given id.
func (b *Buffer) Word(id int64) (*WordAnnotation, bool) {
	ref, ok := b.index[id]
	return ref.word, ok
}
