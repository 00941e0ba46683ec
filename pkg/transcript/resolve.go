package transcript

import "sort"

// LineAt returns the index of the rendered line containing the absolute rune
// offset, based on the last [Buffer.RefreshText]. A line owns its header,
// its words and its terminator.
func (b *Buffer) LineAt(offset int) (int, bool) {
	if offset < 0 || offset >= b.textRunes || len(b.lineStarts) == 0 {
		return 0, false
	}
	// lineStarts is ascending and lineStarts[0] == 0.
	i := sort.Search(len(b.lineStarts), func(i int) bool { return b.lineStarts[i] > offset }) - 1
	if i >= len(b.lines) {
		return 0, false
	}
	return i, true
}

// LocateWord returns the word rendered at the absolute rune offset in
// [Buffer.Text].
//
// The offset is shifted by the line index before matching, mirroring how
// offsets are recorded during rendering. Offsets on a header, a separating
// space or a line terminator, and offsets outside the text, yield no word.
func (b *Buffer) LocateWord(offset int) (*WordAnnotation, bool) {
	i, ok := b.LineAt(offset)
	if !ok {
		return nil, false
	}
	adjusted := offset - i
	for _, w := range b.lines[i].words {
		if w.start <= adjusted && adjusted < w.stop {
			return w, true
		}
	}
	return nil, false
}

// WordOffset returns the absolute rune offset in [Buffer.Text] of the first
// rune of the word with the given id. It is the inverse of
// [Buffer.LocateWord] for offsets that resolve to a word.
func (b *Buffer) WordOffset(id int64) (int, bool) {
	ref, ok := b.index[id]
	if !ok || ref.line >= len(b.lineStarts) {
		return 0, false
	}
	return ref.word.start + ref.line, true
}
