package tui

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/scribe/internal/session"
)

type runeClass uint8

const (
	classPlain runeClass = iota
	classUncertain
	classCorrected
	classSelected
	classCaret
)

var classStyles = map[runeClass]lipgloss.Style{
	classUncertain: uncertainStyle,
	classCorrected: correctedStyle,
	classSelected:  selectedStyle,
	classCaret:     caretStyle,
}

// wordStarts returns the sorted offsets of every word in the rendered text.
// With uncertainOnly set, only words eligible for correction are listed.
func wordStarts(s *session.Session, uncertainOnly bool) []int {
	var out []int
	for _, l := range s.Buffer().Lines() {
		for _, w := range l.Words() {
			if uncertainOnly && !w.Uncertain() {
				continue
			}
			if off, ok := s.WordOffset(w.ID()); ok {
				out = append(out, off)
			}
		}
	}
	sort.Ints(out)
	return out
}

// renderTranscript styles the session text for display, wrapping rows at
// width runes (no wrapping when width <= 0). It returns the content and the
// display row holding the caret.
func renderTranscript(s *session.Session, caret, width int) (string, int) {
	runes := []rune(s.Text())
	if len(runes) == 0 {
		return dimStyle.Render("Nothing recognised yet. Press r to start."), 0
	}
	classes := make([]runeClass, len(runes))
	mark := func(from, n int, c runeClass) {
		for i := max(from, 0); i < from+n && i < len(classes); i++ {
			classes[i] = c
		}
	}
	for _, l := range s.Buffer().Lines() {
		for _, w := range l.Words() {
			off, ok := s.WordOffset(w.ID())
			if !ok {
				continue
			}
			switch {
			case s.Corrected(w.ID()):
				mark(off, utf8.RuneCountInString(w.Text()), classCorrected)
			case w.Uncertain():
				mark(off, utf8.RuneCountInString(w.Text()), classUncertain)
			}
		}
	}
	if w, ok := s.WordAt(caret); ok {
		if off, ok := s.WordOffset(w.ID()); ok {
			mark(off, utf8.RuneCountInString(w.Text()), classSelected)
		}
	}
	if caret >= 0 && caret < len(classes) {
		classes[caret] = classCaret
	}

	var (
		out      strings.Builder
		seg      []rune
		segClass runeClass
		row, col int
		caretRow int
	)
	flush := func() {
		if len(seg) == 0 {
			return
		}
		if st, ok := classStyles[segClass]; ok {
			out.WriteString(st.Render(string(seg)))
		} else {
			out.WriteString(string(seg))
		}
		seg = seg[:0]
	}
	for i, r := range runes {
		if width > 0 && col >= width && r != '\n' {
			flush()
			out.WriteByte('\n')
			row++
			col = 0
		}
		if i == caret {
			caretRow = row
		}
		if r == '\n' {
			if classes[i] == classCaret {
				// Show the caret on the terminator as a block.
				flush()
				out.WriteString(caretStyle.Render(" "))
			}
			flush()
			out.WriteByte('\n')
			row++
			col = 0
			continue
		}
		if classes[i] != segClass {
			flush()
			segClass = classes[i]
		}
		seg = append(seg, r)
		col++
	}
	flush()
	return strings.TrimSuffix(out.String(), "\n"), caretRow
}

// lineStarts returns the rune offset at which every text line begins.
func lineStarts(runes []rune) []int {
	starts := []int{0}
	for i, r := range runes {
		if r == '\n' && i+1 < len(runes) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// moveVertical moves caret by delta text lines, keeping its column where the
// target line is long enough.
func moveVertical(text string, caret, delta int) int {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}
	starts := lineStarts(runes)
	line := sort.Search(len(starts), func(i int) bool { return starts[i] > caret }) - 1
	line = max(line, 0)
	col := caret - starts[line]

	target := min(max(line+delta, 0), len(starts)-1)
	end := len(runes) - 1
	if target+1 < len(starts) {
		end = starts[target+1] - 1
	}
	return min(starts[target]+col, end)
}

// nextStart returns the first offset in starts after caret.
func nextStart(starts []int, caret int) (int, bool) {
	i := sort.SearchInts(starts, caret+1)
	if i >= len(starts) {
		return 0, false
	}
	return starts[i], true
}

// prevStart returns the last offset in starts before caret.
func prevStart(starts []int, caret int) (int, bool) {
	i := sort.SearchInts(starts, caret) - 1
	if i < 0 {
		return 0, false
	}
	return starts[i], true
}
