package transcript_test

import (
	"testing"
	"time"

	"github.com/MrWong99/scribe/pkg/transcript"
)

func TestLocateWord(t *testing.T) {
	t.Parallel()

	b := transcript.New()
	hello := transcript.NewWord("hello", "95")
	world := transcript.NewWord("world", "88")
	skipped := transcript.NewWordWithLexical("[SKIPPED]", "40", "again")
	b.AddLine(0, []*transcript.WordAnnotation{hello, world})
	b.AddLine(time.Second, []*transcript.WordAnnotation{skipped})
	// "[00:00.000]: hello world \n[00:00.000]: [SKIPPED] \n"
	//  0            13   18    24 26           39        49
	text := b.RefreshText()
	if len([]rune(text)) != 50 {
		t.Fatalf("unexpected text %q", text)
	}

	tests := []struct {
		name   string
		offset int
		want   *transcript.WordAnnotation
	}{
		{name: "header start", offset: 0},
		{name: "header separator", offset: 12},
		{name: "first rune", offset: 13, want: hello},
		{name: "last rune", offset: 17, want: hello},
		{name: "space between", offset: 18},
		{name: "second word", offset: 19, want: world},
		{name: "second word end", offset: 23, want: world},
		{name: "trailing space", offset: 24},
		{name: "terminator", offset: 25},
		{name: "second header", offset: 26},
		{name: "second line word", offset: 39, want: skipped},
		{name: "second line last rune", offset: 47, want: skipped},
		{name: "second line trailing space", offset: 48},
		{name: "final terminator", offset: 49},
		{name: "past end", offset: 50},
		{name: "negative", offset: -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := b.LocateWord(tc.offset)
			if tc.want == nil {
				if ok {
					t.Errorf("LocateWord(%d) = %q, want none", tc.offset, got.Text())
				}
				return
			}
			if !ok || got != tc.want {
				t.Errorf("LocateWord(%d) = %v, %v; want %q", tc.offset, got, ok, tc.want.Text())
			}
		})
	}
}

func TestLocateWord_EveryRuneResolvesUniquely(t *testing.T) {
	t.Parallel()

	b := transcript.New()
	b.AddLine(0, words("a", "bb", "ccc"))
	b.AddLine(time.Second, words("dddd"))
	b.AddLine(2*time.Second, words("e", "ff"))
	text := []rune(b.RefreshText())

	for off := range text {
		w, ok := b.LocateWord(off)
		if !ok {
			continue
		}
		start, _ := b.WordOffset(w.ID())
		if off < start || off >= start+len([]rune(w.Text())) {
			t.Errorf("offset %d resolved to %q at %d", off, w.Text(), start)
		}
		if text[off] == ' ' || text[off] == '\n' {
			t.Errorf("offset %d on %q resolved to a word", off, text[off])
		}
	}
}

func TestLineAt(t *testing.T) {
	t.Parallel()

	b := transcript.New()
	b.AddLine(0, words("one"))
	b.AddLine(time.Second, words("two"))
	b.RefreshText() // 18 runes per line

	tests := []struct {
		offset int
		want   int
		ok     bool
	}{
		{0, 0, true}, {17, 0, true}, {18, 1, true}, {35, 1, true}, {36, 0, false},
	}
	for _, tc := range tests {
		got, ok := b.LineAt(tc.offset)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("LineAt(%d) = %d, %v; want %d, %v", tc.offset, got, ok, tc.want, tc.ok)
		}
	}
}

func TestWordOffset_Unknown(t *testing.T) {
	t.Parallel()

	b := transcript.New()
	w := transcript.NewWord("x", "1")
	b.AddLine(0, []*transcript.WordAnnotation{w})
	if _, ok := b.WordOffset(w.ID()); ok {
		t.Error("WordOffset before RefreshText = ok, want false")
	}
	b.RefreshText()
	if off, ok := b.WordOffset(w.ID()); !ok || off != 13 {
		t.Errorf("WordOffset = %d, %v; want 13, true", off, ok)
	}
	if _, ok := b.WordOffset(0); ok {
		t.Error("WordOffset(0) = ok, want false")
	}
}
