package transcript

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"
)

// LineEnding is the platform line terminator used by exported transcripts.
var LineEnding = platformLineEnding(runtime.GOOS)

func platformLineEnding(goos string) string {
	if goos == "windows" {
		return "\r\n"
	}
	return "\n"
}

// ExportLines converts rendered text into export lines: the header separator
// is collapsed so each line reads "[MM:SS.mmm]word word", and trailing
// whitespace is trimmed. The empty element after a final terminator is
// dropped.
func ExportLines(rendered string) []string {
	if rendered == "" {
		return nil
	}
	collapsed := strings.ReplaceAll(rendered, "]"+headerSeparator, "]")
	lines := strings.Split(collapsed, lineTerminator)
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}
	return lines
}

// FormatExport returns the plain-text export of rendered text, joined with
// [LineEnding]. Applying it to its own output returns the input unchanged.
func FormatExport(rendered string) string {
	return strings.Join(ExportLines(rendered), LineEnding)
}

// WriteExport writes every export line of rendered to w, each followed by
// [LineEnding].
func WriteExport(w io.Writer, rendered string) error {
	bw := bufio.NewWriter(w)
	for _, l := range ExportLines(rendered) {
		if _, err := bw.WriteString(l); err != nil {
			return fmt.Errorf("transcript: write export: %w", err)
		}
		if _, err := bw.WriteString(LineEnding); err != nil {
			return fmt.Errorf("transcript: write export: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("transcript: write export: %w", err)
	}
	return nil
}

// SaveExport writes the export of rendered to path. The content goes to a
// temporary file in the same directory first and is renamed into place, so a
// failed save never leaves a truncated file behind.
func SaveExport(path, rendered string) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("transcript: save export %q: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("transcript: save export %q: %w", path, err)
	}
	if err = WriteExport(tmp, rendered); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("transcript: save export %q: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("transcript: save export %q: %w", path, err)
	}
	return nil
}
