// Package lineindex converts between byte offsets and LSP line/column
// positions for a single text snapshot.
package lineindex

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"

	"go.lsp.dev/protocol"
)

// Index maps byte offsets to positions. Columns are UTF-16 code units, the
// LSP default position encoding. An Index is immutable; build a new one for
// every text change.
type Index struct {
	text  string
	lines []int // byte offset of each line start
}

// New builds an index for text.
func New(text string) *Index {
	lines := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &Index{text: text, lines: lines}
}

// Len returns the length of the indexed text in bytes.
func (ix *Index) Len() int { return len(ix.text) }

// LineCount returns the number of lines, counting a trailing empty line.
func (ix *Index) LineCount() int { return len(ix.lines) }

// Position converts a byte offset to a position. Offsets past the end of
// the text are clamped to the end.
func (ix *Index) Position(offset int) protocol.Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(ix.text) {
		offset = len(ix.text)
	}
	line := sort.Search(len(ix.lines), func(i int) bool { return ix.lines[i] > offset }) - 1
	return protocol.Position{
		Line:      uint32(line),
		Character: uint32(utf16Len(ix.text[ix.lines[line]:offset])),
	}
}

// Offset converts a position to a byte offset. It reports false when the
// line does not exist or the column lies past the end of the line.
func (ix *Index) Offset(pos protocol.Position) (int, bool) {
	line := int(pos.Line)
	if line >= len(ix.lines) {
		return 0, false
	}
	start := ix.lines[line]
	end := len(ix.text)
	if line+1 < len(ix.lines) {
		end = ix.lines[line+1] - 1
	}

	want := int(pos.Character)
	units := 0
	offset := start
	for offset < end && units < want {
		r, size := utf8.DecodeRuneInString(ix.text[offset:end])
		units += utf16.RuneLen(r)
		offset += size
	}
	if units < want {
		return 0, false
	}
	return offset, true
}

// Range converts a byte range to a protocol range.
func (ix *Index) Range(start, end int) protocol.Range {
	return protocol.Range{Start: ix.Position(start), End: ix.Position(end)}
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
