package types

import (
	"fmt"
	"strings"
)

// Document is the host editor's view of an open document. Implementations
// are owned by the host; the bridge only ever reads from them.
type Document interface {
	// Path is the absolute file path of the document, or "" for a buffer
	// that has never been saved.
	Path() string

	// Revision is a counter that advances on every edit of the document.
	Revision() int

	// Text returns the current plain-text contents.
	Text() string
}

// SameDocument reports whether a and b refer to the same document. Documents
// with a path are compared by path, unsaved buffers by identity.
func SameDocument(a, b Document) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Path() != "" || b.Path() != "" {
		return a.Path() == b.Path()
	}
	return a == b
}

// Text is an immutable snapshot of a document's contents. It resolves the
// tool's line/column positions to byte offsets. Create instances using
// NewText.
type Text struct {
	contents string

	// lines is lazily set whenever position information is required. It
	// holds the offset at which each line starts.
	lines []int
}

func NewText(contents string) *Text {
	return &Text{contents: contents}
}

// Contents returns the snapshot's contents.
func (t *Text) Contents() string {
	return t.contents
}

func (t *Text) lineStarts() []int {
	if t.lines == nil {
		t.lines = []int{0}
		for i := 0; i < len(t.contents); i++ {
			if t.contents[i] == '\n' {
				t.lines = append(t.lines, i+1)
			}
		}
	}
	return t.lines
}

// LineCount returns the number of lines in t. Text ending in a newline has
// a final empty line.
func (t *Text) LineCount() int {
	return len(t.lineStarts())
}

// Line returns the contents of the 1-indexed line n, without its newline.
func (t *Text) Line(n int) (string, error) {
	ls := t.lineStarts()
	if n < 1 || n > len(ls) {
		return "", fmt.Errorf("line %v is beyond the end of the text (no. of lines %v)", n, len(ls))
	}
	start := ls[n-1]
	end := len(t.contents)
	if n < len(ls) {
		end = ls[n] - 1
	}
	return strings.TrimSuffix(t.contents[start:end], "\r"), nil
}

// Offset converts a 1-indexed line and a 0-based column to the 0-index byte
// offset within t. Columns past the end of the line are clamped to it.
func (t *Text) Offset(line, col int) (int, error) {
	l, err := t.Line(line)
	if err != nil {
		return 0, err
	}
	if col < 0 {
		return 0, fmt.Errorf("negative column %v on line %v", col, line)
	}
	if col > len(l) {
		col = len(l)
	}
	return t.lineStarts()[line-1] + col, nil
}

// Position converts a 0-index byte offset to a 1-indexed line and 0-based
// column.
func (t *Text) Position(offset int) (line, col int, err error) {
	if offset < 0 || offset > len(t.contents) {
		return 0, 0, fmt.Errorf("offset %v is outside the text (length %v)", offset, len(t.contents))
	}
	ls := t.lineStarts()
	// the last line start that is <= offset
	lo, hi := 0, len(ls)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if ls[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1, offset - ls[lo], nil
}

// EndOfLine returns the offset of the last position of the 1-indexed line,
// i.e. the position of its newline or the end of the text.
func (t *Text) EndOfLine(line int) (int, error) {
	l, err := t.Line(line)
	if err != nil {
		return 0, err
	}
	return t.lineStarts()[line-1] + len(l), nil
}
