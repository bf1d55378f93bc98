package types

import "fmt"

// Range is a span within a document. It carries both the line/column bounds
// used on the wire and the offset/length pair hosts use for highlighting.
// Lines are 1-indexed; columns follow the host convention and are 1-based.
type Range struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int

	// Pos is the 0-index byte offset of the start of the range.
	Pos int

	// Length is the number of bytes covered by the range.
	Length int
}

// End is the offset just after the range.
func (r Range) End() int {
	return r.Pos + r.Length
}

// Contains reports whether offset lies within r. Lookups by position use
// this rather than structural equality. An empty range contains only its
// own position.
func (r Range) Contains(offset int) bool {
	if r.Length == 0 {
		return offset == r.Pos
	}
	return offset >= r.Pos && offset < r.End()
}

// Covers is like Contains, but also includes the offset just after r. It is
// used for cursor positions, which may sit at the end of an identifier.
func (r Range) Covers(offset int) bool {
	return offset >= r.Pos && offset <= r.End()
}

func (r Range) String() string {
	return fmt.Sprintf("from {%v;%v} to {%v;%v} (pos=%v, len=%v)",
		r.StartLine, r.StartCol, r.EndLine, r.EndCol, r.Pos, r.Length)
}
