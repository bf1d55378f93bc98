// Package types defines the values exchanged between the bridge and the
// host editor: documents, ranges, diagnostics, quick fixes, completion
// proposals and usages.
package types

import (
	"fmt"
	"strings"
)

// Severity is the severity of a diagnostic as reported by the tool.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityWarning
	SeverityError
)

// ParseSeverity maps the tool's "type" field to a Severity. Anything but
// "error" or "warning" is SeverityUnknown.
func ParseSeverity(s string) Severity {
	switch s {
	case "error":
		return SeverityError
	case "warning":
		return SeverityWarning
	}
	return SeverityUnknown
}

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "Error"
	case SeverityWarning:
		return "Warning"
	}
	return "Unknown"
}

// FormatKind is the index of the extra text format hosts use to underline a
// diagnostic of severity s.
func (s Severity) FormatKind() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 0
	}
	return 1
}

// SeverityPriority orders severities when several diagnostics overlap.
var SeverityPriority = map[Severity]int{
	SeverityError:   14,
	SeverityWarning: 12,
	SeverityUnknown: 10,
}

// Diagnostic is a single message reported by the tool's errors command.
type Diagnostic struct {
	Filename string
	Range    Range
	Severity Severity
	Message  string
}

// String is the text shown when hovering over the diagnostic.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%v: %v", d.Severity, d.Message)
}

// Task is an entry in the host's issue list.
type Task struct {
	Category string
	Filename string
	Line     int
	Severity Severity
	Message  string
}

// QuickFix is a rename hint: a span and the candidate replacements the tool
// suggests for it.
type QuickFix struct {
	Filename    string
	Range       Range
	Suggestions []string
}

// Apply returns contents with the span of q replaced by its i-th
// suggestion.
func (q QuickFix) Apply(contents string, i int) (string, error) {
	if i < 0 || i >= len(q.Suggestions) {
		return "", fmt.Errorf("quick fix has %v suggestions; no suggestion %v", len(q.Suggestions), i)
	}
	if q.Range.Pos < 0 || q.Range.End() > len(contents) {
		return "", fmt.Errorf("quick fix range %v is outside the text (length %v)", q.Range, len(contents))
	}
	return contents[:q.Range.Pos] + q.Suggestions[i] + contents[q.Range.End():], nil
}

// Marker is a refactoring marker shown at the end of a line that has quick
// fixes available.
type Marker struct {
	Line    int
	Offset  int
	Tooltip string
}

// MarkerFor builds the marker of q, placed at the last position of its first
// line in t.
func MarkerFor(t *Text, q QuickFix) (Marker, error) {
	off, err := t.EndOfLine(q.Range.StartLine)
	if err != nil {
		return Marker{}, err
	}
	return Marker{
		Line:    q.Range.StartLine,
		Offset:  off,
		Tooltip: strings.Join(q.Suggestions, " "),
	}, nil
}

// CompletionItem is a single completion candidate.
type CompletionItem struct {
	Text   string
	Detail string
}

// Proposal is the result of a completion request. Items replace the text
// between StartOffset and the cursor.
type Proposal struct {
	StartOffset int
	Items       []CompletionItem
}

// Usage is one occurrence of an identifier.
type Usage struct {
	Filename string
	LineText string
	Range    Range
}

// Location is a navigation target. Line is 1-indexed, Col 0-based.
type Location struct {
	Filename string
	Line     int
	Col      int
}

func (l Location) String() string {
	return fmt.Sprintf("%v:%v:%v", l.Filename, l.Line, l.Col)
}
