package merlin

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Pos is a position as reported by the tool: Line is 1-indexed, Col is
// 0-based.
type Pos struct {
	Line int
	Col  int
}

// Span is a start/end pair of positions.
type Span struct {
	Start Pos
	End   Pos
}

// SingleLine reports whether the span starts and ends on the same line.
func (s Span) SingleLine() bool {
	return s.Start.Line == s.End.Line
}

func parsePos(v gjson.Result, name string) (Pos, error) {
	p := v.Get(name)
	if !p.IsObject() {
		return Pos{}, fmt.Errorf("missing %q position", name)
	}
	line, col := p.Get("line"), p.Get("col")
	if line.Type != gjson.Number || col.Type != gjson.Number {
		return Pos{}, fmt.Errorf("%q position needs numeric line and col; got %v", name, p.Raw)
	}
	return Pos{Line: int(line.Int()), Col: int(col.Int())}, nil
}

func parseSpan(v gjson.Result) (Span, error) {
	start, err := parsePos(v, "start")
	if err != nil {
		return Span{}, err
	}
	end, err := parsePos(v, "end")
	if err != nil {
		return Span{}, err
	}
	return Span{Start: start, End: end}, nil
}

// ErrorEntry is one diagnostic of an errors reply.
type ErrorEntry struct {
	Span
	Message string
	Type    string
}

// QuickFixEntry is one rename hint of an errors reply.
type QuickFixEntry struct {
	Span
	Suggestions []string
}

// ErrorsReply is the payload of the errors command. Skipped records the
// entries that could not be parsed; they do not stop the others.
type ErrorsReply struct {
	Errors     []ErrorEntry
	QuickFixes []QuickFixEntry
	Skipped    []error
}

// ParseErrors parses the payload of the errors command: either an array of
// diagnostics or an object with "errors" and "quickfixes" arrays.
func ParseErrors(v gjson.Result) (ErrorsReply, error) {
	var res ErrorsReply
	var errs, qfs gjson.Result
	switch {
	case v.IsArray():
		errs = v
	case v.IsObject():
		errs = v.Get("errors")
		if !errs.IsArray() {
			return res, fmt.Errorf("errors reply has no errors array: %v", v.Raw)
		}
		qfs = v.Get("quickfixes")
		if qfs.Exists() && !qfs.IsArray() {
			res.Skipped = append(res.Skipped, fmt.Errorf("quickfixes is not an array: %v", qfs.Raw))
			qfs = gjson.Result{}
		}
	default:
		return res, fmt.Errorf("errors reply is neither an array nor an object: %v", v.Raw)
	}

	for i, e := range errs.Array() {
		span, err := parseSpan(e)
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Errorf("error %v: %v", i, err))
			continue
		}
		res.Errors = append(res.Errors, ErrorEntry{
			Span:    span,
			Message: e.Get("message").String(),
			Type:    e.Get("type").String(),
		})
	}
	for i, q := range qfs.Array() {
		span, err := parseSpan(q)
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Errorf("quickfix %v: %v", i, err))
			continue
		}
		suggs := q.Get("suggs")
		if !suggs.IsArray() {
			res.Skipped = append(res.Skipped, fmt.Errorf("quickfix %v: no suggs array", i))
			continue
		}
		qf := QuickFixEntry{Span: span}
		for _, s := range suggs.Array() {
			qf.Suggestions = append(qf.Suggestions, s.String())
		}
		res.QuickFixes = append(res.QuickFixes, qf)
	}
	return res, nil
}

// Entry is a completion candidate.
type Entry struct {
	Name string
	Desc string
}

// CompletionsReply is the payload of the complete-prefix command.
type CompletionsReply struct {
	Entries []Entry
	Skipped []error
}

// ParseCompletions parses {"entries": [{"name": ..., "desc": ...}]}. An
// empty entries array is a valid reply with no candidates.
func ParseCompletions(v gjson.Result) (CompletionsReply, error) {
	var res CompletionsReply
	if !v.IsObject() {
		return res, fmt.Errorf("completion reply is not an object: %v", v.Raw)
	}
	entries := v.Get("entries")
	if !entries.IsArray() {
		return res, fmt.Errorf("completion reply has no entries array: %v", v.Raw)
	}
	for i, e := range entries.Array() {
		name := e.Get("name")
		if name.Type != gjson.String {
			res.Skipped = append(res.Skipped, fmt.Errorf("entry %v has no name: %v", i, e.Raw))
			continue
		}
		res.Entries = append(res.Entries, Entry{
			Name: name.String(),
			Desc: e.Get("desc").String(),
		})
	}
	return res, nil
}

// ErrNoFile is returned by ParseLocate for a location without a file.
var ErrNoFile = errors.New("location has no file")

// LocateReply is the payload of the locate command. When the tool cannot
// locate the identifier it answers with a plain string, held in Message.
type LocateReply struct {
	Message string
	File    string
	Pos     Pos
}

// ParseLocate parses either a string or {"file": ..., "pos": {"line", "col"}}.
func ParseLocate(v gjson.Result) (LocateReply, error) {
	if v.Type == gjson.String {
		return LocateReply{Message: v.String()}, nil
	}
	if !v.IsObject() {
		return LocateReply{}, fmt.Errorf("locate reply is neither a string nor an object: %v", v.Raw)
	}
	pos, err := parsePos(v, "pos")
	if err != nil {
		return LocateReply{}, fmt.Errorf("locate reply: %v", err)
	}
	file := v.Get("file")
	if file.Type != gjson.String || file.String() == "" {
		return LocateReply{Pos: pos}, ErrNoFile
	}
	return LocateReply{File: file.String(), Pos: pos}, nil
}

// OccurrencesReply is the payload of the occurrences command.
type OccurrencesReply struct {
	Spans   []Span
	Skipped []error
}

// ParseOccurrences parses an array of spans. A single span object is
// accepted as an array of one.
func ParseOccurrences(v gjson.Result) (OccurrencesReply, error) {
	var res OccurrencesReply
	var items []gjson.Result
	switch {
	case v.IsArray():
		items = v.Array()
	case v.IsObject():
		items = []gjson.Result{v}
	default:
		return res, fmt.Errorf("occurrences reply is neither an array nor an object: %v", v.Raw)
	}
	for i, o := range items {
		span, err := parseSpan(o)
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Errorf("occurrence %v: %v", i, err))
			continue
		}
		res.Spans = append(res.Spans, span)
	}
	return res, nil
}
