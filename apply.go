package ocamlcreator

import (
	"fmt"

	"github.com/kr/pretty"
	"github.com/ocamlcreator/ocamlcreator/internal/fsm"
	"github.com/ocamlcreator/ocamlcreator/internal/merlin"
	"github.com/ocamlcreator/ocamlcreator/internal/request"
	"github.com/ocamlcreator/ocamlcreator/internal/types"
	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"
)

// TaskCategory is the issue list category of diagnostics.
const TaskCategory = "OCaml.Merlin"

// handleOutput interprets a complete reply to r. The parser is chosen by
// the active protocol state, never by the reply.
func (b *Bridge) handleOutput(r *request.Request, out string) error {
	env, err := merlin.DecodeEnvelope(out)
	if err != nil {
		b.fsm.Submit(fsm.EventErrorHappend)
		b.Logf("CRITICAL: failed to parse reply to %v: %v: %q", r, err, out)
		return xerrors.Errorf("%v: %w", err, ErrMalformedResponse)
	}
	if err := env.Err(); err != nil {
		b.fsm.Submit(fsm.EventErrorHappend)
		var re *merlin.ReplyError
		if xerrors.As(err, &re) && !re.Known() {
			b.Logf("CRITICAL: reply to %v has unknown class: %v", r, pretty.Sprint(env))
			return xerrors.Errorf("%v: %w", err, ErrMalformedResponse)
		}
		b.host.GeneralMessage(fmt.Sprintf("Merlin %v: %v", re.Class, re.Message))
		return err
	}

	state := b.fsm.Active()
	kind, ok := request.KindFor(state)
	if !ok {
		b.fsm.Submit(fsm.EventErrorHappend)
		b.Logf("%v %v for %v", ErrUndetectableState, state, r)
		return ErrUndetectableState
	}
	if kind != r.Kind() {
		b.fsm.Submit(fsm.EventErrorHappend)
		b.Logf("%v: state %v expects a %v reply, request is %v", ErrProtocolViolation, state, kind, r)
		return ErrProtocolViolation
	}
	received, err := fsm.Received(state)
	if err != nil {
		b.fsm.Submit(fsm.EventErrorHappend)
		return err
	}

	switch p := r.Payload.(type) {
	case request.Errors:
		err = b.applyErrors(r, env.Value)
	case *request.Completion:
		err = b.applyCompletion(r, p, env.Value)
	case request.GoToDefinition:
		err = b.applyDefinition(r, env.Value)
	case request.FindUsages:
		err = b.applyUsages(r, env.Value)
	default:
		err = xerrors.Errorf("unknown payload %T", p)
	}
	if err != nil {
		b.fsm.Submit(fsm.EventErrorHappend)
		return err
	}
	b.fsm.Submit(received)
	return nil
}

func (b *Bridge) logSkipped(r *request.Request, skipped []error) {
	for _, err := range skipped {
		b.Logf("%v: skipping malformed entry: %v", r, err)
	}
}

// rangeOf converts a span reported by the tool to a document range. Columns
// are shifted to the host's 1-based convention; offsets are computed from
// the tool's 0-based columns.
func rangeOf(t *types.Text, s merlin.Span) (types.Range, error) {
	start, err := t.Offset(s.Start.Line, s.Start.Col)
	if err != nil {
		return types.Range{}, xerrors.Errorf("bad start %v:%v: %w", s.Start.Line, s.Start.Col, err)
	}
	end, err := t.Offset(s.End.Line, s.End.Col)
	if err != nil {
		return types.Range{}, xerrors.Errorf("bad end %v:%v: %w", s.End.Line, s.End.Col, err)
	}
	length := end - start
	if length < 0 {
		length = 0
	}
	return types.Range{
		StartLine: s.Start.Line,
		StartCol:  s.Start.Col + 1,
		EndLine:   s.End.Line,
		EndCol:    s.End.Col + 1,
		Pos:       start,
		Length:    length,
	}, nil
}

func (b *Bridge) applyErrors(r *request.Request, v gjson.Result) error {
	reply, err := merlin.ParseErrors(v)
	if err != nil {
		b.Logf("CRITICAL: failed to parse errors of %v: %v", r, err)
		return xerrors.Errorf("%v: %w", err, ErrMalformedResponse)
	}
	b.logSkipped(r, reply.Skipped)

	if !b.host.IsFocused(r.Doc) {
		b.Logf("%v: %v", r, ErrStaleResponse)
		return ErrStaleResponse
	}
	if rev := r.Doc.Revision(); rev != r.Revision {
		b.Logf("%v: document is now at revision %v; applying diagnostics anyway", r, rev)
	}

	text := r.Snapshot()
	var diags []types.Diagnostic
	var tasks []types.Task
	for _, e := range reply.Errors {
		rng, err := rangeOf(text, e.Span)
		if err != nil {
			b.Logf("%v: skipping diagnostic %q: %v", r, e.Message, err)
			continue
		}
		sev := types.ParseSeverity(e.Type)
		diags = append(diags, types.Diagnostic{
			Filename: r.Path,
			Range:    rng,
			Severity: sev,
			Message:  e.Message,
		})
		tasks = append(tasks, types.Task{
			Category: TaskCategory,
			Filename: r.Path,
			Line:     e.Start.Line,
			Severity: sev,
			Message:  e.Message,
		})
	}
	var fixes []types.QuickFix
	var markers []types.Marker
	for _, q := range reply.QuickFixes {
		rng, err := rangeOf(text, q.Span)
		if err != nil {
			b.Logf("%v: skipping quick fix %v: %v", r, q.Suggestions, err)
			continue
		}
		fix := types.QuickFix{
			Filename:    r.Path,
			Range:       rng,
			Suggestions: q.Suggestions,
		}
		m, err := types.MarkerFor(text, fix)
		if err != nil {
			b.Logf("%v: no marker for quick fix %v: %v", r, q.Suggestions, err)
		} else {
			markers = append(markers, m)
		}
		fixes = append(fixes, fix)
	}

	b.store.set(storeKey(r.Path), diags, fixes)
	b.host.ReplaceTasks(r.Path, tasks)
	b.host.ApplyHighlights(r.Doc, diags, markers)
	return nil
}

func (b *Bridge) applyCompletion(r *request.Request, c *request.Completion, v gjson.Result) error {
	reply, err := merlin.ParseCompletions(v)
	if err != nil {
		b.Logf("CRITICAL: failed to parse completions of %v: %v", r, err)
		return xerrors.Errorf("%v: %w", err, ErrMalformedResponse)
	}
	b.logSkipped(r, reply.Skipped)
	items := make([]types.CompletionItem, 0, len(reply.Entries))
	for _, e := range reply.Entries {
		items = append(items, types.CompletionItem{Text: e.Name, Detail: e.Desc})
	}
	if !c.Deliver(items, nil) {
		b.Logf("%v: completion already delivered", r)
	}
	return nil
}

func (b *Bridge) applyDefinition(r *request.Request, v gjson.Result) error {
	reply, err := merlin.ParseLocate(v)
	switch {
	case xerrors.Is(err, merlin.ErrNoFile):
		b.host.GeneralMessage(fmt.Sprintf("Merlin: definition at %v has no file", merlin.Position(reply.Pos.Line, reply.Pos.Col)))
		return xerrors.Errorf("%v: %w", err, ErrDefinitionNotFound)
	case err != nil:
		b.Logf("CRITICAL: failed to parse locate reply to %v: %v", r, err)
		return xerrors.Errorf("%v: %w", err, ErrMalformedResponse)
	case reply.Message != "":
		b.host.GeneralMessage("Merlin: " + reply.Message)
		return nil
	}
	b.host.OpenEditorAt(reply.File, reply.Pos.Line, reply.Pos.Col)
	return nil
}

func (b *Bridge) applyUsages(r *request.Request, v gjson.Result) error {
	reply, err := merlin.ParseOccurrences(v)
	if err != nil {
		b.Logf("CRITICAL: failed to parse occurrences of %v: %v", r, err)
		return xerrors.Errorf("%v: %w", err, ErrMalformedResponse)
	}
	b.logSkipped(r, reply.Skipped)
	text := r.Snapshot()
	usages := make([]types.Usage, 0, len(reply.Spans))
	for _, s := range reply.Spans {
		if !s.SingleLine() {
			b.Logf("%v: usage spans lines %v to %v; showing its first line", r, s.Start.Line, s.End.Line)
		}
		rng, err := rangeOf(text, s)
		if err != nil {
			b.Logf("%v: skipping usage: %v", r, err)
			continue
		}
		line, _ := text.Line(s.Start.Line)
		usages = append(usages, types.Usage{
			Filename: r.Path,
			LineText: line,
			Range:    rng,
		})
	}
	b.host.ShowUsages(b.searchID, usages)
	return nil
}
