// Package request describes the calls the bridge makes to the external
// tool. A Request is immutable once built: it snapshots the document text
// and revision so it can be resent without consulting the document again.
package request

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ocamlcreator/ocamlcreator/internal/fsm"
	"github.com/ocamlcreator/ocamlcreator/internal/merlin"
	"github.com/ocamlcreator/ocamlcreator/internal/types"
)

// Kind is the kind of a request.
type Kind int

const (
	KindErrors Kind = iota
	KindCompletion
	KindGoToDefinition
	KindFindUsages
)

func (k Kind) String() string {
	switch k {
	case KindErrors:
		return "errors"
	case KindCompletion:
		return "completion"
	case KindGoToDefinition:
		return "go-to-definition"
	case KindFindUsages:
		return "find-usages"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type binding struct {
	event fsm.Event
	state fsm.State
}

var bindings = map[Kind]binding{
	KindErrors:         {fsm.EventSendCode, fsm.StateCodeSent},
	KindCompletion:     {fsm.EventCompletionsAsked, fsm.StateCompletionsSent},
	KindGoToDefinition: {fsm.EventGoToDefAsked, fsm.StateGoToDefSent},
	KindFindUsages:     {fsm.EventOccurencesAsked, fsm.StateOccurencesSent},
}

// KindFor returns the kind of request that moves the machine into s.
func KindFor(s fsm.State) (Kind, bool) {
	for k, b := range bindings {
		if b.state == s {
			return k, true
		}
	}
	return 0, false
}

// Payload is the kind-specific part of a request. The concrete types are
// Errors, *Completion, GoToDefinition and FindUsages.
type Payload interface {
	Kind() Kind
	isPayload()
}

// Errors asks for the diagnostics and quick fixes of a document.
type Errors struct{}

// GoToDefinition asks where the identifier at Line (1-indexed) and Col
// (0-based) is defined.
type GoToDefinition struct {
	Line int
	Col  int
}

// FindUsages asks for the occurrences of the identifier at Line
// (1-indexed) and Col (0-based).
type FindUsages struct {
	Line int
	Col  int
}

// Completion asks for the completions of Prefix at Line (0-based) and Col.
// Its result is delivered exactly once on Result.
type Completion struct {
	Prefix      string
	StartOffset int
	Line        int
	Col         int

	once   sync.Once
	result chan CompletionResult
}

// CompletionResult is the outcome of a completion request. Proposal is
// always anchored at the request's start offset, even when Err is set.
type CompletionResult struct {
	Proposal types.Proposal
	Err      error
}

func (Errors) Kind() Kind         { return KindErrors }
func (*Completion) Kind() Kind    { return KindCompletion }
func (GoToDefinition) Kind() Kind { return KindGoToDefinition }
func (FindUsages) Kind() Kind     { return KindFindUsages }

func (Errors) isPayload()         {}
func (*Completion) isPayload()    {}
func (GoToDefinition) isPayload() {}
func (FindUsages) isPayload()     {}

// Result returns the one-shot channel on which the completion result is
// delivered.
func (c *Completion) Result() <-chan CompletionResult {
	return c.result
}

// Deliver sends the result of c. Only the first call has any effect; it
// reports whether this call was the one that delivered.
func (c *Completion) Deliver(items []types.CompletionItem, err error) bool {
	delivered := false
	c.once.Do(func() {
		c.result <- CompletionResult{
			Proposal: types.Proposal{
				StartOffset: c.StartOffset,
				Items:       items,
			},
			Err: err,
		}
		close(c.result)
		delivered = true
	})
	return delivered
}

// Request is one call to the external tool.
type Request struct {
	ID       uuid.UUID
	Args     []string
	Doc      types.Document
	Path     string
	Revision int
	Payload  Payload

	text *types.Text
	once sync.Once
	done chan error
}

func newRequest(doc types.Document, args []string, p Payload) *Request {
	r := &Request{
		ID:      uuid.New(),
		Args:    args,
		Doc:     doc,
		Payload: p,
		done:    make(chan error, 1),
	}
	if doc != nil {
		r.Path = doc.Path()
		r.Revision = doc.Revision()
		r.text = types.NewText(doc.Text())
	} else {
		r.text = types.NewText("")
	}
	return r
}

// NewErrors builds an errors check of doc.
func NewErrors(doc types.Document) *Request {
	return newRequest(doc, merlin.ErrorsArgs(docPath(doc)), Errors{})
}

// NewCompletion builds a completion request. line is 0-based; the tool
// receives it 1-indexed.
func NewCompletion(doc types.Document, prefix string, startOffset, line, col int) *Request {
	return newRequest(doc, merlin.CompletePrefixArgs(line+1, col, prefix), &Completion{
		Prefix:      prefix,
		StartOffset: startOffset,
		Line:        line,
		Col:         col,
		result:      make(chan CompletionResult, 1),
	})
}

// NewGoToDefinition builds a locate request. line is 1-indexed, col 0-based.
func NewGoToDefinition(doc types.Document, line, col int) *Request {
	return newRequest(doc, merlin.LocateArgs(line, col, docPath(doc)), GoToDefinition{Line: line, Col: col})
}

// NewFindUsages builds an occurrences request. line is 1-indexed, col
// 0-based.
func NewFindUsages(doc types.Document, line, col int) *Request {
	return newRequest(doc, merlin.OccurrencesArgs(line, col), FindUsages{Line: line, Col: col})
}

func docPath(doc types.Document) string {
	if doc == nil {
		return ""
	}
	return doc.Path()
}

// IsValid reports whether the request still has a document to act on.
func (r *Request) IsValid() bool {
	return r.Doc != nil
}

func (r *Request) Kind() Kind {
	return r.Payload.Kind()
}

// Event is the protocol event that starts the request.
func (r *Request) Event() fsm.Event {
	return bindings[r.Kind()].event
}

// ExpectedState is the protocol state the request moves the machine into.
func (r *Request) ExpectedState() fsm.State {
	return bindings[r.Kind()].state
}

// Text is the content piped to the tool's standard input.
func (r *Request) Text() string {
	return r.text.Contents()
}

// Snapshot is the indexed text of the document at construction time.
func (r *Request) Snapshot() *types.Text {
	return r.text
}

// Done returns the one-shot channel that receives the outcome of the
// request, nil on success, and is then closed.
func (r *Request) Done() <-chan error {
	return r.done
}

// Finish records the outcome of the request. Only the first call has any
// effect. A completion that has not delivered a result yet receives an
// empty proposal carrying err.
func (r *Request) Finish(err error) {
	r.once.Do(func() {
		if c, ok := r.Payload.(*Completion); ok {
			c.Deliver(nil, err)
		}
		r.done <- err
		close(r.done)
	})
}

func (r *Request) String() string {
	return fmt.Sprintf("%v request %v for %q (rev %v)", r.Kind(), r.ID, r.Path, r.Revision)
}
