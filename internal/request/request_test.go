package request

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ocamlcreator/ocamlcreator/internal/fsm"
	"github.com/ocamlcreator/ocamlcreator/internal/types"
)

type doc struct {
	path string
	rev  int
	text string
}

func (d *doc) Path() string  { return d.path }
func (d *doc) Revision() int { return d.rev }
func (d *doc) Text() string  { return d.text }

func TestBindings(t *testing.T) {
	d := &doc{path: "/p/a.ml", rev: 4, text: "let x = 1\n"}
	testVals := []struct {
		req   *Request
		kind  Kind
		event fsm.Event
		state fsm.State
		args  []string
	}{
		{NewErrors(d), KindErrors, fsm.EventSendCode, fsm.StateCodeSent,
			[]string{"errors", "-filename", "/p/a.ml"}},
		{NewCompletion(d, "Li", 0, 0, 2), KindCompletion, fsm.EventCompletionsAsked, fsm.StateCompletionsSent,
			[]string{"complete-prefix", "-position", "1:2", "-prefix", "Li", "-doc", "true"}},
		{NewGoToDefinition(d, 1, 4), KindGoToDefinition, fsm.EventGoToDefAsked, fsm.StateGoToDefSent,
			[]string{"locate", "-position", "1:4", "-filename", "/p/a.ml"}},
		{NewFindUsages(d, 1, 4), KindFindUsages, fsm.EventOccurencesAsked, fsm.StateOccurencesSent,
			[]string{"occurrences", "-identifier-at", "1:4"}},
	}
	for _, v := range testVals {
		if got := v.req.Kind(); got != v.kind {
			t.Errorf("%v: Kind() gave %v; want %v", v.req, got, v.kind)
		}
		if got := v.req.Event(); got != v.event {
			t.Errorf("%v: Event() gave %v; want %v", v.req, got, v.event)
		}
		if got := v.req.ExpectedState(); got != v.state {
			t.Errorf("%v: ExpectedState() gave %v; want %v", v.req, got, v.state)
		}
		if k, ok := KindFor(v.state); !ok || k != v.kind {
			t.Errorf("KindFor(%v) gave %v, %v; want %v", v.state, k, ok, v.kind)
		}
		if diff := cmp.Diff(v.args, v.req.Args); diff != "" {
			t.Errorf("%v: args mismatch (-want +got):\n%s", v.req, diff)
		}
		if v.req.Text() != d.text || v.req.Revision != 4 || v.req.Path != "/p/a.ml" {
			t.Errorf("%v: snapshot is wrong: %q rev %v", v.req, v.req.Text(), v.req.Revision)
		}
	}
	if _, ok := KindFor(fsm.StateDefault); ok {
		t.Errorf("KindFor(Default) found a kind")
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	d := &doc{path: "a.ml", rev: 1, text: "one"}
	r := NewErrors(d)
	d.text = "two"
	d.rev = 2
	if r.Text() != "one" || r.Revision != 1 {
		t.Errorf("request changed with its document: %q rev %v", r.Text(), r.Revision)
	}
}

func TestInvalid(t *testing.T) {
	r := NewErrors(nil)
	if r.IsValid() {
		t.Errorf("request without document is valid")
	}
	if diff := cmp.Diff([]string{"errors", "-filename", "*buffer*"}, r.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestCompletionDeliveredOnce(t *testing.T) {
	r := NewCompletion(&doc{text: "Li"}, "Li", 0, 0, 2)
	c := r.Payload.(*Completion)
	items := []types.CompletionItem{{Text: "List", Detail: "module List"}}
	if !c.Deliver(items, nil) {
		t.Fatalf("first Deliver did not deliver")
	}
	if c.Deliver(nil, errors.New("again")) {
		t.Errorf("second Deliver delivered")
	}
	r.Finish(nil)
	r.Finish(errors.New("again"))

	var got []CompletionResult
	for res := range c.Result() {
		got = append(got, res)
	}
	want := []CompletionResult{{Proposal: types.Proposal{Items: items}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	var errs []error
	for err := range r.Done() {
		errs = append(errs, err)
	}
	if len(errs) != 1 || errs[0] != nil {
		t.Errorf("Done gave %v; want a single nil", errs)
	}
}

func TestFinishDeliversFailedCompletion(t *testing.T) {
	r := NewCompletion(&doc{text: "x Li"}, "Li", 2, 0, 4)
	boom := errors.New("boom")
	r.Finish(boom)
	res := <-r.Payload.(*Completion).Result()
	if res.Err != boom || res.Proposal.StartOffset != 2 || len(res.Proposal.Items) != 0 {
		t.Errorf("got %#v; want empty proposal at 2 with error", res)
	}
}
