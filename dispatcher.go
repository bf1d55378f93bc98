package ocamlcreator

import (
	"context"

	"github.com/ocamlcreator/ocamlcreator/internal/fsm"
	"github.com/ocamlcreator/ocamlcreator/internal/request"
	"github.com/ocamlcreator/ocamlcreator/internal/session"
	"github.com/ocamlcreator/ocamlcreator/internal/types"
	"golang.org/x/xerrors"
)

// inflight is the request whose tool invocation is running.
type inflight struct {
	req     *request.Request
	results <-chan session.Result
	cancel  context.CancelFunc

	// closed is set when the document of req is closed while it runs.
	closed bool
}

// dispatch is the control loop. It owns the protocol state machine and the
// head of the queue: a request stays at the head while its invocation
// runs, so the head is always the request a reply answers.
func (b *Bridge) dispatch() error {
	var cur *inflight
	for {
		var results <-chan session.Result
		if cur != nil {
			results = cur.results
		}
		select {
		case <-b.tomb.Dying():
			if cur != nil {
				cur.cancel()
				<-cur.results
				b.queue.Get()
				cur.req.Finish(ErrShuttingDown)
			}
			b.failQueued(ErrShuttingDown)
			return nil
		case <-b.queue.GotWork():
			if cur == nil {
				cur = b.startNext()
			}
		case res := <-results:
			b.finish(cur, res)
			cur = b.startNext()
		case doc := <-b.closeCh:
			b.closeDocument(cur, doc)
		}
	}
}

func (b *Bridge) failQueued(err error) {
	for _, r := range b.queue.Remove(false, func(*request.Request) bool { return true }) {
		r.Finish(err)
	}
}

// admit reports why r must not be sent, if it must not.
func (b *Bridge) admit(r *request.Request) error {
	if !r.IsValid() {
		return ErrInvalidRequest
	}
	if err := b.breaker.Allow(); err != nil {
		return xerrors.Errorf("%v: %w", err, ErrToolUnavailable)
	}
	return nil
}

// startNext starts the invocation for the head of the queue, dropping
// requests that cannot be sent. It returns nil if the queue is empty.
func (b *Bridge) startNext() *inflight {
	for {
		r, ok := b.queue.Peek()
		if !ok {
			return nil
		}
		if err := b.admit(r); err != nil {
			b.queue.Get()
			b.Logf("dropping %v: %v", r, err)
			r.Finish(err)
			continue
		}
		if !b.fsm.Submit(r.Event()) {
			b.fsm.Reset()
			b.fsm.Submit(r.Event())
		}
		var ctx context.Context
		var cancel context.CancelFunc
		if t := b.settings.RequestTimeout; t > 0 {
			ctx, cancel = context.WithTimeout(context.Background(), t)
		} else {
			ctx, cancel = context.WithCancel(context.Background())
		}
		b.Logf("start %v in state %v", r, b.fsm.Active())
		return &inflight{
			req:     r,
			results: b.runner.Run(ctx, r.Args, []byte(r.Text())),
			cancel:  cancel,
		}
	}
}

// finish completes cur with the result of its invocation. Whatever
// happens, the machine ends up in StateDefault and the request is
// finished.
func (b *Bridge) finish(cur *inflight, res session.Result) {
	cur.cancel()
	if head, _ := b.queue.Get(); head != cur.req {
		b.Logf("%v: head of queue is %v, not %v", ErrProtocolViolation, head, cur.req)
	}
	err := b.handle(cur, res)
	if !b.fsm.IsActive(fsm.StateDefault) {
		b.fsm.Reset()
	}
	if err != nil {
		b.Logf("%v failed after %v: %v", cur.req, res.Duration, err)
	} else {
		b.Logf("%v done after %v", cur.req, res.Duration)
	}
	cur.req.Finish(err)
}

func (b *Bridge) handle(cur *inflight, res session.Result) error {
	if cur.closed {
		b.fsm.Submit(fsm.EventErrorHappend)
		return ErrDocumentClosed
	}
	if res.Err != nil {
		b.fsm.Submit(fsm.EventErrorHappend)
		if xerrors.Is(res.Err, session.ErrIncompleteResponse) {
			b.breaker.Success()
			b.Logf("CRITICAL: failed to parse reply: %v: %q", res.Err, res.Output)
			return xerrors.Errorf("%v: %w", res.Err, ErrMalformedResponse)
		}
		b.host.GeneralMessage("Merlin: " + res.Err.Error())
		if b.breaker.Failure() {
			b.host.GeneralMessage("Merlin: giving up on " + b.settings.MerlinPath + " for " + b.settings.BreakerCooldown.String())
		}
		return res.Err
	}
	b.breaker.Success()
	return b.handleOutput(cur.req, res.Output)
}

func (b *Bridge) closeDocument(cur *inflight, doc types.Document) {
	same := func(r *request.Request) bool {
		return types.SameDocument(r.Doc, doc)
	}
	for _, r := range b.queue.Remove(cur != nil, same) {
		b.Logf("dropping %v: %v", r, ErrDocumentClosed)
		r.Finish(ErrDocumentClosed)
	}
	if cur != nil && same(cur.req) {
		cur.closed = true
		cur.cancel()
	}
	b.store.forget(storeKey(doc.Path()))
}
