// Package ocamlcreator is the bridge between an editor and ocamlmerlin.
//
// Requests from the editor are queued and run strictly one at a time: the
// tool's replies carry no correlation identifier, so the kind of the
// request in flight is the only way to interpret a reply. The kind is
// tracked by a protocol state machine owned by a single dispatcher
// goroutine, which also applies each reply's side effects through the
// Host.
package ocamlcreator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ocamlcreator/ocamlcreator/internal/config"
	"github.com/ocamlcreator/ocamlcreator/internal/fsm"
	"github.com/ocamlcreator/ocamlcreator/internal/queue"
	"github.com/ocamlcreator/ocamlcreator/internal/request"
	"github.com/ocamlcreator/ocamlcreator/internal/resilience"
	"github.com/ocamlcreator/ocamlcreator/internal/session"
	"github.com/ocamlcreator/ocamlcreator/internal/types"
	"gopkg.in/tomb.v2"
)

var (
	ErrInvalidRequest     = errors.New("request has no document")
	ErrStaleResponse      = errors.New("document lost focus before the reply arrived")
	ErrUndetectableState  = errors.New("result in undetectable state")
	ErrProtocolViolation  = errors.New("reply does not match the request in flight")
	ErrToolUnavailable    = errors.New("ocamlmerlin is unavailable")
	ErrDocumentClosed     = errors.New("document was closed")
	ErrShuttingDown       = errors.New("bridge shutting down")
	ErrMalformedResponse  = errors.New("malformed reply")
	ErrDefinitionNotFound = errors.New("definition not found")
)

// CompletionResult is the outcome of PerformCompletion.
type CompletionResult = request.CompletionResult

// Runner runs one invocation of the tool. *session.Runner is the
// production implementation.
type Runner interface {
	Run(ctx context.Context, args []string, stdin []byte) <-chan session.Result
}

type Option func(*Bridge)

// WithRunner replaces the runner built from the configuration.
func WithRunner(r Runner) Option {
	return func(b *Bridge) {
		b.runner = r
	}
}

// WithoutWatcher disables the project watcher whatever the configuration
// says.
func WithoutWatcher() Option {
	return func(b *Bridge) {
		b.settings.WatchProjectFiles = false
	}
}

// uniqueID is an atomic counter used to assign an instance id
var uniqueID uint64

// Bridge serialises requests to the tool and applies its replies. It is
// safe for concurrent use.
type Bridge struct {
	host     Host
	settings config.Settings
	runner   Runner
	breaker  *resilience.Breaker

	log        io.Writer
	instanceID string

	// searchID identifies the usages search results of this bridge.
	searchID string

	tomb    tomb.Tomb
	queue   *queue.Queue[*request.Request]
	closeCh chan types.Document

	// fsm is only used by the dispatcher goroutine.
	fsm *fsm.Machine

	store   *store
	watcher *watcher
}

// New starts a bridge. conf may be nil, in which case the defaults apply.
// The developer log is written to log.
func New(host Host, conf *config.Config, log io.Writer, opts ...Option) (*Bridge, error) {
	if conf == nil {
		conf = config.Default()
	}
	settings, err := conf.Settings()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}
	if log == nil {
		log = io.Discard
	}
	b := &Bridge{
		host:       host,
		settings:   settings,
		log:        log,
		instanceID: fmt.Sprintf("#%d", atomic.AddUint64(&uniqueID, 1)),
		searchID:   "ocamlcreator-usages-" + uuid.NewString(),
		queue:      queue.NewQueue[*request.Request](),
		closeCh:    make(chan types.Document),
		store:      newStore(),
	}
	b.fsm = fsm.New(b.Logf)
	b.breaker = resilience.NewBreaker(settings.BreakerThreshold, settings.BreakerCooldown)
	for _, o := range opts {
		o(b)
	}
	if b.runner == nil {
		b.runner = &session.Runner{
			Path:          settings.MerlinPath,
			Env:           []string{"MERLIN_LOG=" + settings.MerlinLog},
			ExtraFlags:    settings.MerlinFlags,
			StartAttempts: settings.StartAttempts,
			RetireTimeout: settings.RetireTimeout,
			Logf:          b.Logf,
		}
	}
	b.tomb.Go(b.dispatch)
	if b.settings.WatchProjectFiles {
		w, err := newWatcher(b)
		if err != nil {
			b.Logf("project watcher disabled: %v", err)
		} else {
			b.watcher = w
		}
	}
	return b, nil
}

// Close stops the bridge. Queued and running requests fail with
// ErrShuttingDown.
func (b *Bridge) Close() error {
	b.tomb.Kill(nil)
	return b.tomb.Wait()
}

func (b *Bridge) Logf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	t := time.Now().Format("2006-01-02T15:04:05.000000")
	s = strings.Replace(s, "\n", "\n"+t+"_"+b.instanceID+": ", -1)
	fmt.Fprint(b.log, t+"_"+b.instanceID+": "+s+"\n")
}

// SearchID is the identifier under which usages are shown.
func (b *Bridge) SearchID() string {
	return b.searchID
}

func (b *Bridge) enqueue(r *request.Request) {
	select {
	case <-b.tomb.Dying():
		r.Finish(ErrShuttingDown)
		return
	default:
	}
	b.Logf("enqueue %v", r)
	b.queue.Add(r)
	select {
	case <-b.tomb.Dead():
		b.failQueued(ErrShuttingDown)
	default:
	}
}

// RunErrorsCheck refreshes the diagnostics of doc. The returned channel
// receives the outcome once the reply has been applied.
func (b *Bridge) RunErrorsCheck(doc types.Document) <-chan error {
	r := request.NewErrors(doc)
	if b.watcher != nil && doc != nil {
		b.watcher.watch(doc)
	}
	b.enqueue(r)
	return r.Done()
}

// PerformCompletion asks for the completions of prefix at line (0-based)
// and col. Items of the proposal replace the text from startOffset to the
// cursor. Exactly one result is delivered, possibly with no items.
func (b *Bridge) PerformCompletion(doc types.Document, prefix string, startOffset, line, col int) <-chan CompletionResult {
	r := request.NewCompletion(doc, prefix, startOffset, line, col)
	b.enqueue(r)
	return r.Payload.(*request.Completion).Result()
}

// PerformGoToDefinition navigates to the definition of the identifier at
// line (1-indexed) and col (0-based).
func (b *Bridge) PerformGoToDefinition(doc types.Document, line, col int) <-chan error {
	r := request.NewGoToDefinition(doc, line, col)
	b.enqueue(r)
	return r.Done()
}

// PerformFindUsages shows the occurrences of the identifier at line
// (1-indexed) and col (0-based).
func (b *Bridge) PerformFindUsages(doc types.Document, line, col int) <-chan error {
	r := request.NewFindUsages(doc, line, col)
	b.enqueue(r)
	return r.Done()
}

// DiagnosticAt returns the text of the diagnostic of doc that contains
// offset, or "" if there is none. Where diagnostics overlap the most severe
// wins.
func (b *Bridge) DiagnosticAt(doc types.Document, offset int) string {
	if doc == nil {
		return ""
	}
	d, ok := b.store.diagnosticAt(storeKey(doc.Path()), offset)
	if !ok {
		return ""
	}
	return d.String()
}

// EnumerateQuickFixes calls visit for every quick fix of doc whose range
// covers cursor.
func (b *Bridge) EnumerateQuickFixes(doc types.Document, cursor int, visit func(types.QuickFix)) {
	if doc == nil {
		return
	}
	for _, q := range b.store.quickFixesAt(storeKey(doc.Path()), cursor) {
		visit(q)
	}
}

// CloseDocument drops the queued requests of doc, cancels its running
// request and forgets its diagnostics.
func (b *Bridge) CloseDocument(doc types.Document) {
	if doc == nil {
		return
	}
	if b.watcher != nil {
		b.watcher.unwatch(doc)
	}
	select {
	case b.closeCh <- doc:
	case <-b.tomb.Dying():
	}
}
