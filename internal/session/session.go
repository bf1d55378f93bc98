// Package session runs one invocation of the external tool: spawn it, pipe
// the document to its standard input, and buffer its standard output until
// the reply is complete.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/kr/pretty"
	"github.com/ocamlcreator/ocamlcreator/internal/merlin"
	"golang.org/x/xerrors"
	"gopkg.in/retry.v1"
	"gopkg.in/tomb.v2"
)

var (
	ErrTimeout            = errors.New("tool did not reply in time")
	ErrNoOutput           = errors.New("tool exited without output")
	ErrIncompleteResponse = errors.New("tool output is not newline terminated")
)

// ToolError is returned when the tool exits with a non-zero status.
type ToolError struct {
	Path     string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%v exited with code %v", e.Path, e.ExitCode)
	}
	return fmt.Sprintf("%v exited with code %v: %v", e.Path, e.ExitCode, e.Stderr)
}

// Result is the outcome of one invocation. Output holds whatever was read,
// even when Err is set.
type Result struct {
	Output   string
	Err      error
	Duration time.Duration
}

const (
	defaultStartAttempts = 3
	defaultRetireTimeout = 3 * time.Second
)

// Runner spawns the tool. The zero value of every field but Path is
// usable.
type Runner struct {
	// Path is the tool executable.
	Path string

	// Env is added to the environment of the tool, e.g. MERLIN_LOG=...
	Env []string

	// ExtraFlags are appended to every invocation.
	ExtraFlags []string

	// StartAttempts bounds the attempts to spawn the tool when spawning
	// fails with a transient error.
	StartAttempts int

	// RetireTimeout bounds the wait for a tool that has replied to exit
	// before it is killed.
	RetireTimeout time.Duration

	Logf func(format string, args ...interface{})
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.Logf != nil {
		r.Logf(format, args...)
	}
}

// Run starts the tool with args and stdin and returns a channel that
// receives the single Result of the invocation. Cancelling ctx kills the
// tool and yields ErrTimeout.
func (r *Runner) Run(ctx context.Context, args []string, stdin []byte) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		began := time.Now()
		res := r.run(ctx, args, stdin)
		res.Duration = time.Since(began)
		ch <- res
		close(ch)
	}()
	return ch
}

func (r *Runner) run(ctx context.Context, args []string, stdin []byte) Result {
	argv := merlin.Argv(args, r.ExtraFlags)
	r.logf("merlin: running %v %v", r.Path, pretty.Sprint(argv))
	p, err := r.start(argv)
	if err != nil {
		return Result{Err: err}
	}
	return p.communicate(ctx, stdin)
}

func (r *Runner) start(argv []string) (*proc, error) {
	attempts := r.StartAttempts
	if attempts <= 0 {
		attempts = defaultStartAttempts
	}
	strategy := retry.LimitCount(attempts, retry.Exponential{
		Initial:  10 * time.Millisecond,
		Factor:   2,
		MaxDelay: 250 * time.Millisecond,
	})
	var lastErr error
	for a := retry.Start(strategy, nil); a.Next(); {
		p, err := r.newProc(argv)
		if err == nil {
			return p, nil
		}
		lastErr = err
		if !isTransient(err) {
			break
		}
		r.logf("merlin: transient failure starting %v: %v", r.Path, err)
	}
	return nil, xerrors.Errorf("failed to start %v: %w", r.Path, lastErr)
}

type proc struct {
	runner *Runner
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr bytes.Buffer
}

func (r *Runner) newProc(argv []string) (*proc, error) {
	p := &proc{runner: r}
	p.cmd = exec.Command(r.Path, argv...)
	p.cmd.Env = append(os.Environ(), r.Env...)
	p.cmd.Stderr = &p.stderr
	setProcAttr(p.cmd)
	var err error
	if p.stdin, err = p.cmd.StdinPipe(); err != nil {
		return nil, xerrors.Errorf("failed to create stdin pipe: %w", err)
	}
	if p.stdout, err = p.cmd.StdoutPipe(); err != nil {
		return nil, xerrors.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := p.cmd.Start(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *proc) communicate(ctx context.Context, stdin []byte) Result {
	var t tomb.Tomb
	var out strings.Builder
	complete := false
	readDone := make(chan struct{})
	t.Go(func() error {
		t.Go(func() error {
			defer p.stdin.Close()
			if _, err := p.stdin.Write(stdin); err != nil && !isBrokenPipe(err) && !errors.Is(err, os.ErrClosed) {
				p.runner.logf("merlin: failed to write stdin: %v", err)
			}
			return nil
		})
		defer close(readDone)
		buf := make([]byte, 4096)
		for {
			n, err := p.stdout.Read(buf)
			if n > 0 {
				out.Write(buf[:n])
				if buf[n-1] == '\n' {
					complete = true
					return nil
				}
			}
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return xerrors.Errorf("failed to read stdout: %w", err)
			}
		}
	})

	select {
	case <-ctx.Done():
		p.kill()
		<-readDone
		p.cmd.Wait()
		t.Wait()
		return Result{Output: out.String(), Err: xerrors.Errorf("%v: %w", ctx.Err(), ErrTimeout)}
	case <-readDone:
	}

	if complete {
		err := p.retire()
		t.Wait()
		res := Result{Output: out.String()}
		if te := p.toolError(err); te != nil {
			res.Err = te
		}
		return res
	}

	waitErr := p.cmd.Wait()
	readErr := t.Wait()
	if te := p.toolError(waitErr); te != nil {
		return Result{Output: out.String(), Err: te}
	}
	if readErr != nil {
		return Result{Output: out.String(), Err: readErr}
	}
	if waitErr != nil {
		return Result{Output: out.String(), Err: xerrors.Errorf("failed to wait for %v: %w", p.runner.Path, waitErr)}
	}
	if out.Len() == 0 {
		return Result{Err: ErrNoOutput}
	}
	return Result{Output: out.String(), Err: ErrIncompleteResponse}
}

// retire waits for a tool that has replied to exit, killing it when it
// outlives the retire timeout. A killed tool is not an error.
func (p *proc) retire() error {
	timeout := p.runner.RetireTimeout
	if timeout <= 0 {
		timeout = defaultRetireTimeout
	}
	done := make(chan error, 1)
	go func() {
		done <- p.cmd.Wait()
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		p.runner.logf("merlin: pid %v did not exit within %v; killing it", p.cmd.Process.Pid, timeout)
		p.kill()
		<-done
		return nil
	}
}

func (p *proc) toolError(err error) *ToolError {
	var ee *exec.ExitError
	if !xerrors.As(err, &ee) || ee.ExitCode() <= 0 {
		return nil
	}
	return &ToolError{
		Path:     p.runner.Path,
		ExitCode: ee.ExitCode(),
		Stderr:   strings.TrimSpace(stripansi.Strip(p.stderr.String())),
	}
}
