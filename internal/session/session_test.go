package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"golang.org/x/xerrors"
)

const fakeToolEnv = "OCAMLCREATOR_SESSION_FAKE_TOOL"

func TestMain(m *testing.M) {
	if os.Getenv(fakeToolEnv) == "1" {
		os.Exit(fakeTool(os.Args[1:]))
	}
	os.Exit(m.Run())
}

// fakeTool behaves according to the command that follows the "single"
// subcommand.
func fakeTool(args []string) int {
	if len(args) < 2 || args[0] != "single" {
		fmt.Fprintf(os.Stderr, "bad args %q\n", args)
		return 2
	}
	in, _ := io.ReadAll(os.Stdin)
	switch args[1] {
	case "echo":
		fmt.Printf("{\"class\":\"return\",\"value\":%q}\n", string(in)+strings.Join(args[2:], ","))
	case "nonl":
		fmt.Print(`{"class":"return","value":null}`)
	case "silent":
	case "fail":
		fmt.Fprint(os.Stderr, "\x1b[31mboom\x1b[0m\n")
		return 3
	case "hang":
		time.Sleep(time.Minute)
	case "linger":
		fmt.Println(`{"class":"return","value":null}`)
		os.Stdout.Sync()
		time.Sleep(time.Minute)
	case "env":
		fmt.Printf("%q\n", os.Getenv("MERLIN_LOG"))
	}
	return 0
}

func newRunner(t *testing.T) *Runner {
	return &Runner{
		Path:          os.Args[0],
		Env:           []string{fakeToolEnv + "=1", "MERLIN_LOG=/tmp/merlin.log"},
		RetireTimeout: 100 * time.Millisecond,
		Logf:          t.Logf,
	}
}

func run(t *testing.T, r *Runner, ctx context.Context, args ...string) Result {
	t.Helper()
	select {
	case res := <-r.Run(ctx, args, []byte("let x = 1\n")):
		return res
	case <-time.After(30 * time.Second):
		t.Fatalf("%v did not finish", args)
	}
	panic("unreachable")
}

func TestReply(t *testing.T) {
	r := newRunner(t)
	r.ExtraFlags = []string{"-I", "lib"}
	res := run(t, r, context.Background(), "echo")
	if res.Err != nil {
		t.Fatalf("echo failed: %v", res.Err)
	}
	if want := `{"class":"return","value":"let x = 1\n-I,lib"}` + "\n"; res.Output != want {
		t.Errorf("echo gave %q; want %q", res.Output, want)
	}
}

func TestEnv(t *testing.T) {
	res := run(t, newRunner(t), context.Background(), "env")
	if res.Err != nil || res.Output != "\"/tmp/merlin.log\"\n" {
		t.Errorf("env gave %q, %v", res.Output, res.Err)
	}
}

func TestFailures(t *testing.T) {
	testVals := []struct {
		cmd     string
		wantErr error
	}{
		{"nonl", ErrIncompleteResponse},
		{"silent", ErrNoOutput},
	}
	for _, v := range testVals {
		res := run(t, newRunner(t), context.Background(), v.cmd)
		if !xerrors.Is(res.Err, v.wantErr) {
			t.Errorf("%v gave error %v; want %v", v.cmd, res.Err, v.wantErr)
		}
	}
}

func TestToolError(t *testing.T) {
	res := run(t, newRunner(t), context.Background(), "fail")
	var te *ToolError
	if !xerrors.As(res.Err, &te) {
		t.Fatalf("fail gave %v; want a *ToolError", res.Err)
	}
	if te.ExitCode != 3 || te.Stderr != "boom" {
		t.Errorf("got exit code %v and stderr %q; want 3 and %q", te.ExitCode, te.Stderr, "boom")
	}
}

func TestTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	began := time.Now()
	res := run(t, newRunner(t), ctx, "hang")
	if !xerrors.Is(res.Err, ErrTimeout) {
		t.Errorf("hang gave %v; want %v", res.Err, ErrTimeout)
	}
	if d := time.Since(began); d > 20*time.Second {
		t.Errorf("timeout took %v", d)
	}
}

func TestRetireLingeringTool(t *testing.T) {
	res := run(t, newRunner(t), context.Background(), "linger")
	if res.Err != nil {
		t.Fatalf("linger failed: %v", res.Err)
	}
	if res.Output != "{\"class\":\"return\",\"value\":null}\n" {
		t.Errorf("linger gave %q", res.Output)
	}
}

func TestMissingTool(t *testing.T) {
	r := &Runner{Path: "ocamlcreator-no-such-tool", StartAttempts: 1}
	res := run(t, r, context.Background(), "echo")
	if !xerrors.Is(res.Err, exec.ErrNotFound) {
		t.Errorf("missing tool gave %v; want %v", res.Err, exec.ErrNotFound)
	}
}
