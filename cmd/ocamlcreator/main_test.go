package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"ocamlcreator": main1,
		"fakemerlin":   fakemerlin,
	}))
}

func TestScripts(t *testing.T) {
	t.Parallel()
	testscript.Run(t, testscript.Params{
		Dir: "testdata",
		Setup: func(e *testscript.Env) error {
			e.Vars = append(e.Vars,
				"OCAMLCREATOR_MERLIN_PATH=fakemerlin",
				"OCAMLCREATOR_LOGFILE_TMPL=ocamlcreator_test_%v_*",
			)
			return nil
		},
	})
}

// fakemerlin answers "single COMMAND ..." with the contents of
// merlin-COMMAND.json in the working directory. Each invocation is
// recorded in merlin-calls.txt along with the size of its input.
func fakemerlin() int {
	args := os.Args[1:]
	if len(args) < 2 || args[0] != "single" {
		fmt.Fprintf(os.Stderr, "fakemerlin: unexpected arguments %q\n", args)
		return 2
	}
	in, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fakemerlin: failed to read stdin: %v\n", err)
		return 1
	}
	f, err := os.OpenFile("merlin-calls.txt", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fakemerlin: %v\n", err)
		return 1
	}
	fmt.Fprintf(f, "%v (%v bytes)\n", strings.Join(args, " "), len(in))
	f.Close()

	reply, err := os.ReadFile("merlin-" + args[1] + ".json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "fakemerlin: no reply for %v\n", args[1])
		return 1
	}
	out := string(reply)
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	fmt.Print(out)
	return 0
}
