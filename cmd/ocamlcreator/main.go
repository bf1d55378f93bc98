// Command ocamlcreator runs the editor bridge to ocamlmerlin from a shell.
// Every file named on the command line is an open document that has
// focus; results are printed instead of shown in an editor.
package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/ocamlcreator/ocamlcreator"
	"github.com/ocamlcreator/ocamlcreator/internal/config"
	"github.com/ocamlcreator/ocamlcreator/internal/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

func main() { os.Exit(main1()) }

func main1() int {
	err := mainerr()
	if err == nil {
		return 0
	}
	switch err := err.(type) {
	case usageErr:
		fmt.Fprintln(os.Stderr, err)
		flagSet.Usage()
		return 2
	case flagErr:
		return 2
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}

func mainerr() error {
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return flagErr(err.Error())
	}
	args := flagSet.Args()
	if len(args) == 0 {
		return usageErr("missing command")
	}
	cmd, args := args[0], args[1:]

	conf, err := loadConfig()
	if err != nil {
		return err
	}

	tmpl := os.Getenv(string(config.EnvVarLogfileTmpl))
	if tmpl == "" {
		tmpl = "ocamlcreator_%v_*"
	}
	nowStr := time.Now().Format("20060102_1504_05.000000000")
	tf, err := ioutil.TempFile("", strings.Replace(tmpl, "%v", nowStr, 1))
	if err != nil {
		return fmt.Errorf("failed to create log file: %v", err)
	}
	defer tf.Close()

	var log io.Writer = tf
	if *fTail {
		log = io.MultiWriter(tf, os.Stderr)
	}

	h := newHost(os.Stdout, os.Stderr)
	var opts []ocamlcreator.Option
	watch := false
	if cmd == "errors" && len(args) > 0 && args[0] == "-watch" {
		watch = true
		args = args[1:]
	} else {
		opts = append(opts, ocamlcreator.WithoutWatcher())
	}
	b, err := ocamlcreator.New(h, conf, log, opts...)
	if err != nil {
		return err
	}
	defer b.Close()

	switch cmd {
	case "errors":
		return runErrors(b, h, args, watch)
	case "complete":
		return runComplete(b, h, args)
	case "locate":
		return runLocate(b, args)
	case "occurrences":
		return runOccurrences(b, args)
	case "quickfix":
		return runQuickFix(b, h, args)
	case "hover":
		return runHover(b, h, args)
	}
	return usageErr(fmt.Sprintf("unknown command %q", cmd))
}

func loadConfig() (*config.Config, error) {
	conf := config.Default()
	if *fConfig != "" {
		fc, err := config.Load(*fConfig)
		if err != nil {
			return nil, err
		}
		conf.Apply(fc)
	}
	if err := conf.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if *fMerlin != "" {
		conf.MerlinPath = config.String(*fMerlin)
	}
	if *fTimeout != 0 {
		conf.RequestTimeout = config.String(fTimeout.String())
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}
	return conf, nil
}

// parsePosition parses LINE:COL.
func parsePosition(s string) (line, col int, err error) {
	i := strings.Index(s, ":")
	if i == -1 {
		return 0, 0, usageErr(fmt.Sprintf("position %q is not LINE:COL", s))
	}
	line, err1 := strconv.Atoi(s[:i])
	col, err2 := strconv.Atoi(s[i+1:])
	if err1 != nil || err2 != nil || line < 1 || col < 0 {
		return 0, 0, usageErr(fmt.Sprintf("position %q is not LINE:COL", s))
	}
	return line, col, nil
}

// fileAndPosition reads FILE LINE:COL arguments; extra is the number of
// optional arguments that may follow.
func fileAndPosition(cmd string, args []string, extra int) (*fileDoc, int, int, error) {
	if len(args) < 2 || len(args) > 2+extra {
		return nil, 0, 0, usageErr(cmd + " needs FILE LINE:COL")
	}
	line, col, err := parsePosition(args[1])
	if err != nil {
		return nil, 0, 0, err
	}
	doc, err := openDoc(args[0])
	if err != nil {
		return nil, 0, 0, err
	}
	return doc, line, col, nil
}

func runErrors(b *ocamlcreator.Bridge, h *host, args []string, watch bool) error {
	if len(args) == 0 {
		return usageErr("errors needs at least one FILE")
	}
	var docs []*fileDoc
	for _, a := range args {
		doc, err := openDoc(a)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	h.printDiagnostics = true
	var g errgroup.Group
	for _, doc := range docs {
		doc := doc
		done := b.RunErrorsCheck(doc)
		g.Go(func() error {
			if err := <-done; err != nil {
				return xerrors.Errorf("%v: %w", doc.Path(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if !watch {
		return nil
	}
	for _, doc := range docs {
		doc.followDisk()
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	return nil
}

func runComplete(b *ocamlcreator.Bridge, h *host, args []string) error {
	doc, line, col, err := fileAndPosition("complete", args, 0)
	if err != nil {
		return err
	}
	text := types.NewText(doc.Text())
	offset, err := text.Offset(line, col)
	if err != nil {
		return err
	}
	start := types.PrefixStart(text.Contents(), offset)
	prefix := text.Contents()[start:offset]
	res := <-b.PerformCompletion(doc, prefix, start, line-1, col)
	if res.Err != nil {
		return res.Err
	}
	for _, item := range res.Proposal.Items {
		h.printf("%v\t%v\n", item.Text, item.Detail)
	}
	return nil
}

func runLocate(b *ocamlcreator.Bridge, args []string) error {
	doc, line, col, err := fileAndPosition("locate", args, 0)
	if err != nil {
		return err
	}
	return <-b.PerformGoToDefinition(doc, line, col)
}

func runOccurrences(b *ocamlcreator.Bridge, args []string) error {
	doc, line, col, err := fileAndPosition("occurrences", args, 0)
	if err != nil {
		return err
	}
	return <-b.PerformFindUsages(doc, line, col)
}

// checkAt runs the errors check of FILE and returns the offset of LINE:COL.
func checkAt(b *ocamlcreator.Bridge, cmd string, args []string, extra int) (*fileDoc, int, error) {
	doc, line, col, err := fileAndPosition(cmd, args, extra)
	if err != nil {
		return nil, 0, err
	}
	offset, err := types.NewText(doc.Text()).Offset(line, col)
	if err != nil {
		return nil, 0, err
	}
	if err := <-b.RunErrorsCheck(doc); err != nil {
		return nil, 0, err
	}
	return doc, offset, nil
}

func runQuickFix(b *ocamlcreator.Bridge, h *host, args []string) error {
	doc, offset, err := checkAt(b, "quickfix", args, 1)
	if err != nil {
		return err
	}
	type candidate struct {
		fix types.QuickFix
		i   int
	}
	var cands []candidate
	b.EnumerateQuickFixes(doc, offset, func(q types.QuickFix) {
		for i := range q.Suggestions {
			cands = append(cands, candidate{q, i})
		}
	})
	if len(args) == 2 {
		for i, c := range cands {
			h.printf("%v\t%v\n", i, c.fix.Suggestions[c.i])
		}
		return nil
	}
	n, err := strconv.Atoi(args[2])
	if err != nil || n < 0 || n >= len(cands) {
		return fmt.Errorf("no quick fix %q at %v; %v available", args[2], args[1], len(cands))
	}
	fixed, err := cands[n].fix.Apply(doc.Text(), cands[n].i)
	if err != nil {
		return err
	}
	h.printf("%s", fixed)
	return nil
}

func runHover(b *ocamlcreator.Bridge, h *host, args []string) error {
	doc, offset, err := checkAt(b, "hover", args, 0)
	if err != nil {
		return err
	}
	if s := b.DiagnosticAt(doc, offset); s != "" {
		h.printf("%v\n", s)
	}
	return nil
}
