package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ocamlcreator/ocamlcreator/internal/types"
)

// fileDoc is a document backed by a file. Its path is the name given on
// the command line.
type fileDoc struct {
	path string

	mu       sync.Mutex
	text     string
	rev      int
	fromDisk bool
}

func openDoc(name string) (*fileDoc, error) {
	byts, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return &fileDoc{
		path: filepath.Clean(name),
		text: string(byts),
	}, nil
}

func (d *fileDoc) Path() string { return d.path }

func (d *fileDoc) Revision() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rev
}

// Text returns the contents of the document. Once followDisk has been
// called the file is read again, and the revision bumped when it changed.
func (d *fileDoc) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fromDisk {
		if byts, err := os.ReadFile(d.path); err == nil && string(byts) != d.text {
			d.text = string(byts)
			d.rev++
		}
	}
	return d.text
}

func (d *fileDoc) followDisk() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fromDisk = true
}

// host prints what an editor would show. Every document is focused.
type host struct {
	mu               sync.Mutex
	stdout           io.Writer
	stderr           io.Writer
	printDiagnostics bool
}

func newHost(stdout, stderr io.Writer) *host {
	return &host{
		stdout: stdout,
		stderr: stderr,
	}
}

func (h *host) printf(format string, args ...interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.stdout, format, args...)
}

func (h *host) IsFocused(doc types.Document) bool {
	return doc != nil
}

func (h *host) GeneralMessage(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintln(h.stderr, msg)
}

func (h *host) ReplaceTasks(path string, tasks []types.Task) {}

// ApplyHighlights prints the diagnostics of the errors command, with
// columns in the tool's 0-based convention.
func (h *host) ApplyHighlights(doc types.Document, diags []types.Diagnostic, markers []types.Marker) {
	h.mu.Lock()
	show := h.printDiagnostics
	h.mu.Unlock()
	if !show {
		return
	}
	for _, d := range diags {
		h.printf("%v:%v:%v: %v: %v\n", doc.Path(), d.Range.StartLine, d.Range.StartCol-1,
			strings.ToLower(d.Severity.String()), d.Message)
	}
}

func (h *host) OpenEditorAt(path string, line, col int) {
	h.printf("%v\n", types.Location{Filename: path, Line: line, Col: col})
}

func (h *host) ShowUsages(searchID string, usages []types.Usage) {
	for _, u := range usages {
		h.printf("%v:%v:%v: %v\n", u.Filename, u.Range.StartLine, u.Range.StartCol-1, strings.TrimSpace(u.LineText))
	}
}
