package ocamlcreator

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProjectFileChangeRechecks(t *testing.T) {
	host := newFakeHost()
	runner := newFakeRunner()
	log := new(syncBuffer)
	b, err := New(host, nil, log, WithRunner(runner))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if b.watcher == nil {
		t.Fatalf("project watcher not started:\n%s", log)
	}

	dir := t.TempDir()
	doc := &fakeDoc{path: filepath.Join(dir, "a.ml"), text: sevenLines}
	other := &fakeDoc{path: filepath.Join(dir, "b.ml"), text: sevenLines}
	for i := 0; i < 3; i++ {
		runner.reply("errors", scenarioErrors)
	}
	if err := wait(t, b.RunErrorsCheck(doc)); err != nil {
		t.Fatalf("errors check failed: %v", err)
	}
	if err := wait(t, b.RunErrorsCheck(other)); err != nil {
		t.Fatalf("errors check failed: %v", err)
	}
	host.setFocus(doc)

	if err := os.WriteFile(filepath.Join(dir, "dune"), []byte("(library (name a))\n"), 0666); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(10 * time.Second)
	for len(runner.commands()) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("no recheck after dune file changed:\n%s", log)
		}
		time.Sleep(10 * time.Millisecond)
	}
	runner.mu.Lock()
	last := runner.calls[2]
	runner.mu.Unlock()
	if last[2] != doc.path {
		t.Errorf("rechecked %v; want the focused %v", last[2], doc.path)
	}
}
