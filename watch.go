package ocamlcreator

import (
	"path/filepath"
	"sync"

	"github.com/ocamlcreator/ocamlcreator/internal/fswatcher"
	"github.com/ocamlcreator/ocamlcreator/internal/request"
	"github.com/ocamlcreator/ocamlcreator/internal/types"
)

// watcher re-runs the errors check of a document when its project
// configuration or its source changes on disk.
type watcher struct {
	b  *Bridge
	fw *fswatcher.FSWatcher

	mu   sync.Mutex
	docs map[string]types.Document
}

func newWatcher(b *Bridge) (*watcher, error) {
	fw, err := fswatcher.New(&b.tomb)
	if err != nil {
		return nil, err
	}
	w := &watcher{
		b:    b,
		fw:   fw,
		docs: make(map[string]types.Document),
	}
	b.tomb.Go(w.run)
	return w, nil
}

func (w *watcher) watch(doc types.Document) {
	path := doc.Path()
	if path == "" {
		return
	}
	w.mu.Lock()
	w.docs[path] = doc
	w.mu.Unlock()
	if added, err := w.fw.Watch(path); err != nil {
		w.b.Logf("failed to watch %v: %v", path, err)
	} else if added {
		w.b.Logf("watching %v", filepath.Dir(path))
	}
}

func (w *watcher) unwatch(doc types.Document) {
	path := doc.Path()
	if path == "" {
		return
	}
	dir := filepath.Dir(path)
	w.mu.Lock()
	delete(w.docs, path)
	for p := range w.docs {
		if filepath.Dir(p) == dir {
			w.mu.Unlock()
			return
		}
	}
	w.mu.Unlock()
	if err := w.fw.Unwatch(path); err != nil {
		w.b.Logf("failed to unwatch %v: %v", dir, err)
	}
}

// affected returns the watched documents a change to path concerns.
func (w *watcher) affected(path string) []types.Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !fswatcher.IsProjectFile(path) {
		if d, ok := w.docs[path]; ok {
			return []types.Document{d}
		}
		return nil
	}
	dir := filepath.Dir(path)
	var res []types.Document
	for p, d := range w.docs {
		if filepath.Dir(p) == dir {
			res = append(res, d)
		}
	}
	return res
}

func (w *watcher) run() error {
	errs := w.fw.Errors()
	for {
		select {
		case <-w.b.tomb.Dying():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.b.Logf("project watcher error: %v", err)
		case e, ok := <-w.fw.Events():
			if !ok {
				return nil
			}
			for _, doc := range w.affected(e.Path) {
				if !w.b.host.IsFocused(doc) {
					continue
				}
				w.b.Logf("%v %v; rechecking %v", e.Path, e.Op, doc.Path())
				w.b.enqueue(request.NewErrors(doc))
			}
		}
	}
}
