// Package fswatcher reports changes to the files that decide how the tool
// analyses a document: its project configuration and the sources
// themselves.
package fswatcher

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/xerrors"
	"gopkg.in/tomb.v2"
)

type Event struct {
	Path string
	Op   Op
}

type Op string

const (
	OpChanged Op = "changed"
	OpRemoved Op = "removed"
	OpCreated Op = "created"
)

// IsProjectFile reports whether path names a file that configures the
// tool for the files in its directory.
func IsProjectFile(path string) bool {
	switch base := filepath.Base(path); base {
	case ".merlin", "dune", "dune-project", "dune-workspace":
		return true
	default:
		return strings.HasSuffix(base, ".opam")
	}
}

// IsSourceFile reports whether path names an OCaml source file.
func IsSourceFile(path string) bool {
	switch filepath.Ext(path) {
	case ".ml", ".mli", ".mll", ".mly":
		return true
	}
	return false
}

// FSWatcher watches directories. Events for files that are neither
// project nor source files are dropped.
type FSWatcher struct {
	eventCh chan Event
	errCh   chan error
	mw      *fsnotify.Watcher

	mu   sync.Mutex
	dirs map[string]bool
}

// New starts a watcher whose goroutine is tracked by tomb. The Events
// channel is closed once the watcher is closed.
func New(tomb *tomb.Tomb) (*FSWatcher, error) {
	mw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, xerrors.Errorf("failed to create new watcher: %w", err)
	}

	eventCh := make(chan Event)
	tomb.Go(func() error {
		defer close(eventCh)
		for {
			var e fsnotify.Event
			select {
			case <-tomb.Dying():
				mw.Close()
				return nil
			case ev, ok := <-mw.Events:
				if !ok {
					return nil
				}
				e = ev
			}
			if !IsProjectFile(e.Name) && !IsSourceFile(e.Name) {
				continue
			}
			var op Op
			switch {
			case e.Op&(fsnotify.Rename|fsnotify.Remove) != 0:
				// fsnotify processes file renaming as a Rename event followed by a
				// Create event, so we can effectively treat renaming as removal.
				op = OpRemoved
			case e.Op&fsnotify.Create != 0:
				op = OpCreated
			case e.Op&(fsnotify.Write|fsnotify.Chmod) != 0:
				op = OpChanged
			default:
				continue
			}
			select {
			case eventCh <- Event{e.Name, op}:
			case <-tomb.Dying():
				mw.Close()
				return nil
			}
		}
	})

	return &FSWatcher{
		eventCh: eventCh,
		errCh:   mw.Errors,
		mw:      mw,
		dirs:    make(map[string]bool),
	}, nil
}

// Watch adds the directory of path. It reports whether the directory was
// not watched before.
func (w *FSWatcher) Watch(path string) (bool, error) {
	dir := filepath.Dir(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] {
		return false, nil
	}
	if err := w.mw.Add(dir); err != nil {
		return false, xerrors.Errorf("failed to watch %v: %w", dir, err)
	}
	w.dirs[dir] = true
	return true, nil
}

// Unwatch removes the directory of path.
func (w *FSWatcher) Unwatch(path string) error {
	dir := filepath.Dir(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[dir] {
		return nil
	}
	delete(w.dirs, dir)
	return w.mw.Remove(dir)
}

func (w *FSWatcher) Close() error {
	return w.mw.Close()
}

func (w *FSWatcher) Events() <-chan Event {
	return w.eventCh
}

func (w *FSWatcher) Errors() <-chan error {
	return w.errCh
}
