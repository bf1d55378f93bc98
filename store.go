package ocamlcreator

import (
	"sync"

	"github.com/ocamlcreator/ocamlcreator/internal/merlin"
	"github.com/ocamlcreator/ocamlcreator/internal/types"
)

// diagnostics is the last errors reply applied to a document.
type diagnostics struct {
	valid bool
	diags []types.Diagnostic
	fixes []types.QuickFix
}

// store holds the diagnostics of every document. The dispatcher goroutine
// is its only writer.
type store struct {
	mu   sync.RWMutex
	docs map[string]*diagnostics
}

func newStore() *store {
	return &store{docs: make(map[string]*diagnostics)}
}

// storeKey is the key of a document path; documents without a path share
// the buffer key.
func storeKey(path string) string {
	if path == "" {
		return merlin.Buffer
	}
	return path
}

func (s *store) set(key string, diags []types.Diagnostic, fixes []types.QuickFix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = &diagnostics{
		valid: true,
		diags: diags,
		fixes: fixes,
	}
}

func (s *store) forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
}

func (s *store) get(key string) *diagnostics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.docs[key]
	if d == nil || !d.valid {
		return nil
	}
	return d
}

func (s *store) diagnosticAt(key string, offset int) (types.Diagnostic, bool) {
	d := s.get(key)
	if d == nil {
		return types.Diagnostic{}, false
	}
	var res types.Diagnostic
	found := false
	for _, diag := range d.diags {
		if !diag.Range.Contains(offset) {
			continue
		}
		if !found || types.SeverityPriority[diag.Severity] > types.SeverityPriority[res.Severity] {
			res = diag
			found = true
		}
	}
	return res, found
}

func (s *store) quickFixesAt(key string, cursor int) []types.QuickFix {
	d := s.get(key)
	if d == nil {
		return nil
	}
	var res []types.QuickFix
	for _, q := range d.fixes {
		if q.Range.Covers(cursor) {
			res = append(res, q)
		}
	}
	return res
}

// Diagnostics returns the diagnostics last applied to doc.
func (b *Bridge) Diagnostics(doc types.Document) []types.Diagnostic {
	if doc == nil {
		return nil
	}
	d := b.store.get(storeKey(doc.Path()))
	if d == nil {
		return nil
	}
	return append([]types.Diagnostic(nil), d.diags...)
}
