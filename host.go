package ocamlcreator

import "github.com/ocamlcreator/ocamlcreator/internal/types"

// Host is the editor the bridge reports to. Its methods are called from
// the bridge's dispatcher goroutine, one at a time; IsFocused is also
// called from the project watcher.
type Host interface {
	// IsFocused reports whether doc is the document the user is looking
	// at. Diagnostics for a document that has lost focus are dropped.
	IsFocused(doc types.Document) bool

	// GeneralMessage shows msg in the general output pane.
	GeneralMessage(msg string)

	// ReplaceTasks clears the issue list entries of path and adds tasks.
	ReplaceTasks(path string, tasks []types.Task)

	// ApplyHighlights replaces the diagnostic highlighting of doc and its
	// quick fix markers.
	ApplyHighlights(doc types.Document, diags []types.Diagnostic, markers []types.Marker)

	// OpenEditorAt navigates to path at line (1-indexed) and col (0-based).
	OpenEditorAt(path string, line, col int)

	// ShowUsages populates the search results identified by searchID.
	ShowUsages(searchID string, usages []types.Usage)
}
