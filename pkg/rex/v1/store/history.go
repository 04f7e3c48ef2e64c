package store

import (
	rexerrors "github.com/pelagornis/go-rex/pkg/rex/v1/errors"
)

// History is an append-only, truncating log of committed state snapshots
// with a cursor supporting undo, redo, and direct jumps. Recording a new
// state while the cursor is not at the tail discards the redoable branch
// before appending.
//
// History performs no locking of its own; the store serializes access.
type History[S any] struct {
	snapshots []S
	cursor    int
}

// NewHistory creates a history seeded with the initial state, so a single
// undo after the first reduction returns to it.
func NewHistory[S any](initial S) *History[S] {
	return &History[S]{
		snapshots: []S{initial},
		cursor:    0,
	}
}

// Record appends a committed state. If prior undos moved the cursor off
// the tail, everything after the cursor is discarded first.
func (h *History[S]) Record(state S) {
	if h.cursor < len(h.snapshots)-1 {
		h.snapshots = h.snapshots[:h.cursor+1]
	}
	h.snapshots = append(h.snapshots, state)
	h.cursor = len(h.snapshots) - 1
}

// Undo moves the cursor one snapshot back and returns the state now
// pointed to. It fails with a NavigationError at the beginning of history.
func (h *History[S]) Undo() (S, error) {
	if h.cursor <= 0 {
		var zero S
		return zero, rexerrors.NewNavigationError("undo", h.cursor-1, h.cursor, len(h.snapshots))
	}
	h.cursor--
	return h.snapshots[h.cursor], nil
}

// Redo moves the cursor one snapshot forward and returns the state now
// pointed to. It fails with a NavigationError at the end of history.
func (h *History[S]) Redo() (S, error) {
	if h.cursor >= len(h.snapshots)-1 {
		var zero S
		return zero, rexerrors.NewNavigationError("redo", h.cursor+1, h.cursor, len(h.snapshots))
	}
	h.cursor++
	return h.snapshots[h.cursor], nil
}

// JumpTo sets the cursor to index and returns the state there. It fails
// with a NavigationError when index is outside [0, Len()).
func (h *History[S]) JumpTo(index int) (S, error) {
	if index < 0 || index >= len(h.snapshots) {
		var zero S
		return zero, rexerrors.NewNavigationError("jump", index, h.cursor, len(h.snapshots))
	}
	h.cursor = index
	return h.snapshots[h.cursor], nil
}

// Cursor returns the current cursor position.
func (h *History[S]) Cursor() int {
	return h.cursor
}

// Len returns the number of recorded snapshots.
func (h *History[S]) Len() int {
	return len(h.snapshots)
}
