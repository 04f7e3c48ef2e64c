package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rexerrors "github.com/pelagornis/go-rex/pkg/rex/v1/errors"
	"github.com/pelagornis/go-rex/pkg/rex/v1/store"
)

func TestHistoryRecordAndNavigate(t *testing.T) {
	h := store.NewHistory("s0")
	h.Record("s1")
	h.Record("s2")

	require.Equal(t, 3, h.Len())
	require.Equal(t, 2, h.Cursor())

	state, err := h.Undo()
	require.NoError(t, err)
	assert.Equal(t, "s1", state)

	state, err = h.Redo()
	require.NoError(t, err)
	assert.Equal(t, "s2", state)

	state, err = h.JumpTo(0)
	require.NoError(t, err)
	assert.Equal(t, "s0", state)
}

func TestHistoryPruneOnWrite(t *testing.T) {
	// [s0, s1, s2, s3] with the cursor at the tail.
	h := store.NewHistory("s0")
	h.Record("s1")
	h.Record("s2")
	h.Record("s3")

	_, err := h.Undo()
	require.NoError(t, err)
	state, err := h.Undo()
	require.NoError(t, err)
	require.Equal(t, "s1", state)
	require.Equal(t, 1, h.Cursor())

	// Recording here discards s2 and s3 permanently.
	h.Record("s4")
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 2, h.Cursor())

	_, err = h.Redo()
	require.Error(t, err)

	state, err = h.Undo()
	require.NoError(t, err)
	assert.Equal(t, "s1", state)
	state, err = h.Undo()
	require.NoError(t, err)
	assert.Equal(t, "s0", state)
}

func TestHistoryBounds(t *testing.T) {
	h := store.NewHistory(1)

	_, err := h.Undo()
	require.Error(t, err)
	assert.True(t, rexerrors.IsNavigation(err))

	_, err = h.Redo()
	require.Error(t, err)
	assert.True(t, rexerrors.IsNavigation(err))

	_, err = h.JumpTo(-1)
	require.Error(t, err)
	_, err = h.JumpTo(1)
	require.Error(t, err)

	var navErr *rexerrors.NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, "jump", navErr.Op)
	assert.Equal(t, 1, navErr.Index)
	assert.Equal(t, 1, navErr.Length)
}
