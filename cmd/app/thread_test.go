package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pulth-Team/Pulth-sub000/internal/thread"
)

func TestWriteThread(t *testing.T) {
	alice := "Alice"
	forest, diagnostics := thread.Build([]thread.Record{
		{ID: "1", Content: "first\nline", AuthorName: &alice},
		{ID: "2", Content: "reply", AncestorChain: []string{"1"}, IsEdited: true},
		{ID: "3", Content: "deep", AncestorChain: []string{"1", "2"}},
		{ID: "4", Content: "orphan", AncestorChain: []string{"ghost"}},
		{ID: "5", Content: "loop", AncestorChain: []string{"5"}},
	})

	var buf bytes.Buffer
	require.NoError(t, writeThread(&buf, forest, diagnostics, 2))

	want := `- [1] Alice: first line
  - [2] [deleted]: reply (edited)
    - [3] [deleted]: deep (replies closed)
- [ghost] (missing comment)
  - [4] [deleted]: orphan

1 record(s) skipped:
  ancestor chain cycle: 5
`
	assert.Equal(t, want, buf.String())
}

func TestWriteThread_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeThread(&buf, thread.New(), nil, 3))
	assert.Equal(t, "no comments\n", buf.String())
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = newLogger("loud")
	assert.Error(t, err)
}
