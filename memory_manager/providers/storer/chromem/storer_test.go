package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/companion/memory_manager/providers/storer"
)

func TestStorer_SearchWithinNamespace(t *testing.T) {
	ctx := context.Background()
	s := NewStorer()

	require.NoError(t, s.Upsert(ctx, "ada", "north", map[string]any{"persona_id": "ada"}, []float32{0, 1, 0}))
	require.NoError(t, s.Upsert(ctx, "ada", "east", nil, []float32{1, 0, 0}))
	require.NoError(t, s.Upsert(ctx, "bob", "north too", nil, []float32{0, 1, 0}))

	records, err := s.Search(ctx, "ada", []float32{0, 1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "north", records[0].Content)
	assert.Equal(t, "ada", records[0].Namespace)
	assert.Equal(t, "ada", records[0].Metadata["persona_id"])
	assert.Equal(t, "east", records[1].Content)
	assert.False(t, records[0].CreatedAt.IsZero())
}

func TestStorer_EmptyNamespace(t *testing.T) {
	s := NewStorer()

	records, err := s.Search(context.Background(), "nobody", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStorer_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := NewStorer(storer.WithLocation(dir))
	require.NoError(t, s.Upsert(ctx, "ada", "kept", nil, []float32{1, 0, 0}))

	records, err := s.Search(ctx, "ada", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0].Content)
}
