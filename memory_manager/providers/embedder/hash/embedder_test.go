package hash

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/companion/memory_manager/providers/embedder"
)

func TestEmbedder(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder(embedder.WithDimensions(64))

	a, err := e.Embed(ctx, "The cat sat")
	require.NoError(t, err)
	require.Len(t, a, 64)

	b, err := e.Embed(ctx, "the CAT, sat!")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var norm float32
	for _, v := range a {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-5)

	empty, err := e.Embed(ctx, "")
	require.NoError(t, err)
	assert.Len(t, empty, 64)
}
