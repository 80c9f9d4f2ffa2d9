package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	messagestore "github.com/w-h-a/companion/message_store"
)

func TestMessageStore(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	userMsg, err := s.Create(ctx, "hi", messagestore.RoleUser, "u1", "ada")
	require.NoError(t, err)

	reply, err := s.Create(ctx, "", messagestore.RoleSystem, "u1", "ada")
	require.NoError(t, err)

	_, err = s.Create(ctx, "elsewhere", messagestore.RoleUser, "u2", "ada")
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, reply, "hello"))

	messages, err := s.List(ctx, "ada", "u1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, userMsg, messages[0].Id)
	assert.Equal(t, messagestore.RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[1].Content)
	assert.Equal(t, messagestore.RoleSystem, messages[1].Role)

	require.NoError(t, s.Delete(ctx, reply))

	messages, err = s.List(ctx, "ada", "u1")
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestMessageStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	assert.ErrorIs(t, s.Update(ctx, "missing", "x"), messagestore.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "missing"), messagestore.ErrNotFound)
}
