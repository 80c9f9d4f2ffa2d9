package munin

import (
	"context"

	memorymanager "github.com/w-h-a/companion/memory_manager"
)

// muninMemoryManager keeps the live transcript in a sorted set and the
// long-term record in a vector store.
type muninMemoryManager struct {
	options memorymanager.Options
	history *memorymanager.HistoryStore
	vectors *memorymanager.VectorMemory
}

func (m *muninMemoryManager) ReadWindow(ctx context.Context, key memorymanager.IdentityKey) (memorymanager.HistoryWindow, error) {
	return m.history.ReadWindow(ctx, key)
}

func (m *muninMemoryManager) Append(ctx context.Context, key memorymanager.IdentityKey, text string) error {
	return m.history.Append(ctx, key, text)
}

func (m *muninMemoryManager) Seed(ctx context.Context, key memorymanager.IdentityKey, seed string, delimiter string) error {
	return m.history.Seed(ctx, key, seed, delimiter)
}

func (m *muninMemoryManager) VectorStore(ctx context.Context, personaId string, text string) error {
	return m.vectors.Store(ctx, personaId, text)
}

func (m *muninMemoryManager) VectorSearch(ctx context.Context, personaId string, query string) memorymanager.Recall {
	return m.vectors.Search(ctx, personaId, query)
}

func NewMemoryManager(opts ...memorymanager.Option) memorymanager.MemoryManager {
	options := memorymanager.NewOptions(opts...)

	m := &muninMemoryManager{
		options: options,
		history: memorymanager.NewHistoryStore(opts...),
		vectors: memorymanager.NewVectorMemory(opts...),
	}

	return m
}
