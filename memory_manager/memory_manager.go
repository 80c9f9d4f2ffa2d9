package memorymanager

import "context"

type MemoryManager interface {
	ReadWindow(ctx context.Context, key IdentityKey) (HistoryWindow, error)
	Append(ctx context.Context, key IdentityKey, text string) error
	Seed(ctx context.Context, key IdentityKey, seed string, delimiter string) error
	VectorStore(ctx context.Context, personaId string, text string) error
	VectorSearch(ctx context.Context, personaId string, query string) Recall
}
