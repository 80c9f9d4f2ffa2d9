package storer

import "context"

// Storer persists embedded content partitioned by namespace. Search only
// returns records from the requested namespace, nearest first.
type Storer interface {
	Upsert(ctx context.Context, namespace string, content string, metadata map[string]any, vector []float32) error
	Search(ctx context.Context, namespace string, vector []float32, limit int) ([]Record, error)
}
