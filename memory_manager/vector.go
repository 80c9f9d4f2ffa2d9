package memorymanager

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/w-h-a/companion/memory_manager/providers/embedder"
	"github.com/w-h-a/companion/memory_manager/providers/storer"
)

// Recall is the outcome of a long-term search. It never carries a fatal
// error: a degraded recall has no texts and Err explains why.
type Recall struct {
	Texts []string
	Err   error
}

func (r Recall) Degraded() bool {
	return r.Err != nil
}

type VectorMemory struct {
	storer   storer.Storer
	embedder embedder.Embedder
	limit    int
}

func (v *VectorMemory) Store(ctx context.Context, personaId string, text string) error {
	if len(strings.TrimSpace(personaId)) == 0 {
		return ErrInvalidKey
	}

	vec, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	meta := map[string]any{
		"persona_id": personaId,
	}

	if err := v.storer.Upsert(ctx, personaId, text, meta, vec); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	return nil
}

func (v *VectorMemory) Search(ctx context.Context, personaId string, query string) Recall {
	if len(strings.TrimSpace(personaId)) == 0 {
		return degraded(ctx, personaId, ErrInvalidKey)
	}

	vec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return degraded(ctx, personaId, fmt.Errorf("embed: %w", err))
	}

	records, err := v.storer.Search(ctx, personaId, vec, v.limit)
	if err != nil {
		return degraded(ctx, personaId, fmt.Errorf("search: %w", err))
	}

	texts := make([]string, 0, len(records))
	for _, rec := range records {
		// providers filter by namespace, but not all of them can do it exactly
		if len(rec.Namespace) > 0 && rec.Namespace != personaId {
			continue
		}
		texts = append(texts, rec.Content)
		if len(texts) == v.limit {
			break
		}
	}

	return Recall{Texts: texts}
}

func degraded(ctx context.Context, personaId string, err error) Recall {
	slog.WarnContext(ctx, "long-term recall degraded", "persona_id", personaId, "error", err)
	return Recall{Err: fmt.Errorf("%w: %w", ErrDegradedRecall, err)}
}

func NewVectorMemory(opts ...Option) *VectorMemory {
	options := NewOptions(opts...)

	if options.Storer == nil || options.Embedder == nil {
		panic("missing storer or embedder for vector memory")
	}

	v := &VectorMemory{
		storer:   options.Storer,
		embedder: options.Embedder,
		limit:    options.RecallLimit,
	}

	return v
}
