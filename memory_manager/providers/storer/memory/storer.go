package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	memorymanager "github.com/w-h-a/companion/memory_manager"
	"github.com/w-h-a/companion/memory_manager/providers/storer"
)

type memoryStorer struct {
	options storer.Options
	records map[string]storer.Record
	mtx     sync.RWMutex
}

func (s *memoryStorer) Upsert(ctx context.Context, namespace string, content string, metadata map[string]any, vector []float32) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	id := uuid.New().String()

	now := time.Now().UTC()

	cpy := make([]float32, len(vector))
	copy(cpy, vector)

	meta := make(map[string]any, len(metadata))
	maps.Copy(meta, metadata)

	rec := storer.Record{
		Id:        id,
		Namespace: namespace,
		Content:   content,
		Metadata:  meta,
		Embedding: cpy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.records[id] = rec

	return nil
}

func (s *memoryStorer) Search(ctx context.Context, namespace string, vector []float32, limit int) ([]storer.Record, error) {
	if limit < 1 {
		return nil, nil
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	candidates := make([]storer.Record, 0, len(s.records))

	for _, rec := range s.records {
		if rec.Namespace != namespace {
			continue
		}
		score := memorymanager.CosineSimilarity(vector, rec.Embedding)
		rec.Score = float32(score)
		candidates = append(candidates, rec)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		}
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return candidates, nil
}

func NewStorer(opts ...storer.Option) storer.Storer {
	options := storer.NewOptions(opts...)

	s := &memoryStorer{
		options: options,
		records: map[string]storer.Record{},
		mtx:     sync.RWMutex{},
	}

	return s
}
