package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"github.com/w-h-a/companion/memory_manager/providers/storer"
)

const (
	createdAtKey = "created_at"
	metadataKey  = "metadata"
	namespaceKey = "namespace"
)

// chromemStorer keeps one collection per namespace inside an embedded db.
type chromemStorer struct {
	options storer.Options
	db      *chromem.DB
}

func (s *chromemStorer) Upsert(ctx context.Context, namespace string, content string, metadata map[string]any, vector []float32) error {
	col, err := s.collection(namespace)
	if err != nil {
		return err
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	cpy := make([]float32, len(vector))
	copy(cpy, vector)

	doc := chromem.Document{
		ID:        uuid.New().String(),
		Content:   content,
		Embedding: cpy,
		Metadata: map[string]string{
			namespaceKey: namespace,
			metadataKey:  string(meta),
			createdAtKey: time.Now().UTC().Format(time.RFC3339Nano),
		},
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	return nil
}

func (s *chromemStorer) Search(ctx context.Context, namespace string, vector []float32, limit int) ([]storer.Record, error) {
	if limit < 1 {
		return nil, nil
	}

	col, err := s.collection(namespace)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection
	n := min(limit, col.Count())
	if n == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	records := make([]storer.Record, 0, len(results))

	for _, result := range results {
		var meta map[string]any
		if err := json.Unmarshal([]byte(result.Metadata[metadataKey]), &meta); err != nil {
			meta = map[string]any{}
		}

		createdAt, _ := time.Parse(time.RFC3339Nano, result.Metadata[createdAtKey])

		records = append(records, storer.Record{
			Id:        result.ID,
			Namespace: result.Metadata[namespaceKey],
			Content:   result.Content,
			Metadata:  meta,
			Embedding: result.Embedding,
			Score:     result.Similarity,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		})
	}

	return records, nil
}

func (s *chromemStorer) collection(namespace string) (*chromem.Collection, error) {
	name := fmt.Sprintf("%s_%s", s.options.Collection, namespace)

	// embeddings are always supplied so the embedding func is never called
	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return col, nil
}

func NewStorer(opts ...storer.Option) storer.Storer {
	options := storer.NewOptions(opts...)

	s := &chromemStorer{
		options: options,
	}

	if len(options.Location) == 0 {
		s.db = chromem.NewDB()
		return s
	}

	db, err := chromem.NewPersistentDB(options.Location, false)
	if err != nil {
		detail := "failed to open persistent db for chromem storer"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	s.db = db

	return s
}
