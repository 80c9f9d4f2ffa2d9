package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/w-h-a/companion/memory_manager/providers/storer"
	getsafe "github.com/w-h-a/companion/util/get_safe"
)

type neo4jStorer struct {
	options storer.Options
	driver  neo4j.DriverWithContext
}

func (s *neo4jStorer) Upsert(ctx context.Context, namespace string, content string, metadata map[string]any, vector []float32) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.options.Collection,
	})
	defer session.Close(ctx)

	jsonMeta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (m:Memory {id: $id})
			SET m.content = $content,
				m.namespace = $namespace,
				m.metadata = $metadata,
				m.created_at = datetime(),
				m.embedding = $embedding
		`
		params := map[string]any{
			"id":        uuid.New().String(),
			"namespace": namespace,
			"content":   content,
			"metadata":  string(jsonMeta),
			"embedding": vector,
		}

		return tx.Run(ctx, query, params)
	})

	return err
}

func (s *neo4jStorer) Search(ctx context.Context, namespace string, vector []float32, limit int) ([]storer.Record, error) {
	if limit < 1 {
		return nil, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.options.Collection,
	})
	defer session.Close(ctx)

	// the index is shared by every persona so over-fetch before filtering
	query := `
		CALL db.index.vector.queryNodes($index, $k, $vec)
		YIELD node, score
		WHERE node.namespace = $namespace
		RETURN node, score
		ORDER BY score DESC
		LIMIT $finalLimit
	`

	params := map[string]any{
		"index":      s.options.VectorIndex,
		"k":          limit * 10,
		"vec":        vector,
		"namespace":  namespace,
		"finalLimit": limit,
	}

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	var records []storer.Record
	for result.Next(ctx) {
		records = append(records, s.mapToStorerRecord(result.Record()))
	}

	if err := result.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (s *neo4jStorer) mapToStorerRecord(r *neo4j.Record) storer.Record {
	nodeVal, _ := r.Get("node")

	node := neo4j.Node{}
	if n, ok := nodeVal.(neo4j.Node); ok {
		node = n
	}

	props := node.Props

	var meta map[string]any
	if str := getsafe.String(props, "metadata"); len(str) > 0 {
		if err := json.Unmarshal([]byte(str), &meta); err != nil {
			meta = map[string]any{}
		}
	}

	scoreVal, _ := r.Get("score")

	score := float32(0)
	if f, ok := scoreVal.(float64); ok {
		score = float32(f)
	}

	createdAt := getsafe.Time(props, "created_at")

	return storer.Record{
		Id:        getsafe.String(props, "id"),
		Namespace: getsafe.String(props, "namespace"),
		Content:   getsafe.String(props, "content"),
		Metadata:  meta,
		Score:     score,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func (s *neo4jStorer) configure(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.options.Collection,
	})
	defer session.Close(ctx)

	distance := s.options.Distance
	if len(distance) == 0 {
		distance = "cosine"
	}

	vectorQuery := fmt.Sprintf(
		"CREATE VECTOR INDEX %s IF NOT EXISTS "+
			"FOR (m:Memory) ON (m.embedding) "+
			"OPTIONS {indexConfig: {"+
			" `vector.dimensions`: %d,"+
			" `vector.similarity_function`: '%s'"+
			"}}",
		s.options.VectorIndex, s.options.VectorSize, distance,
	)

	if _, err := session.Run(ctx, vectorQuery, nil); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	constraintQuery := `
		CREATE CONSTRAINT memory_id_unique IF NOT EXISTS
		FOR (m:Memory) REQUIRE m.id IS UNIQUE
	`
	if _, err := session.Run(ctx, constraintQuery, nil); err != nil {
		return fmt.Errorf("failed to create unique constraint: %w", err)
	}

	namespaceQuery := `
		CREATE INDEX memory_namespace IF NOT EXISTS
		FOR (m:Memory) ON (m.namespace)
	`
	if _, err := session.Run(ctx, namespaceQuery, nil); err != nil {
		return fmt.Errorf("failed to create namespace index: %w", err)
	}

	return nil
}

func NewStorer(opts ...storer.Option) storer.Storer {
	options := storer.NewOptions(opts...)

	if len(options.Location) == 0 || options.VectorSize == 0 {
		panic("missing location or vector size for neo4j storer")
	}

	s := &neo4jStorer{
		options: options,
	}

	auth := neo4j.NoAuth()
	if len(options.Username) > 0 {
		auth = neo4j.BasicAuth(options.Username, options.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(s.options.Location, auth)
	if err != nil {
		detail := "failed to create driver for neo4j storer"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	s.driver = driver

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.configure(ctx); err != nil {
		detail := "failed to configure neo4j storer"
		slog.ErrorContext(ctx, detail, "error", err)
		panic(detail)
	}

	return s
}
