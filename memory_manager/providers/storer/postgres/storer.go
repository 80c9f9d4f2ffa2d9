package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/w-h-a/companion/memory_manager/providers/storer"
	pgconn "github.com/w-h-a/companion/util/pg_conn"
)

type postgresStorer struct {
	options storer.Options
	conn    *sql.DB
}

func (p *postgresStorer) Upsert(ctx context.Context, namespace string, content string, metadata map[string]any, vector []float32) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id,
			namespace,
			content,
			metadata,
			embedding
		)
		VALUES ($1, $2, $3, $4, $5)
	`, p.options.Collection)

	_, err = p.conn.ExecContext(
		ctx,
		query,
		uuid.New().String(),
		namespace,
		content,
		metaJSON,
		pgvector.NewVector(vector),
	)

	return err
}

func (p *postgresStorer) Search(ctx context.Context, namespace string, vector []float32, limit int) ([]storer.Record, error) {
	if limit < 1 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT
			id,
			namespace,
			content,
			metadata,
			embedding,
			1 - (embedding <=> $2) as score,
			created_at,
			updated_at
		FROM %s
		WHERE namespace = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`, p.options.Collection)

	rows, err := p.conn.QueryContext(ctx, query, namespace, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []storer.Record

	for rows.Next() {
		var rec storer.Record
		var metaBytes []byte
		var embedding pgvector.Vector

		err := rows.Scan(
			&rec.Id,
			&rec.Namespace,
			&rec.Content,
			&metaBytes,
			&embedding,
			&rec.Score,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		rec.Embedding = embedding.Slice()

		if err := json.Unmarshal(metaBytes, &rec.Metadata); err != nil {
			rec.Metadata = make(map[string]any)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (p *postgresStorer) configure(ctx context.Context) error {
	column := "vector"
	if p.options.VectorSize > 0 {
		column = fmt.Sprintf("vector(%d)", p.options.VectorSize)
	}

	return pgconn.Exec(
		ctx,
		p.conn,
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				namespace TEXT NOT NULL,
				content TEXT NOT NULL,
				metadata JSONB NOT NULL DEFAULT '{}',
				embedding %s NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)
		`, p.options.Collection, column),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_namespace_idx ON %s (namespace)`, p.options.Collection, p.options.Collection),
	)
}

func NewStorer(opts ...storer.Option) storer.Storer {
	options := storer.NewOptions(opts...)

	p := &postgresStorer{
		options: options,
	}

	p.conn = pgconn.MustOpen(p.options.Location, "postgres storer")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.configure(ctx); err != nil {
		detail := "failed to configure schema for postgres storer"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	return p
}
