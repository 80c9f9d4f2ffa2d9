package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	personastore "github.com/w-h-a/companion/persona_store"
	pgconn "github.com/w-h-a/companion/util/pg_conn"
)

type postgresPersonaStore struct {
	options personastore.Options
	conn    *sql.DB
}

func (p *postgresPersonaStore) Get(ctx context.Context, id string) (personastore.Persona, error) {
	query := `
		SELECT id, name, description, instructions, seed
		FROM personas
		WHERE id = $1
	`

	var persona personastore.Persona

	err := p.conn.QueryRowContext(ctx, query, id).Scan(
		&persona.Id,
		&persona.Name,
		&persona.Description,
		&persona.Instructions,
		&persona.Seed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return personastore.Persona{}, personastore.ErrNotFound
	}
	if err != nil {
		return personastore.Persona{}, err
	}

	return persona, nil
}

func (p *postgresPersonaStore) configure(ctx context.Context) error {
	return pgconn.Exec(
		ctx,
		p.conn,
		`
			CREATE TABLE IF NOT EXISTS personas (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				instructions TEXT NOT NULL DEFAULT '',
				seed TEXT NOT NULL DEFAULT ''
			)
		`,
	)
}

func NewPersonaStore(opts ...personastore.Option) personastore.PersonaStore {
	options := personastore.NewOptions(opts...)

	p := &postgresPersonaStore{
		options: options,
	}

	p.conn = pgconn.MustOpen(options.Location, "postgres persona store")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.configure(ctx); err != nil {
		detail := "failed to configure schema for postgres persona store"
		slog.ErrorContext(ctx, detail, "error", err)
		panic(detail)
	}

	return p
}
