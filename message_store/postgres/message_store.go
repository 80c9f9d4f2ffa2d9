package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	messagestore "github.com/w-h-a/companion/message_store"
	pgconn "github.com/w-h-a/companion/util/pg_conn"
)

type postgresMessageStore struct {
	options messagestore.Options
	conn    *sql.DB
}

func (p *postgresMessageStore) Create(ctx context.Context, content string, role messagestore.Role, userId string, personaId string) (string, error) {
	id := uuid.New().String()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, role, user_id, persona_id)
		VALUES ($1, $2, $3, $4, $5)
	`, p.options.Table)

	if _, err := p.conn.ExecContext(ctx, query, id, content, string(role), userId, personaId); err != nil {
		return "", err
	}

	return id, nil
}

func (p *postgresMessageStore) Update(ctx context.Context, id string, content string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET content = $2, updated_at = now()
		WHERE id = $1
	`, p.options.Table)

	res, err := p.conn.ExecContext(ctx, query, id, content)
	if err != nil {
		return err
	}

	return expectOne(res)
}

func (p *postgresMessageStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, p.options.Table)

	res, err := p.conn.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return expectOne(res)
}

func (p *postgresMessageStore) List(ctx context.Context, personaId string, userId string) ([]messagestore.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, content, role, user_id, persona_id, created_at, updated_at
		FROM %s
		WHERE persona_id = $1 AND user_id = $2
		ORDER BY created_at ASC, seq ASC
	`, p.options.Table)

	rows, err := p.conn.QueryContext(ctx, query, personaId, userId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []messagestore.Message

	for rows.Next() {
		var msg messagestore.Message
		var role string

		if err := rows.Scan(
			&msg.Id,
			&msg.Content,
			&role,
			&msg.UserId,
			&msg.PersonaId,
			&msg.CreatedAt,
			&msg.UpdatedAt,
		); err != nil {
			return nil, err
		}

		msg.Role = messagestore.Role(role)

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (p *postgresMessageStore) configure(ctx context.Context) error {
	return pgconn.Exec(
		ctx,
		p.conn,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				seq BIGSERIAL,
				content TEXT NOT NULL,
				role TEXT NOT NULL,
				user_id TEXT NOT NULL,
				persona_id TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)
		`, p.options.Table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_persona_user_idx ON %s (persona_id, user_id)`, p.options.Table, p.options.Table),
	)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return messagestore.ErrNotFound
	}
	return nil
}

func NewMessageStore(opts ...messagestore.Option) messagestore.MessageStore {
	options := messagestore.NewOptions(opts...)

	p := &postgresMessageStore{
		options: options,
	}

	p.conn = pgconn.MustOpen(options.Location, "postgres message store")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.configure(ctx); err != nil {
		detail := "failed to configure schema for postgres message store"
		slog.ErrorContext(ctx, detail, "error", err)
		panic(detail)
	}

	return p
}
