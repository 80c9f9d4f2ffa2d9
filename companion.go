package companion

import (
	"context"

	"github.com/w-h-a/companion/generator"
	"github.com/w-h-a/companion/internal/service/chat"
	"github.com/w-h-a/companion/internal/service/session"
	"github.com/w-h-a/companion/limiter"
	memorymanager "github.com/w-h-a/companion/memory_manager"
	messagestore "github.com/w-h-a/companion/message_store"
	personastore "github.com/w-h-a/companion/persona_store"
)

type (
	Request = chat.Request
	Sink    = session.Sink
	Session = session.Session
	Outcome = session.Outcome
	Option  = session.Option
)

var (
	ErrUnauthorized  = chat.ErrUnauthorized
	ErrRateLimited   = chat.ErrRateLimited
	ErrNotFound      = chat.ErrNotFound
	ErrValidation    = chat.ErrValidation
	ErrStreamFailure = chat.ErrStreamFailure
	ErrFatal         = chat.ErrFatal
)

var (
	WithCheckpointInterval = session.WithCheckpointInterval
	WithCleanupTimeout     = session.WithCleanupTimeout
	NewWriterSink          = session.NewWriterSink
)

type Companion struct {
	chat     *chat.Service
	sessions *session.Service
}

// Respond starts streaming a persona's reply into sink. A nil error means
// the session is running; its outcome is available from the session.
func (c *Companion) Respond(ctx context.Context, req Request, sink Sink) (*Session, error) {
	return c.chat.Respond(ctx, req, sink)
}

func (c *Companion) ListMessages(ctx context.Context, personaId string, userId string) ([]messagestore.Message, error) {
	return c.chat.ListMessages(ctx, personaId, userId)
}

func (c *Companion) ListSessionIds(ctx context.Context) []string {
	return c.sessions.ListSessionIds(ctx)
}

// Close waits for running sessions to finish until ctx is done.
func (c *Companion) Close(ctx context.Context) error {
	return c.sessions.Drain(ctx)
}

func New(
	personas personastore.PersonaStore,
	messages messagestore.MessageStore,
	memory memorymanager.MemoryManager,
	generator generator.Generator,
	limiter limiter.Limiter,
	modelId string,
	opts ...Option,
) *Companion {
	sessions := session.New(
		messages,
		memory,
		opts...,
	)

	chat := chat.New(
		personas,
		messages,
		memory,
		generator,
		limiter,
		sessions,
		modelId,
	)

	return &Companion{
		chat:     chat,
		sessions: sessions,
	}
}
