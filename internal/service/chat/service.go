package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/w-h-a/companion/generator"
	"github.com/w-h-a/companion/internal/service/session"
	"github.com/w-h-a/companion/limiter"
	memorymanager "github.com/w-h-a/companion/memory_manager"
	messagestore "github.com/w-h-a/companion/message_store"
	personastore "github.com/w-h-a/companion/persona_store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const seedDelimiter = "\n\n"

type Request struct {
	PersonaId string
	UserId    string
	Prompt    string
}

type Service struct {
	personas  personastore.PersonaStore
	messages  messagestore.MessageStore
	memory    memorymanager.MemoryManager
	generator generator.Generator
	limiter   limiter.Limiter
	sessions  *session.Service
	modelId   string
	tracer    trace.Tracer
}

// Respond prepares the turn and starts streaming the reply into sink. Every
// error returned here happens before a placeholder message exists; later
// failures are reported through the session outcome.
func (s *Service) Respond(ctx context.Context, req Request, sink session.Sink) (sess *session.Session, err error) {
	ctx, span := s.tracer.Start(ctx, "chat.Respond")
	span.SetAttributes(
		attribute.String("persona.id", req.PersonaId),
		attribute.String("user.id", req.UserId),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	prompt := strings.TrimSpace(req.Prompt)
	if len(prompt) == 0 {
		return nil, fmt.Errorf("%w: empty prompt", ErrValidation)
	}

	if len(strings.TrimSpace(req.UserId)) == 0 {
		return nil, ErrUnauthorized
	}

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, fmt.Sprintf("%s-%s", req.PersonaId, req.UserId))
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		if !ok {
			return nil, ErrRateLimited
		}
	}

	persona, err := s.persona(ctx, req.PersonaId)
	if err != nil {
		return nil, err
	}

	key := memorymanager.IdentityKey{
		PersonaId: persona.Id,
		ModelId:   s.modelId,
		UserId:    req.UserId,
	}
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrValidation, memorymanager.ErrInvalidKey)
	}

	if _, err := s.messages.Create(ctx, prompt, messagestore.RoleUser, req.UserId, persona.Id); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	window, err := s.memory.ReadWindow(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	if window.Empty() && len(strings.TrimSpace(persona.Seed)) > 0 {
		if err := s.memory.Seed(ctx, key, persona.Seed, seedDelimiter); err != nil {
			return nil, fmt.Errorf("seed history: %w", err)
		}
		if window, err = s.memory.ReadWindow(ctx, key); err != nil {
			return nil, fmt.Errorf("read history: %w", err)
		}
	}

	if err := s.memory.Append(ctx, key, "User: "+prompt); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}

	recall := s.memory.VectorSearch(ctx, persona.Id, prompt)
	span.SetAttributes(
		attribute.Bool("recall.degraded", recall.Degraded()),
		attribute.Int("recall.count", len(recall.Texts)),
		attribute.Int("history.count", len(window.Entries)),
	)

	text := AssemblePrompt(PromptInput{
		PersonaName:  persona.Name,
		Instructions: persona.Instructions,
		Memories:     recall.Texts,
		History:      window.Transcript(),
		Utterance:    prompt,
	})

	stream, err := s.generator.Stream(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStreamFailure, err)
	}

	messageId, err := s.messages.Create(ctx, "", messagestore.RoleSystem, req.UserId, persona.Id)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("create placeholder: %w", err)
	}

	slog.InfoContext(ctx, "session started",
		"message_id", messageId,
		"persona_id", persona.Id,
		"user_id", req.UserId,
		"recall_degraded", recall.Degraded(),
	)

	turn := session.Turn{
		Key:         key,
		PersonaName: persona.Name,
		Prompt:      prompt,
		MessageId:   messageId,
	}

	return s.sessions.Start(ctx, turn, stream, sink), nil
}

// ListMessages returns the user's conversation with a persona, oldest first.
func (s *Service) ListMessages(ctx context.Context, personaId string, userId string) ([]messagestore.Message, error) {
	if len(strings.TrimSpace(userId)) == 0 {
		return nil, ErrUnauthorized
	}

	persona, err := s.persona(ctx, personaId)
	if err != nil {
		return nil, err
	}

	return s.messages.List(ctx, persona.Id, userId)
}

func (s *Service) persona(ctx context.Context, id string) (personastore.Persona, error) {
	if len(strings.TrimSpace(id)) == 0 {
		return personastore.Persona{}, fmt.Errorf("%w: missing persona id", ErrValidation)
	}

	persona, err := s.personas.Get(ctx, id)
	if errors.Is(err, personastore.ErrNotFound) {
		return personastore.Persona{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return personastore.Persona{}, fmt.Errorf("lookup persona: %w", err)
	}

	return persona, nil
}

func New(
	personas personastore.PersonaStore,
	messages messagestore.MessageStore,
	memory memorymanager.MemoryManager,
	generator generator.Generator,
	limiter limiter.Limiter,
	sessions *session.Service,
	modelId string,
) *Service {
	return &Service{
		personas:  personas,
		messages:  messages,
		memory:    memory,
		generator: generator,
		limiter:   limiter,
		sessions:  sessions,
		modelId:   modelId,
		tracer:    otel.Tracer("github.com/w-h-a/companion/internal/service/chat"),
	}
}
