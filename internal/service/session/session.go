package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/w-h-a/companion/generator"
	memorymanager "github.com/w-h-a/companion/memory_manager"
	messagestore "github.com/w-h-a/companion/message_store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Turn is everything a session needs to know about the exchange it streams.
type Turn struct {
	Key         memorymanager.IdentityKey
	PersonaName string
	Prompt      string
	MessageId   string
}

// Session streams one model response into a placeholder message. It is
// owned by a single goroutine from Run until Done is closed.
type Session struct {
	service *Service
	turn    Turn
	stream  generator.Stream
	sink    Sink

	accumulated      strings.Builder
	lastCheckpointAt time.Time
	pending          chan error
	checkpoints      int
	stopCheckpoint   context.CancelFunc

	state   State
	outcome Outcome
	mtx     sync.RWMutex

	closeOnce sync.Once
	done      chan struct{}
}

func (s *Session) ID() string {
	return s.turn.MessageId
}

func (s *Session) State() State {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.state
}

// Done is closed once the session is closed and its outcome is final.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Outcome() Outcome {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.outcome
}

// Wait blocks until the session is closed or ctx is done.
func (s *Session) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		return s.Outcome(), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (s *Session) run(ctx context.Context) {
	ctx, span := s.service.tracer.Start(ctx, "session.Run")
	span.SetAttributes(
		attribute.String("message.id", s.turn.MessageId),
		attribute.String("persona.id", s.turn.Key.PersonaId),
	)

	defer close(s.done)
	defer span.End()
	defer s.closeSink(ctx)
	defer s.stream.Close()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrFatal, r)
			if s.Outcome().Committed() {
				slog.ErrorContext(ctx, "session panicked after commit", "message_id", s.turn.MessageId, "error", err)
			} else {
				s.abort(ctx, err)
			}
		}
		if out := s.Outcome(); out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
		}
		span.SetAttributes(attribute.Int("session.checkpoints", s.checkpoints))
	}()

	checkpointCtx, stopCheckpoint := context.WithCancel(context.WithoutCancel(ctx))
	defer stopCheckpoint()
	s.stopCheckpoint = stopCheckpoint

	s.setState(StateStreaming)
	s.lastCheckpointAt = s.service.options.Clock()

	for {
		token, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.finalize(ctx)
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				s.abort(ctx, fmt.Errorf("%w: %w", ErrDisconnected, ctx.Err()))
				return
			}
			s.abort(ctx, fmt.Errorf("%w: %w", ErrStreamFailure, err))
			return
		}

		if len(token) == 0 {
			continue
		}

		s.accumulated.WriteString(token)

		if err := s.sink.Write(ctx, token); err != nil {
			s.abort(ctx, fmt.Errorf("%w: %w", ErrDisconnected, err))
			return
		}

		s.service.tokens.Add(ctx, 1)

		if err := s.pollCheckpoint(ctx); err != nil {
			s.abort(ctx, fmt.Errorf("%w: %w", ErrPersistence, err))
			return
		}

		if s.pending == nil && s.service.options.Clock().Sub(s.lastCheckpointAt) >= s.service.options.CheckpointInterval {
			s.checkpoint(checkpointCtx)
		}
	}
}

// checkpoint writes the current prefix without blocking token delivery.
// Only one write is in flight at a time, so stored content only grows.
func (s *Session) checkpoint(ctx context.Context) {
	snapshot := s.accumulated.String()
	pending := make(chan error, 1)

	s.pending = pending
	s.lastCheckpointAt = s.service.options.Clock()

	go func() {
		pending <- s.service.messages.Update(ctx, s.turn.MessageId, snapshot)
	}()
}

func (s *Session) pollCheckpoint(ctx context.Context) error {
	if s.pending == nil {
		return nil
	}

	select {
	case err := <-s.pending:
		s.pending = nil
		if err != nil {
			return err
		}
		s.checkpoints++
		s.service.checkpoints.Add(ctx, 1)
		return nil
	default:
		return nil
	}
}

// settleCheckpoint waits for the in-flight checkpoint under a cleanup budget
// separate from the write that follows it.
func (s *Session) settleCheckpoint(ctx context.Context) error {
	cctx, cancel := s.cleanupContext(ctx)
	defer cancel()
	return s.awaitCheckpoint(cctx)
}

func (s *Session) awaitCheckpoint(ctx context.Context) error {
	if s.pending == nil {
		return nil
	}

	select {
	case err := <-s.pending:
		s.pending = nil
		if err != nil {
			return err
		}
		s.checkpoints++
		s.service.checkpoints.Add(ctx, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) finalize(ctx context.Context) {
	s.setState(StateFinalizing)

	if err := s.settleCheckpoint(ctx); err != nil {
		s.abort(ctx, fmt.Errorf("%w: %w", ErrPersistence, err))
		return
	}

	text := s.accumulated.String()

	cctx, cancel := s.cleanupContext(ctx)
	defer cancel()

	if err := s.service.messages.Update(cctx, s.turn.MessageId, text); err != nil {
		s.abort(ctx, fmt.Errorf("%w: %w", ErrPersistence, err))
		return
	}

	// memory writes get a budget of their own
	mctx, mcancel := s.cleanupContext(ctx)
	defer mcancel()

	s.setOutcome(Outcome{Path: StateFinalizing, MessageId: s.turn.MessageId, Text: text})

	// the message is committed, memory writes below are best effort
	name := s.turn.PersonaName

	if err := s.service.memory.Append(mctx, s.turn.Key, fmt.Sprintf("%s: %s", name, text)); err != nil {
		slog.ErrorContext(ctx, "failed to append response to history", "message_id", s.turn.MessageId, "error", err)
	}

	if err := s.service.memory.VectorStore(mctx, s.turn.Key.PersonaId, fmt.Sprintf("User: %s\n%s: %s", s.turn.Prompt, name, text)); err != nil {
		slog.ErrorContext(ctx, "failed to store turn in long-term memory", "message_id", s.turn.MessageId, "error", err)
	}

	s.service.finalized.Add(ctx, 1)

	slog.InfoContext(ctx, "session finalized",
		"message_id", s.turn.MessageId,
		"persona_id", s.turn.Key.PersonaId,
		"user_id", s.turn.Key.UserId,
		"checkpoints", s.checkpoints,
		"length", len(text),
	)
}

func (s *Session) abort(ctx context.Context, cause error) {
	if s.State() == StateAborting {
		slog.ErrorContext(ctx, "session failed while aborting", "message_id", s.turn.MessageId, "error", cause)
		if s.Outcome().Err == nil {
			s.setOutcome(Outcome{Path: StateAborting, MessageId: s.turn.MessageId, Err: cause})
		}
		return
	}

	s.setState(StateAborting)

	// an in-flight checkpoint is abandoned, the delete below supersedes it
	if s.stopCheckpoint != nil {
		s.stopCheckpoint()
	}

	if err := s.settleCheckpoint(ctx); err != nil {
		slog.WarnContext(ctx, "checkpoint failed before abort", "message_id", s.turn.MessageId, "error", err)
	}

	cctx, cancel := s.cleanupContext(ctx)
	defer cancel()

	if err := s.service.messages.Delete(cctx, s.turn.MessageId); err != nil && !errors.Is(err, messagestore.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to delete placeholder message", "message_id", s.turn.MessageId, "error", err)
	}

	s.setOutcome(Outcome{Path: StateAborting, MessageId: s.turn.MessageId, Err: cause})

	s.service.aborted.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", causeOf(cause))))

	slog.WarnContext(ctx, "session aborted",
		"message_id", s.turn.MessageId,
		"persona_id", s.turn.Key.PersonaId,
		"user_id", s.turn.Key.UserId,
		"error", cause,
	)
}

func (s *Session) closeSink(ctx context.Context) {
	s.closeOnce.Do(func() {
		done := make(chan error, 1)

		go func() {
			done <- s.sink.Close(s.Outcome().Err)
		}()

		select {
		case err := <-done:
			if err != nil {
				slog.DebugContext(ctx, "failed to close sink", "message_id", s.turn.MessageId, "error", err)
			}
		case <-time.After(s.service.options.CleanupTimeout):
			slog.WarnContext(ctx, "timed out closing sink", "message_id", s.turn.MessageId)
		}

		s.setState(StateClosed)
	})
}

// cleanupContext outlives the caller so that cleanup still runs after a
// disconnect, but never for longer than the cleanup timeout.
func (s *Session) cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.service.options.CleanupTimeout)
}

func (s *Session) setState(state State) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.state = state
}

func (s *Session) setOutcome(outcome Outcome) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.outcome = outcome
}

func causeOf(err error) string {
	switch {
	case errors.Is(err, ErrDisconnected):
		return "disconnected"
	case errors.Is(err, ErrStreamFailure):
		return "stream"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	}
	return "fatal"
}
