package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/w-h-a/companion/generator"
	memorymanager "github.com/w-h-a/companion/memory_manager"
	messagestore "github.com/w-h-a/companion/message_store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/w-h-a/companion/internal/service/session"

// Service starts stream sessions and tracks the ones still running.
type Service struct {
	options  Options
	messages messagestore.MessageStore
	memory   memorymanager.MemoryManager
	sessions map[string]*Session
	wg       sync.WaitGroup
	mtx      sync.RWMutex

	tracer      trace.Tracer
	tokens      metric.Int64Counter
	checkpoints metric.Int64Counter
	finalized   metric.Int64Counter
	aborted     metric.Int64Counter
}

// Start runs a session for turn in its own goroutine and returns at once.
// The session ends when stream ends, fails, or ctx is canceled.
func (s *Service) Start(ctx context.Context, turn Turn, stream generator.Stream, sink Sink) *Session {
	session := &Session{
		service: s,
		turn:    turn,
		stream:  stream,
		sink:    sink,
		state:   StateInit,
		done:    make(chan struct{}),
	}

	s.mtx.Lock()
	s.sessions[turn.MessageId] = session
	s.wg.Add(1)
	s.mtx.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.release(turn.MessageId)
		session.run(ctx)
	}()

	return session
}

func (s *Service) ListSessionIds(ctx context.Context) []string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Drain waits for every running session to close.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) release(id string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	delete(s.sessions, id)
}

func New(
	messages messagestore.MessageStore,
	memory memorymanager.MemoryManager,
	opts ...Option,
) *Service {
	options := NewOptions(opts...)

	s := &Service{
		options:  options,
		messages: messages,
		memory:   memory,
		sessions: map[string]*Session{},
		mtx:      sync.RWMutex{},
		tracer:   otel.Tracer(instrumentation),
	}

	meter := otel.Meter(instrumentation)

	var err error

	if s.tokens, err = meter.Int64Counter("companion.session.tokens"); err != nil {
		slog.Warn("otel counter companion.session.tokens", "error", err)
	}
	if s.checkpoints, err = meter.Int64Counter("companion.session.checkpoints"); err != nil {
		slog.Warn("otel counter companion.session.checkpoints", "error", err)
	}
	if s.finalized, err = meter.Int64Counter("companion.session.finalized"); err != nil {
		slog.Warn("otel counter companion.session.finalized", "error", err)
	}
	if s.aborted, err = meter.Int64Counter("companion.session.aborted"); err != nil {
		slog.Warn("otel counter companion.session.aborted", "error", err)
	}

	return s
}
