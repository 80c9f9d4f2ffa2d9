package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	memorymanager "github.com/w-h-a/companion/memory_manager"
	"github.com/w-h-a/companion/memory_manager/munin"
	"github.com/w-h-a/companion/memory_manager/providers/embedder/hash"
	memoryset "github.com/w-h-a/companion/memory_manager/providers/sortedset/memory"
	memorystorer "github.com/w-h-a/companion/memory_manager/providers/storer/memory"
	messagestore "github.com/w-h-a/companion/message_store"
	"github.com/w-h-a/companion/message_store/memory"
)

// blockingStream hands out tokens as they are pushed and ends when closed.
type blockingStream struct {
	tokens chan string
}

func (s *blockingStream) Recv() (string, error) {
	token, ok := <-s.tokens
	if !ok {
		return "", io.EOF
	}
	return token, nil
}

func (s *blockingStream) Close() error {
	return nil
}

type discardSink struct{}

func (discardSink) Write(ctx context.Context, token string) error { return nil }
func (discardSink) Close(cause error) error                        { return nil }

func newTestService(t *testing.T) (*Service, messagestore.MessageStore) {
	t.Helper()

	messages := memory.NewMessageStore()

	return newTestServiceWith(t, messages), messages
}

func newTestServiceWith(t *testing.T, messages messagestore.MessageStore, opts ...Option) *Service {
	t.Helper()

	mem := munin.NewMemoryManager(
		memorymanager.WithSortedSet(memoryset.NewSortedSet()),
		memorymanager.WithStorer(memorystorer.NewStorer()),
		memorymanager.WithEmbedder(hash.NewEmbedder()),
	)

	return New(messages, mem, opts...)
}

func testTurn(t *testing.T, messages messagestore.MessageStore) Turn {
	t.Helper()

	id, err := messages.Create(context.Background(), "", messagestore.RoleSystem, "u1", "ada")
	require.NoError(t, err)

	return Turn{
		Key:         memorymanager.IdentityKey{PersonaId: "ada", ModelId: "m", UserId: "u1"},
		PersonaName: "Ada",
		Prompt:      "hi",
		MessageId:   id,
	}
}

func TestService_TracksRunningSessions(t *testing.T) {
	svc, messages := newTestService(t)
	turn := testTurn(t, messages)
	stream := &blockingStream{tokens: make(chan string)}

	sess := svc.Start(context.Background(), turn, stream, discardSink{})

	assert.Equal(t, []string{turn.MessageId}, svc.ListSessionIds(context.Background()))

	stream.tokens <- "hello"
	close(stream.tokens)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, svc.Drain(ctx))

	out := sess.Outcome()
	assert.True(t, out.Committed())
	assert.Equal(t, "hello", out.Text)
	assert.Empty(t, svc.ListSessionIds(context.Background()))
}

func TestService_DrainHonorsDeadline(t *testing.T) {
	svc, messages := newTestService(t)
	stream := &blockingStream{tokens: make(chan string)}

	svc.Start(context.Background(), testTurn(t, messages), stream, discardSink{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, svc.Drain(ctx), context.DeadlineExceeded)

	close(stream.tokens)
	require.NoError(t, svc.Drain(context.Background()))
}

func TestService_CanceledContextAbortsSession(t *testing.T) {
	svc, messages := newTestService(t)
	turn := testTurn(t, messages)

	ctx, cancel := context.WithCancel(context.Background())

	sess := svc.Start(ctx, turn, &ctxStream{ctx: ctx}, discardSink{})
	cancel()

	out, err := sess.Wait(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, out.Err, ErrDisconnected)
	assert.Equal(t, StateAborting, out.Path)

	msgs, err := messages.List(context.Background(), "ada", "u1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	require.NoError(t, sink.Write(context.Background(), "Hel"))
	require.NoError(t, sink.Write(context.Background(), "lo"))
	require.NoError(t, sink.Close(nil))
	assert.Equal(t, "Hello\n", buf.String())

	buf.Reset()
	require.NoError(t, sink.Close(errors.New("boom")))
	assert.Contains(t, buf.String(), "[response interrupted: boom]")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Write(ctx, "late"), context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}

type ctxStream struct {
	ctx context.Context
}

func (s *ctxStream) Recv() (string, error) {
	<-s.ctx.Done()
	return "", s.ctx.Err()
}

func (s *ctxStream) Close() error {
	return nil
}

type step struct {
	token string
	err   error
}

// pushStream yields whatever the test pushes, in order.
type pushStream struct {
	steps chan step
}

func (s *pushStream) Recv() (string, error) {
	st, ok := <-s.steps
	if !ok {
		return "", io.EOF
	}
	return st.token, st.err
}

func (s *pushStream) Close() error {
	return nil
}

// stallingStore lets its first update through and stalls every later one.
// Delete refuses an expired context the way database/sql does.
type stallingStore struct {
	messagestore.MessageStore
	honorCancel bool
	release     chan struct{}

	mtx   sync.Mutex
	calls int
}

func (s *stallingStore) Update(ctx context.Context, id string, content string) error {
	s.mtx.Lock()
	s.calls++
	call := s.calls
	s.mtx.Unlock()

	if call == 1 {
		return s.MessageStore.Update(ctx, id, content)
	}

	if s.honorCancel {
		<-ctx.Done()
		return ctx.Err()
	}

	<-s.release
	return s.MessageStore.Update(ctx, id, content)
}

func (s *stallingStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MessageStore.Delete(ctx, id)
}

func (s *stallingStore) Calls() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.calls
}

func TestSession_StalledCheckpointDoesNotStrandPlaceholder(t *testing.T) {
	tests := []struct {
		name        string
		honorCancel bool
	}{
		{name: "write honors cancel", honorCancel: true},
		{name: "write ignores cancel", honorCancel: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &stallingStore{
				MessageStore: memory.NewMessageStore(),
				honorCancel:  tc.honorCancel,
				release:      make(chan struct{}),
			}
			t.Cleanup(func() { close(store.release) })

			svc := newTestServiceWith(t, store,
				WithCheckpointInterval(0),
				WithCleanupTimeout(100*time.Millisecond),
			)
			turn := testTurn(t, store)
			stream := &pushStream{steps: make(chan step)}

			sess := svc.Start(context.Background(), turn, stream, discardSink{})

			stream.steps <- step{token: "Hel"}
			require.Eventually(t, func() bool { return store.Calls() == 1 }, time.Second, time.Millisecond)

			// the next checkpoint starts on the first token after the last one lands
			require.Eventually(t, func() bool {
				if store.Calls() < 2 {
					stream.steps <- step{token: "lo"}
				}
				return store.Calls() == 2
			}, time.Second, 5*time.Millisecond)

			stream.steps <- step{err: errors.New("upstream reset")}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			out, err := sess.Wait(ctx)
			require.NoError(t, err)
			assert.Equal(t, StateAborting, out.Path)
			assert.ErrorIs(t, out.Err, ErrStreamFailure)

			msgs, err := store.List(context.Background(), "ada", "u1")
			require.NoError(t, err)
			assert.Empty(t, msgs)
		})
	}
}
