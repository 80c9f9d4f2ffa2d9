package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/w-h-a/companion/generator"
	"github.com/w-h-a/companion/memory_manager/providers/storer"
	messagestore "github.com/w-h-a/companion/message_store"
	"github.com/w-h-a/companion/message_store/memory"
	personastore "github.com/w-h-a/companion/persona_store"
)

type fakeClock struct {
	mtx sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = c.now.Add(d)
}

type personaMap map[string]personastore.Persona

func (m personaMap) Get(ctx context.Context, id string) (personastore.Persona, error) {
	p, ok := m[id]
	if !ok {
		return personastore.Persona{}, personastore.ErrNotFound
	}
	return p, nil
}

// scriptedGenerator replays tokens, optionally failing after them.
type scriptedGenerator struct {
	tokens  []string
	failErr error
	openErr error
	panics  bool
	perTok  func()

	mtx     sync.Mutex
	prompts []string
}

func (g *scriptedGenerator) Stream(ctx context.Context, prompt string) (generator.Stream, error) {
	g.mtx.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mtx.Unlock()

	if g.openErr != nil {
		return nil, g.openErr
	}

	return &scriptedStream{gen: g}, nil
}

func (g *scriptedGenerator) Prompt() string {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type scriptedStream struct {
	gen    *scriptedGenerator
	i      int
	closed bool
}

func (s *scriptedStream) Recv() (string, error) {
	if s.i >= len(s.gen.tokens) {
		if s.gen.panics {
			panic("model exploded")
		}
		if s.gen.failErr != nil {
			return "", s.gen.failErr
		}
		return "", io.EOF
	}

	if s.gen.perTok != nil {
		s.gen.perTok()
	}

	token := s.gen.tokens[s.i]
	s.i++

	return token, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

// recordingStore keeps every update it is asked to make. hook, when set,
// sees each update by call number and can fail or stall it.
type recordingStore struct {
	messagestore.MessageStore
	gate chan struct{}
	hook func(ctx context.Context, call int) error

	mtx     sync.Mutex
	updates []string
	started int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MessageStore: memory.NewMessageStore()}
}

func (s *recordingStore) Update(ctx context.Context, id string, content string) error {
	s.mtx.Lock()
	s.started++
	call := s.started
	s.mtx.Unlock()

	if s.gate != nil {
		<-s.gate
	}

	if s.hook != nil {
		if err := s.hook(ctx, call); err != nil {
			return err
		}
	}

	s.mtx.Lock()
	s.updates = append(s.updates, content)
	s.mtx.Unlock()

	return s.MessageStore.Update(ctx, id, content)
}

func (s *recordingStore) Updates() []string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]string(nil), s.updates...)
}

func (s *recordingStore) Started() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.started
}

type recordingSink struct {
	mtx      sync.Mutex
	tokens   []string
	failAt   int
	closes   int
	closeErr error
}

func (s *recordingSink) Write(ctx context.Context, token string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.failAt > 0 && len(s.tokens)+1 == s.failAt {
		return errors.New("broken pipe")
	}
	s.tokens = append(s.tokens, token)
	return nil
}

func (s *recordingSink) Close(cause error) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.closes++
	s.closeErr = cause
	return nil
}

func (s *recordingSink) Tokens() []string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]string(nil), s.tokens...)
}

func (s *recordingSink) Text() string {
	return strings.Join(s.Tokens(), "")
}

func (s *recordingSink) Closes() (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.closes, s.closeErr
}

type fixedLimiter struct {
	allow       bool
	identifiers []string
}

func (l *fixedLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	l.identifiers = append(l.identifiers, identifier)
	return l.allow, nil
}

type failingStorer struct{}

func (failingStorer) Upsert(ctx context.Context, namespace string, content string, metadata map[string]any, vector []float32) error {
	return errors.New("vector store unavailable")
}

func (failingStorer) Search(ctx context.Context, namespace string, vector []float32, limit int) ([]storer.Record, error) {
	return nil, errors.New("vector store unavailable")
}
