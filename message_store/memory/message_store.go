package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	messagestore "github.com/w-h-a/companion/message_store"
)

type memoryMessageStore struct {
	options  messagestore.Options
	messages map[string]messagestore.Message
	order    map[string]uint64
	seq      uint64
	mtx      sync.RWMutex
}

func (s *memoryMessageStore) Create(ctx context.Context, content string, role messagestore.Role, userId string, personaId string) (string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	id := uuid.New().String()
	now := time.Now().UTC()

	s.messages[id] = messagestore.Message{
		Id:        id,
		Content:   content,
		Role:      role,
		UserId:    userId,
		PersonaId: personaId,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.seq++
	s.order[id] = s.seq

	return id, nil
}

func (s *memoryMessageStore) Update(ctx context.Context, id string, content string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return messagestore.ErrNotFound
	}

	msg.Content = content
	msg.UpdatedAt = time.Now().UTC()

	s.messages[id] = msg

	return nil
}

func (s *memoryMessageStore) Delete(ctx context.Context, id string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.messages[id]; !ok {
		return messagestore.ErrNotFound
	}

	delete(s.messages, id)
	delete(s.order, id)

	return nil
}

func (s *memoryMessageStore) List(ctx context.Context, personaId string, userId string) ([]messagestore.Message, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var messages []messagestore.Message
	for _, msg := range s.messages {
		if msg.PersonaId != personaId || msg.UserId != userId {
			continue
		}
		messages = append(messages, msg)
	}

	sort.Slice(messages, func(i, j int) bool {
		return s.order[messages[i].Id] < s.order[messages[j].Id]
	})

	return messages, nil
}

func NewMessageStore(opts ...messagestore.Option) messagestore.MessageStore {
	options := messagestore.NewOptions(opts...)

	s := &memoryMessageStore{
		options:  options,
		messages: map[string]messagestore.Message{},
		order:    map[string]uint64{},
		mtx:      sync.RWMutex{},
	}

	return s
}
