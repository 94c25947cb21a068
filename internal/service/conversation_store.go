package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caldershaw/ragd/internal/model"
	"github.com/caldershaw/ragd/internal/repo"
)

const titlePreviewRunes = 30

// ConversationStore owns conversation lifecycle and turn history. Appends
// to the same conversation are serialized with a per-id mutex so concurrent
// requests cannot interleave turn ordering.
type ConversationStore struct {
	repo *repo.ConversationRepo

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewConversationStore(r *repo.ConversationRepo) *ConversationStore {
	return &ConversationStore{
		repo:  r,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *ConversationStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// Ensure resolves the conversation id for a request: an empty id creates a
// fresh conversation titled with a preview of the first message, a known id
// is returned as-is.
func (s *ConversationStore) Ensure(ctx context.Context, id string, firstMessage string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := s.repo.Create(ctx, id, previewTitle(firstMessage)); err != nil {
		return "", err
	}
	return id, nil
}

func (s *ConversationStore) Append(ctx context.Context, id string, turn *model.ConversationTurn) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	return s.repo.AppendTurn(ctx, id, turn)
}

func (s *ConversationStore) History(ctx context.Context, id string, limit int) ([]model.ConversationTurn, error) {
	return s.repo.History(ctx, id, limit)
}

func (s *ConversationStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	turns, err := s.repo.History(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	conv := &model.Conversation{
		ID:        rec.ID,
		Title:     rec.Title,
		CreatedAt: time.UnixMilli(rec.Ctime),
		Turns:     turns,
	}
	return conv, nil
}

func (s *ConversationStore) List(ctx context.Context) ([]model.ConversationSummary, error) {
	return s.repo.List(ctx)
}

func (s *ConversationStore) Clear(ctx context.Context, id string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	return nil
}

func (s *ConversationStore) ClearAll(ctx context.Context) error {
	if err := s.repo.DeleteAll(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.locks = make(map[string]*sync.Mutex)
	s.mu.Unlock()
	return nil
}

func previewTitle(message string) string {
	message = strings.TrimSpace(message)
	runes := []rune(message)
	if len(runes) <= titlePreviewRunes {
		return message
	}
	return string(runes[:titlePreviewRunes]) + "..."
}
