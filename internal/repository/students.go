package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/johnlen7/teacher-sarah/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// StudentsRepository persists learner profiles and their conversation history.
type StudentsRepository interface {
	UpsertUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, chatID int64) (*domain.User, error)
	SetEnglishLevel(ctx context.Context, chatID int64, level string) error
	AppendMessage(ctx context.Context, message *domain.StoredMessage) error
	RecentMessages(ctx context.Context, chatID int64, limit int) ([]domain.StoredMessage, error)
}

// MemoryStudentsRepository stores everything in memory for local development
// and tests.
type MemoryStudentsRepository struct {
	mu       sync.RWMutex
	users    map[int64]*domain.User
	messages map[int64][]domain.StoredMessage
	nextID   int64
}

func NewMemoryStudentsRepository() *MemoryStudentsRepository {
	return &MemoryStudentsRepository{
		users:    make(map[int64]*domain.User),
		messages: make(map[int64][]domain.StoredMessage),
	}
}

func (r *MemoryStudentsRepository) UpsertUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := r.users[user.ChatID]
	clone := *user
	if ok {
		clone.CreatedAt = existing.CreatedAt
		if clone.EnglishLevel == "" {
			clone.EnglishLevel = existing.EnglishLevel
		}
	} else if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	if clone.EnglishLevel == "" {
		clone.EnglishLevel = domain.DefaultEnglishLevel
	}
	clone.LastActive = now
	r.users[user.ChatID] = &clone
	return nil
}

func (r *MemoryStudentsRepository) GetUser(_ context.Context, chatID int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *MemoryStudentsRepository) SetEnglishLevel(_ context.Context, chatID int64, level string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[chatID]
	if !ok {
		return ErrNotFound
	}
	user.EnglishLevel = level
	user.LastActive = time.Now().UTC()
	return nil
}

func (r *MemoryStudentsRepository) AppendMessage(_ context.Context, message *domain.StoredMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	stored := *message
	stored.ID = r.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.messages[message.ChatID] = append(r.messages[message.ChatID], stored)
	message.ID = stored.ID
	return nil
}

func (r *MemoryStudentsRepository) RecentMessages(
	_ context.Context,
	chatID int64,
	limit int,
) ([]domain.StoredMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	history := r.messages[chatID]
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	result := make([]domain.StoredMessage, len(history))
	copy(result, history)
	return result, nil
}
