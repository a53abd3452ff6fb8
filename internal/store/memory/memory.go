// Package memory is an in-process Store used by tests and by local
// development when no DATABASE_URL is configured.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"todoapi/internal/models"
	"todoapi/internal/store"
)

type Store struct {
	mu sync.Mutex

	users  map[string]models.User
	todos  map[string]models.Todo
	tokens map[string]models.Token
}

func NewStore() *Store {
	return &Store{
		users:  make(map[string]models.User),
		todos:  make(map[string]models.Todo),
		tokens: make(map[string]models.Token),
	}
}

func (s *Store) CreateUser(_ context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, email) {
			return models.User{}, store.ErrConflict
		}
	}

	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := u
	return &out, nil
}

func (s *Store) CreateToken(_ context.Context, t models.Token) (models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertToken(t), nil
}

func (s *Store) GetTokenByID(_ context.Context, id string) (*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := t
	return &out, nil
}

func (s *Store) GetTokenByRefreshHash(_ context.Context, hash string, now time.Time) (*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tokens {
		if t.RefreshTokenHash == hash && t.RefreshExpiresAt.After(now) {
			out := t
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ReplaceUserTokens(_ context.Context, next models.Token) (models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.tokens {
		if t.UserID == next.UserID {
			delete(s.tokens, id)
		}
	}
	return s.insertToken(next), nil
}

func (s *Store) RotateToken(_ context.Context, oldID string, next models.Token) (models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[oldID]; !ok {
		return models.Token{}, store.ErrNotFound
	}
	delete(s.tokens, oldID)
	return s.insertToken(next), nil
}

func (s *Store) DeleteExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.tokens {
		if !t.RefreshExpiresAt.After(now) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

// insertToken assumes s.mu is held.
func (s *Store) insertToken(t models.Token) models.Token {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.tokens[t.ID] = t
	return t
}
