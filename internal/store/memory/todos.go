package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"todoapi/internal/models"
	"todoapi/internal/store"
)

func (s *Store) CreateTodo(_ context.Context, t models.Todo) (models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.StatusPending
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	t.DeletedAt = nil
	s.todos[t.ID] = t
	return t, nil
}

func (s *Store) GetTodo(_ context.Context, id string) (*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.todos[id]
	if !ok || t.DeletedAt != nil {
		return nil, store.ErrNotFound
	}
	out := t
	return &out, nil
}

func (s *Store) UpdateTodo(_ context.Context, in models.Todo) (models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.todos[in.ID]
	if !ok || t.DeletedAt != nil {
		return models.Todo{}, store.ErrNotFound
	}
	t.Title = in.Title
	t.Description = in.Description
	if in.Status != "" {
		t.Status = in.Status
	}
	t.UpdatedAt = time.Now().UTC()
	s.todos[t.ID] = t
	return t, nil
}

func (s *Store) SoftDeleteTodo(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.todos[id]
	if !ok || t.DeletedAt != nil {
		return store.ErrNotFound
	}
	deleted := now.UTC()
	t.DeletedAt = &deleted
	t.UpdatedAt = deleted
	s.todos[id] = t
	return nil
}

func (s *Store) ListTodos(_ context.Context, f store.TodoFilter) (*store.TodoPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Todo
	search := strings.ToLower(f.Search)
	for _, t := range s.todos {
		if t.DeletedAt != nil || t.UserID != f.UserID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		matched = append(matched, t)
	}

	sortTodos(matched, f.SortBy, f.SortOrder)

	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}

	items := make([]models.Todo, end-start)
	copy(items, matched[start:end])
	return &store.TodoPage{
		Items: items,
		Page:  f.Page,
		Limit: f.Limit,
		Total: total,
	}, nil
}

func sortTodos(todos []models.Todo, sortBy, sortOrder string) {
	sort.SliceStable(todos, func(i, j int) bool {
		a, b := todos[i], todos[j]
		if sortOrder != "asc" {
			a, b = b, a
		}
		switch sortBy {
		case "title":
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case "status":
			if a.Status != b.Status {
				return a.Status < b.Status
			}
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
