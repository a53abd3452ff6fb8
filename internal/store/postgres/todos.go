package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"todoapi/internal/models"
	"todoapi/internal/store"
)

const todoColumns = `id, title, description, status, user_id, created_at, updated_at, deleted_at`

func (s *Store) CreateTodo(ctx context.Context, t models.Todo) (models.Todo, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.StatusPending
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.DeletedAt = nil
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO todos (id, title, description, status, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Title, t.Description, t.Status, t.UserID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return models.Todo{}, err
	}
	return t, nil
}

func (s *Store) GetTodo(ctx context.Context, id string) (*models.Todo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanTodo(row)
}

func (s *Store) UpdateTodo(ctx context.Context, in models.Todo) (models.Todo, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE todos SET title = $1, description = $2,
		 status = COALESCE(NULLIF($3, ''), status), updated_at = $4
		 WHERE id = $5 AND deleted_at IS NULL
		 RETURNING `+todoColumns,
		in.Title, in.Description, in.Status, time.Now().UTC(), in.ID)
	t, err := scanTodo(row)
	if err != nil {
		return models.Todo{}, err
	}
	return *t, nil
}

func (s *Store) SoftDeleteTodo(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE todos SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		now.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListTodos(ctx context.Context, f store.TodoFilter) (*store.TodoPage, error) {
	where := `WHERE user_id = $1 AND deleted_at IS NULL`
	args := []any{f.UserID}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(` AND (title ILIKE $%d OR description ILIKE $%d)`, len(args), len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	sortBy := f.SortBy
	if !store.AllowedSortColumns[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := "DESC"
	if f.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	orderBy := fmt.Sprintf(`ORDER BY %s %s, created_at %s`, sortBy, sortOrder, sortOrder)

	offset := (f.Page - 1) * f.Limit

	// Page query and total count hit separate pooled connections.
	var (
		items []models.Todo
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		query := fmt.Sprintf(`SELECT %s FROM todos %s %s LIMIT %d OFFSET %d`,
			todoColumns, where, orderBy, f.Limit, offset)
		rows, err := s.db.QueryContext(gctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTodo(rows)
			if err != nil {
				return err
			}
			items = append(items, *t)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return s.db.QueryRowContext(gctx,
			`SELECT COUNT(*) FROM todos `+where, args...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if items == nil {
		items = []models.Todo{}
	}
	return &store.TodoPage{
		Items: items,
		Page:  f.Page,
		Limit: f.Limit,
		Total: total,
	}, nil
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	var (
		t       models.Todo
		deleted sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.UserID,
		&t.CreatedAt, &t.UpdatedAt, &deleted)
	if err != nil {
		return nil, mapNoRows(err)
	}
	if deleted.Valid {
		t.DeletedAt = &deleted.Time
	}
	return &t, nil
}
