package store

import (
	"context"
	"errors"
	"time"

	"todoapi/internal/models"
)

var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
)

// Sort columns accepted by ListTodos. Anything else falls back to
// created_at without erroring.
var AllowedSortColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
	"status":     true,
}

// TodoFilter describes a ListTodos query. UserID is mandatory: every
// query is scoped to the owner, never the other way around.
type TodoFilter struct {
	UserID    string
	Search    string
	Status    string
	SortBy    string
	SortOrder string
	Limit     int
	Page      int
}

// TodoPage is one page of results plus the total match count across
// all pages.
type TodoPage struct {
	Items []models.Todo
	Page  int
	Limit int
	Total int
}

type Store interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// CreateToken inserts a token without revoking anything. Used by the
	// mktoken script; login and refresh go through the atomic calls below.
	CreateToken(ctx context.Context, t models.Token) (models.Token, error)
	// GetTokenByID returns a token row regardless of expiry; the caller
	// decides what expiry means for its lookup path.
	GetTokenByID(ctx context.Context, id string) (*models.Token, error)
	// GetTokenByRefreshHash returns the token whose refresh hash matches
	// and whose refresh expiry is strictly after now.
	GetTokenByRefreshHash(ctx context.Context, hash string, now time.Time) (*models.Token, error)
	// ReplaceUserTokens deletes every token belonging to next.UserID and
	// inserts next, atomically.
	ReplaceUserTokens(ctx context.Context, next models.Token) (models.Token, error)
	// RotateToken deletes the token oldID and inserts next, atomically.
	// Returns ErrNotFound when oldID is already gone, which is what makes
	// refresh tokens one-time-use under concurrent replay.
	RotateToken(ctx context.Context, oldID string, next models.Token) (models.Token, error)
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	ListTodos(ctx context.Context, f TodoFilter) (*TodoPage, error)
	CreateTodo(ctx context.Context, t models.Todo) (models.Todo, error)
	// GetTodo excludes soft-deleted rows.
	GetTodo(ctx context.Context, id string) (*models.Todo, error)
	UpdateTodo(ctx context.Context, t models.Todo) (models.Todo, error)
	SoftDeleteTodo(ctx context.Context, id string, now time.Time) error
}
