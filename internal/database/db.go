package database

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/lib/pq"
	"todoapi/internal/config"
	"todoapi/pkg/logger"
)

var (
	pool *sql.DB
	once sync.Once
)

// DB returns the global database connection pool (initialized on first use).
// Returns nil when DATABASE_URL is not set.
func DB(ctx context.Context) *sql.DB {
	once.Do(func() {
		cfg := config.Get()
		if cfg.DatabaseURL == "" {
			return
		}
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error(ctx, "Failed to open database", "error", err)
			return
		}
		db.SetMaxOpenConns(cfg.DBPoolSize)
		db.SetMaxIdleConns(cfg.DBPoolSize / 2)
		pool = db
		logger.Info(ctx, "Database pool initialized", "max_open", cfg.DBPoolSize)
	})
	return pool
}

// MigrateOrCreateSchema creates the users/todos/tokens tables and their
// indexes if they do not exist. Idempotent; called at startup.
func MigrateOrCreateSchema(ctx context.Context) error {
	db := DB(ctx)
	if db == nil {
		return sql.ErrConnDone
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            UUID PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS todos (
			id          UUID PRIMARY KEY,
			title       VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending',
			user_id     UUID NOT NULL REFERENCES users(id),
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL,
			deleted_at  TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_user_live ON todos (user_id) WHERE deleted_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS tokens (
			id                 UUID PRIMARY KEY,
			user_id            UUID NOT NULL REFERENCES users(id),
			token_hash         TEXT NOT NULL,
			refresh_token_hash TEXT NOT NULL,
			access_expires_at  TIMESTAMPTZ NOT NULL,
			refresh_expires_at TIMESTAMPTZ NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_user ON tokens (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_refresh_hash ON tokens (refresh_token_hash)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
