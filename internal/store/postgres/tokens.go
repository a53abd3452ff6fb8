package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"todoapi/internal/models"
	"todoapi/internal/store"
)

const tokenColumns = `id, user_id, token_hash, refresh_token_hash, access_expires_at, refresh_expires_at, created_at`

func (s *Store) CreateToken(ctx context.Context, t models.Token) (models.Token, error) {
	t = prepareToken(t)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return insertToken(ctx, tx, t)
	})
	if err != nil {
		return models.Token{}, err
	}
	return t, nil
}

func (s *Store) GetTokenByID(ctx context.Context, id string) (*models.Token, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, id)
	return scanToken(row)
}

func (s *Store) GetTokenByRefreshHash(ctx context.Context, hash string, now time.Time) (*models.Token, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE refresh_token_hash = $1 AND refresh_expires_at > $2`,
		hash, now)
	return scanToken(row)
}

func (s *Store) ReplaceUserTokens(ctx context.Context, next models.Token) (models.Token, error) {
	next = prepareToken(next)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tokens WHERE user_id = $1`, next.UserID); err != nil {
			return err
		}
		return insertToken(ctx, tx, next)
	})
	if err != nil {
		return models.Token{}, err
	}
	return next, nil
}

func (s *Store) RotateToken(ctx context.Context, oldID string, next models.Token) (models.Token, error) {
	next = prepareToken(next)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE id = $1`, oldID)
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
		return insertToken(ctx, tx, next)
	})
	if err != nil {
		return models.Token{}, err
	}
	return next, nil
}

func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE refresh_expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func prepareToken(t models.Token) models.Token {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return t
}

func insertToken(ctx context.Context, tx *sql.Tx, t models.Token) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO tokens (id, user_id, token_hash, refresh_token_hash, access_expires_at, refresh_expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.TokenHash, t.RefreshTokenHash, t.AccessExpiresAt, t.RefreshExpiresAt, t.CreatedAt)
	return err
}

func scanToken(row rowScanner) (*models.Token, error) {
	var t models.Token
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.RefreshTokenHash,
		&t.AccessExpiresAt, &t.RefreshExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &t, nil
}
