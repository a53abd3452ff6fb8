package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"todoapi/internal/models"
	"todoapi/internal/store"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password;
	// callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefreshToken covers absent, expired and already-used
	// refresh tokens, again indistinguishably.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrUnauthenticated is returned for any bearer token that does not
	// resolve to a live token record.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Spent against unknown emails so lookup misses cost the same as a
// password mismatch.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// TokenPair is the login/refresh response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Manager orchestrates login and refresh over the token store.
type Manager struct {
	store store.Store
	now   func() time.Time
}

func NewManager(s store.Store) *Manager {
	return &Manager{store: s, now: time.Now}
}

// Login validates credentials, revokes every existing token for the
// user (single active session per login) and issues a fresh pair.
func (m *Manager) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := m.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	pair, next, err := m.newTokenSet(user.ID)
	if err != nil {
		return nil, err
	}
	if _, err := m.store.ReplaceUserTokens(ctx, next); err != nil {
		return nil, err
	}
	return pair, nil
}

// Refresh exchanges a live refresh token for a fresh pair. The matched
// token record is deleted in the same store call that inserts the new
// one, so a refresh token works exactly once. Other sessions of the
// same user are left untouched, unlike Login.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	old, err := m.store.GetTokenByRefreshHash(ctx, HashSecret(refreshToken), m.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	pair, next, err := m.newTokenSet(old.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := m.store.RotateToken(ctx, old.ID, next); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost a race against a concurrent replay of the same token.
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	return pair, nil
}

// Authenticate resolves a bearer access token to its token record, or
// ErrUnauthenticated if the token is unknown, mismatched or expired.
func (m *Manager) Authenticate(ctx context.Context, bearer string) (*models.Token, error) {
	id, secret, err := ParseAccessToken(bearer)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	t, err := m.store.GetTokenByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !SecretMatches(t.TokenHash, secret) {
		return nil, ErrUnauthenticated
	}
	if !t.AccessExpiresAt.After(m.now()) {
		return nil, ErrUnauthenticated
	}
	return t, nil
}

func (m *Manager) newTokenSet(userID string) (*TokenPair, models.Token, error) {
	secret, secretHash, err := NewAccessSecret()
	if err != nil {
		return nil, models.Token{}, err
	}
	refresh, refreshHash, err := NewRefreshToken()
	if err != nil {
		return nil, models.Token{}, err
	}

	now := m.now().UTC()
	next := models.Token{
		ID:               uuid.New().String(),
		UserID:           userID,
		TokenHash:        secretHash,
		RefreshTokenHash: refreshHash,
		AccessExpiresAt:  now.Add(AccessTokenTTL),
		RefreshExpiresAt: now.Add(RefreshTokenTTL),
		CreatedAt:        now,
	}
	pair := &TokenPair{
		AccessToken:  FormatAccessToken(next.ID, secret),
		RefreshToken: refresh,
		TokenType:    TokenType,
		ExpiresIn:    int(AccessTokenTTL.Seconds()),
	}
	return pair, next, nil
}
