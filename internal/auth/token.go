// Package auth implements the session-token subsystem: opaque access
// tokens, single-use refresh tokens, and the login/refresh flows.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

const (
	// AccessTokenTTL is the server-enforced access token lifetime and the
	// advertised expires_in.
	AccessTokenTTL = time.Hour
	// RefreshTokenTTL is the refresh token lifetime.
	RefreshTokenTTL = 30 * 24 * time.Hour
	// TokenType is the advertised token_type.
	TokenType = "Bearer"

	accessSecretSize  = 32
	refreshSecretSize = 32
)

// Access token plaintext is "<token_id>|<secret>". Only the hash of the
// secret is persisted, so the plaintext is retrievable exactly once.
const accessTokenSep = "|"

// NewAccessSecret returns a fresh access-token secret and its hash.
func NewAccessSecret() (secret, hash string, err error) {
	var b [accessSecretSize]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", "", err
	}
	secret = base64.RawURLEncoding.EncodeToString(b[:])
	return secret, HashSecret(secret), nil
}

// NewRefreshToken returns a fresh refresh token (64 hex characters) and
// its hash.
func NewRefreshToken() (token, hash string, err error) {
	var b [refreshSecretSize]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b[:])
	return token, HashSecret(token), nil
}

// FormatAccessToken builds the plaintext returned to the client.
func FormatAccessToken(tokenID, secret string) string {
	return tokenID + accessTokenSep + secret
}

// ParseAccessToken splits a bearer value into its token ID and secret.
func ParseAccessToken(s string) (tokenID, secret string, err error) {
	id, sec, ok := strings.Cut(s, accessTokenSep)
	if !ok || id == "" || sec == "" {
		return "", "", errors.New("malformed access token")
	}
	return id, sec, nil
}

// HashSecret returns the hex SHA-256 digest stored at rest.
func HashSecret(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SecretMatches compares a stored hash against a presented secret in
// constant time.
func SecretMatches(storedHash, secret string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(HashSecret(secret))) == 1
}
