package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"todoapi/internal/auth"
	"todoapi/internal/ratelimit"
	"todoapi/internal/response"
	"todoapi/pkg/logger"
)

// ContextUserKey is where Auth stores the authenticated user ID.
const ContextUserKey = "user"

// ContextTokenKey is where Auth stores the access-token record ID.
const ContextTokenKey = "token_id"

// RequestID tags each request with an ID carried by the context logger
// and echoed in the X-Request-Id header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		c.Header("X-Request-Id", id)
		ctx := logger.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Auth resolves the Authorization bearer token to a user via the
// session manager. Opaque tokens only: the lookup hits the token store
// so that revocation takes effect immediately.
func Auth(sessions *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if header == "" || !strings.HasPrefix(header, prefix) {
			response.Fail(c, http.StatusUnauthorized, "Unauthenticated.")
			c.Abort()
			return
		}
		bearer := strings.TrimSpace(header[len(prefix):])
		token, err := sessions.Authenticate(ctx, bearer)
		if err != nil {
			logger.Debug(ctx, "Bearer token rejected", "error", err)
			response.Fail(c, http.StatusUnauthorized, "Unauthenticated.")
			c.Abort()
			return
		}
		c.Set(ContextUserKey, token.UserID)
		c.Set(ContextTokenKey, token.ID)
		c.Next()
	}
}

// RateLimit rejects requests over the per-IP budget with 429. A nil
// limiter disables the middleware.
func RateLimit(l ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		if !l.Allow(c.Request.Context(), "auth:"+c.ClientIP()) {
			response.Fail(c, http.StatusTooManyRequests, "Too many requests.")
			c.Abort()
			return
		}
		c.Next()
	}
}
