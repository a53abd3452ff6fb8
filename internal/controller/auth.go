package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"todoapi/internal/audit"
	"todoapi/internal/auth"
	"todoapi/internal/response"
	"todoapi/pkg/logger"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login validates credentials and returns a fresh token pair. Every
// previously issued token for the user is revoked first, so logging in
// logs out all other devices.
func (ct *Controller) Login(c *gin.Context) {
	ctx := c.Request.Context()
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	pair, err := ct.sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			audit.Publish(ctx, audit.Event{Type: audit.EventLoginFailed, Email: req.Email})
			// Unknown email and wrong password get the same response.
			response.Fail(c, http.StatusUnprocessableEntity, "The provided credentials are incorrect.")
			return
		}
		logger.Error(ctx, "Login failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, "Server error.")
		return
	}

	audit.Publish(ctx, audit.Event{Type: audit.EventLogin, Email: req.Email})
	c.JSON(http.StatusOK, pair)
}

// Refresh exchanges a one-time refresh token for a new pair. Absent,
// expired and already-used tokens all get the same 401.
func (ct *Controller) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	pair, err := ct.sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			audit.Publish(ctx, audit.Event{Type: audit.EventRefreshFailed})
			response.Fail(c, http.StatusUnauthorized, "Invalid or expired refresh token")
			return
		}
		logger.Error(ctx, "Refresh failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, "Server error.")
		return
	}

	audit.Publish(ctx, audit.Event{Type: audit.EventRefresh})
	c.JSON(http.StatusOK, pair)
}
