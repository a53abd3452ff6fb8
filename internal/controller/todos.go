package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"todoapi/internal/audit"
	"todoapi/internal/auth"
	"todoapi/internal/config"
	"todoapi/internal/database"
	"todoapi/internal/middleware"
	"todoapi/internal/models"
	"todoapi/internal/response"
	"todoapi/internal/store"
	"todoapi/pkg/logger"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Controller holds the handlers' dependencies.
type Controller struct {
	store    store.Store
	sessions *auth.Manager
}

func New(st store.Store) *Controller {
	return &Controller{store: st, sessions: auth.NewManager(st)}
}

// Sessions exposes the session manager for middleware wiring.
func (ct *Controller) Sessions() *auth.Manager {
	return ct.sessions
}

type todoRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description" binding:"required"`
}

// ListTodos returns the requester's todos with search/filter/sort/
// pagination. Unknown sort_by/sort_order values silently fall back;
// the effective values are echoed in filters so callers can detect it.
func (ct *Controller) ListTodos(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(middleware.ContextUserKey)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	sortBy := c.DefaultQuery("sort_by", "created_at")
	if !store.AllowedSortColumns[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := "desc"
	if strings.EqualFold(c.Query("sort_order"), "asc") {
		sortOrder = "asc"
	}
	search := c.Query("search")
	status := c.Query("status")

	res, err := ct.store.ListTodos(ctx, store.TodoFilter{
		UserID:    userID,
		Search:    search,
		Status:    status,
		SortBy:    sortBy,
		SortOrder: sortOrder,
		Limit:     limit,
		Page:      page,
	})
	if err != nil {
		logger.Error(ctx, "List todos failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, "Server error.")
		return
	}

	var statusEcho any
	if status != "" {
		statusEcho = status
	}
	response.OK(c, http.StatusOK, "Todos fetched successfully.", gin.H{
		"items": res.Items,
		"page":  res.Page,
		"limit": res.Limit,
		"total": res.Total,
		"filters": gin.H{
			"search":     search,
			"status":     statusEcho,
			"sort_by":    sortBy,
			"sort_order": sortOrder,
		},
	})
}

// CreateTodo stores a new todo for the requester. Status is forced to
// pending; a client-supplied status field is ignored.
func (ct *Controller) CreateTodo(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(middleware.ContextUserKey)

	var req todoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	todo, err := ct.store.CreateTodo(ctx, models.Todo{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.StatusPending,
		UserID:      userID,
	})
	if err != nil {
		logger.Error(ctx, "Create todo failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, "Server error.")
		return
	}

	audit.Publish(ctx, audit.Event{Type: audit.EventTodoCreated, UserID: userID, TodoID: todo.ID})
	response.OK(c, http.StatusCreated, "Todo created successfully.", todo)
}

// UpdateTodo rewrites title and description of an owned todo. The
// ownership check runs before validation: a foreign todo is 403 even
// when the body is invalid.
func (ct *Controller) UpdateTodo(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(middleware.ContextUserKey)

	todo, ok := ct.ownedTodo(c, userID)
	if !ok {
		return
	}

	var req todoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	todo.Title = req.Title
	todo.Description = req.Description
	updated, err := ct.store.UpdateTodo(ctx, *todo)
	if err != nil {
		logger.Error(ctx, "Update todo failed", "error", err, "id", todo.ID)
		response.Fail(c, http.StatusInternalServerError, "Server error.")
		return
	}

	audit.Publish(ctx, audit.Event{Type: audit.EventTodoUpdated, UserID: userID, TodoID: updated.ID})
	response.OK(c, http.StatusOK, "Todo updated successfully.", updated)
}

// DeleteTodo soft-deletes an owned todo. The row stays in storage with
// a deletion marker and disappears from every default query.
func (ct *Controller) DeleteTodo(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(middleware.ContextUserKey)

	todo, ok := ct.ownedTodo(c, userID)
	if !ok {
		return
	}

	if err := ct.store.SoftDeleteTodo(ctx, todo.ID, time.Now()); err != nil {
		logger.Error(ctx, "Delete todo failed", "error", err, "id", todo.ID)
		response.Fail(c, http.StatusInternalServerError, "Server error.")
		return
	}

	audit.Publish(ctx, audit.Event{Type: audit.EventTodoDeleted, UserID: userID, TodoID: todo.ID})
	response.OK(c, http.StatusOK, "Todo deleted successfully.", nil)
}

// ownedTodo loads the :id todo and enforces ownership. A todo that
// exists but belongs to someone else is 403, never 404: existence is
// not hidden, only mutation is denied.
func (ct *Controller) ownedTodo(c *gin.Context, userID string) (*models.Todo, bool) {
	ctx := c.Request.Context()
	id := c.Param("id")

	todo, err := ct.store.GetTodo(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, "Todo not found.")
			return nil, false
		}
		logger.Error(ctx, "Get todo failed", "error", err, "id", id)
		response.Fail(c, http.StatusInternalServerError, "Server error.")
		return nil, false
	}
	if todo.UserID != userID {
		response.Fail(c, http.StatusForbidden, "Forbidden")
		return nil, false
	}
	return todo, true
}

// Health returns 200 if the process is alive. Used by load balancers.
func (ct *Controller) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Ready returns 200 once the backing store is reachable. With the
// in-memory store there is nothing to probe.
func (ct *Controller) Ready(c *gin.Context) {
	if config.Get().DatabaseURL == "" {
		c.String(http.StatusOK, "OK")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	db := database.DB(ctx)
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
		return
	}
	if err := db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database ping failed"})
		return
	}
	c.String(http.StatusOK, "OK")
}
