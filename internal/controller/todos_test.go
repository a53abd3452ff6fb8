package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"todoapi/internal/auth"
	"todoapi/internal/models"
	"todoapi/internal/ratelimit"
	"todoapi/internal/routes"
	"todoapi/internal/store/memory"
)

type envelope struct {
	Success bool            `json:"success"`
	Message *string         `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type listData struct {
	Items   []models.Todo `json:"items"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	Total   int           `json:"total"`
	Filters struct {
		Search    string  `json:"search"`
		Status    *string `json:"status"`
		SortBy    string  `json:"sort_by"`
		SortOrder string  `json:"sort_order"`
	} `json:"filters"`
}

func newAPI(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	st := memory.NewStore()
	return routes.Router(st, nil), st
}

func createUser(t *testing.T, st *memory.Store, email string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := st.CreateUser(context.Background(), models.User{
		Name:         email,
		Email:        email,
		PasswordHash: string(hash),
	})
	require.NoError(t, err)
	return user
}

func doJSON(t *testing.T, router *gin.Engine, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, router *gin.Engine, email string) auth.TokenPair {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/login", "", gin.H{
		"email": email, "password": "password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func createTodo(t *testing.T, router *gin.Engine, bearer, title, description string) models.Todo {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/todos", bearer, gin.H{
		"title": title, "description": description,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	var todo models.Todo
	require.NoError(t, json.Unmarshal(env.Data, &todo))
	return todo
}

func TestLoginValidation(t *testing.T) {
	router, st := newAPI(t)
	createUser(t, st, "alice@example.com")

	rec := doJSON(t, router, http.MethodPost, "/login", "", gin.H{"password": "password"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/login", "", gin.H{"email": "not-an-email", "password": "password"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	router, st := newAPI(t)
	createUser(t, st, "alice@example.com")

	// Unknown email and wrong password produce the identical response.
	for _, body := range []gin.H{
		{"email": "nobody@example.com", "password": "password"},
		{"email": "alice@example.com", "password": "wrong"},
	} {
		rec := doJSON(t, router, http.MethodPost, "/login", "", body)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		env := decodeEnvelope(t, rec)
		require.False(t, env.Success)
		require.NotNil(t, env.Message)
		require.Equal(t, "The provided credentials are incorrect.", *env.Message)
	}
}

func TestLoginRevokesPriorSession(t *testing.T) {
	router, st := newAPI(t)
	createUser(t, st, "alice@example.com")

	first := login(t, router, "alice@example.com")
	second := login(t, router, "alice@example.com")

	rec := doJSON(t, router, http.MethodGet, "/todos", first.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/todos", second.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshRotationIsSingleUse(t *testing.T) {
	router, st := newAPI(t)
	createUser(t, st, "alice@example.com")
	pair := login(t, router, "alice@example.com")

	rec := doJSON(t, router, http.MethodPost, "/refresh", "", gin.H{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var next auth.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
	require.Equal(t, "Bearer", next.TokenType)
	require.Equal(t, 3600, next.ExpiresIn)

	// The consumed refresh token is dead.
	rec = doJSON(t, router, http.MethodPost, "/refresh", "", gin.H{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Equal(t, "Invalid or expired refresh token", *env.Message)

	// So is the access token that was paired with it.
	rec = doJSON(t, router, http.MethodGet, "/todos", pair.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	// The rotated pair works.
	rec = doJSON(t, router, http.MethodGet, "/todos", next.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshUnknownToken(t *testing.T) {
	router, _ := newAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/refresh", "", gin.H{"refresh_token": "bogus"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.Equal(t, "Invalid or expired refresh token", *env.Message)
}

func TestTodosRequireAuth(t *testing.T) {
	router, _ := newAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/todos", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/todos", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateTodoForcesPendingStatus(t *testing.T) {
	router, st := newAPI(t)
	createUser(t, st, "alice@example.com")
	pair := login(t, router, "alice@example.com")

	// A client-supplied status is ignored.
	rec := doJSON(t, router, http.MethodPost, "/todos", pair.AccessToken, gin.H{
		"title":       "Test Todo",
		"description": "Test Description",
		"status":      "completed",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
	require.Equal(t, "Todo created successfully.", *env.Message)

	var todo models.Todo
	require.NoError(t, json.Unmarshal(env.Data, &todo))
	require.Equal(t, models.StatusPending, todo.Status)
	require.Equal(t, "Test Todo", todo.Title)
	require.NotEmpty(t, todo.ID)
}

func TestCreateTodoValidation(t *testing.T) {
	router, st := newAPI(t)
	createUser(t, st, "alice@example.com")
	pair := login(t, router, "alice@example.com")

	rec := doJSON(t, router, http.MethodPost, "/todos", pair.AccessToken, gin.H{"title": "no description"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)

	var fields map[string][]string
	require.NoError(t, json.Unmarshal(env.Data, &fields))
	require.Contains(t, fields, "description")
}

func TestListScopedToOwnerWithPagination(t *testing.T) {
	router, st := newAPI(t)
	alice := createUser(t, st, "alice@example.com")
	createUser(t, st, "bob@example.com")

	alicePair := login(t, router, "alice@example.com")
	bobPair := login(t, router, "bob@example.com")

	for _, title := range []string{"a1", "a2", "a3"} {
		createTodo(t, router, alicePair.AccessToken, title, "d")
	}
	for _, title := range []string{"b1", "b2"} {
		createTodo(t, router, bobPair.AccessToken, title, "d")
	}

	rec := doJSON(t, router, http.MethodGet, "/todos", alicePair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Equal(t, "Todos fetched successfully.", *env.Message)

	var data listData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, 3, data.Total)
	require.Len(t, data.Items, 3)
	require.Equal(t, 1, data.Page)
	require.Equal(t, 10, data.Limit)
	for _, item := range data.Items {
		require.Equal(t, alice.ID, item.UserID)
	}
}

func TestListSortFallbackAndStatusFilter(t *testing.T) {
	router, st := newAPI(t)
	createUser(t, st, "alice@example.com")
	pair := login(t, router, "alice@example.com")

	createTodo(t, router, pair.AccessToken, "First Todo", "d")
	second := createTodo(t, router, pair.AccessToken, "Second Todo", "d")
	third := createTodo(t, router, pair.AccessToken, "Another Todo", "d")
	// Flip two todos to completed directly in the store; status is not
	// client-settable through the API.
	for _, td := range []models.Todo{second, third} {
		td.Status = models.StatusCompleted
		markCompleted(t, st, td)
	}

	// Unknown sort_by falls back to created_at without erroring.
	rec := doJSON(t, router, http.MethodGet, "/todos?sort_by=unknown_field", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var data listData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	require.Equal(t, "created_at", data.Filters.SortBy)
	require.Equal(t, "desc", data.Filters.SortOrder)
	require.Nil(t, data.Filters.Status)

	// Status filter + title sort ascending.
	rec = doJSON(t, router, http.MethodGet, "/todos?status=completed&sort_by=title&sort_order=asc", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	require.Equal(t, 2, data.Total)
	require.Equal(t, "Another Todo", data.Items[0].Title)
	require.Equal(t, "Second Todo", data.Items[1].Title)
	require.NotNil(t, data.Filters.Status)
	require.Equal(t, "completed", *data.Filters.Status)
	require.Equal(t, "title", data.Filters.SortBy)
	require.Equal(t, "asc", data.Filters.SortOrder)
}

func TestUpdateOwnTodo(t *testing.T) {
	router, st := newAPI(t)
	createUser(t, st, "alice@example.com")
	pair := login(t, router, "alice@example.com")
	todo := createTodo(t, router, pair.AccessToken, "Old Title", "Old Description")

	rec := doJSON(t, router, http.MethodPut, "/todos/"+todo.ID, pair.AccessToken, gin.H{
		"title": "Updated Title", "description": "Updated Description",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Equal(t, "Todo updated successfully.", *env.Message)

	var updated models.Todo
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	require.Equal(t, "Updated Title", updated.Title)
	require.Equal(t, models.StatusPending, updated.Status)
}

func TestUpdateForeignTodoForbidden(t *testing.T) {
	router, st := newAPI(t)
	createUser(t, st, "alice@example.com")
	createUser(t, st, "bob@example.com")
	alicePair := login(t, router, "alice@example.com")
	bobPair := login(t, router, "bob@example.com")

	todo := createTodo(t, router, bobPair.AccessToken, "Bobs Todo", "d")

	rec := doJSON(t, router, http.MethodPut, "/todos/"+todo.ID, alicePair.AccessToken, gin.H{
		"title": "Hijacked", "description": "d",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.Equal(t, "Forbidden", *env.Message)

	// Ownership is checked before validation: an invalid body on a
	// foreign todo is still 403, not 422.
	rec = doJSON(t, router, http.MethodPut, "/todos/"+todo.ID, alicePair.AccessToken, gin.H{})
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Target row unchanged.
	rec = doJSON(t, router, http.MethodGet, "/todos", bobPair.AccessToken, nil)
	var data listData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	require.Equal(t, "Bobs Todo", data.Items[0].Title)
}

func TestDeleteForeignTodoForbidden(t *testing.T) {
	router, st := newAPI(t)
	createUser(t, st, "alice@example.com")
	createUser(t, st, "bob@example.com")
	alicePair := login(t, router, "alice@example.com")
	bobPair := login(t, router, "bob@example.com")

	todo := createTodo(t, router, bobPair.AccessToken, "Bobs Todo", "d")

	rec := doJSON(t, router, http.MethodDelete, "/todos/"+todo.ID, alicePair.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.Equal(t, "Forbidden", *env.Message)

	// Still listed for its owner.
	rec = doJSON(t, router, http.MethodGet, "/todos", bobPair.AccessToken, nil)
	var data listData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	require.Equal(t, 1, data.Total)
}

func TestDeleteOwnTodoSoftDeletes(t *testing.T) {
	router, st := newAPI(t)
	createUser(t, st, "alice@example.com")
	pair := login(t, router, "alice@example.com")
	todo := createTodo(t, router, pair.AccessToken, "Doomed", "d")

	rec := doJSON(t, router, http.MethodDelete, "/todos/"+todo.ID, pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
	require.Equal(t, "Todo deleted successfully.", *env.Message)
	require.Equal(t, "null", string(env.Data))

	// Gone from listings and direct lookups.
	rec = doJSON(t, router, http.MethodGet, "/todos", pair.AccessToken, nil)
	var data listData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	require.Equal(t, 0, data.Total)
	rec = doJSON(t, router, http.MethodDelete, "/todos/"+todo.ID, pair.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateNonexistentTodo(t *testing.T) {
	router, st := newAPI(t)
	createUser(t, st, "alice@example.com")
	pair := login(t, router, "alice@example.com")

	rec := doJSON(t, router, http.MethodPut, "/todos/does-not-exist", pair.AccessToken, gin.H{
		"title": "x", "description": "y",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthEndpointsRateLimited(t *testing.T) {
	st := memory.NewStore()
	router := routes.Router(st, ratelimit.NewMemoryLimiter(2, time.Minute))
	createUser(t, st, "alice@example.com")

	body := gin.H{"email": "alice@example.com", "password": "password"}
	for i := 0; i < 2; i++ {
		rec := doJSON(t, router, http.MethodPost, "/login", "", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := doJSON(t, router, http.MethodPost, "/login", "", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
}

// markCompleted flips a todo's status directly in the store.
func markCompleted(t *testing.T, st *memory.Store, td models.Todo) {
	t.Helper()
	_, err := st.UpdateTodo(context.Background(), td)
	require.NoError(t, err)
}
