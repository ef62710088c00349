package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"library-service/auth"
	"library-service/borrow"
	"library-service/cache"
	"library-service/model"
	"library-service/store"
)

type testEnv struct {
	t              *testing.T
	srv            *httptest.Server
	store          *store.Store
	librarianToken string
	userToken      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1",
		filepath.Join(t.TempDir(), "library.db"))
	st, err := store.Open(store.DriverSQLite, dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	provider, err := cache.NewRedisProvider(rdb, true)
	require.NoError(t, err)
	queryCache := cache.New(provider, time.Hour, zap.NewNop())
	t.Cleanup(func() { _ = queryCache.Close() })

	tokens, err := auth.NewTokenManager([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	authSvc := auth.NewService(st, tokens, auth.NewBlacklist(rdb), zap.NewNop())
	borrowSvc := borrow.NewService(st, zap.NewNop())

	srv := httptest.NewServer(New(authSvc, borrowSvc, st, queryCache, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)

	env := &testEnv{t: t, srv: srv, store: st}
	env.seedUser("librarian@example.com", "lib-pw", model.RoleLibrarian)
	env.seedUser("reader@example.com", "reader-pw", model.RoleUser)
	env.librarianToken = env.login("librarian@example.com", "lib-pw")
	env.userToken = env.login("reader@example.com", "reader-pw")
	return env
}

func (e *testEnv) seedUser(email, password, role string) {
	e.t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(e.t, err)
	_, err = e.store.CreateUser(context.Background(), model.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Phone:        "0123456789",
	})
	require.NoError(e.t, err)
}

func (e *testEnv) login(email, password string) string {
	e.t.Helper()
	resp, body := e.do(http.MethodPost, "/users/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(e.t, http.StatusOK, resp.StatusCode, "login body: %s", body)

	var out struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
	}
	require.NoError(e.t, json.Unmarshal(body, &out))
	require.NotEmpty(e.t, out.AccessToken)
	return out.AccessToken
}

func (e *testEnv) do(method, path, token string, payload interface{}) (*http.Response, []byte) {
	e.t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(e.t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(e.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.srv.Client().Do(req)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp, raw
}

func (e *testEnv) get(path, etag string) (*http.Response, []byte) {
	e.t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	require.NoError(e.t, err)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp, raw
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var out errorBody
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Error
}

func TestBooksSearchAndRevalidation(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(http.MethodPost, "/books/", env.librarianToken, map[string]interface{}{
		"title": "Dune", "author": "Frank Herbert", "num_copies": 2,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.get("/books/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))

	var books []model.Book
	require.NoError(t, json.Unmarshal(body, &books))
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)

	// the ETag header round-trips as the validator
	resp, body = env.get("/books/", etag)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	assert.Empty(t, body)

	// a weak validator matches too
	resp, _ = env.get("/books/", "W/"+etag)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)

	resp, _ = env.get("/books/", `"stale-etag"`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBooksEmptyResultKeepsETag(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get("/books/?query=nomatch", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No books found.", errorMessage(t, body))
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag, "the empty result still carries a validator")

	resp, body = env.get("/books/?query=nomatch", etag)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	assert.Empty(t, body)
}

func TestBooksCacheIsNotInvalidatedByWrites(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(http.MethodPost, "/books/", env.librarianToken, map[string]string{"title": "Dune"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.get("/books/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var books []model.Book
	require.NoError(t, json.Unmarshal(body, &books))
	require.Len(t, books, 1)

	resp, _ = env.do(http.MethodPost, "/books/", env.librarianToken, map[string]string{"title": "Emma"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// the cached listing stays until the TTL elapses
	_, body = env.get("/books/", "")
	require.NoError(t, json.Unmarshal(body, &books))
	assert.Len(t, books, 1)
}

func TestAddBookValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(http.MethodPost, "/books/", env.librarianToken, map[string]string{"author": "nobody"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "missing title", errorMessage(t, body))

	resp, _ = env.do(http.MethodPost, "/books/", env.librarianToken, map[string]interface{}{
		"title": "x", "num_copies": -1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(http.MethodPost, "/books/", env.userToken, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(http.MethodPost, "/books/", "", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBorrowLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(http.MethodPost, "/borrows/", env.userToken, map[string][]int64{
		"book_id_list": {1, 2},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", body)

	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	require.Positive(t, created.ID)

	resp, body = env.do(http.MethodGet, "/borrows/pending", env.librarianToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pending []model.Borrow
	require.NoError(t, json.Unmarshal(body, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, model.StatusPending, pending[0].Status)

	approvePath := fmt.Sprintf("/borrows/%d/approve", created.ID)
	resp, body = env.do(http.MethodPut, approvePath, env.librarianToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var approved struct {
		DueDate string `json:"due_date"`
	}
	require.NoError(t, json.Unmarshal(body, &approved))
	due, err := time.Parse(time.RFC3339, approved.DueDate)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 14), due, 24*time.Hour)

	// the guard makes re-approval a conflict
	resp, body = env.do(http.MethodPut, approvePath, env.librarianToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "already processed", errorMessage(t, body))

	returnPath := fmt.Sprintf("/borrows/%d/return", created.ID)
	resp, _ = env.do(http.MethodPut, returnPath, env.librarianToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(http.MethodPut, returnPath, env.librarianToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(http.MethodGet, "/users/my-borrows", env.userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []model.Borrow
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 1)
	assert.Equal(t, model.StatusReturn, history[0].Status)
	assert.Equal(t, []int64{1, 2}, history[0].BookIDs)
}

func TestBorrowValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(http.MethodPost, "/borrows/", env.userToken, map[string][]int64{
		"book_id_list": {},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "list books want to borrow is empty", errorMessage(t, body))

	resp, _ = env.do(http.MethodPut, "/borrows/9999/approve", env.librarianToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(http.MethodPut, "/borrows/abc/approve", env.librarianToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(http.MethodGet, "/borrows/pending", env.librarianToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "no pending borrows")

	resp, _ = env.do(http.MethodGet, "/users/my-borrows", env.userToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "no borrow history")

	// role gates
	resp, _ = env.do(http.MethodPost, "/borrows/", env.librarianToken, map[string][]int64{"book_id_list": {1}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(http.MethodGet, "/borrows/pending", env.userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRegistrationOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(http.MethodPost, "/users/registration", env.librarianToken, map[string]string{
		"email": "new@example.com", "password": "pw", "phone": "0123456789",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", body)

	token := env.login("new@example.com", "pw")
	assert.NotEmpty(t, token)

	resp, _ = env.do(http.MethodPost, "/users/registration", env.librarianToken, map[string]string{
		"email": "bad-email", "password": "pw", "phone": "0123456789",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(http.MethodPost, "/users/registration", env.userToken, map[string]string{
		"email": "other@example.com", "password": "pw", "phone": "0123456789",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLoginAndLogoutOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(http.MethodPost, "/users/login", "", map[string]string{
		"email": "reader@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(http.MethodPost, "/users/logout", env.userToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(http.MethodGet, "/users/my-borrows", env.userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "revoked token must be rejected")

	resp, body := env.do(http.MethodPost, "/users/logout", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "missing token", errorMessage(t, body))
}
