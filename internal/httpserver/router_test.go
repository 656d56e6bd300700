package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskmanager/internal/handler"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
	"taskmanager/internal/service/auth"
	"taskmanager/internal/service/task"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers struct {
	mu    sync.Mutex
	users []*model.User
}

func (f *fakeUsers) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	cp := *u
	f.users = append(f.users, &cp)
	return nil
}

func (f *fakeUsers) find(match func(*model.User) bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Email == email })
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id })
}

type fakeTasks struct {
	mu    sync.Mutex
	tasks []model.Task
}

func (f *fakeTasks) Insert(_ context.Context, t *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	f.tasks = append(f.tasks, *t)
	return nil
}

func (f *fakeTasks) List(_ context.Context, filter model.TaskFilter) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Task{}
	for _, t := range f.tasks {
		if t.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTasks) index(userID, id uuid.UUID) int {
	for i, t := range f.tasks {
		if t.ID == id && t.UserID == userID {
			return i
		}
	}
	return -1
}

func (f *fakeTasks) Get(_ context.Context, userID, id uuid.UUID) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(userID, id)
	if i < 0 {
		return nil, repository.ErrNotFound
	}
	t := f.tasks[i]
	return &t, nil
}

func (f *fakeTasks) Update(_ context.Context, userID, id uuid.UUID, p model.TaskPatch) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(userID, id)
	if i < 0 {
		return nil, repository.ErrNotFound
	}
	t := &f.tasks[i]
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	t.UpdatedAt = time.Now()
	out := *t
	return &out, nil
}

func (f *fakeTasks) Delete(_ context.Context, userID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(userID, id)
	if i < 0 {
		return repository.ErrNotFound
	}
	f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
	return nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	engine *gin.Engine
}

func newTestServer(t *testing.T, opts Options, db Pinger) *testServer {
	t.Helper()
	logger := zap.NewNop()
	authSvc := auth.NewService(&fakeUsers{}, auth.NewTokenManager("router-test-secret", 0), nil, logger)
	taskSvc := task.NewService(&fakeTasks{}, nil, logger)
	if db == nil {
		db = fakePinger{}
	}
	router := NewRouter(
		handler.NewAuthHandler(authSvc, false, logger),
		handler.NewTaskHandler(taskSvc, logger),
		authSvc,
		db,
		opts,
		logger,
	)
	return &testServer{engine: router.Engine}
}

type request struct {
	method  string
	path    string
	body    string
	token   string
	headers map[string]string
	cookies []*http.Cookie
}

func (s *testServer) do(r request) *httptest.ResponseRecorder {
	var req *http.Request
	if r.body != "" {
		req = httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(r.method, r.path, nil)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (s *testServer) register(t *testing.T, email string) (string, *httptest.ResponseRecorder) {
	t.Helper()
	w := s.do(request{
		method: http.MethodPost,
		path:   "/api/auth/register",
		body:   `{"email":"` + email + `","password":"secret1"}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["token"].(string), w
}

func TestExampleScenario(t *testing.T) {
	s := newTestServer(t, Options{}, nil)

	token, w := s.register(t, "a@x.com")
	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "a@x.com", body["user"].(map[string]any)["email"])

	w = s.do(request{method: http.MethodPost, path: "/api/tasks", body: `{"titulo":"Buy milk"}`, token: token})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode(t, w)["item"].(map[string]any)
	assert.Equal(t, "A Fazer", item["status"])
	assert.Equal(t, "Média", item["prioridade"])
	assert.Equal(t, "Buy milk", item["titulo"])
	assert.NotContains(t, item, "prazo")
	id := item["_id"].(string)

	w = s.do(request{method: http.MethodGet, path: "/api/tasks", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)

	w = s.do(request{method: http.MethodDelete, path: "/api/tasks/" + id, token: token})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = s.do(request{method: http.MethodGet, path: "/api/tasks", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"items":[]}`, w.Body.String())
}

func TestRegisterSetsCookieAndLoginWorks(t *testing.T) {
	s := newTestServer(t, Options{}, nil)
	_, w := s.register(t, "a@x.com")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, handler.TokenCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookies[0].MaxAge)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), cookies[0].Expires, time.Minute)

	w = s.do(request{method: http.MethodPost, path: "/api/auth/register", body: `{"email":"a@x.com","password":"secret1"}`})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(request{method: http.MethodPost, path: "/api/auth/login", body: `{"email":"a@x.com","password":"secret1"}`})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["token"])

	w = s.do(request{method: http.MethodPost, path: "/api/auth/login", body: `{"email":"a@x.com","password":"nope-nope"}`})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestValidationErrorShape(t *testing.T) {
	s := newTestServer(t, Options{}, nil)

	w := s.do(request{method: http.MethodPost, path: "/api/auth/register", body: `{"email":"bad","password":"1"}`})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "invalid data", body["error"])
	assert.Len(t, body["issues"], 2)

	w = s.do(request{method: http.MethodPost, path: "/api/auth/login", body: `{not json`})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeWithCookieAndHeaderPrecedence(t *testing.T) {
	s := newTestServer(t, Options{}, nil)
	token, _ := s.register(t, "a@x.com")

	w := s.do(request{method: http.MethodGet, path: "/api/auth/me", cookies: []*http.Cookie{{Name: handler.TokenCookie, Value: token}}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@x.com", decode(t, w)["user"].(map[string]any)["email"])

	w = s.do(request{
		method:  http.MethodGet,
		path:    "/api/auth/me",
		token:   "garbage",
		cookies: []*http.Cookie{{Name: handler.TokenCookie, Value: token}},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, Options{}, nil)

	for _, r := range []request{
		{method: http.MethodGet, path: "/api/auth/me"},
		{method: http.MethodGet, path: "/api/tasks"},
		{method: http.MethodPost, path: "/api/tasks", body: `{"titulo":"x"}`},
		{method: http.MethodGet, path: "/api/tasks", token: "not-a-token"},
	} {
		w := s.do(r)
		assert.Equal(t, http.StatusUnauthorized, w.Code, r.method+" "+r.path)
		assert.Contains(t, decode(t, w), "error")
	}
}

func TestTasksAreScopedToOwner(t *testing.T) {
	s := newTestServer(t, Options{}, nil)
	alice, _ := s.register(t, "alice@x.com")
	bob, _ := s.register(t, "bob@x.com")

	w := s.do(request{method: http.MethodPost, path: "/api/tasks", body: `{"titulo":"secret plan"}`, token: alice})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["item"].(map[string]any)["_id"].(string)

	w = s.do(request{method: http.MethodGet, path: "/api/tasks", token: bob})
	assert.Equal(t, `{"items":[]}`, w.Body.String())

	w = s.do(request{method: http.MethodGet, path: "/api/tasks/" + id, token: bob})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(request{method: http.MethodPut, path: "/api/tasks/" + id, body: `{"status":"Concluída"}`, token: bob})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(request{method: http.MethodDelete, path: "/api/tasks/" + id, token: bob})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(request{method: http.MethodPut, path: "/api/tasks/" + id, body: `{"status":"done","_id":"x"}`, token: alice})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Concluída", decode(t, w)["item"].(map[string]any)["status"])

	w = s.do(request{method: http.MethodPut, path: "/api/tasks/not-a-uuid", body: `{"status":"done"}`, token: alice})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRejectsUnknownSort(t *testing.T) {
	s := newTestServer(t, Options{}, nil)
	token, _ := s.register(t, "a@x.com")

	w := s.do(request{method: http.MethodGet, path: "/api/tasks?sort=password_hash:desc", token: token})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(request{method: http.MethodGet, path: "/api/tasks?sort=prioridade:desc&priority=Alta", token: token})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	s := newTestServer(t, Options{}, nil)

	w := s.do(request{method: http.MethodPost, path: "/api/auth/logout"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ok"])
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
	assert.True(t, cookies[0].Expires.Before(time.Now()))
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t, Options{Name: "Task Manager API", Version: "1.0.0"}, nil)

	w := s.do(request{method: http.MethodGet, path: "/api"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Task Manager API", decode(t, w)["name"])

	w = s.do(request{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(request{method: http.MethodHead, path: "/healthz"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(request{method: http.MethodGet, path: "/readyz"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	w = s.do(request{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(request{method: http.MethodGet, path: "/api/nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", decode(t, w)["error"])

	w = s.do(request{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "API online", w.Body.String())
}

func TestReadyzReportsDatabaseDown(t *testing.T) {
	s := newTestServer(t, Options{}, fakePinger{err: errors.New("down")})

	w := s.do(request{method: http.MethodGet, path: "/readyz"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTraceIDIsEchoed(t *testing.T) {
	s := newTestServer(t, Options{}, nil)

	w := s.do(request{method: http.MethodGet, path: "/healthz", headers: map[string]string{"X-Trace-ID": "abc123"}})
	assert.Equal(t, "abc123", w.Header().Get("X-Trace-ID"))
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, Options{CORSOrigins: []string{"https://app.example.com"}}, nil)

	w := s.do(request{
		method:  http.MethodOptions,
		path:    "/api/tasks",
		headers: map[string]string{"Origin": "https://app.example.com", "Access-Control-Request-Method": "POST"},
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = s.do(request{
		method:  http.MethodOptions,
		path:    "/api/tasks",
		headers: map[string]string{"Origin": "https://evil.example.com"},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(request{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowsAnyOriginWhenUnconfigured(t *testing.T) {
	s := newTestServer(t, Options{}, nil)

	w := s.do(request{method: http.MethodGet, path: "/healthz", headers: map[string]string{"Origin": "http://localhost:5173"}})
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSPAFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	s := newTestServer(t, Options{WebDistDir: dir}, nil)

	w := s.do(request{method: http.MethodGet, path: "/tasks/board"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "app")

	w = s.do(request{method: http.MethodGet, path: "/assets/app.js"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())

	w = s.do(request{method: http.MethodGet, path: "/api/unknown"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
