package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlitestore "github.com/taskboard/api/internal/adapters/repository/sqlite"
	"github.com/taskboard/api/internal/application/services"
	"github.com/taskboard/api/internal/infrastructure/config"
	"github.com/taskboard/api/internal/infrastructure/database"
	"github.com/taskboard/api/internal/infrastructure/logger"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Count   *int            `json:"count"`
}

type testTask struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	UserID      int64      `json:"userId"`
	OwnerID     *int64     `json:"ownerId"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	IsDeleted   bool       `json:"isDeleted"`
	Owner       *struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"owner"`
}

type testAuth struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "Taskboard", Version: "test", Environment: "test"},
		JWT: config.JWTConfig{
			Secret:           "test-secret",
			ExpiresIn:        time.Hour,
			RefreshExpiresIn: 24 * time.Hour,
			Issuer:           "taskboard-test",
		},
		Security: config.SecurityConfig{
			CORSAllowedOrigins: "*",
			RateLimitRequests:  10000,
			RateLimitWindow:    time.Minute,
		},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	cfg := testConfig()
	store, err := database.OpenSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "api.db")}, false)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logger.NewNop()
	authService := services.NewAuthService(
		sqlitestore.NewUserRepository(store.Gorm),
		sqlitestore.NewAuthRepository(store.Gorm),
		cfg.JWT,
		log,
	)
	taskService := services.NewTaskService(sqlitestore.NewTaskRepository(store.Gorm), nil, log)

	srv, err := New(cfg, Dependencies{
		AuthService: authService,
		TaskService: taskService,
		Store:       store,
	}, log)
	require.NoError(t, err)
	return srv.Handler()
}

func call(t *testing.T, h http.Handler, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func register(t *testing.T, h http.Handler, name, email string) testAuth {
	t.Helper()
	code, env := call(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var auth testAuth
	decode(t, env.Data, &auth)
	require.NotEmpty(t, auth.Token)
	return auth
}

func createTask(t *testing.T, h http.Handler, token string, body map[string]interface{}) testTask {
	t.Helper()
	code, env := call(t, h, http.MethodPost, "/api/tasks", token, body)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var task testTask
	decode(t, env.Data, &task)
	return task
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"driver":"sqlite"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	h := newTestServer(t)
	auth := register(t, h, "Ada", "Ada@Example.com")
	assert.Equal(t, "ada@example.com", auth.User.Email)

	code, env := call(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Other", "email": "ada@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)

	code, env = call(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Bad", "email": "not-an-email", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "email must be a valid email")
	assert.Contains(t, env.Message, "password must be at least 6 characters")

	code, _ = call(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = call(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, code)
	var login testAuth
	decode(t, env.Data, &login)

	code, env = call(t, h, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"name":"Ada"`)
	assert.NotContains(t, string(env.Data), "password")

	code, env = call(t, h, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": login.RefreshToken})
	require.Equal(t, http.StatusOK, code)
	var refreshed testAuth
	decode(t, env.Data, &refreshed)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	code, _ = call(t, h, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code, "rotated token is single use")

	code, _ = call(t, h, http.MethodPost, "/api/auth/logout", refreshed.Token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, h, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refreshed.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestTasksRequireToken(t *testing.T) {
	h := newTestServer(t)

	code, env := call(t, h, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Message)

	code, _ = call(t, h, http.MethodGet, "/api/tasks", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCreateTask(t *testing.T) {
	h := newTestServer(t)
	auth := register(t, h, "Ada", "ada@example.com")

	task := createTask(t, h, auth.Token, map[string]interface{}{"title": "Write report"})
	assert.Equal(t, "Open", task.Status)
	assert.Equal(t, "None", task.Priority)
	assert.Equal(t, "", task.Description)
	assert.Equal(t, auth.User.ID, task.UserID)
	require.NotNil(t, task.OwnerID)
	assert.Equal(t, auth.User.ID, *task.OwnerID)
	assert.NotNil(t, task.StartDate)
	assert.NotNil(t, task.EndDate)

	tests := []struct {
		name    string
		body    map[string]interface{}
		message string
	}{
		{"missing title", map[string]interface{}{"status": "Todo"}, "Please provide a title"},
		{"empty title", map[string]interface{}{"title": ""}, "Please provide a title"},
		{"bad status", map[string]interface{}{"title": "x", "status": "Done"}, "Invalid status"},
		{"bad priority", map[string]interface{}{"title": "x", "priority": "Urgent"}, "Invalid priority"},
		{"title checked first", map[string]interface{}{"status": "Done", "priority": "Urgent"}, "Please provide a title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := call(t, h, http.MethodPost, "/api/tasks", auth.Token, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.message, env.Message)
		})
	}

	code, env := call(t, h, http.MethodGet, "/api/tasks", auth.Token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count, "rejected creates store nothing")
}

func TestTaskLifecycle(t *testing.T) {
	h := newTestServer(t)
	auth := register(t, h, "Ada", "ada@example.com")

	first := createTask(t, h, auth.Token, map[string]interface{}{"title": "first", "status": "Todo"})
	second := createTask(t, h, auth.Token, map[string]interface{}{
		"title":       "second",
		"description": "details",
		"priority":    "High",
		"startDate":   "2024-03-01",
	})

	code, env := call(t, h, http.MethodGet, "/api/tasks", auth.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var list []testTask
	decode(t, env.Data, &list)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	require.NotNil(t, list[0].Owner)
	assert.Equal(t, "Ada", list[0].Owner.Name)

	code, env = call(t, h, http.MethodPut, fmt.Sprintf("/api/tasks/%d", first.ID), auth.Token, map[string]interface{}{
		"status":      "Completed",
		"title":       "",
		"description": "",
		"ownerId":     nil,
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	var updated testTask
	decode(t, env.Data, &updated)
	assert.Equal(t, "Completed", updated.Status)
	assert.Equal(t, "first", updated.Title, "empty title is ignored on update")
	assert.Nil(t, updated.OwnerID)

	code, env = call(t, h, http.MethodPut, fmt.Sprintf("/api/tasks/%d", first.ID), auth.Token, map[string]interface{}{"priority": "Urgent"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid priority", env.Message)

	code, env = call(t, h, http.MethodGet, fmt.Sprintf("/api/tasks/%d", first.ID), auth.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var fetched testTask
	decode(t, env.Data, &fetched)
	assert.Equal(t, "Completed", fetched.Status)

	code, env = call(t, h, http.MethodPut, fmt.Sprintf("/api/tasks/deleteTask/%d", first.ID), auth.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, "Task deleted successfully", env.Message)

	code, env = call(t, h, http.MethodPut, fmt.Sprintf("/api/tasks/deleteTask/%d", first.ID), auth.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Task not found", env.Message)

	code, _ = call(t, h, http.MethodGet, fmt.Sprintf("/api/tasks/%d", first.ID), auth.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = call(t, h, http.MethodGet, "/api/tasks/stats", auth.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var stats map[string]int
	decode(t, env.Data, &stats)
	assert.Equal(t, map[string]int{"total": 2, "todo": 0, "inProgress": 0, "completed": 1}, stats)

	code, _ = call(t, h, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", second.ID), auth.Token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = call(t, h, http.MethodGet, "/api/tasks", auth.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, *env.Count)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestTaskIsolation(t *testing.T) {
	h := newTestServer(t)
	ada := register(t, h, "Ada", "ada@example.com")
	bob := register(t, h, "Bob", "bob@example.com")

	task := createTask(t, h, ada.Token, map[string]interface{}{"title": "private", "ownerId": bob.User.ID})
	path := fmt.Sprintf("/api/tasks/%d", task.ID)

	code, _ := call(t, h, http.MethodGet, path, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, code, "ownership grants no access")

	code, _ = call(t, h, http.MethodPut, path, bob.Token, map[string]interface{}{"title": "hijack"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, h, http.MethodPut, fmt.Sprintf("/api/tasks/deleteTask/%d", task.ID), bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env := call(t, h, http.MethodGet, "/api/tasks", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, *env.Count)
}

func TestMalformedTaskID(t *testing.T) {
	h := newTestServer(t)
	auth := register(t, h, "Ada", "ada@example.com")

	for _, path := range []string{"/api/tasks/abc", "/api/tasks/-1", "/api/tasks/1.5"} {
		code, env := call(t, h, http.MethodGet, path, auth.Token, nil)
		assert.Equal(t, http.StatusNotFound, code, path)
		assert.Equal(t, "Task not found", env.Message, path)
	}
}

func TestTaskView(t *testing.T) {
	h := newTestServer(t)
	auth := register(t, h, "Ada", "ada@example.com")

	for i := 1; i <= 7; i++ {
		priority := "Low"
		if i%2 == 0 {
			priority = "High"
		}
		createTask(t, h, auth.Token, map[string]interface{}{"title": fmt.Sprintf("task %d", i), "priority": priority})
	}

	code, env := call(t, h, http.MethodGet, "/api/tasks/view?priority=High&pageSize=5", auth.Token, nil)
	require.Equal(t, http.StatusOK, code, env.Message)

	var view struct {
		Rows []struct {
			ID        int64  `json:"id"`
			DisplayID string `json:"displayId"`
			Priority  string `json:"priority"`
		} `json:"rows"`
		Total         int  `json:"total"`
		TotalFiltered int  `json:"totalFiltered"`
		TotalPages    int  `json:"totalPages"`
		Filtered      bool `json:"filtered"`
	}
	decode(t, env.Data, &view)
	assert.Equal(t, 7, view.Total)
	assert.Equal(t, 3, view.TotalFiltered)
	assert.Equal(t, 1, view.TotalPages)
	assert.True(t, view.Filtered)
	require.Len(t, view.Rows, 3)
	assert.Equal(t, "High", view.Rows[0].Priority)
	assert.Equal(t, fmt.Sprintf("PR-%d", view.Rows[0].ID), view.Rows[0].DisplayID)

	code, env = call(t, h, http.MethodGet, "/api/tasks/view?pageSize=5&page=2", auth.Token, nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &view)
	assert.Len(t, view.Rows, 2)

	code, _ = call(t, h, http.MethodGet, "/api/tasks/view?page=two", auth.Token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t)
	auth := register(t, h, "Ada", "ada@example.com")
	createTask(t, h, auth.Token, map[string]interface{}{"title": "counted"})
	call(t, h, http.MethodPost, "/api/tasks", auth.Token, map[string]interface{}{"title": ""})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `taskboard_task_operations_total{operation="create",outcome="success"} 1`)
	assert.Contains(t, body, `taskboard_task_operations_total{operation="create",outcome="invalid"} 1`)
	assert.Contains(t, body, "http_requests_total")
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	h := newTestServer(t)

	code, env := call(t, h, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Message)
}
