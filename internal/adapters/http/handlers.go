package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/api/internal/application/taskview"
	"github.com/taskboard/api/internal/domain/entities"
	"github.com/taskboard/api/internal/infrastructure/logger"
	"github.com/taskboard/api/internal/ports"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService ports.AuthService
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService ports.AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Register handles account creation
func (h *AuthHandler) Register(c echo.Context) error {
	var req ports.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidPayload)
	}

	if err := c.Validate(&req); err != nil {
		return err
	}

	response, err := h.authService.Register(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, entities.ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusConflict, "Email already registered")
		}
		h.logger.Errorw("Registration failed", "error", err, "email", req.Email)
		return serverError(err)
	}

	return respond(c, http.StatusCreated, response)
}

// Login handles user login
func (h *AuthHandler) Login(c echo.Context) error {
	var req ports.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidPayload)
	}

	if err := c.Validate(&req); err != nil {
		return err
	}

	response, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, entities.ErrInvalidCredentials) {
			h.logger.LogSecurityEvent("login_failed", c.RealIP(), map[string]interface{}{"email": req.Email})
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
		}
		h.logger.Errorw("Login failed", "error", err, "email", req.Email)
		return serverError(err)
	}

	return respond(c, http.StatusOK, response)
}

// RefreshToken handles token refresh
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req ports.RefreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidPayload)
	}

	if err := c.Validate(&req); err != nil {
		return err
	}

	response, err := h.authService.RefreshToken(c.Request().Context(), req.RefreshToken)
	if err != nil {
		h.logger.Warnw("Token refresh failed", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid refresh token")
	}

	return respond(c, http.StatusOK, response)
}

// Logout handles user logout
func (h *AuthHandler) Logout(c echo.Context) error {
	userID := UserIDFromContext(c)

	if err := h.authService.Logout(c.Request().Context(), userID); err != nil {
		h.logger.Errorw("Logout failed", "error", err, "user_id", userID)
		return serverError(err)
	}

	return respondMessage(c, http.StatusOK, "Logged out successfully")
}

// Me returns the authenticated account
func (h *AuthHandler) Me(c echo.Context) error {
	userID := UserIDFromContext(c)

	user, err := h.authService.Me(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return serverError(err)
	}

	return respond(c, http.StatusOK, user)
}

// OperationRecorder counts task operations by outcome
type OperationRecorder interface {
	RecordTaskOperation(operation string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordTaskOperation(string, error) {}

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService ports.TaskService
	logger      *logger.Logger
	recorder    OperationRecorder
}

// NewTaskHandler creates a new task handler. recorder may be nil.
func NewTaskHandler(taskService ports.TaskService, logger *logger.Logger, recorder OperationRecorder) *TaskHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
		recorder:    recorder,
	}
}

// ListTasks godoc
// @Summary List tasks
// @Description Non-deleted tasks of the caller, newest first, with the owner attached
// @Tags tasks
// @Produce json
// @Success 200 {object} Response
// @Failure 500 {object} Response
// @Security BearerAuth
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	userID := UserIDFromContext(c)

	tasks, err := h.taskService.ListTasks(c.Request().Context(), userID)
	h.recorder.RecordTaskOperation("list", err)
	if err != nil {
		h.logger.Errorw("List tasks failed", "error", err, "user_id", userID)
		return mapTaskError(err)
	}

	return respondList(c, tasks)
}

// GetTask godoc
// @Summary Get task by ID
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetTask(c echo.Context) error {
	userID := UserIDFromContext(c)

	id, ok := taskID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, msgTaskNotFound)
	}

	task, err := h.taskService.GetTask(c.Request().Context(), userID, id)
	h.recorder.RecordTaskOperation("get", err)
	if err != nil {
		return mapTaskError(err)
	}

	return respond(c, http.StatusOK, task)
}

// CreateTask godoc
// @Summary Create a task
// @Description Missing fields take their defaults: status Open, priority None, owner the caller, dates now
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.CreateTaskRequest true "Task data"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Security BearerAuth
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	userID := UserIDFromContext(c)

	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidPayload)
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), userID, req)
	h.recorder.RecordTaskOperation("create", err)
	if err != nil {
		return mapTaskError(err)
	}

	return respond(c, http.StatusCreated, task)
}

// UpdateTask godoc
// @Summary Update a task
// @Description Applies only the fields present in the body
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body ports.UpdateTaskRequest true "Fields to change"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	userID := UserIDFromContext(c)

	id, ok := taskID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, msgTaskNotFound)
	}

	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidPayload)
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), userID, id, req)
	h.recorder.RecordTaskOperation("update", err)
	if err != nil {
		return mapTaskError(err)
	}

	return respond(c, http.StatusOK, task)
}

// DeleteTask godoc
// @Summary Soft-delete a task
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /tasks/deleteTask/{id} [put]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	userID := UserIDFromContext(c)

	id, ok := taskID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, msgTaskNotFound)
	}

	err := h.taskService.DeleteTask(c.Request().Context(), userID, id)
	h.recorder.RecordTaskOperation("delete", err)
	if err != nil {
		return mapTaskError(err)
	}

	return respondMessage(c, http.StatusOK, "Task deleted successfully")
}

// GetStats godoc
// @Summary Task statistics
// @Description Counts by status over every task of the caller, deleted ones included
// @Tags tasks
// @Produce json
// @Success 200 {object} Response
// @Security BearerAuth
// @Router /tasks/stats [get]
func (h *TaskHandler) GetStats(c echo.Context) error {
	userID := UserIDFromContext(c)

	stats, err := h.taskService.GetStats(c.Request().Context(), userID)
	h.recorder.RecordTaskOperation("stats", err)
	if err != nil {
		h.logger.Errorw("Task stats failed", "error", err, "user_id", userID)
		return mapTaskError(err)
	}

	return respond(c, http.StatusOK, stats)
}

// GetView godoc
// @Summary Filtered, paginated task table
// @Description Search, filter and paginate the task list; read only
// @Tags tasks
// @Produce json
// @Param search query string false "Search text"
// @Param status query string false "Status filter or All"
// @Param priority query string false "Priority filter or All"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size (5, 10, 25, 50)"
// @Success 200 {object} Response
// @Security BearerAuth
// @Router /tasks/view [get]
func (h *TaskHandler) GetView(c echo.Context) error {
	userID := UserIDFromContext(c)

	page := 1
	pageSize := taskview.DefaultPageSize
	err := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("pageSize", &pageSize).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}

	tasks, err := h.taskService.ListTasks(c.Request().Context(), userID)
	h.recorder.RecordTaskOperation("view", err)
	if err != nil {
		return mapTaskError(err)
	}

	state := taskview.NewState().
		WithSearch(c.QueryParam("search")).
		WithStatus(c.QueryParam("status")).
		WithPriority(c.QueryParam("priority")).
		WithPageSize(pageSize).
		WithPage(page)

	return respond(c, http.StatusOK, taskview.Build(tasks, state))
}

// taskID parses the :id path parameter
func taskID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
