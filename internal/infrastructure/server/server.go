package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/taskboard/api/docs"
	httpHandlers "github.com/taskboard/api/internal/adapters/http"
	"github.com/taskboard/api/internal/infrastructure/config"
	"github.com/taskboard/api/internal/infrastructure/logger"
	"github.com/taskboard/api/internal/ports"
)

// Store is the persistence backend as seen by the health endpoints
type Store interface {
	Driver() string
	HealthCheck(ctx context.Context) error
	Stats() map[string]interface{}
}

// Cache is the optional stats cache as seen by the health endpoints
type Cache interface {
	HealthCheck(ctx context.Context) error
	Snapshot() map[string]interface{}
}

// Dependencies are the services and backends the server routes to.
// Cache may be nil.
type Dependencies struct {
	AuthService ports.AuthService
	TaskService ports.TaskService
	Store       Store
	Cache       Cache
}

// Server represents the HTTP server
type Server struct {
	echo    *echo.Echo
	config  *config.Config
	logger  *logger.Logger
	deps    Dependencies
	metrics *Metrics
}

// New creates a new server instance
func New(cfg *config.Config, deps Dependencies, appLogger *logger.Logger) (*Server, error) {
	if deps.AuthService == nil || deps.TaskService == nil || deps.Store == nil {
		return nil, fmt.Errorf("server requires auth service, task service and store")
	}

	e := echo.New()
	e.Validator = NewValidator()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	server := &Server{
		echo:   e,
		config: cfg,
		logger: appLogger.WithComponent("http"),
		deps:   deps,
	}

	if cfg.Metrics.Enabled {
		server.metrics = NewMetrics()
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) setupRoutes() {
	var recorder httpHandlers.OperationRecorder
	if s.metrics != nil {
		recorder = s.metrics
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	authHandler := httpHandlers.NewAuthHandler(s.deps.AuthService, s.logger)
	taskHandler := httpHandlers.NewTaskHandler(s.deps.TaskService, s.logger, recorder)
	protect := httpHandlers.Protect(s.deps.AuthService, s.logger)

	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	api := s.echo.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.RefreshToken)
	authGroup.GET("/me", authHandler.Me, protect)
	authGroup.POST("/logout", authHandler.Logout, protect)

	taskGroup := api.Group("/tasks", protect)
	taskGroup.GET("", taskHandler.ListTasks)
	taskGroup.POST("", taskHandler.CreateTask)
	taskGroup.GET("/stats", taskHandler.GetStats)
	taskGroup.GET("/view", taskHandler.GetView)
	taskGroup.GET("/:id", taskHandler.GetTask)
	taskGroup.PUT("/:id", taskHandler.UpdateTask)
	taskGroup.PUT("/deleteTask/:id", taskHandler.DeleteTask)
	taskGroup.DELETE("/:id", taskHandler.DeleteTask)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	ctx := c.Request().Context()
	status := "ok"
	checks := make(map[string]interface{})

	if err := s.deps.Store.HealthCheck(ctx); err != nil {
		status = "error"
		checks["database"] = map[string]interface{}{
			"status": "error",
			"driver": s.deps.Store.Driver(),
			"error":  err.Error(),
		}
	} else {
		checks["database"] = map[string]interface{}{
			"status": "ok",
			"driver": s.deps.Store.Driver(),
			"stats":  s.deps.Store.Stats(),
		}
	}

	// the cache is optional; a failing cache degrades, it does not fail the check
	if s.deps.Cache != nil {
		if err := s.deps.Cache.HealthCheck(ctx); err != nil {
			checks["cache"] = map[string]interface{}{
				"status": "degraded",
				"error":  err.Error(),
			}
		} else {
			checks["cache"] = map[string]interface{}{
				"status": "ok",
				"stats":  s.deps.Cache.Snapshot(),
			}
		}
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
			"go":  runtime.Version(),
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if err := s.deps.Store.HealthCheck(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(address string) error {
	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.Server.WriteTimeout
	s.echo.Server.IdleTimeout = s.config.Server.IdleTimeout

	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}
