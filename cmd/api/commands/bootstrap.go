package commands

import (
	"context"
	"fmt"

	"github.com/taskboard/api/internal/adapters/repository"
	sqlitestore "github.com/taskboard/api/internal/adapters/repository/sqlite"
	"github.com/taskboard/api/internal/application/services"
	"github.com/taskboard/api/internal/infrastructure/cache"
	"github.com/taskboard/api/internal/infrastructure/config"
	"github.com/taskboard/api/internal/infrastructure/database"
	"github.com/taskboard/api/internal/infrastructure/logger"
	"github.com/taskboard/api/internal/infrastructure/server"
	"github.com/taskboard/api/internal/ports"
)

// store is the configured persistence backend and its repositories
type store struct {
	server.Store
	users  ports.UserRepository
	tasks  ports.TaskRepository
	tokens ports.AuthRepository
	close  func() error
}

func (s *store) Close() error {
	return s.close()
}

func openStore(cfg *config.Config) (*store, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := database.OpenSQLite(cfg.Database, cfg.App.IsDevelopment())
		if err != nil {
			return nil, err
		}
		return &store{
			Store:  db,
			users:  sqlitestore.NewUserRepository(db.Gorm),
			tasks:  sqlitestore.NewTaskRepository(db.Gorm),
			tokens: sqlitestore.NewAuthRepository(db.Gorm),
			close:  db.Close,
		}, nil
	default:
		db, err := database.New(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return &store{
			Store:  db,
			users:  repository.NewUserRepository(db.DB),
			tasks:  repository.NewTaskRepository(db.DB),
			tokens: repository.NewAuthRepository(db.DB),
			close:  db.Close,
		}, nil
	}
}

// application owns every long-lived resource of the serve command
type application struct {
	deps    server.Dependencies
	closers []func() error
}

func bootstrap(ctx context.Context, cfg *config.Config, log *logger.Logger) (*application, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	app := &application{closers: []func() error{st.Close}}

	var statsCache ports.StatsCache
	if cfg.Redis.Enabled {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warnw("Redis unavailable, serving stats without cache", "addr", cfg.Redis.GetAddr(), "error", err)
		} else {
			c := cache.NewStatsCache(client, "taskboard:", cfg.Redis.StatsTTL)
			statsCache = c
			app.deps.Cache = c
			app.closers = append(app.closers, c.Close)
		}
	}

	app.deps.Store = st
	app.deps.AuthService = services.NewAuthService(st.users, st.tokens, cfg.JWT, log.WithComponent("auth"))
	app.deps.TaskService = services.NewTaskService(st.tasks, statsCache, log.WithComponent("tasks"))

	return app, nil
}

// Close releases resources in reverse order of acquisition
func (a *application) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
