package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	sqlitestore "github.com/taskboard/api/internal/adapters/repository/sqlite"
	"github.com/taskboard/api/internal/infrastructure/config"
)

// SQLite wraps the embedded gorm store
type SQLite struct {
	Gorm *gorm.DB
}

// OpenSQLite opens the database file at cfg.Path, creating its directory,
// and brings the schema up to date.
func OpenSQLite(cfg config.DatabaseConfig, verbose bool) (*SQLite, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	level := gormlogger.Silent
	if verbose {
		level = gormlogger.Warn
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	if err := sqlitestore.Migrate(db); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &SQLite{Gorm: db}, nil
}

func (s *SQLite) Driver() string {
	return "sqlite"
}

func (s *SQLite) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.Gorm.DB()
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (s *SQLite) Stats() map[string]interface{} {
	sqlDB, err := s.Gorm.DB()
	if err != nil {
		return map[string]interface{}{}
	}
	return poolStats(sqlDB.Stats())
}

func (s *SQLite) Close() error {
	sqlDB, err := s.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
