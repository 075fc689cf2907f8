// Package sqlite stores users, tasks and refresh tokens in an embedded
// SQLite database through gorm. It mirrors the postgres repositories row
// for row so either store can back the services.
package sqlite

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/taskboard/api/internal/domain/entities"
)

type userModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Name         string    `gorm:"size:100;not null"`
	Email        string    `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userModel) TableName() string {
	return "users"
}

func (m *userModel) toEntity() *entities.User {
	return &entities.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

type taskModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Title       string `gorm:"not null"`
	Description string `gorm:"not null"`
	Status      string `gorm:"size:32;not null;index"`
	Priority    string `gorm:"size:16;not null"`
	UserID      int64  `gorm:"not null;index"`
	OwnerID     *int64 `gorm:"index"`
	StartDate   *time.Time
	EndDate     *time.Time
	IsDeleted   bool `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Owner       *userModel `gorm:"foreignKey:OwnerID;constraint:OnDelete:SET NULL"`
}

func (taskModel) TableName() string {
	return "tasks"
}

func newTaskModel(t *entities.Task) *taskModel {
	return &taskModel{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		UserID:      t.UserID,
		OwnerID:     t.OwnerID,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		IsDeleted:   t.IsDeleted,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (m *taskModel) toEntity() *entities.Task {
	task := &entities.Task{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Status:      entities.TaskStatus(m.Status),
		Priority:    entities.Priority(m.Priority),
		UserID:      m.UserID,
		OwnerID:     m.OwnerID,
		StartDate:   m.StartDate,
		EndDate:     m.EndDate,
		IsDeleted:   m.IsDeleted,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Owner != nil {
		task.Owner = &entities.UserSummary{ID: m.Owner.ID, Name: m.Owner.Name, Email: m.Owner.Email}
	}
	return task
}

type refreshTokenModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;index"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
	RevokedAt *time.Time
}

func (refreshTokenModel) TableName() string {
	return "refresh_tokens"
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&userModel{}, &taskModel{}, &refreshTokenModel{}); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}
