package entities

import (
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrTitleRequired      = fmt.Errorf("%w: please provide a title", ErrInvalidInput)
	ErrInvalidStatus      = fmt.Errorf("%w: invalid status", ErrInvalidInput)
	ErrInvalidPriority    = fmt.Errorf("%w: invalid priority", ErrInvalidInput)
	ErrTaskNotFound       = errors.New("task not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "Todo"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusCompleted  TaskStatus = "Completed"

	// TaskStatusOpen is assigned on creation when no status is supplied.
	// It is not one of the accepted input values.
	TaskStatusOpen TaskStatus = "Open"
)

// TaskStatuses lists the status values accepted from clients.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusCompleted}

// IsValid reports whether s may be supplied by a client.
func (s TaskStatus) IsValid() bool {
	for _, v := range TaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityNone   Priority = "None"
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

var Priorities = []Priority{PriorityNone, PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) IsValid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// User represents an account that owns tasks
type User struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// UserSummary is the public projection of a user embedded in task listings
type UserSummary struct {
	ID    int64  `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
}

// Task represents a single tracked task.
// UserID is fixed at creation and scopes every read and write; OwnerID is an
// assignment only and grants no access.
type Task struct {
	ID          int64        `json:"id" db:"id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description" db:"description"`
	Status      TaskStatus   `json:"status" db:"status"`
	Priority    Priority     `json:"priority" db:"priority"`
	UserID      int64        `json:"userId" db:"user_id"`
	OwnerID     *int64       `json:"ownerId" db:"owner_id"`
	StartDate   *time.Time   `json:"startDate" db:"start_date"`
	EndDate     *time.Time   `json:"endDate" db:"end_date"`
	IsDeleted   bool         `json:"isDeleted" db:"is_deleted"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" db:"updated_at"`
	Owner       *UserSummary `json:"owner,omitempty" db:"-"`
}

// RefreshToken represents a stored refresh token record
type RefreshToken struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"userId" db:"user_id"`
	TokenHash string     `json:"-" db:"token_hash"`
	ExpiresAt time.Time  `json:"expiresAt" db:"expires_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	RevokedAt *time.Time `json:"revokedAt" db:"revoked_at"`
}

// IsExpired checks if the refresh token is expired
func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// IsRevoked checks if the refresh token is revoked
func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

// IsValid checks if the refresh token is valid
func (rt *RefreshToken) IsValid() bool {
	return !rt.IsExpired() && !rt.IsRevoked()
}
