package ports

import (
	"context"

	"github.com/taskboard/api/internal/domain/entities"
)

// AuthService interface for authentication operations
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	Logout(ctx context.Context, userID int64) error
	Me(ctx context.Context, userID int64) (*entities.User, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// TaskService interface for task operations
type TaskService interface {
	ListTasks(ctx context.Context, userID int64) ([]*entities.Task, error)
	GetTask(ctx context.Context, userID, id int64) (*entities.Task, error)
	CreateTask(ctx context.Context, userID int64, req CreateTaskRequest) (*entities.Task, error)
	UpdateTask(ctx context.Context, userID, id int64, req UpdateTaskRequest) (*entities.Task, error)
	DeleteTask(ctx context.Context, userID, id int64) error
	GetStats(ctx context.Context, userID int64) (entities.TaskStats, error)
}

// Claims carries the authenticated identity extracted from an access token
type Claims struct {
	UserID int64
	Email  string
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type AuthResponse struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken"`
	TokenType    string         `json:"tokenType"`
	ExpiresIn    int64          `json:"expiresIn"`
	User         *entities.User `json:"user"`
}

// CreateTaskRequest carries the fields accepted when creating a task.
// Empty or absent optional fields fall back to their defaults.
type CreateTaskRequest struct {
	Title       string                          `json:"title"`
	Description entities.Optional[string]        `json:"description"`
	Status      entities.Optional[string]        `json:"status"`
	Priority    entities.Optional[string]        `json:"priority"`
	OwnerID     entities.Optional[int64]         `json:"ownerId"`
	StartDate   entities.Optional[entities.Date] `json:"startDate"`
	EndDate     entities.Optional[entities.Date] `json:"endDate"`
}

// UpdateTaskRequest carries a partial update. Only fields present in the
// payload are considered.
type UpdateTaskRequest struct {
	Title       entities.Optional[string]        `json:"title"`
	Description entities.Optional[string]        `json:"description"`
	Status      entities.Optional[string]        `json:"status"`
	Priority    entities.Optional[string]        `json:"priority"`
	OwnerID     entities.Optional[int64]         `json:"ownerId"`
	StartDate   entities.Optional[entities.Date] `json:"startDate"`
	EndDate     entities.Optional[entities.Date] `json:"endDate"`
}
