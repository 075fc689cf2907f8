package ports

import (
	"context"
	"time"

	"github.com/taskboard/api/internal/domain/entities"
)

// TaskLookup identifies a single task inside a user's scope
type TaskLookup struct {
	ID             int64
	UserID         int64
	IncludeDeleted bool
}

// TaskRepository defines the interface for task data operations.
// Every method is scoped to a user id; none of them ever returns another
// user's rows.
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	FindOne(ctx context.Context, lookup TaskLookup) (*entities.Task, error)
	Update(ctx context.Context, task *entities.Task) error
	SoftDelete(ctx context.Context, userID, id int64) error
	// ListActive returns the user's non-deleted tasks, newest first, with
	// Owner populated where the owner account exists.
	ListActive(ctx context.Context, userID int64) ([]*entities.Task, error)
	// CountByStatus counts every row of the user, deleted ones included.
	CountByStatus(ctx context.Context, userID int64) (map[entities.TaskStatus]int, error)
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id int64) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
}

// AuthRepository defines the interface for refresh token storage
type AuthRepository interface {
	CreateRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*entities.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllUserTokens(ctx context.Context, userID int64) error
}

// StatsCache stores computed task statistics per user.
// Every Invalidate advances the user's generation. Set only stores stats when
// the generation still equals the one read before the counts were computed,
// so a write that lands mid-computation cannot be masked by stale counts.
type StatsCache interface {
	Get(ctx context.Context, userID int64) (*entities.TaskStats, bool, error)
	Generation(ctx context.Context, userID int64) (int64, error)
	Set(ctx context.Context, userID, generation int64, stats entities.TaskStats) error
	Invalidate(ctx context.Context, userID int64) error
}
