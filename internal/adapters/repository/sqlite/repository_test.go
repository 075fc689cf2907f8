package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/taskboard/api/internal/domain/entities"
	"github.com/taskboard/api/internal/ports"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "taskboard.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, repo *UserRepository, name, email string) *entities.User {
	t.Helper()
	u := &entities.User{Name: name, Email: email, PasswordHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func newTask(userID int64, title string, status entities.TaskStatus, created time.Time) *entities.Task {
	return &entities.Task{
		Title:     title,
		Status:    status,
		Priority:  entities.PriorityNone,
		UserID:    userID,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(setupTestDB(t))

	u := createUser(t, repo, "Ada", "ada@example.com")
	assert.NotZero(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", byID.Email)
	assert.Equal(t, "hash", byID.PasswordHash)

	byEmail, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, entities.ErrUserNotFound)

	err = repo.Create(ctx, &entities.User{Name: "Other", Email: "ada@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, entities.ErrEmailTaken)
}

func TestTaskRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	user := createUser(t, NewUserRepository(db), "Ada", "ada@example.com")

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	task := newTask(user.ID, "Write report", entities.TaskStatusOpen, time.Now())
	task.StartDate = &start
	task.OwnerID = &user.ID
	require.NoError(t, repo.Create(ctx, task))
	assert.NotZero(t, task.ID)

	found, err := repo.FindOne(ctx, ports.TaskLookup{ID: task.ID, UserID: user.ID})
	require.NoError(t, err)
	assert.Equal(t, "Write report", found.Title)
	assert.Equal(t, entities.TaskStatusOpen, found.Status)
	require.NotNil(t, found.StartDate)
	assert.True(t, start.Equal(*found.StartDate))
	assert.Nil(t, found.EndDate)
	require.NotNil(t, found.OwnerID)
	assert.Equal(t, user.ID, *found.OwnerID)

	_, err = repo.FindOne(ctx, ports.TaskLookup{ID: task.ID, UserID: user.ID + 1})
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestTaskRepository_SoftDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(setupTestDB(t))

	task := newTask(1, "Temp", entities.TaskStatusTodo, time.Now())
	require.NoError(t, repo.Create(ctx, task))

	require.NoError(t, repo.SoftDelete(ctx, 1, task.ID))
	assert.ErrorIs(t, repo.SoftDelete(ctx, 1, task.ID), entities.ErrTaskNotFound)
	assert.ErrorIs(t, repo.SoftDelete(ctx, 1, 424242), entities.ErrTaskNotFound)

	_, err := repo.FindOne(ctx, ports.TaskLookup{ID: task.ID, UserID: 1})
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)

	deleted, err := repo.FindOne(ctx, ports.TaskLookup{ID: task.ID, UserID: 1, IncludeDeleted: true})
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
}

func TestTaskRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(setupTestDB(t))

	owner := int64(5)
	task := newTask(1, "Draft", entities.TaskStatusTodo, time.Now())
	task.OwnerID = &owner
	require.NoError(t, repo.Create(ctx, task))

	task.Title = "Final"
	task.Status = entities.TaskStatusCompleted
	task.Priority = entities.PriorityHigh
	task.OwnerID = nil
	require.NoError(t, repo.Update(ctx, task))

	found, err := repo.FindOne(ctx, ports.TaskLookup{ID: task.ID, UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, "Final", found.Title)
	assert.Equal(t, entities.TaskStatusCompleted, found.Status)
	assert.Equal(t, entities.PriorityHigh, found.Priority)
	assert.Nil(t, found.OwnerID)

	other := *task
	other.UserID = 2
	assert.ErrorIs(t, repo.Update(ctx, &other), entities.ErrTaskNotFound)
}

func TestTaskRepository_ListActive(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	owner := createUser(t, NewUserRepository(db), "Grace", "grace@example.com")

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	first := newTask(1, "first", entities.TaskStatusTodo, base)
	second := newTask(1, "second", entities.TaskStatusTodo, base.Add(time.Hour))
	second.OwnerID = &owner.ID
	third := newTask(1, "third", entities.TaskStatusTodo, base.Add(2*time.Hour))
	foreign := newTask(2, "foreign", entities.TaskStatusTodo, base.Add(3*time.Hour))
	for _, task := range []*entities.Task{first, second, third, foreign} {
		require.NoError(t, repo.Create(ctx, task))
	}
	require.NoError(t, repo.SoftDelete(ctx, 1, third.ID))

	tasks, err := repo.ListActive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "second", tasks[0].Title)
	assert.Equal(t, "first", tasks[1].Title)

	require.NotNil(t, tasks[0].Owner)
	assert.Equal(t, "Grace", tasks[0].Owner.Name)
	assert.Nil(t, tasks[1].Owner)

	empty, err := repo.ListActive(ctx, 77)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestTaskRepository_CountByStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(setupTestDB(t))

	statuses := []entities.TaskStatus{
		entities.TaskStatusTodo,
		entities.TaskStatusTodo,
		entities.TaskStatusInProgress,
		entities.TaskStatusCompleted,
		entities.TaskStatusOpen,
	}
	var last *entities.Task
	for i, s := range statuses {
		last = newTask(1, "t", s, time.Now().Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.Create(ctx, last))
	}
	require.NoError(t, repo.Create(ctx, newTask(2, "other", entities.TaskStatusTodo, time.Now())))
	require.NoError(t, repo.SoftDelete(ctx, 1, last.ID))

	counts, err := repo.CountByStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[entities.TaskStatusTodo])
	assert.Equal(t, 1, counts[entities.TaskStatusInProgress])
	assert.Equal(t, 1, counts[entities.TaskStatusCompleted])
	assert.Equal(t, 1, counts[entities.TaskStatusOpen])

	stats := entities.NewTaskStats(counts)
	assert.Equal(t, 5, stats.Total)
}

func TestAuthRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAuthRepository(setupTestDB(t))

	require.NoError(t, repo.CreateRefreshToken(ctx, 1, "hash-a", time.Now().Add(time.Hour)))
	require.NoError(t, repo.CreateRefreshToken(ctx, 1, "hash-b", time.Now().Add(time.Hour)))

	token, err := repo.GetRefreshToken(ctx, "hash-a")
	require.NoError(t, err)
	assert.True(t, token.IsValid())

	require.NoError(t, repo.RevokeRefreshToken(ctx, "hash-a"))
	token, err = repo.GetRefreshToken(ctx, "hash-a")
	require.NoError(t, err)
	assert.True(t, token.IsRevoked())

	require.NoError(t, repo.RevokeAllUserTokens(ctx, 1))
	token, err = repo.GetRefreshToken(ctx, "hash-b")
	require.NoError(t, err)
	assert.False(t, token.IsValid())

	_, err = repo.GetRefreshToken(ctx, "missing")
	assert.ErrorIs(t, err, entities.ErrInvalidToken)
}
