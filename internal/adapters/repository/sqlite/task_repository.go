package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/taskboard/api/internal/domain/entities"
	"github.com/taskboard/api/internal/ports"
)

// TaskRepository implements ports.TaskRepository on gorm
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

var _ ports.TaskRepository = (*TaskRepository)(nil)

func (r *TaskRepository) Create(ctx context.Context, task *entities.Task) error {
	m := newTaskModel(task)
	m.ID = 0
	m.IsDeleted = false
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	task.ID = m.ID
	task.IsDeleted = false
	task.CreatedAt = m.CreatedAt
	task.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *TaskRepository) FindOne(ctx context.Context, lookup ports.TaskLookup) (*entities.Task, error) {
	q := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", lookup.ID, lookup.UserID)
	if !lookup.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}

	var m taskModel
	if err := q.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return m.toEntity(), nil
}

func (r *TaskRepository) Update(ctx context.Context, task *entities.Task) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&taskModel{}).
		Where("id = ? AND user_id = ?", task.ID, task.UserID).
		Updates(map[string]interface{}{
			"title":       task.Title,
			"description": task.Description,
			"status":      string(task.Status),
			"priority":    string(task.Priority),
			"owner_id":    task.OwnerID,
			"start_date":  task.StartDate,
			"end_date":    task.EndDate,
			"updated_at":  now,
		})
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.RowsAffected == 0 {
		return entities.ErrTaskNotFound
	}

	task.UpdatedAt = now
	return nil
}

func (r *TaskRepository) SoftDelete(ctx context.Context, userID, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&taskModel{}).
		Where("id = ? AND user_id = ? AND is_deleted = ?", id, userID, false).
		Updates(map[string]interface{}{"is_deleted": true, "updated_at": time.Now()})
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected == 0 {
		return entities.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) ListActive(ctx context.Context, userID int64) ([]*entities.Task, error) {
	var models []*taskModel
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Order("created_at DESC, id DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*entities.Task, 0, len(models))
	for _, m := range models {
		tasks = append(tasks, m.toEntity())
	}
	return tasks, nil
}

func (r *TaskRepository) CountByStatus(ctx context.Context, userID int64) (map[entities.TaskStatus]int, error) {
	var groups []struct {
		Status string
		Count  int
	}
	err := r.db.WithContext(ctx).
		Model(&taskModel{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	counts := make(map[entities.TaskStatus]int, len(groups))
	for _, g := range groups {
		counts[entities.TaskStatus(g.Status)] = g.Count
	}
	return counts, nil
}
