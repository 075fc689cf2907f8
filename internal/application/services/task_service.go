package services

import (
	"context"
	"fmt"
	"time"

	"github.com/taskboard/api/internal/domain/entities"
	"github.com/taskboard/api/internal/infrastructure/logger"
	"github.com/taskboard/api/internal/ports"
)

var _ ports.TaskService = (*TaskService)(nil)

// TaskService handles task-related operations
type TaskService struct {
	taskRepo ports.TaskRepository
	cache    ports.StatsCache
	logger   *logger.Logger
	now      func() time.Time
}

// NewTaskService creates a new task service. cache may be nil, in which case
// statistics are computed on every call.
func NewTaskService(taskRepo ports.TaskRepository, cache ports.StatsCache, logger *logger.Logger) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// ListTasks returns the caller's non-deleted tasks, newest first
func (s *TaskService) ListTasks(ctx context.Context, userID int64) ([]*entities.Task, error) {
	tasks, err := s.taskRepo.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*entities.Task{}
	}
	return tasks, nil
}

// GetTask retrieves a non-deleted task owned by the caller
func (s *TaskService) GetTask(ctx context.Context, userID, id int64) (*entities.Task, error) {
	task, err := s.taskRepo.FindOne(ctx, ports.TaskLookup{ID: id, UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// CreateTask validates the request, applies defaults and persists a new task
func (s *TaskService) CreateTask(ctx context.Context, userID int64, req ports.CreateTaskRequest) (*entities.Task, error) {
	if req.Title == "" {
		return nil, entities.ErrTitleRequired
	}

	status := entities.TaskStatusOpen
	if v, ok := req.Status.Get(); ok && v != "" {
		if !entities.TaskStatus(v).IsValid() {
			return nil, entities.ErrInvalidStatus
		}
		status = entities.TaskStatus(v)
	}

	priority := entities.PriorityNone
	if v, ok := req.Priority.Get(); ok && v != "" {
		if !entities.Priority(v).IsValid() {
			return nil, entities.ErrInvalidPriority
		}
		priority = entities.Priority(v)
	}

	now := s.now()
	ownerID := userID
	if v, ok := req.OwnerID.Get(); ok && v != 0 {
		ownerID = v
	}

	task := &entities.Task{
		Title:       req.Title,
		Description: req.Description.Value,
		Status:      status,
		Priority:    priority,
		UserID:      userID,
		OwnerID:     &ownerID,
		StartDate:   dateOrDefault(req.StartDate, now),
		EndDate:     dateOrDefault(req.EndDate, now),
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.invalidateStats(ctx, userID)

	s.logger.LogUserAction(userID, "task_created", map[string]interface{}{
		"task_id": task.ID,
		"status":  task.Status,
	})

	return task, nil
}

// UpdateTask applies a partial update. The task is looked up without the
// delete filter, so soft-deleted tasks can still be edited by their creator.
func (s *TaskService) UpdateTask(ctx context.Context, userID, id int64, req ports.UpdateTaskRequest) (*entities.Task, error) {
	task, err := s.taskRepo.FindOne(ctx, ports.TaskLookup{ID: id, UserID: userID, IncludeDeleted: true})
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	status, hasStatus := nonEmpty(req.Status)
	if hasStatus && !entities.TaskStatus(status).IsValid() {
		return nil, entities.ErrInvalidStatus
	}

	priority, hasPriority := nonEmpty(req.Priority)
	if hasPriority && !entities.Priority(priority).IsValid() {
		return nil, entities.ErrInvalidPriority
	}

	if title, ok := nonEmpty(req.Title); ok {
		task.Title = title
	}
	// description overwrites whenever sent, including as ""
	if req.Description.Set {
		task.Description = req.Description.Value
	}
	if hasStatus {
		task.Status = entities.TaskStatus(status)
	}
	if req.OwnerID.Set {
		if req.OwnerID.Null {
			task.OwnerID = nil
		} else {
			ownerID := req.OwnerID.Value
			task.OwnerID = &ownerID
		}
	}
	if d, ok := req.StartDate.Get(); ok && !d.IsZero() {
		start := d.Time
		task.StartDate = &start
	}
	if d, ok := req.EndDate.Get(); ok && !d.IsZero() {
		end := d.Time
		task.EndDate = &end
	}
	if hasPriority {
		task.Priority = entities.Priority(priority)
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	s.invalidateStats(ctx, userID)

	s.logger.LogUserAction(userID, "task_updated", map[string]interface{}{
		"task_id": task.ID,
	})

	return task, nil
}

// DeleteTask soft-deletes a task; the row stays in storage
func (s *TaskService) DeleteTask(ctx context.Context, userID, id int64) error {
	if err := s.taskRepo.SoftDelete(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	s.invalidateStats(ctx, userID)

	s.logger.LogUserAction(userID, "task_deleted", map[string]interface{}{
		"task_id": id,
	})

	return nil
}

// GetStats returns lifetime status counts for the caller. Soft-deleted tasks
// are counted.
func (s *TaskService) GetStats(ctx context.Context, userID int64) (entities.TaskStats, error) {
	var (
		generation int64
		cacheable  bool
	)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.Warnw("Stats cache read failed", "user_id", userID, "error", err)
		} else if ok {
			return *cached, nil
		}

		// read before counting so a concurrent write invalidates this fill
		generation, err = s.cache.Generation(ctx, userID)
		if err != nil {
			s.logger.Warnw("Stats cache generation read failed", "user_id", userID, "error", err)
		} else {
			cacheable = true
		}
	}

	counts, err := s.taskRepo.CountByStatus(ctx, userID)
	if err != nil {
		return entities.TaskStats{}, fmt.Errorf("failed to get task stats: %w", err)
	}
	stats := entities.NewTaskStats(counts)

	if cacheable {
		if err := s.cache.Set(ctx, userID, generation, stats); err != nil {
			s.logger.Warnw("Stats cache write failed", "user_id", userID, "error", err)
		}
	}

	return stats, nil
}

func (s *TaskService) invalidateStats(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warnw("Stats cache invalidation failed", "user_id", userID, "error", err)
	}
}

func nonEmpty(o entities.Optional[string]) (string, bool) {
	v, ok := o.Get()
	return v, ok && v != ""
}

func dateOrDefault(o entities.Optional[entities.Date], fallback time.Time) *time.Time {
	if d, ok := o.Get(); ok && !d.IsZero() {
		t := d.Time
		return &t
	}
	return &fallback
}
