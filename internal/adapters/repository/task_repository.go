package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/taskboard/api/internal/domain/entities"
	"github.com/taskboard/api/internal/ports"
)

const taskColumns = `t.id, t.title, t.description, t.status, t.priority, t.user_id, t.owner_id,
		t.start_date, t.end_date, t.is_deleted, t.created_at, t.updated_at`

// TaskRepository implements ports.TaskRepository on postgres
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

var _ ports.TaskRepository = (*TaskRepository)(nil)

// taskRow carries the owner columns of the listing join
type taskRow struct {
	entities.Task
	OwnerRefID sql.NullInt64  `db:"owner_ref_id"`
	OwnerName  sql.NullString `db:"owner_name"`
	OwnerEmail sql.NullString `db:"owner_email"`
}

func (r taskRow) toEntity() *entities.Task {
	task := r.Task
	if r.OwnerRefID.Valid {
		task.Owner = &entities.UserSummary{
			ID:    r.OwnerRefID.Int64,
			Name:  r.OwnerName.String,
			Email: r.OwnerEmail.String,
		}
	}
	return &task
}

// Create inserts a task and fills in the store-assigned fields
func (r *TaskRepository) Create(ctx context.Context, task *entities.Task) error {
	query := `
		INSERT INTO tasks (title, description, status, priority, user_id, owner_id, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, is_deleted, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.UserID,
		task.OwnerID,
		task.StartDate,
		task.EndDate,
	).Scan(&task.ID, &task.IsDeleted, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

// FindOne loads a single task inside the user's scope
func (r *TaskRepository) FindOne(ctx context.Context, lookup ports.TaskLookup) (*entities.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		WHERE t.id = $1 AND t.user_id = $2 AND ($3 OR t.is_deleted = FALSE)`

	var task entities.Task
	err := r.db.GetContext(ctx, &task, query, lookup.ID, lookup.UserID, lookup.IncludeDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	return &task, nil
}

// Update writes every mutable column of the task
func (r *TaskRepository) Update(ctx context.Context, task *entities.Task) error {
	query := `
		UPDATE tasks
		SET title = $3, description = $4, status = $5, priority = $6, owner_id = $7,
			start_date = $8, end_date = $9, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.OwnerID,
		task.StartDate,
		task.EndDate,
	).Scan(&task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.ErrTaskNotFound
		}
		return fmt.Errorf("update task: %w", err)
	}

	return nil
}

// SoftDelete flags a live task as deleted
func (r *TaskRepository) SoftDelete(ctx context.Context, userID, id int64) error {
	query := `
		UPDATE tasks SET is_deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return entities.ErrTaskNotFound
	}

	return nil
}

// ListActive returns the user's live tasks, newest first
func (r *TaskRepository) ListActive(ctx context.Context, userID int64) ([]*entities.Task, error) {
	query := `
		SELECT ` + taskColumns + `,
			u.id AS owner_ref_id, u.name AS owner_name, u.email AS owner_email
		FROM tasks t
		LEFT JOIN users u ON u.id = t.owner_id
		WHERE t.user_id = $1 AND t.is_deleted = FALSE
		ORDER BY t.created_at DESC, t.id DESC`

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]*entities.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toEntity())
	}

	return tasks, nil
}

// CountByStatus groups all of the user's rows by status, deleted rows included
func (r *TaskRepository) CountByStatus(ctx context.Context, userID int64) (map[entities.TaskStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM tasks
		WHERE user_id = $1
		GROUP BY status`

	var groups []struct {
		Status entities.TaskStatus `db:"status"`
		Count  int                 `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &groups, query, userID); err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}

	counts := make(map[entities.TaskStatus]int, len(groups))
	for _, g := range groups {
		counts[g.Status] = g.Count
	}

	return counts, nil
}
