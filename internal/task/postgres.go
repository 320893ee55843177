package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/apperror"
	"taskboard/internal/auth"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// sortColumns whitelists sortable fields; user input never reaches the query
// as an identifier.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
}

func (r *Repository) List(ctx context.Context, viewer auth.Identity, query ListQuery) ([]Task, int, error) {
	column, ok := sortColumns[query.Sort]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(query.Order, "asc") {
		direction = "ASC"
	}

	conditions := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if !viewer.IsAdmin() {
		args = append(args, viewer.UserID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if query.Status != "" {
		args = append(args, query.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM tasks " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	offset := (query.Page - 1) * query.Limit
	listQuery := fmt.Sprintf(`
		SELECT id, title, description, status, owner_id, created_at, updated_at
		FROM tasks %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, where, column, direction, len(args)+1, len(args)+2)
	args = append(args, query.Limit, offset)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, total, nil
}

func (r *Repository) Create(ctx context.Context, input Input, ownerID string) (Task, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Task{}, fmt.Errorf("generate task id: %w", err)
	}

	now := time.Now().UTC()
	t := Task{
		ID:        id.String(),
		Status:    StatusTodo,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.Title != nil {
		t.Title = *input.Title
	}
	if input.Description != nil {
		t.Description = *input.Description
	}
	if input.Status != nil {
		t.Status = *input.Status
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, status, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.Title, t.Description, t.Status, t.OwnerID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}

	return t, nil
}

func (r *Repository) Get(ctx context.Context, id string, viewer auth.Identity) (Task, error) {
	var t Task
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, status, owner_id, created_at, updated_at
		FROM tasks
		WHERE id = $1 AND (owner_id = $2 OR $3)
	`, id, viewer.UserID, viewer.IsAdmin()).
		Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, apperror.NotFound("task not found")
		}
		return Task{}, fmt.Errorf("query task: %w", err)
	}

	return t, nil
}

func (r *Repository) Update(ctx context.Context, id string, input Input, viewer auth.Identity) (Task, error) {
	var t Task
	err := r.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET title = COALESCE($4, title),
		    description = COALESCE($5, description),
		    status = COALESCE($6, status),
		    updated_at = $7
		WHERE id = $1 AND (owner_id = $2 OR $3)
		RETURNING id, title, description, status, owner_id, created_at, updated_at
	`, id, viewer.UserID, viewer.IsAdmin(), input.Title, input.Description, input.Status, time.Now().UTC()).
		Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, apperror.NotFound("task not found")
		}
		return Task{}, fmt.Errorf("update task: %w", err)
	}

	return t, nil
}

func (r *Repository) Delete(ctx context.Context, id string, viewer auth.Identity) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE id = $1 AND (owner_id = $2 OR $3)
	`, id, viewer.UserID, viewer.IsAdmin())
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("task not found")
	}

	return nil
}
