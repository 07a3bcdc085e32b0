package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the owner-scoped persistence used by Handler.
type Store interface {
	List(ctx context.Context, ownerID string) ([]Task, error)
	Get(ctx context.Context, ownerID, id string) (Task, error)
	Create(ctx context.Context, ownerID string, input CreateInput) (Task, error)
	Update(ctx context.Context, ownerID, id string, patch PatchInput) (Task, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const taskColumns = `id, owner_id, title, description, completed, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *Repository) List(ctx context.Context, ownerID string) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, nil
}

func (r *Repository) Get(ctx context.Context, ownerID, id string) (Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("query task: %w", err)
	}

	return t, nil
}

func (r *Repository) Create(ctx context.Context, ownerID string, input CreateInput) (Task, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Task{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	t := Task{
		ID:          id.String(),
		OwnerID:     ownerID,
		Title:       input.Title,
		Description: input.Description,
		Completed:   input.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, owner_id, title, description, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.OwnerID, t.Title, t.Description, t.Completed, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}

	return t, nil
}

// Update applies the non-nil fields of patch. An empty patch returns the
// stored task untouched.
func (r *Repository) Update(ctx context.Context, ownerID, id string, patch PatchInput) (Task, error) {
	if patch.Empty() {
		return r.Get(ctx, ownerID, id)
	}

	t, err := scanTask(r.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET title = COALESCE($3, title),
			description = COALESCE($4, description),
			completed = COALESCE($5, completed),
			updated_at = $6
		WHERE id = $1 AND owner_id = $2
		RETURNING `+taskColumns,
		id, ownerID, patch.Title, patch.Description, patch.Completed, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("update task: %w", err)
	}

	return t, nil
}

func (r *Repository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
