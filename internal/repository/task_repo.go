package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskmanager/internal/model"
	"taskmanager/pkg/db"
)

const taskColumns = `id, user_id, title, description, to_char(due_date, 'YYYY-MM-DD'), priority, status, created_at, updated_at`

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func (r *TaskRepository) Insert(ctx context.Context, t *model.Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	r.logger.Debug("Inserting task",
		zap.String("user_id", t.UserID.String()),
		zap.String("title", t.Title),
		zap.String("status", string(t.Status)),
	)
	query := `
        INSERT INTO tasks (id, user_id, title, description, due_date, priority, status)
        VALUES ($1, $2, $3, $4, $5::date, $6, $7)
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		t.ID,
		t.UserID,
		t.Title,
		t.Description,
		t.DueDate,
		t.Priority,
		t.Status,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Error(err),
			zap.String("user_id", t.UserID.String()),
		)
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) List(ctx context.Context, f model.TaskFilter) ([]model.Task, error) {
	query, args := buildListQuery(f)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query tasks",
			zap.Error(err),
			zap.String("user_id", f.UserID.String()),
		)
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Get returns the task only when it belongs to userID.
func (r *TaskRepository) Get(ctx context.Context, userID, id uuid.UUID) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`
	t, err := scanTask(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Update applies the patch in a single statement conditioned on id and
// owner, so there is no read-modify-write window.
func (r *TaskRepository) Update(ctx context.Context, userID, id uuid.UUID, patch model.TaskPatch) (*model.Task, error) {
	query, args := buildUpdateQuery(userID, id, patch)
	t, err := scanTask(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to update task",
			zap.Error(err),
			zap.String("task_id", id.String()),
		)
		return nil, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

func (r *TaskRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		r.logger.Error("Failed to delete task",
			zap.Error(err),
			zap.String("task_id", id.String()),
		)
		return fmt.Errorf("delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.DueDate,
		&t.Priority,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// argList numbers positional parameters as they are appended.
type argList struct {
	args []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

func buildListQuery(f model.TaskFilter) (string, []any) {
	var (
		sb   strings.Builder
		args argList
	)

	sb.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ` + args.add(f.UserID))

	if f.Status != nil {
		sb.WriteString(` AND status = ` + args.add(*f.Status))
	}
	if f.Priority != nil {
		sb.WriteString(` AND priority = ` + args.add(*f.Priority))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := args.add("%" + escapeLike(q) + "%")
		sb.WriteString(` AND (title ILIKE ` + p + ` ESCAPE '\' OR description ILIKE ` + p + ` ESCAPE '\')`)
	}

	sort := f.Sort
	if sort.Field == "" {
		sort = model.DefaultTaskSort
	}
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}
	sb.WriteString(` ORDER BY ` + sortExpr(sort.Field) + ` ` + dir + ` NULLS LAST, created_at ASC, id ASC`)

	return sb.String(), args.args
}

// sortExpr only ever returns fixed SQL fragments; the field has already been
// restricted to model.SortField values.
func sortExpr(field model.SortField) string {
	switch field {
	case model.SortPriority:
		return rankExpr("priority", model.Priorities)
	case model.SortStatus:
		return rankExpr("status", model.Statuses)
	case model.SortTitle:
		return "lower(title)"
	case model.SortCreatedAt:
		return "created_at"
	case model.SortUpdatedAt:
		return "updated_at"
	default:
		return "due_date"
	}
}

type ranked interface {
	~string
	Rank() int
}

func rankExpr[T ranked](column string, values []T) string {
	var sb strings.Builder
	sb.WriteString("CASE " + column)
	for _, v := range values {
		sb.WriteString(fmt.Sprintf(" WHEN '%s' THEN %d", strings.ReplaceAll(string(v), "'", "''"), v.Rank()))
	}
	sb.WriteString(" END")
	return sb.String()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func buildUpdateQuery(userID, id uuid.UUID, patch model.TaskPatch) (string, []any) {
	var (
		sets []string
		args argList
	)
	idParam := args.add(id)
	ownerParam := args.add(userID)

	if patch.Title != nil {
		sets = append(sets, "title = "+args.add(*patch.Title))
	}
	if patch.Description != nil {
		sets = append(sets, "description = "+args.add(*patch.Description))
	}
	if patch.ClearDueDate {
		sets = append(sets, "due_date = NULL")
	} else if patch.DueDate != nil {
		sets = append(sets, "due_date = "+args.add(*patch.DueDate)+"::date")
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = "+args.add(*patch.Priority))
	}
	if patch.Status != nil {
		sets = append(sets, "status = "+args.add(*patch.Status))
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") +
		` WHERE id = ` + idParam + ` AND user_id = ` + ownerParam +
		` RETURNING ` + taskColumns
	return query, args.args
}
