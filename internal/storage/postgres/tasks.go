package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fdg312/report-hub/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTasksStorage — Postgres хранилище задач и истории статусов.
type PostgresTasksStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresTasksStorage создаёт новое Postgres хранилище задач.
func NewPostgresTasksStorage(pool *pgxpool.Pool) *PostgresTasksStorage {
	return &PostgresTasksStorage{pool: pool}
}

// CreateTask вставляет задачу и первую history entry в одной транзакции.
func (s *PostgresTasksStorage) CreateTask(ctx context.Context, task *storage.ReportTask, initial *storage.TaskStatusHistoryEntry) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO report_tasks (id, branch_id, report_type, source_code, currency, format, period_start, period_end, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		task.ID,
		task.BranchID,
		task.ReportType,
		task.SourceCode,
		task.Currency,
		task.Format,
		task.PeriodStart,
		task.PeriodEnd,
		task.Status,
		task.CreatedBy,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if initial != nil {
		initial.TaskID = task.ID
		if err := insertHistoryEntry(ctx, tx, initial); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetTask возвращает задачу по ID.
func (s *PostgresTasksStorage) GetTask(ctx context.Context, id uuid.UUID) (*storage.ReportTask, error) {
	query := `
		SELECT id, branch_id, report_type, source_code, currency, format, period_start, period_end, status, created_by, created_at, updated_at
		FROM report_tasks
		WHERE id = $1
	`

	var task storage.ReportTask
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&task.ID,
		&task.BranchID,
		&task.ReportType,
		&task.SourceCode,
		&task.Currency,
		&task.Format,
		&task.PeriodStart,
		&task.PeriodEnd,
		&task.Status,
		&task.CreatedBy,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &task, nil
}

// ListTasks возвращает страницу задач и общее количество по фильтру.
func (s *PostgresTasksStorage) ListTasks(ctx context.Context, filter storage.TaskFilter, limit, offset int) ([]storage.ReportTask, int, error) {
	where, args := buildTaskFilter(filter)

	countQuery := "SELECT COUNT(*) FROM report_tasks" + where
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	query := `
		SELECT id, branch_id, report_type, source_code, currency, format, period_start, period_end, status, created_by, created_at, updated_at
		FROM report_tasks` + where + orderClause(filter.SortBy, filter.SortOrder)

	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []storage.ReportTask
	for rows.Next() {
		var task storage.ReportTask
		err := rows.Scan(
			&task.ID,
			&task.BranchID,
			&task.ReportType,
			&task.SourceCode,
			&task.Currency,
			&task.Format,
			&task.PeriodStart,
			&task.PeriodEnd,
			&task.Status,
			&task.CreatedBy,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, total, rows.Err()
}

// UpdateTaskStatus обновляет статус задачи и добавляет history entry
// в одной транзакции.
func (s *PostgresTasksStorage) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status string, entry *storage.TaskStatusHistoryEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE report_tasks SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}

	if entry != nil {
		entry.TaskID = id
		if err := insertHistoryEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// DeleteTask удаляет задачу; история и файлы удаляются каскадом (FK).
func (s *PostgresTasksStorage) DeleteTask(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM report_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// ListHistory возвращает историю задачи, новые записи первыми.
func (s *PostgresTasksStorage) ListHistory(ctx context.Context, taskID uuid.UUID, limit, offset int) ([]storage.TaskStatusHistoryEntry, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM task_status_history WHERE task_id = $1`, taskID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	query := `
		SELECT id, task_id, status, previous_status, changed_at, changed_by, comment, metadata
		FROM task_status_history
		WHERE task_id = $1
		ORDER BY changed_at DESC
	`
	args := []any{taskID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []storage.TaskStatusHistoryEntry
	for rows.Next() {
		var entry storage.TaskStatusHistoryEntry
		err := rows.Scan(
			&entry.ID,
			&entry.TaskID,
			&entry.Status,
			&entry.PreviousStatus,
			&entry.ChangedAt,
			&entry.ChangedBy,
			&entry.Comment,
			&entry.Metadata,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, total, rows.Err()
}

func insertHistoryEntry(ctx context.Context, tx pgx.Tx, entry *storage.TaskStatusHistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO task_status_history (id, task_id, status, previous_status, changed_at, changed_by, comment, metadata)
		VALUES ($1, $2, $3, $4, NOW(), $5, $6, $7)
		RETURNING changed_at
	`
	err := tx.QueryRow(ctx, query,
		entry.ID,
		entry.TaskID,
		entry.Status,
		entry.PreviousStatus,
		entry.ChangedBy,
		entry.Comment,
		entry.Metadata,
	).Scan(&entry.ChangedAt)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// buildTaskFilter собирает WHERE по нормализованному фильтру.
func buildTaskFilter(f storage.TaskFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", f.Statuses)
	}
	if len(f.BranchIDs) > 0 {
		add("branch_id = ANY($%d)", f.BranchIDs)
	}
	if len(f.ReportTypes) > 0 {
		add("report_type = ANY($%d)", f.ReportTypes)
	}
	if len(f.Formats) > 0 {
		add("format = ANY($%d)", f.Formats)
	}
	if f.PeriodStartFrom != "" {
		add("period_start >= $%d", f.PeriodStartFrom)
	}
	if f.PeriodStartTo != "" {
		add("period_start <= $%d", f.PeriodStartTo)
	}
	if f.CreatedFrom != nil {
		add("created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at <= $%d", *f.CreatedTo)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// orderClause строит ORDER BY только по колонкам из allow-list.
func orderClause(sortBy, sortOrder string) string {
	column := "created_at"
	switch sortBy {
	case "period_start", "branch_id", "status", "report_type", "created_at":
		column = sortBy
	}

	direction := "ASC"
	if strings.EqualFold(sortOrder, "desc") {
		direction = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, direction)
}
