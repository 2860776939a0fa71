package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fdg312/report-hub/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTaskFilesStorage — Postgres хранилище файлов задач.
type PostgresTaskFilesStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresTaskFilesStorage создаёт новое Postgres хранилище файлов.
func NewPostgresTaskFilesStorage(pool *pgxpool.Pool) *PostgresTaskFilesStorage {
	return &PostgresTaskFilesStorage{pool: pool}
}

// CreateFile создаёт запись о файле.
func (s *PostgresTaskFilesStorage) CreateFile(ctx context.Context, file *storage.ReportTaskFile) error {
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}

	query := `
		INSERT INTO report_task_files (id, task_id, file_name, file_size, file_type, status, storage_key, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		file.ID,
		file.TaskID,
		file.FileName,
		file.FileSize,
		file.FileType,
		file.Status,
		file.StorageKey,
		file.ErrorMessage,
	).Scan(&file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task file: %w", err)
	}
	return nil
}

// GetFile возвращает файл по ID.
func (s *PostgresTaskFilesStorage) GetFile(ctx context.Context, id uuid.UUID) (*storage.ReportTaskFile, error) {
	query := `
		SELECT id, task_id, file_name, file_size, file_type, status, storage_key, error_message, created_at, updated_at
		FROM report_task_files
		WHERE id = $1
	`

	var file storage.ReportTaskFile
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&file.ID,
		&file.TaskID,
		&file.FileName,
		&file.FileSize,
		&file.FileType,
		&file.Status,
		&file.StorageKey,
		&file.ErrorMessage,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get task file: %w", err)
	}

	return &file, nil
}

// ListFiles возвращает файлы задачи, новые первыми.
func (s *PostgresTaskFilesStorage) ListFiles(ctx context.Context, taskID uuid.UUID) ([]storage.ReportTaskFile, error) {
	query := `
		SELECT id, task_id, file_name, file_size, file_type, status, storage_key, error_message, created_at, updated_at
		FROM report_task_files
		WHERE task_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task files: %w", err)
	}
	defer rows.Close()

	var files []storage.ReportTaskFile
	for rows.Next() {
		var file storage.ReportTaskFile
		err := rows.Scan(
			&file.ID,
			&file.TaskID,
			&file.FileName,
			&file.FileSize,
			&file.FileType,
			&file.Status,
			&file.StorageKey,
			&file.ErrorMessage,
			&file.CreatedAt,
			&file.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task file: %w", err)
		}
		files = append(files, file)
	}

	return files, rows.Err()
}

// UpdateFileStatus обновляет статус конвертации файла.
func (s *PostgresTaskFilesStorage) UpdateFileStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE report_task_files SET status = $1, error_message = $2, updated_at = NOW() WHERE id = $3`,
		status, errorMessage, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update file status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// SumCompletedSizes возвращает суммарный размер COMPLETED файлов.
func (s *PostgresTaskFilesStorage) SumCompletedSizes(ctx context.Context) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(file_size), 0) FROM report_task_files WHERE status = 'COMPLETED'`,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum file sizes: %w", err)
	}
	return total, nil
}
