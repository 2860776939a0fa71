package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fdg312/report-hub/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresExportsStorage — Postgres хранилище метаданных выгрузок.
type PostgresExportsStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresExportsStorage создаёт новое Postgres хранилище выгрузок.
func NewPostgresExportsStorage(pool *pgxpool.Pool) *PostgresExportsStorage {
	return &PostgresExportsStorage{pool: pool}
}

// CreateExport сохраняет метаданные выгрузки.
func (s *PostgresExportsStorage) CreateExport(ctx context.Context, export *storage.ExportMeta) error {
	if export.ID == uuid.Nil {
		export.ID = uuid.New()
	}

	query := `
		INSERT INTO report_exports (id, file_name, format, size_bytes, record_count, object_key, data, expires_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`
	err := s.pool.QueryRow(ctx, query,
		export.ID,
		export.FileName,
		export.Format,
		export.SizeBytes,
		export.RecordCount,
		export.ObjectKey,
		export.Data,
		export.ExpiresAt,
		export.CreatedBy,
	).Scan(&export.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create export: %w", err)
	}
	return nil
}

// GetExport возвращает выгрузку по ID.
func (s *PostgresExportsStorage) GetExport(ctx context.Context, id uuid.UUID) (*storage.ExportMeta, error) {
	query := `
		SELECT id, file_name, format, size_bytes, record_count, object_key, data, expires_at, created_by, created_at
		FROM report_exports
		WHERE id = $1
	`

	var export storage.ExportMeta
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&export.ID,
		&export.FileName,
		&export.Format,
		&export.SizeBytes,
		&export.RecordCount,
		&export.ObjectKey,
		&export.Data,
		&export.ExpiresAt,
		&export.CreatedBy,
		&export.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExportNotFound
		}
		return nil, fmt.Errorf("failed to get export: %w", err)
	}

	return &export, nil
}

// DeleteExpired удаляет выгрузки с истёкшим сроком.
func (s *PostgresExportsStorage) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM report_exports WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired exports: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
