package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fdg312/report-hub/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRefDataStorage — Postgres справочники.
type PostgresRefDataStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresRefDataStorage создаёт новое Postgres хранилище справочников.
func NewPostgresRefDataStorage(pool *pgxpool.Pool) *PostgresRefDataStorage {
	return &PostgresRefDataStorage{pool: pool}
}

// GetBranch возвращает филиал по ID.
func (s *PostgresRefDataStorage) GetBranch(ctx context.Context, id string) (*storage.Branch, error) {
	var branch storage.Branch
	err := s.pool.QueryRow(ctx,
		`SELECT id, name FROM branches WHERE id = $1`, id,
	).Scan(&branch.ID, &branch.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefNotFound
		}
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	return &branch, nil
}

// GetReportType возвращает тип отчёта по коду.
func (s *PostgresRefDataStorage) GetReportType(ctx context.Context, code string) (*storage.ReportType, error) {
	var rt storage.ReportType
	err := s.pool.QueryRow(ctx,
		`SELECT code, name FROM report_types WHERE code = $1`, code,
	).Scan(&rt.Code, &rt.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefNotFound
		}
		return nil, fmt.Errorf("failed to get report type: %w", err)
	}
	return &rt, nil
}

// SourceExists проверяет код источника.
func (s *PostgresRefDataStorage) SourceExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM source_codes WHERE code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check source code: %w", err)
	}
	return exists, nil
}

// FormatExists проверяет код формата.
func (s *PostgresRefDataStorage) FormatExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM report_formats WHERE code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check format: %w", err)
	}
	return exists, nil
}
