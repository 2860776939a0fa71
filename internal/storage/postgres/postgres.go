package postgres

import (
	"context"
	"errors"

	"github.com/fdg312/report-hub/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrFileNotFound   = errors.New("file not found")
	ErrExportNotFound = errors.New("export not found")
	ErrRefNotFound    = errors.New("reference entry not found")
)

// PostgresStorage — Postgres реализация storage.Storage.
type PostgresStorage struct {
	pool    *pgxpool.Pool
	tasks   *PostgresTasksStorage
	files   *PostgresTaskFilesStorage
	exports *PostgresExportsStorage
	refdata *PostgresRefDataStorage
}

// New создаёт PostgresStorage и проверяет соединение.
func New(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStorage{
		pool:    pool,
		tasks:   NewPostgresTasksStorage(pool),
		files:   NewPostgresTaskFilesStorage(pool),
		exports: NewPostgresExportsStorage(pool),
		refdata: NewPostgresRefDataStorage(pool),
	}, nil
}

func (s *PostgresStorage) Tasks() storage.TasksStorage         { return s.tasks }
func (s *PostgresStorage) TaskFiles() storage.TaskFilesStorage { return s.files }
func (s *PostgresStorage) Exports() storage.ExportsStorage     { return s.exports }
func (s *PostgresStorage) RefData() storage.RefDataStorage     { return s.refdata }

// Close закрывает пул соединений.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
