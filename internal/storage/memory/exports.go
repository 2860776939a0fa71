package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fdg312/report-hub/internal/storage"
	"github.com/google/uuid"
)

// ExportsMemoryStorage — in-memory хранилище метаданных выгрузок.
// В memory режиме само тело выгрузки лежит в поле Data.
type ExportsMemoryStorage struct {
	mu      sync.RWMutex
	exports map[uuid.UUID]*storage.ExportMeta
}

// NewExportsMemoryStorage создаёт новое in-memory хранилище выгрузок.
func NewExportsMemoryStorage() *ExportsMemoryStorage {
	return &ExportsMemoryStorage{
		exports: make(map[uuid.UUID]*storage.ExportMeta),
	}
}

// CreateExport сохраняет метаданные выгрузки.
func (s *ExportsMemoryStorage) CreateExport(ctx context.Context, export *storage.ExportMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if export.ID == uuid.Nil {
		export.ID = uuid.New()
	}
	export.CreatedAt = time.Now()

	copied := *export
	s.exports[export.ID] = &copied
	return nil
}

// GetExport возвращает выгрузку по ID.
func (s *ExportsMemoryStorage) GetExport(ctx context.Context, id uuid.UUID) (*storage.ExportMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	export, exists := s.exports[id]
	if !exists {
		return nil, ErrExportNotFound
	}
	copied := *export
	return &copied, nil
}

// DeleteExpired удаляет выгрузки с истёкшим сроком и возвращает их число.
func (s *ExportsMemoryStorage) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.exports {
		if e.ExpiresAt.Before(now) {
			delete(s.exports, id)
			removed++
		}
	}
	return removed, nil
}
