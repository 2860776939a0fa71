package memory

import (
	"context"
	"sync"

	"github.com/fdg312/report-hub/internal/storage"
)

// RefDataMemoryStorage — in-memory справочники. Предзаполняется тем же
// набором, что и seed-миграция для Postgres.
type RefDataMemoryStorage struct {
	mu          sync.RWMutex
	branches    map[string]storage.Branch
	reportTypes map[string]storage.ReportType
	sources     map[string]bool
	formats     map[string]bool
}

// NewRefDataMemoryStorage создаёт справочники с дефолтным наполнением.
func NewRefDataMemoryStorage() *RefDataMemoryStorage {
	s := &RefDataMemoryStorage{
		branches:    make(map[string]storage.Branch),
		reportTypes: make(map[string]storage.ReportType),
		sources:     make(map[string]bool),
		formats:     make(map[string]bool),
	}

	s.AddBranch(storage.Branch{ID: "0001", Name: "Головной офис"})
	s.AddBranch(storage.Branch{ID: "0002", Name: "Филиал Центральный"})
	s.AddReportType(storage.ReportType{Code: "6406", Name: "Отчёт 6406"})
	s.AddSource("ABS")
	s.AddSource("DWH")
	s.AddFormat("xml")
	s.AddFormat("xlsx")
	s.AddFormat("txt")
	return s
}

func (s *RefDataMemoryStorage) AddBranch(b storage.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[b.ID] = b
}

func (s *RefDataMemoryStorage) AddReportType(rt storage.ReportType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportTypes[rt.Code] = rt
}

func (s *RefDataMemoryStorage) AddSource(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[code] = true
}

func (s *RefDataMemoryStorage) AddFormat(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formats[code] = true
}

// GetBranch возвращает филиал по ID.
func (s *RefDataMemoryStorage) GetBranch(ctx context.Context, id string) (*storage.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branch, exists := s.branches[id]
	if !exists {
		return nil, ErrRefNotFound
	}
	return &branch, nil
}

// GetReportType возвращает тип отчёта по коду.
func (s *RefDataMemoryStorage) GetReportType(ctx context.Context, code string) (*storage.ReportType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rt, exists := s.reportTypes[code]
	if !exists {
		return nil, ErrRefNotFound
	}
	return &rt, nil
}

// SourceExists проверяет код источника.
func (s *RefDataMemoryStorage) SourceExists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sources[code], nil
}

// FormatExists проверяет код формата.
func (s *RefDataMemoryStorage) FormatExists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.formats[code], nil
}
