package memory

import (
	"errors"

	"github.com/fdg312/report-hub/internal/storage"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrFileNotFound   = errors.New("file not found")
	ErrExportNotFound = errors.New("export not found")
	ErrRefNotFound    = errors.New("reference entry not found")
)

// MemoryStorage — in-memory реализация storage.Storage для локального
// запуска и тестов.
type MemoryStorage struct {
	tasks   *TasksMemoryStorage
	files   *TaskFilesMemoryStorage
	exports *ExportsMemoryStorage
	refdata *RefDataMemoryStorage
}

// New создаёт MemoryStorage с предзаполненными справочниками.
func New() *MemoryStorage {
	files := NewTaskFilesMemoryStorage()
	return &MemoryStorage{
		tasks:   NewTasksMemoryStorage(files),
		files:   files,
		exports: NewExportsMemoryStorage(),
		refdata: NewRefDataMemoryStorage(),
	}
}

func (s *MemoryStorage) Tasks() storage.TasksStorage         { return s.tasks }
func (s *MemoryStorage) TaskFiles() storage.TaskFilesStorage { return s.files }
func (s *MemoryStorage) Exports() storage.ExportsStorage     { return s.exports }
func (s *MemoryStorage) RefData() storage.RefDataStorage     { return s.refdata }

func (s *MemoryStorage) Close() error { return nil }

// TasksMem открывает доступ к конкретному типу для тестов.
func (s *MemoryStorage) TasksMem() *TasksMemoryStorage { return s.tasks }

// FilesMem открывает доступ к конкретному типу для тестов.
func (s *MemoryStorage) FilesMem() *TaskFilesMemoryStorage { return s.files }

// RefDataMem открывает доступ к конкретному типу для тестов.
func (s *MemoryStorage) RefDataMem() *RefDataMemoryStorage { return s.refdata }
