package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fdg312/report-hub/internal/storage"
	"github.com/google/uuid"
)

// TaskFilesMemoryStorage — in-memory хранилище файлов задач.
type TaskFilesMemoryStorage struct {
	mu    sync.RWMutex
	files map[uuid.UUID]*storage.ReportTaskFile
}

// NewTaskFilesMemoryStorage создаёт новое in-memory хранилище файлов.
func NewTaskFilesMemoryStorage() *TaskFilesMemoryStorage {
	return &TaskFilesMemoryStorage{
		files: make(map[uuid.UUID]*storage.ReportTaskFile),
	}
}

// CreateFile создаёт запись о файле.
func (s *TaskFilesMemoryStorage) CreateFile(ctx context.Context, file *storage.ReportTaskFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	now := time.Now()
	file.CreatedAt = now
	file.UpdatedAt = now

	copied := *file
	s.files[file.ID] = &copied
	return nil
}

// GetFile возвращает файл по ID.
func (s *TaskFilesMemoryStorage) GetFile(ctx context.Context, id uuid.UUID) (*storage.ReportTaskFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.files[id]
	if !exists {
		return nil, ErrFileNotFound
	}
	copied := *file
	return &copied, nil
}

// ListFiles возвращает файлы задачи, новые первыми.
func (s *TaskFilesMemoryStorage) ListFiles(ctx context.Context, taskID uuid.UUID) ([]storage.ReportTaskFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []storage.ReportTaskFile
	for _, f := range s.files {
		if f.TaskID == taskID {
			result = append(result, *f)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateFileStatus обновляет статус конвертации файла.
func (s *TaskFilesMemoryStorage) UpdateFileStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, exists := s.files[id]
	if !exists {
		return ErrFileNotFound
	}
	file.Status = status
	file.ErrorMessage = errorMessage
	file.UpdatedAt = time.Now()
	return nil
}

// SumCompletedSizes возвращает суммарный размер COMPLETED файлов.
func (s *TaskFilesMemoryStorage) SumCompletedSizes(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, f := range s.files {
		if f.Status == "COMPLETED" {
			total += f.FileSize
		}
	}
	return total, nil
}

// deleteByTask удаляет все файлы задачи (каскад при удалении задачи).
func (s *TaskFilesMemoryStorage) deleteByTask(taskID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, f := range s.files {
		if f.TaskID == taskID {
			delete(s.files, id)
		}
	}
}
