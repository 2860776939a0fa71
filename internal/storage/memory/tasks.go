package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fdg312/report-hub/internal/storage"
	"github.com/google/uuid"
)

// TasksMemoryStorage — in-memory хранилище задач и истории статусов.
// Задача и её history entry мутируются под одним мьютексом, что даёт
// требуемую атомарность "обе записи или ни одной".
type TasksMemoryStorage struct {
	mu      sync.RWMutex
	tasks   map[uuid.UUID]*storage.ReportTask
	history map[uuid.UUID][]storage.TaskStatusHistoryEntry // taskID -> entries (append order)
	files   *TaskFilesMemoryStorage                        // для каскадного удаления
}

// NewTasksMemoryStorage создаёт новое in-memory хранилище задач.
func NewTasksMemoryStorage(files *TaskFilesMemoryStorage) *TasksMemoryStorage {
	return &TasksMemoryStorage{
		tasks:   make(map[uuid.UUID]*storage.ReportTask),
		history: make(map[uuid.UUID][]storage.TaskStatusHistoryEntry),
		files:   files,
	}
}

// CreateTask вставляет задачу вместе с первой history entry.
func (s *TasksMemoryStorage) CreateTask(ctx context.Context, task *storage.ReportTask, initial *storage.TaskStatusHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	copied := *task
	s.tasks[task.ID] = &copied

	if initial != nil {
		if initial.ID == uuid.Nil {
			initial.ID = uuid.New()
		}
		initial.TaskID = task.ID
		if initial.ChangedAt.IsZero() {
			initial.ChangedAt = now
		}
		s.history[task.ID] = append(s.history[task.ID], *initial)
	}
	return nil
}

// GetTask возвращает задачу по ID.
func (s *TasksMemoryStorage) GetTask(ctx context.Context, id uuid.UUID) (*storage.ReportTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

// ListTasks возвращает страницу задач и общее количество по фильтру.
func (s *TasksMemoryStorage) ListTasks(ctx context.Context, filter storage.TaskFilter, limit, offset int) ([]storage.ReportTask, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []storage.ReportTask
	for _, t := range s.tasks {
		if matchesFilter(t, filter) {
			filtered = append(filtered, *t)
		}
	}

	sortTasks(filtered, filter.SortBy, filter.SortOrder)

	total := len(filtered)
	if offset > total {
		return []storage.ReportTask{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return filtered[offset:end], total, nil
}

// UpdateTaskStatus обновляет статус и добавляет history entry атомарно.
func (s *TasksMemoryStorage) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status string, entry *storage.TaskStatusHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return ErrTaskNotFound
	}

	task.Status = status
	task.UpdatedAt = time.Now()

	if entry != nil {
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		entry.TaskID = id
		if entry.ChangedAt.IsZero() {
			entry.ChangedAt = time.Now()
		}
		s.history[id] = append(s.history[id], *entry)
	}
	return nil
}

// DeleteTask удаляет задачу, её историю и файлы.
func (s *TasksMemoryStorage) DeleteTask(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; !exists {
		return ErrTaskNotFound
	}
	delete(s.tasks, id)
	delete(s.history, id)

	if s.files != nil {
		s.files.deleteByTask(id)
	}
	return nil
}

// ListHistory возвращает историю задачи, новые записи первыми.
func (s *TasksMemoryStorage) ListHistory(ctx context.Context, taskID uuid.UUID, limit, offset int) ([]storage.TaskStatusHistoryEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[taskID]
	sorted := make([]storage.TaskStatusHistoryEntry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ChangedAt.After(sorted[j].ChangedAt)
	})

	total := len(sorted)
	if offset > total {
		return []storage.TaskStatusHistoryEntry{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return sorted[offset:end], total, nil
}

func matchesFilter(t *storage.ReportTask, f storage.TaskFilter) bool {
	if len(f.Statuses) > 0 && !containsString(f.Statuses, t.Status) {
		return false
	}
	if len(f.BranchIDs) > 0 && !containsString(f.BranchIDs, t.BranchID) {
		return false
	}
	if len(f.ReportTypes) > 0 && !containsString(f.ReportTypes, t.ReportType) {
		return false
	}
	if len(f.Formats) > 0 && !containsString(f.Formats, t.Format) {
		return false
	}
	if f.PeriodStartFrom != "" && t.PeriodStart < f.PeriodStartFrom {
		return false
	}
	if f.PeriodStartTo != "" && t.PeriodStart > f.PeriodStartTo {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

func sortTasks(tasks []storage.ReportTask, sortBy, sortOrder string) {
	desc := strings.EqualFold(sortOrder, "desc")

	less := func(a, b storage.ReportTask) bool {
		switch sortBy {
		case "period_start":
			if a.PeriodStart != b.PeriodStart {
				return a.PeriodStart < b.PeriodStart
			}
		case "branch_id":
			if a.BranchID != b.BranchID {
				return a.BranchID < b.BranchID
			}
		case "status":
			if a.Status != b.Status {
				return a.Status < b.Status
			}
		case "report_type":
			if a.ReportType != b.ReportType {
				return a.ReportType < b.ReportType
			}
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if desc {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
}

func containsString(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
