package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReportTask — задача генерации отчёта 6406.
type ReportTask struct {
	ID          uuid.UUID
	BranchID    string
	ReportType  string
	SourceCode  string
	Currency    string
	Format      string
	PeriodStart string // YYYY-MM-DD
	PeriodEnd   string // YYYY-MM-DD
	Status      string // created | started | completed | failed | cancelled
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskStatusHistoryEntry — append-only запись аудита смены статуса.
type TaskStatusHistoryEntry struct {
	ID             uuid.UUID
	TaskID         uuid.UUID
	Status         string
	PreviousStatus *string // nil для записи о создании
	ChangedAt      time.Time
	ChangedBy      *string
	Comment        *string
	Metadata       map[string]string
}

// ReportTaskFile — выходной артефакт задачи.
type ReportTaskFile struct {
	ID           uuid.UUID
	TaskID       uuid.UUID
	FileName     string
	FileSize     int64
	FileType     string
	Status       string // PENDING | PROCESSING | COMPLETED | FAILED
	StorageKey   *string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExportMeta — метаданные сформированной выгрузки списка задач.
type ExportMeta struct {
	ID          uuid.UUID
	FileName    string
	Format      string // csv | pdf
	SizeBytes   int64
	RecordCount int
	ObjectKey   *string // S3 object key (NULL в memory режиме)
	ExpiresAt   time.Time
	CreatedBy   string
	CreatedAt   time.Time
	Data        []byte // payload выгрузки в локальном blob-режиме (NULL в S3 режиме)
}

// Branch — справочник филиалов.
type Branch struct {
	ID   string
	Name string
}

// ReportType — справочник типов отчётов.
type ReportType struct {
	Code string
	Name string
}

// TaskFilter — нормализованный фильтр списка задач.
// Все группы AND-ятся между собой, значения внутри группы OR-ятся.
type TaskFilter struct {
	Statuses        []string
	BranchIDs       []string
	ReportTypes     []string
	Formats         []string
	PeriodStartFrom string // YYYY-MM-DD, включительно
	PeriodStartTo   string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	SortBy          string // колонка из allow-list, по умолчанию created_at
	SortOrder       string // asc | desc
}

// TasksStorage — хранилище задач и истории статусов.
//
// CreateTask и UpdateTaskStatus записывают задачу и history entry как единое
// целое: либо обе записи, либо ни одной.
type TasksStorage interface {
	CreateTask(ctx context.Context, task *ReportTask, initial *TaskStatusHistoryEntry) error

	GetTask(ctx context.Context, id uuid.UUID) (*ReportTask, error)

	// ListTasks возвращает страницу задач и общее количество по фильтру.
	ListTasks(ctx context.Context, filter TaskFilter, limit, offset int) ([]ReportTask, int, error)

	// UpdateTaskStatus обновляет статус задачи и добавляет history entry
	// в одной транзакции.
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status string, entry *TaskStatusHistoryEntry) error

	// DeleteTask удаляет задачу с каскадом истории и файлов.
	DeleteTask(ctx context.Context, id uuid.UUID) error

	// ListHistory возвращает историю задачи, новые записи первыми.
	ListHistory(ctx context.Context, taskID uuid.UUID, limit, offset int) ([]TaskStatusHistoryEntry, int, error)
}

// TaskFilesStorage — хранилище файлов задач.
type TaskFilesStorage interface {
	CreateFile(ctx context.Context, file *ReportTaskFile) error

	GetFile(ctx context.Context, id uuid.UUID) (*ReportTaskFile, error)

	ListFiles(ctx context.Context, taskID uuid.UUID) ([]ReportTaskFile, error)

	UpdateFileStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error

	// SumCompletedSizes возвращает суммарный размер COMPLETED файлов —
	// источник usedBytes для admission check.
	SumCompletedSizes(ctx context.Context) (int64, error)
}

// ExportsStorage — хранилище метаданных выгрузок.
type ExportsStorage interface {
	CreateExport(ctx context.Context, export *ExportMeta) error

	GetExport(ctx context.Context, id uuid.UUID) (*ExportMeta, error)

	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// RefDataStorage — справочные данные (филиалы, типы отчётов, источники, форматы).
type RefDataStorage interface {
	GetBranch(ctx context.Context, id string) (*Branch, error)

	GetReportType(ctx context.Context, code string) (*ReportType, error)

	SourceExists(ctx context.Context, code string) (bool, error)

	FormatExists(ctx context.Context, code string) (bool, error)
}

// Storage — корневой интерфейс: доступ к под-хранилищам и закрытие соединения.
type Storage interface {
	Tasks() TasksStorage
	TaskFiles() TaskFilesStorage
	Exports() ExportsStorage
	RefData() RefDataStorage
	Close() error
}
