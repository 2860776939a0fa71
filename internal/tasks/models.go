package tasks

import (
	"strings"
	"time"

	"github.com/fdg312/report-hub/internal/storage"
)

// Статусы задачи формирования отчёта 6406.
const (
	StatusCreated   = "created"
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// CancelReasonKilledDapp — код причины отмены, пишется в metadata history entry.
const CancelReasonKilledDapp = "KILLED_DAPP"

// allowedTransitions перечисляет допустимые переходы. Терминальные статусы
// (completed, failed, cancelled) отсутствуют в карте: из них переходов нет.
var allowedTransitions = map[string][]string{
	StatusCreated: {StatusStarted, StatusCancelled},
	StatusStarted: {StatusCompleted, StatusFailed, StatusCancelled},
}

func transitionAllowed(from, to string) bool {
	for _, target := range allowedTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// CreateTaskRequest — запрос создания задачи.
type CreateTaskRequest struct {
	BranchID    string `json:"branchId"`
	ReportType  string `json:"reportType"`
	SourceCode  string `json:"sourceCode"`
	Currency    string `json:"currency"`
	Format      string `json:"format"`
	PeriodStart string `json:"periodStart"`
	PeriodEnd   string `json:"periodEnd"`
}

// TaskResponse — задача в ответах API.
type TaskResponse struct {
	ID          string    `json:"id"`
	BranchID    string    `json:"branchId"`
	ReportType  string    `json:"reportType"`
	SourceCode  string    `json:"sourceCode"`
	Currency    string    `json:"currency"`
	Format      string    `json:"format"`
	PeriodStart string    `json:"periodStart"`
	PeriodEnd   string    `json:"periodEnd"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toTaskResponse(task *storage.ReportTask) TaskResponse {
	return TaskResponse{
		ID:          task.ID.String(),
		BranchID:    task.BranchID,
		ReportType:  task.ReportType,
		SourceCode:  task.SourceCode,
		Currency:    task.Currency,
		Format:      task.Format,
		PeriodStart: task.PeriodStart,
		PeriodEnd:   task.PeriodEnd,
		Status:      task.Status,
		CreatedBy:   task.CreatedBy,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// ListTasksResponse — страница задач.
type ListTasksResponse struct {
	Items  []TaskResponse `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// HistoryEntryResponse — запись истории статусов в ответах API.
type HistoryEntryResponse struct {
	ID             string            `json:"id"`
	TaskID         string            `json:"taskId"`
	Status         string            `json:"status"`
	PreviousStatus *string           `json:"previousStatus"`
	ChangedAt      time.Time         `json:"changedAt"`
	ChangedBy      *string           `json:"changedBy"`
	Comment        *string           `json:"comment"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func toHistoryResponse(entry storage.TaskStatusHistoryEntry) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:             entry.ID.String(),
		TaskID:         entry.TaskID.String(),
		Status:         entry.Status,
		PreviousStatus: entry.PreviousStatus,
		ChangedAt:      entry.ChangedAt,
		ChangedBy:      entry.ChangedBy,
		Comment:        entry.Comment,
		Metadata:       entry.Metadata,
	}
}

// HistoryResponse — страница истории статусов.
type HistoryResponse struct {
	Items  []HistoryEntryResponse `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// BulkRequest — список идентификаторов для массовой операции.
type BulkRequest struct {
	IDs []string `json:"ids"`
}

// BulkResult — результат операции над одним идентификатором.
type BulkResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// BulkResponse — результаты массовой операции, в порядке входного списка.
type BulkResponse struct {
	Results []BulkResult `json:"results"`
}

// normalizeListParam приводит значение фильтра "скаляр или список" к списку:
// повторяющиеся query-параметры и значения через запятую дают один результат.
func normalizeListParam(values []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}
