package youtrack

import (
	"time"

	"github.com/google/uuid"
)

// Типы отложенных операций.
const (
	OpCreateIssue = "create_issue"
	OpLinkIssue   = "link_issue"
	OpUnlinkIssue = "unlink_issue"
)

// Статусы операции в леджере.
const (
	OpStatusPending    = "pending"
	OpStatusProcessing = "processing"
	OpStatusCompleted  = "completed"
	OpStatusFailed     = "failed"
)

// OperationPayload — параметры удалённого вызова; заполненность полей
// зависит от типа операции.
type OperationPayload struct {
	TaskID      string   `json:"taskId,omitempty"`
	TemplateID  string   `json:"templateId,omitempty"`
	IssueID     string   `json:"issueId,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Operation — отложенная операция синхронизации с YouTrack.
type Operation struct {
	ID        uuid.UUID        `json:"id"`
	Type      string           `json:"type"`
	Status    string           `json:"status"`
	Payload   OperationPayload `json:"payload"`
	Attempts  int              `json:"attempts"`
	LastError *string          `json:"lastError,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// CreateIssueRequest — запрос создания issue по задаче.
type CreateIssueRequest struct {
	TaskID      string   `json:"taskId"`
	TemplateID  string   `json:"templateId"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// SyncResult — результат синхронной попытки: либо выполнено сразу,
// либо операция поставлена в очередь.
type SyncResult struct {
	Queued      bool   `json:"queued"`
	IssueID     string `json:"issueId,omitempty"`
	OperationID string `json:"operationId,omitempty"`
}

// OperationError — ошибка обработки одной операции.
type OperationError struct {
	OperationID string `json:"operationId"`
	Error       string `json:"error"`
}

// ProcessResult — итог одного прохода по pending операциям.
type ProcessResult struct {
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	Errors    []OperationError `json:"errors"`
}
