package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fdg312/report-hub/internal/apperr"
	"github.com/fdg312/report-hub/internal/storage"
	"github.com/fdg312/report-hub/internal/storage/memory"
	"github.com/fdg312/report-hub/internal/storage/postgres"
	"github.com/google/uuid"
)

// Service содержит бизнес-логику жизненного цикла задач отчёта 6406.
type Service struct {
	storage            storage.Storage
	admission          AdmissionChecker
	taskEstimatedBytes int64
}

// NewService создаёт новый сервис задач. admission может быть nil, тогда
// массовый запуск не проверяет место.
func NewService(store storage.Storage, admission AdmissionChecker, taskEstimatedBytes int64) *Service {
	return &Service{
		storage:            store,
		admission:          admission,
		taskEstimatedBytes: taskEstimatedBytes,
	}
}

// CreateTask валидирует справочные данные и создаёт задачу в статусе created
// вместе с первой history entry (previousStatus = null).
func (s *Service) CreateTask(ctx context.Context, req CreateTaskRequest, actor string) (*storage.ReportTask, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	if _, err := s.storage.RefData().GetBranch(ctx, req.BranchID); err != nil {
		if isRefNotFound(err) {
			return nil, apperr.NotFound("branch_not_found", fmt.Sprintf("branch %q does not exist", req.BranchID))
		}
		return nil, fmt.Errorf("failed to check branch: %w", err)
	}
	if _, err := s.storage.RefData().GetReportType(ctx, req.ReportType); err != nil {
		if isRefNotFound(err) {
			return nil, apperr.NotFound("report_type_not_found", fmt.Sprintf("report type %q does not exist", req.ReportType))
		}
		return nil, fmt.Errorf("failed to check report type: %w", err)
	}
	if ok, err := s.storage.RefData().SourceExists(ctx, req.SourceCode); err != nil {
		return nil, fmt.Errorf("failed to check source code: %w", err)
	} else if !ok {
		return nil, apperr.NotFound("source_not_found", fmt.Sprintf("source code %q does not exist", req.SourceCode))
	}
	if ok, err := s.storage.RefData().FormatExists(ctx, req.Format); err != nil {
		return nil, fmt.Errorf("failed to check format: %w", err)
	} else if !ok {
		return nil, apperr.NotFound("format_not_found", fmt.Sprintf("format %q does not exist", req.Format))
	}

	task := &storage.ReportTask{
		ID:          uuid.New(),
		BranchID:    req.BranchID,
		ReportType:  req.ReportType,
		SourceCode:  req.SourceCode,
		Currency:    req.Currency,
		Format:      req.Format,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		Status:      StatusCreated,
		CreatedBy:   actor,
	}
	initial := &storage.TaskStatusHistoryEntry{
		Status:         StatusCreated,
		PreviousStatus: nil,
		ChangedBy:      optional(actor),
	}

	if err := s.storage.Tasks().CreateTask(ctx, task, initial); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// GetTask возвращает задачу по ID.
func (s *Service) GetTask(ctx context.Context, id uuid.UUID) (*storage.ReportTask, error) {
	task, err := s.storage.Tasks().GetTask(ctx, id)
	if err != nil {
		if isTaskNotFound(err) {
			return nil, apperr.NotFound("task_not_found", fmt.Sprintf("task %s does not exist", id))
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks возвращает страницу задач по фильтру.
func (s *Service) ListTasks(ctx context.Context, filter storage.TaskFilter, limit, offset int) ([]storage.ReportTask, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	tasks, total, err := s.storage.Tasks().ListTasks(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// Transition применяет переход статуса. Обновление задачи и history entry
// происходят как одно целое; конфликтный переход ничего не мутирует.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target, actor string, comment *string, metadata map[string]string) (*storage.ReportTask, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(task.Status, target) {
		return nil, apperr.Conflict("invalid_transition",
			fmt.Sprintf("cannot transition task from %q to %q", task.Status, target))
	}

	previous := task.Status
	entry := &storage.TaskStatusHistoryEntry{
		Status:         target,
		PreviousStatus: &previous,
		ChangedBy:      optional(actor),
		Comment:        comment,
		Metadata:       metadata,
	}
	if err := s.storage.Tasks().UpdateTaskStatus(ctx, id, target, entry); err != nil {
		if isTaskNotFound(err) {
			return nil, apperr.NotFound("task_not_found", fmt.Sprintf("task %s does not exist", id))
		}
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	// Перечитываем задачу: updated_at проставляет хранилище.
	return s.GetTask(ctx, id)
}

// Start переводит задачу в started.
func (s *Service) Start(ctx context.Context, id uuid.UUID, actor string) (*storage.ReportTask, error) {
	return s.Transition(ctx, id, StatusStarted, actor, nil, nil)
}

// Cancel переводит задачу в cancelled с кодом причины KILLED_DAPP.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor string) (*storage.ReportTask, error) {
	return s.Transition(ctx, id, StatusCancelled, actor, nil,
		map[string]string{"cancel_reason": CancelReasonKilledDapp})
}

// Delete удаляет задачу. Активная (started) задача не удаляется.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task.Status == StatusStarted {
		return apperr.Conflict("task_active", "cannot delete a task that is being processed")
	}

	if err := s.storage.Tasks().DeleteTask(ctx, id); err != nil {
		if isTaskNotFound(err) {
			return apperr.NotFound("task_not_found", fmt.Sprintf("task %s does not exist", id))
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// History возвращает историю статусов задачи, новые записи первыми.
func (s *Service) History(ctx context.Context, id uuid.UUID, limit, offset int) ([]storage.TaskStatusHistoryEntry, int, error) {
	if _, err := s.GetTask(ctx, id); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	entries, total, err := s.storage.Tasks().ListHistory(ctx, id, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, total, nil
}

func validateCreateRequest(req CreateTaskRequest) error {
	var fields []apperr.FieldError
	require := func(path, value string) {
		if value == "" {
			fields = append(fields, apperr.FieldError{Path: path, Message: "is required"})
		}
	}
	require("branchId", req.BranchID)
	require("reportType", req.ReportType)
	require("sourceCode", req.SourceCode)
	require("currency", req.Currency)
	require("format", req.Format)
	require("periodStart", req.PeriodStart)
	require("periodEnd", req.PeriodEnd)

	if req.PeriodStart != "" && !validDate(req.PeriodStart) {
		fields = append(fields, apperr.FieldError{Path: "periodStart", Message: "must be a YYYY-MM-DD date"})
	}
	if req.PeriodEnd != "" && !validDate(req.PeriodEnd) {
		fields = append(fields, apperr.FieldError{Path: "periodEnd", Message: "must be a YYYY-MM-DD date"})
	}
	if validDate(req.PeriodStart) && validDate(req.PeriodEnd) && req.PeriodStart > req.PeriodEnd {
		fields = append(fields, apperr.FieldError{Path: "periodEnd", Message: "must not precede periodStart"})
	}

	if len(fields) > 0 {
		return apperr.Validation("invalid_task", "task request is invalid").WithFields(fields...)
	}
	return nil
}

func validDate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func isTaskNotFound(err error) bool {
	return errors.Is(err, memory.ErrTaskNotFound) || errors.Is(err, postgres.ErrTaskNotFound)
}

func isRefNotFound(err error) bool {
	return errors.Is(err, memory.ErrRefNotFound) || errors.Is(err, postgres.ErrRefNotFound)
}
