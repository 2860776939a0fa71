package youtrack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/fdg312/report-hub/internal/apperr"
)

// Service развязывает локальные мутации трекера задач и доступность
// YouTrack: временные сбои уходят в файловую очередь, постоянные (4xx)
// возвращаются вызывающему сразу.
type Service struct {
	client      *Client
	ledger      *Ledger
	blacklist   *Blacklist
	links       *Links
	maxAttempts int

	processMu sync.Mutex // сериализует проходы ProcessPending
}

func NewService(client *Client, ledger *Ledger, blacklist *Blacklist, links *Links, maxAttempts int) *Service {
	return &Service{
		client:      client,
		ledger:      ledger,
		blacklist:   blacklist,
		links:       links,
		maxAttempts: maxAttempts,
	}
}

func (s *Service) Blacklist() *Blacklist { return s.blacklist }
func (s *Service) Links() *Links { return s.links }

// CreateIssue создаёт issue по задаче: сразу, если YouTrack доступен,
// иначе операция ставится в очередь.
func (s *Service) CreateIssue(ctx context.Context, req CreateIssueRequest) (*SyncResult, error) {
	if req.Summary == "" {
		return nil, apperr.Validation("empty_summary", "summary is required")
	}

	tags, err := s.blacklist.FilterTags(req.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to filter tags: %w", err)
	}

	payload := OperationPayload{
		TaskID:      req.TaskID,
		TemplateID:  req.TemplateID,
		Summary:     req.Summary,
		Description: req.Description,
		Tags:        tags,
	}

	if !s.client.IsConfigured() || s.client.IsUnavailable() {
		return s.enqueue(OpCreateIssue, payload)
	}

	issueID, err := s.client.CreateIssue(ctx, payload.Summary, payload.Description, payload.Tags)
	if err != nil {
		if isRetryable(err) {
			return s.enqueue(OpCreateIssue, payload)
		}
		return nil, permanentError(err)
	}

	s.recordLink(req.TaskID, issueID)
	return &SyncResult{IssueID: issueID}, nil
}

// AddLink привязывает issue к задаче. Манифест мутируется синхронно
// (повторная привязка — Conflict); удалённая синхронизация может уйти
// в очередь.
func (s *Service) AddLink(ctx context.Context, taskID, issueID string) (*SyncResult, error) {
	if err := s.links.Add(taskID, issueID); err != nil {
		return nil, err
	}

	payload := OperationPayload{TaskID: taskID, IssueID: issueID}
	if !s.client.IsConfigured() || s.client.IsUnavailable() {
		return s.enqueue(OpLinkIssue, payload)
	}

	if err := s.client.LinkIssue(ctx, issueID, taskID); err != nil {
		if isRetryable(err) {
			return s.enqueue(OpLinkIssue, payload)
		}
		return nil, permanentError(err)
	}
	return &SyncResult{IssueID: issueID}, nil
}

// RemoveLink снимает привязку issue к задаче. Отсутствующая привязка —
// NotFound.
func (s *Service) RemoveLink(ctx context.Context, taskID, issueID string) (*SyncResult, error) {
	if err := s.links.Remove(taskID, issueID); err != nil {
		return nil, err
	}

	payload := OperationPayload{TaskID: taskID, IssueID: issueID}
	if !s.client.IsConfigured() || s.client.IsUnavailable() {
		return s.enqueue(OpUnlinkIssue, payload)
	}

	if err := s.client.UnlinkIssue(ctx, issueID, taskID); err != nil {
		if isRetryable(err) {
			return s.enqueue(OpUnlinkIssue, payload)
		}
		return nil, permanentError(err)
	}
	return &SyncResult{IssueID: issueID}, nil
}

// ListOperations возвращает журнал операций в порядке создания.
func (s *Service) ListOperations() ([]Operation, error) {
	return s.ledger.List()
}

// ProcessPending обрабатывает pending операции в порядке создания.
// Каждая попытка инкрементирует attempts; временный сбой возвращает
// операцию в pending до достижения максимума, после чего она
// помечается failed навсегда. Если клиент уходит в окно недоступности,
// проход останавливается, остальные операции ждут следующего прохода.
// Проходы сериализуются: стартовый автозапуск и запуск по запросу не
// обрабатывают один pending набор параллельно.
func (s *Service) ProcessPending(ctx context.Context) (*ProcessResult, error) {
	s.processMu.Lock()
	defer s.processMu.Unlock()

	pending, err := s.ledger.Pending()
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{}
	for _, op := range pending {
		if !s.client.IsConfigured() || s.client.IsUnavailable() {
			break
		}

		current, err := s.ledger.Update(op.ID, func(o *Operation) {
			o.Status = OpStatusProcessing
			o.Attempts++
		})
		if err != nil {
			return nil, err
		}

		execErr := s.execute(ctx, current)
		if execErr == nil {
			if _, err := s.ledger.Update(op.ID, func(o *Operation) {
				o.Status = OpStatusCompleted
				o.LastError = nil
			}); err != nil {
				return nil, err
			}
			result.Processed++
			continue
		}

		msg := execErr.Error()
		terminal := !isRetryable(execErr) || current.Attempts >= s.maxAttempts
		if _, err := s.ledger.Update(op.ID, func(o *Operation) {
			o.LastError = &msg
			if terminal {
				o.Status = OpStatusFailed
			} else {
				o.Status = OpStatusPending
			}
		}); err != nil {
			return nil, err
		}

		result.Failed++
		result.Errors = append(result.Errors, OperationError{
			OperationID: op.ID.String(),
			Error:       msg,
		})
	}

	return result, nil
}

func (s *Service) execute(ctx context.Context, op *Operation) error {
	switch op.Type {
	case OpCreateIssue:
		// Blacklist применяется на момент отправки.
		tags, err := s.blacklist.FilterTags(op.Payload.Tags)
		if err != nil {
			return err
		}
		issueID, err := s.client.CreateIssue(ctx, op.Payload.Summary, op.Payload.Description, tags)
		if err != nil {
			return err
		}
		s.recordLink(op.Payload.TaskID, issueID)
		return nil
	case OpLinkIssue:
		return s.client.LinkIssue(ctx, op.Payload.IssueID, op.Payload.TaskID)
	case OpUnlinkIssue:
		return s.client.UnlinkIssue(ctx, op.Payload.IssueID, op.Payload.TaskID)
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
}

func (s *Service) enqueue(opType string, payload OperationPayload) (*SyncResult, error) {
	op, err := s.ledger.Append(opType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue operation: %w", err)
	}
	return &SyncResult{Queued: true, OperationID: op.ID.String()}, nil
}

func (s *Service) recordLink(taskID, issueID string) {
	if taskID == "" || issueID == "" {
		return
	}
	if err := s.links.Add(taskID, issueID); err != nil && !apperr.IsKind(err, apperr.KindConflict) {
		log.Printf("WARN youtrack: failed to record link %s -> %s: %v", taskID, issueID, err)
	}
}

func isRetryable(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Retryable
}

// permanentError мапит 4xx от YouTrack в типизированную ошибку сервиса.
func permanentError(err error) error {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return apperr.New(apperr.KindValidation, "youtrack_rejected",
			fmt.Sprintf("YouTrack rejected the request (status %d)", remote.StatusCode))
	}
	return err
}
