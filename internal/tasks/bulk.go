package tasks

import (
	"context"
	"fmt"

	"github.com/fdg312/report-hub/internal/apperr"
	"github.com/google/uuid"
)

// AdmissionDecision — результат проверки места перед массовым запуском.
type AdmissionDecision struct {
	Allowed        bool
	RequiredBytes  int64
	AvailableBytes int64
}

// AdmissionChecker — проверка свободного места в хранилище артефактов.
type AdmissionChecker interface {
	CheckAdmission(ctx context.Context, requiredBytes int64) (*AdmissionDecision, error)
}

// BulkDelete удаляет задачи по списку идентификаторов. Ошибка одного
// идентификатора не прерывает обработку остальных.
func (s *Service) BulkDelete(ctx context.Context, ids []string) []BulkResult {
	return s.bulkApply(ids, func(id uuid.UUID) error {
		return s.Delete(ctx, id)
	})
}

// BulkCancel отменяет задачи по списку идентификаторов.
func (s *Service) BulkCancel(ctx context.Context, ids []string, actor string) []BulkResult {
	return s.bulkApply(ids, func(id uuid.UUID) error {
		_, err := s.Cancel(ctx, id, actor)
		return err
	})
}

// BulkStart запускает задачи по списку идентификаторов. Место проверяется
// один раз на весь батч до первой мутации: при нехватке места вызов
// завершается целиком с InsufficientStorage, ни одна задача не трогается.
func (s *Service) BulkStart(ctx context.Context, ids []string, actor string) ([]BulkResult, error) {
	if s.admission != nil {
		required := s.taskEstimatedBytes * int64(len(ids))
		decision, err := s.admission.CheckAdmission(ctx, required)
		if err != nil {
			return nil, fmt.Errorf("admission check failed: %w", err)
		}
		if !decision.Allowed {
			return nil, apperr.InsufficientStorage("insufficient_storage",
				fmt.Sprintf("batch requires %d bytes, only %d available", decision.RequiredBytes, decision.AvailableBytes))
		}
	}

	return s.bulkApply(ids, func(id uuid.UUID) error {
		_, err := s.Start(ctx, id, actor)
		return err
	}), nil
}

// bulkApply применяет op к каждому идентификатору независимо и возвращает
// ровно len(ids) результатов в порядке входного списка.
func (s *Service) bulkApply(ids []string, op func(uuid.UUID) error) []BulkResult {
	results := make([]BulkResult, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			results = append(results, BulkResult{ID: raw, Success: false, Reason: "invalid task id"})
			continue
		}
		if err := op(id); err != nil {
			results = append(results, BulkResult{ID: raw, Success: false, Reason: failureReason(err)})
			continue
		}
		results = append(results, BulkResult{ID: raw, Success: true})
	}
	return results
}

func failureReason(err error) string {
	if typed, ok := apperr.As(err); ok {
		return typed.Message
	}
	return "internal error"
}
