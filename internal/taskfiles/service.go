package taskfiles

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fdg312/report-hub/internal/apperr"
	"github.com/fdg312/report-hub/internal/blob"
	"github.com/fdg312/report-hub/internal/storage"
	"github.com/fdg312/report-hub/internal/storage/memory"
	"github.com/fdg312/report-hub/internal/storage/postgres"
	"github.com/google/uuid"
)

// Service отдаёт файлы-артефакты задач. Файлы создаёт внешний конвейер
// конвертации; здесь только чтение и повторный запуск конвертации.
type Service struct {
	storage    storage.Storage
	blobStore  blob.Store // nil в локальном режиме
	presignTTL int        // секунды
}

func NewService(store storage.Storage, blobStore blob.Store, presignTTLSeconds int) *Service {
	return &Service{
		storage:    store,
		blobStore:  blobStore,
		presignTTL: presignTTLSeconds,
	}
}

// ListFiles возвращает файлы задачи. COMPLETED файлы в S3 режиме получают
// presigned URL; в локальном режиме downloadUrl остаётся пустым.
func (s *Service) ListFiles(ctx context.Context, taskID uuid.UUID) ([]FileResponse, error) {
	if _, err := s.storage.Tasks().GetTask(ctx, taskID); err != nil {
		if isTaskNotFound(err) {
			return nil, apperr.NotFound("task_not_found", fmt.Sprintf("task %s does not exist", taskID))
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	files, err := s.storage.TaskFiles().ListFiles(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task files: %w", err)
	}

	out := make([]FileResponse, 0, len(files))
	for _, file := range files {
		resp := FileResponse{
			ID:           file.ID.String(),
			TaskID:       file.TaskID.String(),
			FileName:     file.FileName,
			FileSize:     file.FileSize,
			FileType:     file.FileType,
			Status:       file.Status,
			ErrorMessage: file.ErrorMessage,
			CreatedAt:    file.CreatedAt,
			UpdatedAt:    file.UpdatedAt,
		}

		if file.Status == FileStatusCompleted && file.StorageKey != nil && s.blobStore != nil {
			url, err := s.blobStore.PresignGet(ctx, *file.StorageKey, s.presignTTL)
			if err != nil {
				log.Printf("WARN taskfiles: presign failed for %s: %v", file.ID, err)
			} else {
				expires := time.Now().Add(time.Duration(s.presignTTL) * time.Second)
				resp.DownloadURL = &url
				resp.DownloadURLExpiresAt = &expires
			}
		}

		out = append(out, resp)
	}
	return out, nil
}

// RetryConversion проверяет предусловия повторной конвертации файла.
// Сам перезапуск конвейера не реализован: при выполненных предусловиях
// возвращается NotImplemented.
func (s *Service) RetryConversion(ctx context.Context, taskID, fileID uuid.UUID) error {
	file, err := s.storage.TaskFiles().GetFile(ctx, fileID)
	if err != nil {
		if isFileNotFound(err) {
			return apperr.NotFound("file_not_found", fmt.Sprintf("file %s does not exist", fileID))
		}
		return fmt.Errorf("failed to get file: %w", err)
	}

	if file.TaskID != taskID {
		return apperr.Validation("file_task_mismatch",
			fmt.Sprintf("file %s does not belong to task %s", fileID, taskID))
	}
	if file.Status != FileStatusFailed {
		return apperr.Conflict("file_not_failed",
			fmt.Sprintf("file %s is in status %s, retry is only allowed for FAILED", fileID, file.Status))
	}

	return apperr.NotImplemented("retry_not_implemented", "conversion retry is not implemented")
}

func isTaskNotFound(err error) bool {
	return errors.Is(err, memory.ErrTaskNotFound) || errors.Is(err, postgres.ErrTaskNotFound)
}

func isFileNotFound(err error) bool {
	return errors.Is(err, memory.ErrFileNotFound) || errors.Is(err, postgres.ErrFileNotFound)
}
