package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/report-hub/internal/apperr"
	"github.com/fdg312/report-hub/internal/blob"
	"github.com/fdg312/report-hub/internal/storage"
	"github.com/fdg312/report-hub/internal/storage/memory"
	"github.com/fdg312/report-hub/internal/storage/postgres"
	"github.com/google/uuid"
)

// Service строит выгрузки задач отчёта 6406 и выдаёт их по дескриптору.
type Service struct {
	storage    storage.Storage
	generator  *Generator
	blobStore  blob.Store // nil в локальном режиме, тогда payload в store
	maxRecords int
	ttlSeconds int
	presignTTL int
}

func NewService(store storage.Storage, blobStore blob.Store, maxRecords, ttlSeconds, presignTTLSeconds int) *Service {
	return &Service{
		storage:    store,
		generator:  NewGenerator(),
		blobStore:  blobStore,
		maxRecords: maxRecords,
		ttlSeconds: ttlSeconds,
		presignTTL: presignTTLSeconds,
	}
}

// Export отбирает задачи по фильтру и создаёт выгрузку.
func (s *Service) Export(ctx context.Context, req ExportRequest, actor string) (*DownloadDescriptor, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatPDF {
		return nil, apperr.Validation("invalid_format", "format must be 'csv' or 'pdf'")
	}

	columns, err := resolveColumns(req.Columns, format)
	if err != nil {
		return nil, err
	}

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	if !allowedSortColumns[sortBy] {
		return nil, apperr.Validation("invalid_sort",
			fmt.Sprintf("sortBy %q is not in the allowed set", req.SortBy))
	}
	sortOrder := strings.ToLower(req.SortOrder)
	if sortOrder != "" && sortOrder != "asc" && sortOrder != "desc" {
		return nil, apperr.Validation("invalid_sort", "sortOrder must be 'asc' or 'desc'")
	}

	limit := s.maxRecords
	if req.Limit > 0 && req.Limit < limit {
		limit = req.Limit
	}

	filter := storage.TaskFilter{
		Statuses:        req.Filters.Status,
		BranchIDs:       req.Filters.BranchID,
		ReportTypes:     req.Filters.ReportType,
		Formats:         req.Filters.Format,
		PeriodStartFrom: req.Filters.PeriodStartFrom,
		PeriodStartTo:   req.Filters.PeriodStartTo,
		CreatedFrom:     req.Filters.CreatedFrom,
		CreatedTo:       req.Filters.CreatedTo,
		SortBy:          sortBy,
		SortOrder:       sortOrder,
	}

	tasks, _, err := s.storage.Tasks().ListTasks(ctx, filter, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to select tasks for export: %w", err)
	}

	var data []byte
	switch format {
	case FormatCSV:
		branchNames, err := s.resolveBranchNames(ctx, tasks)
		if err != nil {
			return nil, err
		}
		data, err = s.generator.GenerateCSV(tasks, columns, branchNames)
		if err != nil {
			return nil, fmt.Errorf("failed to generate CSV: %w", err)
		}
	case FormatPDF:
		data, err = s.generator.GeneratePDF(tasks)
		if err != nil {
			return nil, fmt.Errorf("failed to generate PDF: %w", err)
		}
	}

	id := uuid.New()
	fileName := fmt.Sprintf("report6406_tasks_%s.%s", time.Now().Format("20060102_150405"), format)
	meta := &storage.ExportMeta{
		ID:          id,
		FileName:    fileName,
		Format:      format,
		SizeBytes:   int64(len(data)),
		RecordCount: len(tasks),
		ExpiresAt:   time.Now().Add(time.Duration(s.ttlSeconds) * time.Second),
		CreatedBy:   actor,
	}

	if s.blobStore != nil {
		objectKey := fmt.Sprintf("exports/%s/%s", id.String(), fileName)
		if _, err := s.blobStore.PutObject(ctx, objectKey, data, contentTypeFor(format)); err != nil {
			return nil, fmt.Errorf("failed to upload export: %w", err)
		}
		meta.ObjectKey = &objectKey
	} else {
		meta.Data = data
	}

	if err := s.storage.Exports().CreateExport(ctx, meta); err != nil {
		return nil, fmt.Errorf("failed to save export metadata: %w", err)
	}

	return &DownloadDescriptor{
		ID:          id.String(),
		FileName:    fileName,
		Format:      format,
		SizeBytes:   meta.SizeBytes,
		RecordCount: meta.RecordCount,
		ExpiresAt:   meta.ExpiresAt,
		DownloadURL: fmt.Sprintf("/api/v1/report-6406/exports/%s/download", id.String()),
	}, nil
}

// Download возвращает содержимое выгрузки (локальный режим) либо presigned
// URL для редиректа (S3 режим). Истёкшие выгрузки недоступны.
func (s *Service) Download(ctx context.Context, id uuid.UUID) (data []byte, redirectURL, fileName, contentType string, err error) {
	meta, err := s.storage.Exports().GetExport(ctx, id)
	if err != nil {
		if isExportNotFound(err) {
			return nil, "", "", "", apperr.NotFound("export_not_found", fmt.Sprintf("export %s does not exist", id))
		}
		return nil, "", "", "", fmt.Errorf("failed to get export: %w", err)
	}

	if time.Now().After(meta.ExpiresAt) {
		return nil, "", "", "", apperr.NotFound("export_expired", fmt.Sprintf("export %s has expired", id))
	}

	contentType = contentTypeFor(meta.Format)
	if meta.ObjectKey != nil && s.blobStore != nil {
		url, err := s.blobStore.PresignGet(ctx, *meta.ObjectKey, s.presignTTL)
		if err != nil {
			return nil, "", "", "", fmt.Errorf("failed to presign export: %w", err)
		}
		return nil, url, meta.FileName, contentType, nil
	}

	return meta.Data, "", meta.FileName, contentType, nil
}

// CleanupExpired удаляет метаданные истёкших выгрузок.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	return s.storage.Exports().DeleteExpired(ctx, time.Now())
}

func (s *Service) resolveBranchNames(ctx context.Context, tasks []storage.ReportTask) (map[string]string, error) {
	names := make(map[string]string)
	for i := range tasks {
		branchID := tasks[i].BranchID
		if _, ok := names[branchID]; ok {
			continue
		}
		branch, err := s.storage.RefData().GetBranch(ctx, branchID)
		if err != nil {
			if isRefNotFound(err) {
				names[branchID] = ""
				continue
			}
			return nil, fmt.Errorf("failed to resolve branch %s: %w", branchID, err)
		}
		names[branchID] = branch.Name
	}
	return names, nil
}

func resolveColumns(requested []string, format string) ([]string, error) {
	if len(requested) == 0 {
		return defaultColumns, nil
	}
	if format == FormatPDF {
		return nil, apperr.Validation("columns_not_supported", "column selection is only supported for csv")
	}

	var fields []apperr.FieldError
	for i, column := range requested {
		if !allowedColumns[column] {
			fields = append(fields, apperr.FieldError{
				Path:    fmt.Sprintf("columns[%d]", i),
				Message: fmt.Sprintf("unknown column %q", column),
			})
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid_columns", "unknown export columns").WithFields(fields...)
	}
	return requested, nil
}

func contentTypeFor(format string) string {
	if format == FormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

func isExportNotFound(err error) bool {
	return errors.Is(err, memory.ErrExportNotFound) || errors.Is(err, postgres.ErrExportNotFound)
}

func isRefNotFound(err error) bool {
	return errors.Is(err, memory.ErrRefNotFound) || errors.Is(err, postgres.ErrRefNotFound)
}
