package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/fdg312/report-hub/internal/apperr"
	"github.com/fdg312/report-hub/internal/storage"
	"github.com/fdg312/report-hub/internal/storage/memory"
	"github.com/google/uuid"
)

func seedTask(t *testing.T, store *memory.MemoryStorage, branch, status, format string) {
	t.Helper()
	task := &storage.ReportTask{
		ID:          uuid.New(),
		BranchID:    branch,
		ReportType:  "6406",
		SourceCode:  "ABS",
		Currency:    "RUB",
		Format:      format,
		PeriodStart: "2026-01-01",
		PeriodEnd:   "2026-01-31",
		Status:      status,
		CreatedBy:   "ivanov",
	}
	if err := store.Tasks().CreateTask(context.Background(), task, nil); err != nil {
		t.Fatalf("failed to seed task: %v", err)
	}
}

func TestExport_FilterSemantics(t *testing.T) {
	store := memory.New()
	seedTask(t, store, "0001", "created", "xml")
	seedTask(t, store, "0001", "started", "xml")
	seedTask(t, store, "0002", "created", "xlsx")
	service := NewService(store, nil, 10000, 3600, 3600)

	// status IN (created, started) AND branchId = 0001
	descriptor, err := service.Export(context.Background(), ExportRequest{
		Filters: FilterRequest{
			Status:   StringList{"created", "started"},
			BranchID: StringList{"0001"},
		},
	}, "ivanov")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if descriptor.RecordCount != 2 {
		t.Errorf("expected 2 records, got %d", descriptor.RecordCount)
	}
	if descriptor.Format != FormatCSV {
		t.Errorf("expected default format csv, got %q", descriptor.Format)
	}
	if descriptor.ExpiresAt.IsZero() {
		t.Error("expected non-zero expiry")
	}
}

func TestExport_LimitBound(t *testing.T) {
	store := memory.New()
	for i := 0; i < 5; i++ {
		seedTask(t, store, "0001", "created", "xml")
	}
	service := NewService(store, nil, 3, 3600, 3600)

	descriptor, err := service.Export(context.Background(), ExportRequest{}, "ivanov")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if descriptor.RecordCount != 3 {
		t.Errorf("expected configured maximum of 3 records, got %d", descriptor.RecordCount)
	}
}

func TestExport_InvalidSortColumn(t *testing.T) {
	service := NewService(memory.New(), nil, 10000, 3600, 3600)

	_, err := service.Export(context.Background(), ExportRequest{SortBy: "created_by"}, "ivanov")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected Validation, got %v", err)
	}
}

func TestExport_ScalarFilterCoercion(t *testing.T) {
	var req ExportRequest
	payload := `{"filters":{"status":"created","branchId":["0001","0002"]}}`
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(req.Filters.Status) != 1 || req.Filters.Status[0] != "created" {
		t.Errorf("scalar must normalize to one-element list, got %v", req.Filters.Status)
	}
	if len(req.Filters.BranchID) != 2 {
		t.Errorf("list must pass through, got %v", req.Filters.BranchID)
	}
}

type captureExports struct {
	storage.ExportsStorage
	created *storage.ExportMeta
}

func (c *captureExports) CreateExport(ctx context.Context, export *storage.ExportMeta) error {
	c.created = export
	return c.ExportsStorage.CreateExport(ctx, export)
}

type captureStorage struct {
	*memory.MemoryStorage
	exports *captureExports
}

func (s *captureStorage) Exports() storage.ExportsStorage { return s.exports }

func TestExport_LocalModePersistsPayload(t *testing.T) {
	mem := memory.New()
	seedTask(t, mem, "0001", "created", "xml")
	capture := &captureExports{ExportsStorage: mem.Exports()}
	service := NewService(&captureStorage{MemoryStorage: mem, exports: capture}, nil, 10000, 3600, 3600)

	descriptor, err := service.Export(context.Background(), ExportRequest{}, "ivanov")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if capture.created == nil {
		t.Fatal("export metadata was not persisted")
	}
	if capture.created.ObjectKey != nil {
		t.Error("local mode must not set an object key")
	}
	if descriptor.SizeBytes == 0 || int64(len(capture.created.Data)) != descriptor.SizeBytes {
		t.Errorf("persisted payload must match advertised size: len=%d sizeBytes=%d",
			len(capture.created.Data), descriptor.SizeBytes)
	}
}

func TestDownload_LocalMode(t *testing.T) {
	store := memory.New()
	seedTask(t, store, "0001", "created", "xml")
	service := NewService(store, nil, 10000, 3600, 3600)
	ctx := context.Background()

	descriptor, err := service.Export(ctx, ExportRequest{}, "ivanov")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	data, redirectURL, fileName, contentType, err := service.Download(ctx, uuid.MustParse(descriptor.ID))
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if redirectURL != "" {
		t.Error("local mode must not redirect")
	}
	if fileName != descriptor.FileName {
		t.Errorf("expected file name %q, got %q", descriptor.FileName, fileName)
	}
	if contentType != "text/csv" {
		t.Errorf("expected text/csv, got %q", contentType)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("downloaded CSV does not parse: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected header + 1 row, got %d records", len(records))
	}
}

func TestDownload_Expired(t *testing.T) {
	store := memory.New()
	service := NewService(store, nil, 10000, -1, 3600) // TTL в прошлом
	ctx := context.Background()

	descriptor, err := service.Export(ctx, ExportRequest{}, "ivanov")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	_, _, _, _, err = service.Download(ctx, uuid.MustParse(descriptor.ID))
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound for expired export, got %v", err)
	}
}

func TestDownload_Unknown(t *testing.T) {
	service := NewService(memory.New(), nil, 10000, 3600, 3600)

	_, _, _, _, err := service.Download(context.Background(), uuid.New())
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
