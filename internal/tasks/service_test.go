package tasks

import (
	"context"
	"testing"

	"github.com/fdg312/report-hub/internal/apperr"
	"github.com/fdg312/report-hub/internal/storage/memory"
	"github.com/google/uuid"
)

type stubAdmission struct {
	allowed        bool
	availableBytes int64
	calls          int
}

func (a *stubAdmission) CheckAdmission(ctx context.Context, requiredBytes int64) (*AdmissionDecision, error) {
	a.calls++
	return &AdmissionDecision{
		Allowed:        a.allowed,
		RequiredBytes:  requiredBytes,
		AvailableBytes: a.availableBytes,
	}, nil
}

func validRequest() CreateTaskRequest {
	return CreateTaskRequest{
		BranchID:    "0001",
		ReportType:  "6406",
		SourceCode:  "ABS",
		Currency:    "RUB",
		Format:      "xml",
		PeriodStart: "2026-01-01",
		PeriodEnd:   "2026-01-31",
	}
}

func newTestService() (*Service, *memory.MemoryStorage) {
	store := memory.New()
	return NewService(store, nil, 0), store
}

func TestCreateTask(t *testing.T) {
	service, _ := newTestService()
	ctx := context.Background()

	task, err := service.CreateTask(ctx, validRequest(), "ivanov")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if task.Status != StatusCreated {
		t.Errorf("expected status created, got %q", task.Status)
	}
	if task.CreatedBy != "ivanov" {
		t.Errorf("expected createdBy ivanov, got %q", task.CreatedBy)
	}

	entries, total, err := service.History(ctx, task.ID, 10, 0)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if total != 1 || len(entries) != 1 {
		t.Fatalf("expected one initial history entry, got %d", total)
	}
	if entries[0].PreviousStatus != nil {
		t.Errorf("initial entry must have nil previousStatus, got %v", *entries[0].PreviousStatus)
	}
	if entries[0].Status != StatusCreated {
		t.Errorf("expected initial entry status created, got %q", entries[0].Status)
	}
}

func TestCreateTask_UnknownBranch(t *testing.T) {
	service, _ := newTestService()

	req := validRequest()
	req.BranchID = "9999"
	_, err := service.CreateTask(context.Background(), req, "ivanov")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCreateTask_InvalidPeriod(t *testing.T) {
	service, _ := newTestService()

	req := validRequest()
	req.PeriodStart = "2026-02-01"
	req.PeriodEnd = "2026-01-01"
	_, err := service.CreateTask(context.Background(), req, "ivanov")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected Validation, got %v", err)
	}
	typed, _ := apperr.As(err)
	if len(typed.Fields) == 0 {
		t.Error("expected field-level errors")
	}
}

func TestTransition_HistoryConsistency(t *testing.T) {
	service, _ := newTestService()
	ctx := context.Background()

	task, err := service.CreateTask(ctx, validRequest(), "ivanov")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for _, target := range []string{StatusStarted, StatusCompleted} {
		if _, err := service.Transition(ctx, task.ID, target, "worker", nil, nil); err != nil {
			t.Fatalf("transition to %s failed: %v", target, err)
		}

		current, err := service.GetTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		entries, _, err := service.History(ctx, task.ID, 1, 0)
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		latest := entries[0]
		if latest.Status != current.Status {
			t.Errorf("latest history status %q != task status %q", latest.Status, current.Status)
		}
		if latest.PreviousStatus == nil {
			t.Fatal("transition entry must carry previousStatus")
		}
	}
}

func TestTransition_ReturnsPersistedTask(t *testing.T) {
	service, _ := newTestService()
	ctx := context.Background()

	task, _ := service.CreateTask(ctx, validRequest(), "ivanov")
	updated, err := service.Transition(ctx, task.ID, StatusStarted, "worker", nil, nil)
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	stored, err := service.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !updated.UpdatedAt.Equal(stored.UpdatedAt) {
		t.Errorf("transition must return the stored timestamp: got %v, store has %v",
			updated.UpdatedAt, stored.UpdatedAt)
	}
	if updated.Status != stored.Status {
		t.Errorf("returned status %q != stored status %q", updated.Status, stored.Status)
	}
}

func TestTransition_StartOnStarted(t *testing.T) {
	service, _ := newTestService()
	ctx := context.Background()

	task, _ := service.CreateTask(ctx, validRequest(), "ivanov")
	if _, err := service.Start(ctx, task.ID, "worker"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := service.Start(ctx, task.ID, "worker"); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict on double start, got %v", err)
	}
}

func TestCancel_TerminalTaskNoHistoryAppend(t *testing.T) {
	service, _ := newTestService()
	ctx := context.Background()

	task, _ := service.CreateTask(ctx, validRequest(), "ivanov")
	service.Start(ctx, task.ID, "worker")
	if _, err := service.Transition(ctx, task.ID, StatusCompleted, "worker", nil, nil); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	_, before, _ := service.History(ctx, task.ID, 100, 0)

	_, err := service.Cancel(ctx, task.ID, "ivanov")
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict cancelling completed task, got %v", err)
	}

	_, after, _ := service.History(ctx, task.ID, 100, 0)
	if after != before {
		t.Errorf("conflicting cancel must not append history: before=%d after=%d", before, after)
	}
}

func TestCancel_RecordsKilledDappReason(t *testing.T) {
	service, _ := newTestService()
	ctx := context.Background()

	task, _ := service.CreateTask(ctx, validRequest(), "ivanov")
	if _, err := service.Cancel(ctx, task.ID, "ivanov"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	entries, _, _ := service.History(ctx, task.ID, 1, 0)
	if entries[0].Metadata["cancel_reason"] != CancelReasonKilledDapp {
		t.Errorf("expected cancel_reason=%s in metadata, got %v", CancelReasonKilledDapp, entries[0].Metadata)
	}
}

func TestDelete_StartedTaskConflict(t *testing.T) {
	service, _ := newTestService()
	ctx := context.Background()

	task, _ := service.CreateTask(ctx, validRequest(), "ivanov")
	service.Start(ctx, task.ID, "worker")

	if err := service.Delete(ctx, task.ID); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict deleting started task, got %v", err)
	}
	if _, err := service.GetTask(ctx, task.ID); err != nil {
		t.Errorf("task must survive conflicting delete: %v", err)
	}
}

func TestBulkDelete_OrderAndIsolation(t *testing.T) {
	service, _ := newTestService()
	ctx := context.Background()

	first, _ := service.CreateTask(ctx, validRequest(), "ivanov")
	second, _ := service.CreateTask(ctx, validRequest(), "ivanov")
	service.Start(ctx, second.ID, "worker") // не удаляется

	ids := []string{first.ID.String(), "not-a-uuid", second.ID.String(), uuid.NewString()}
	results := service.BulkDelete(ctx, ids)

	if len(results) != len(ids) {
		t.Fatalf("expected %d results, got %d", len(ids), len(results))
	}
	for i, result := range results {
		if result.ID != ids[i] {
			t.Errorf("result %d out of order: expected %s, got %s", i, ids[i], result.ID)
		}
	}
	if !results[0].Success {
		t.Errorf("expected first delete to succeed: %v", results[0].Reason)
	}
	if results[1].Success || results[2].Success || results[3].Success {
		t.Error("expected failures for invalid id, started task and unknown id")
	}
	for _, result := range results[1:] {
		if result.Reason == "" {
			t.Error("failed result must carry a reason")
		}
	}
}

func TestBulkStart_InsufficientStorageLeavesTasksUntouched(t *testing.T) {
	store := memory.New()
	admission := &stubAdmission{allowed: false, availableBytes: 100}
	service := NewService(store, admission, 1024)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		task, err := service.CreateTask(ctx, validRequest(), "ivanov")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		ids = append(ids, task.ID.String())
	}

	_, err := service.BulkStart(ctx, ids, "ivanov")
	if !apperr.IsKind(err, apperr.KindInsufficientStorage) {
		t.Fatalf("expected InsufficientStorage, got %v", err)
	}
	if admission.calls != 1 {
		t.Errorf("expected a single admission check for the batch, got %d", admission.calls)
	}

	for _, raw := range ids {
		task, err := service.GetTask(ctx, uuid.MustParse(raw))
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if task.Status != StatusCreated {
			t.Errorf("task %s must remain created, got %q", raw, task.Status)
		}
	}
}

func TestBulkStart_Allowed(t *testing.T) {
	store := memory.New()
	admission := &stubAdmission{allowed: true, availableBytes: 1 << 30}
	service := NewService(store, admission, 1024)
	ctx := context.Background()

	task, _ := service.CreateTask(ctx, validRequest(), "ivanov")
	results, err := service.BulkStart(ctx, []string{task.ID.String()}, "ivanov")
	if err != nil {
		t.Fatalf("bulk start failed: %v", err)
	}
	if !results[0].Success {
		t.Fatalf("expected success, got %v", results[0].Reason)
	}

	current, _ := service.GetTask(ctx, task.ID)
	if current.Status != StatusStarted {
		t.Errorf("expected started, got %q", current.Status)
	}
}
