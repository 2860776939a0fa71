package youtrack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fdg312/report-hub/internal/apperr"
)

func newTestService(t *testing.T, baseURL string, maxAttempts int) *Service {
	t.Helper()
	dir := t.TempDir()
	client := NewClient(baseURL, "test-token", 2*time.Second, 0)
	return NewService(
		client,
		NewLedger(filepath.Join(dir, "queue.json")),
		NewBlacklist(filepath.Join(dir, "blacklist.json")),
		NewLinks(filepath.Join(dir, "links.json")),
		maxAttempts,
	)
}

func TestQueueRetry_SucceedsOnThirdPass(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"id":"3-17","idReadable":"RPT-17"}`))
	}))
	defer server.Close()

	service := newTestService(t, server.URL, 5)
	ctx := context.Background()

	if _, err := service.ledger.Append(OpCreateIssue, OperationPayload{TaskID: "t-1", Summary: "sync"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	for pass := 1; pass <= 3; pass++ {
		result, err := service.ProcessPending(ctx)
		if err != nil {
			t.Fatalf("pass %d failed: %v", pass, err)
		}
		if pass < 3 && result.Failed != 1 {
			t.Errorf("pass %d: expected one failure, got %d", pass, result.Failed)
		}
		if pass == 3 && result.Processed != 1 {
			t.Errorf("pass 3: expected one processed, got %d", result.Processed)
		}
	}

	ops, _ := service.ListOperations()
	if len(ops) != 1 {
		t.Fatalf("expected one operation, got %d", len(ops))
	}
	if ops[0].Status != OpStatusCompleted {
		t.Errorf("expected completed, got %q", ops[0].Status)
	}
	if ops[0].Attempts != 3 {
		t.Errorf("expected attempts=3, got %d", ops[0].Attempts)
	}
}

func TestQueueRetry_FailsAtMaxAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	const maxAttempts = 5
	service := newTestService(t, server.URL, maxAttempts)
	ctx := context.Background()

	service.ledger.Append(OpCreateIssue, OperationPayload{Summary: "doomed"})

	for pass := 0; pass < maxAttempts+3; pass++ {
		if _, err := service.ProcessPending(ctx); err != nil {
			t.Fatalf("process failed: %v", err)
		}
	}

	ops, _ := service.ListOperations()
	if ops[0].Status != OpStatusFailed {
		t.Errorf("expected failed, got %q", ops[0].Status)
	}
	if ops[0].Attempts != maxAttempts {
		t.Errorf("attempts must stop at %d, got %d", maxAttempts, ops[0].Attempts)
	}
	if ops[0].LastError == nil {
		t.Error("failed operation must carry lastError")
	}
}

func TestQueue_PermanentErrorFailsImmediately(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	service := newTestService(t, server.URL, 5)
	service.ledger.Append(OpLinkIssue, OperationPayload{TaskID: "t-1", IssueID: "RPT-1"})

	result, err := service.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Failed != 1 || len(result.Errors) != 1 {
		t.Fatalf("expected one failure with error, got %+v", result)
	}

	ops, _ := service.ListOperations()
	if ops[0].Status != OpStatusFailed {
		t.Errorf("4xx must fail the operation permanently, got %q", ops[0].Status)
	}
	if ops[0].Attempts != 1 {
		t.Errorf("expected a single attempt, got %d", ops[0].Attempts)
	}
}

func TestProcessPending_StopsWhileUnavailable(t *testing.T) {
	service := newTestService(t, "http://youtrack.local", 5)
	service.ledger.Append(OpCreateIssue, OperationPayload{Summary: "a"})
	service.ledger.Append(OpCreateIssue, OperationPayload{Summary: "b"})

	service.client.SetUnavailableFor(time.Minute)

	result, err := service.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Processed != 0 || result.Failed != 0 {
		t.Errorf("no operation must be touched during cooldown, got %+v", result)
	}

	ops, _ := service.ListOperations()
	for _, op := range ops {
		if op.Status != OpStatusPending || op.Attempts != 0 {
			t.Errorf("operation %s must stay untouched, got status=%q attempts=%d", op.ID, op.Status, op.Attempts)
		}
	}
}

func TestProcessPending_ConcurrentPassesDoNotDoubleProcess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte(`{"idReadable":"RPT-9"}`))
	}))
	defer server.Close()

	service := newTestService(t, server.URL, 5)
	if _, err := service.ledger.Append(OpCreateIssue, OperationPayload{TaskID: "t-1", Summary: "once"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.ProcessPending(context.Background()); err != nil {
				t.Errorf("process failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly one remote call, got %d", got)
	}

	ops, _ := service.ListOperations()
	if ops[0].Status != OpStatusCompleted {
		t.Errorf("expected completed, got %q", ops[0].Status)
	}
	if ops[0].Attempts != 1 {
		t.Errorf("expected attempts=1, got %d", ops[0].Attempts)
	}
}

func TestCreateIssue_QueuedWhenUnavailable(t *testing.T) {
	service := newTestService(t, "http://youtrack.local", 5)
	service.client.SetUnavailableFor(time.Minute)

	result, err := service.CreateIssue(context.Background(), CreateIssueRequest{
		TaskID:  "t-1",
		Summary: "sync me",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !result.Queued || result.OperationID == "" {
		t.Fatalf("expected queued result, got %+v", result)
	}

	ops, _ := service.ListOperations()
	if len(ops) != 1 || ops[0].Type != OpCreateIssue {
		t.Fatalf("expected one queued create_issue, got %+v", ops)
	}
}

func TestCreateIssue_QueuedWhenNotConfigured(t *testing.T) {
	service := newTestService(t, "", 5)

	result, err := service.CreateIssue(context.Background(), CreateIssueRequest{Summary: "sync me"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !result.Queued {
		t.Fatal("unconfigured client must queue the operation")
	}
}

func TestCreateIssue_ImmediateSuccessRecordsLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"idReadable":"RPT-42"}`))
	}))
	defer server.Close()

	service := newTestService(t, server.URL, 5)

	result, err := service.CreateIssue(context.Background(), CreateIssueRequest{
		TaskID:  "t-1",
		Summary: "sync me",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if result.Queued {
		t.Fatal("expected immediate result")
	}
	if result.IssueID != "RPT-42" {
		t.Errorf("expected issue RPT-42, got %q", result.IssueID)
	}

	issues, _ := service.links.Get("t-1")
	if len(issues) != 1 || issues[0] != "RPT-42" {
		t.Errorf("expected link recorded, got %v", issues)
	}
}

func TestCreateIssue_FiltersBlacklistedTags(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte(`{"idReadable":"RPT-1"}`))
	}))
	defer server.Close()

	service := newTestService(t, server.URL, 5)
	service.blacklist.Replace([]string{"Internal"})

	_, err := service.CreateIssue(context.Background(), CreateIssueRequest{
		Summary: "sync",
		Tags:    []string{"feature", "internal", "INTERNAL", "prod"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if want := `{"name":"feature"}`; !strings.Contains(gotBody, want) {
		t.Errorf("expected %s in body, got %s", want, gotBody)
	}
	if strings.Contains(gotBody, "internal") || strings.Contains(gotBody, "INTERNAL") {
		t.Errorf("blacklisted tags leaked into request: %s", gotBody)
	}
}

func TestAddLink_DuplicateConflictDoesNotEnqueue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	service := newTestService(t, server.URL, 5)
	ctx := context.Background()

	if _, err := service.AddLink(ctx, "t-1", "RPT-1"); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	_, err := service.AddLink(ctx, "t-1", "RPT-1")
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict on duplicate add, got %v", err)
	}

	ops, _ := service.ListOperations()
	if len(ops) != 0 {
		t.Errorf("duplicate add must not enqueue anything, got %d ops", len(ops))
	}
}

func TestRemoveLink_SecondRemoveNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	service := newTestService(t, server.URL, 5)
	ctx := context.Background()

	service.AddLink(ctx, "t-1", "RPT-1")
	if _, err := service.RemoveLink(ctx, "t-1", "RPT-1"); err != nil {
		t.Fatalf("first remove failed: %v", err)
	}

	_, err := service.RemoveLink(ctx, "t-1", "RPT-1")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound on second remove, got %v", err)
	}
}
