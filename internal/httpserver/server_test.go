package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fdg312/report-hub/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Port:               8080,
		StorageTotalBytes:  1024 * 1024,
		StorageWarnPercent: 85,
		TaskEstimatedBytes: 1024,
		ExportMaxRecords:   100,
		ExportTTLSeconds:   3600,
		YouTrack: config.YouTrackConfig{
			QueueFile:     filepath.Join(dir, "queue.json"),
			BlacklistFile: filepath.Join(dir, "blacklist.json"),
			LinksFile:     filepath.Join(dir, "links.json"),
			MaxAttempts:   5,
		},
	}
	return New(cfg)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status=ok, got %s", resp["status"])
	}
}

func TestHealthzMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestRoutes_CreateAndGetTask(t *testing.T) {
	srv := newTestServer(t)

	body := `{"branchId":"0001","reportType":"6406","sourceCode":"ABS","currency":"RUB","format":"xml","periodStart":"2026-01-01","periodEnd":"2026-01-31"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/report-6406/tasks", strings.NewReader(body))
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Status != "created" {
		t.Errorf("expected status=created, got %q", created.Status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/report-6406/tasks/"+created.ID, nil)
	w = httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRoutes_StorageVolume(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report-6406/storage/volume", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var snapshot struct {
		TotalBytes int64 `json:"totalBytes"`
		FreeBytes  int64 `json:"freeBytes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&snapshot); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snapshot.TotalBytes != 1024*1024 {
		t.Errorf("expected totalBytes=%d, got %d", 1024*1024, snapshot.TotalBytes)
	}
}

func TestRoutes_BlacklistRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/youtrack/tags/blacklist", strings.NewReader(`{"tags":["Internal"]}`))
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/youtrack/tags/blacklist", nil)
	w = httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	var resp struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Tags) != 1 || resp.Tags[0] != "Internal" {
		t.Errorf("expected [Internal], got %v", resp.Tags)
	}
}
