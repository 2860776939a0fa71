package tasks

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fdg312/report-hub/internal/problem"
	"github.com/fdg312/report-hub/internal/storage"
	"github.com/fdg312/report-hub/internal/userctx"
	"github.com/google/uuid"
)

// Handlers — HTTP обработчики задач отчёта 6406.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleCreateTask обрабатывает POST /api/v1/report-6406/tasks.
func (h *Handlers) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_json",
			"Validation Failed", "invalid JSON body")
		return
	}

	task, err := h.service.CreateTask(r.Context(), req, userctx.UserOrAnonymous(r.Context()))
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	h.sendJSON(w, http.StatusCreated, toTaskResponse(task))
}

// HandleListTasks обрабатывает GET /api/v1/report-6406/tasks.
func (h *Handlers) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := storage.TaskFilter{
		Statuses:        normalizeListParam(query["status"]),
		BranchIDs:       normalizeListParam(query["branchId"]),
		ReportTypes:     normalizeListParam(query["reportType"]),
		Formats:         normalizeListParam(query["format"]),
		PeriodStartFrom: query.Get("periodStartFrom"),
		PeriodStartTo:   query.Get("periodStartTo"),
		SortBy:          query.Get("sortBy"),
		SortOrder:       query.Get("sortOrder"),
	}

	if raw := query.Get("createdFrom"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_filter",
				"Validation Failed", "createdFrom must be an RFC 3339 timestamp")
			return
		}
		filter.CreatedFrom = &t
	}
	if raw := query.Get("createdTo"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_filter",
				"Validation Failed", "createdTo must be an RFC 3339 timestamp")
			return
		}
		filter.CreatedTo = &t
	}

	limit := queryInt(query.Get("limit"), 50)
	offset := queryInt(query.Get("offset"), 0)

	items, total, err := h.service.ListTasks(r.Context(), filter, limit, offset)
	if err != nil {
		log.Printf("WARN tasks: list failed: %v", err)
		problem.WriteError(w, r, err)
		return
	}

	resp := ListTasksResponse{
		Items:  make([]TaskResponse, 0, len(items)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for i := range items {
		resp.Items = append(resp.Items, toTaskResponse(&items[i]))
	}
	h.sendJSON(w, http.StatusOK, resp)
}

// HandleGetTask обрабатывает GET /api/v1/report-6406/tasks/{id}.
func (h *Handlers) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.service.GetTask(r.Context(), id)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, toTaskResponse(task))
}

// HandleBulkDelete обрабатывает DELETE /api/v1/report-6406/tasks.
func (h *Handlers) HandleBulkDelete(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.decodeBulk(w, r)
	if !ok {
		return
	}
	results := h.service.BulkDelete(r.Context(), ids)
	h.sendJSON(w, http.StatusOK, BulkResponse{Results: results})
}

// HandleBulkStart обрабатывает POST /api/v1/report-6406/tasks/start.
func (h *Handlers) HandleBulkStart(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.decodeBulk(w, r)
	if !ok {
		return
	}

	results, err := h.service.BulkStart(r.Context(), ids, userctx.UserOrAnonymous(r.Context()))
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, BulkResponse{Results: results})
}

// HandleBulkCancel обрабатывает POST /api/v1/report-6406/tasks/cancel.
func (h *Handlers) HandleBulkCancel(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.decodeBulk(w, r)
	if !ok {
		return
	}
	results := h.service.BulkCancel(r.Context(), ids, userctx.UserOrAnonymous(r.Context()))
	h.sendJSON(w, http.StatusOK, BulkResponse{Results: results})
}

// HandleGetHistory обрабатывает GET /api/v1/report-6406/tasks/{id}/status-history.
func (h *Handlers) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	limit := queryInt(r.URL.Query().Get("limit"), 50)
	offset := queryInt(r.URL.Query().Get("offset"), 0)

	entries, total, err := h.service.History(r.Context(), id, limit, offset)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	resp := HistoryResponse{
		Items:  make([]HistoryEntryResponse, 0, len(entries)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, entry := range entries {
		resp.Items = append(resp.Items, toHistoryResponse(entry))
	}
	h.sendJSON(w, http.StatusOK, resp)
}

func (h *Handlers) decodeBulk(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_json",
			"Validation Failed", "invalid JSON body")
		return nil, false
	}
	if len(req.IDs) == 0 {
		problem.Write(w, r, http.StatusUnprocessableEntity, "empty_ids",
			"Validation Failed", "ids must be a non-empty list")
		return nil, false
	}
	return req.IDs, true
}

func (h *Handlers) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_id",
			"Validation Failed", "task id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
