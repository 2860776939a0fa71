package youtrack

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/fdg312/report-hub/internal/problem"
)

// Handlers — HTTP обработчики очереди синхронизации и blacklist тегов.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleListQueue обрабатывает GET /api/youtrack/queue.
func (h *Handlers) HandleListQueue(w http.ResponseWriter, r *http.Request) {
	ops, err := h.service.ListOperations()
	if err != nil {
		log.Printf("WARN youtrack: failed to read ledger: %v", err)
		problem.WriteError(w, r, err)
		return
	}
	if ops == nil {
		ops = []Operation{}
	}
	h.sendJSON(w, http.StatusOK, map[string]any{"operations": ops})
}

// HandleProcessQueue обрабатывает POST /api/youtrack/queue/process.
func (h *Handlers) HandleProcessQueue(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ProcessPending(r.Context())
	if err != nil {
		log.Printf("WARN youtrack: queue processing failed: %v", err)
		problem.WriteError(w, r, err)
		return
	}
	if result.Errors == nil {
		result.Errors = []OperationError{}
	}
	h.sendJSON(w, http.StatusOK, result)
}

// HandleCreateIssue обрабатывает POST /api/youtrack/tasks.
func (h *Handlers) HandleCreateIssue(w http.ResponseWriter, r *http.Request) {
	var req CreateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_json",
			"Validation Failed", "invalid JSON body")
		return
	}

	result, err := h.service.CreateIssue(r.Context(), req)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, result)
}

// HandleListLinks обрабатывает GET /api/youtrack/tasks/{taskId}/links.
func (h *Handlers) HandleListLinks(w http.ResponseWriter, r *http.Request) {
	issues, err := h.service.Links().Get(r.PathValue("taskId"))
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}
	if issues == nil {
		issues = []string{}
	}
	h.sendJSON(w, http.StatusOK, map[string]any{"issueIds": issues})
}

// HandleAddLink обрабатывает POST /api/youtrack/tasks/{taskId}/links.
func (h *Handlers) HandleAddLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IssueID string `json:"issueId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IssueID == "" {
		problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_link",
			"Validation Failed", "issueId is required")
		return
	}

	result, err := h.service.AddLink(r.Context(), r.PathValue("taskId"), req.IssueID)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, result)
}

// HandleRemoveLink обрабатывает DELETE /api/youtrack/tasks/{taskId}/links/{issueId}.
func (h *Handlers) HandleRemoveLink(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RemoveLink(r.Context(), r.PathValue("taskId"), r.PathValue("issueId"))
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, result)
}

// HandleGetBlacklist обрабатывает GET /api/youtrack/tags/blacklist.
func (h *Handlers) HandleGetBlacklist(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.Blacklist().List()
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}
	h.sendTags(w, tags)
}

// HandleReplaceBlacklist обрабатывает PUT /api/youtrack/tags/blacklist.
func (h *Handlers) HandleReplaceBlacklist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_json",
			"Validation Failed", "invalid JSON body")
		return
	}

	tags, err := h.service.Blacklist().Replace(req.Tags)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}
	h.sendTags(w, tags)
}

// HandleAddBlacklistTag обрабатывает POST /api/youtrack/tags/blacklist.
func (h *Handlers) HandleAddBlacklistTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := h.decodeTag(w, r)
	if !ok {
		return
	}
	tags, err := h.service.Blacklist().Add(tag)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}
	h.sendTags(w, tags)
}

// HandleRemoveBlacklistTag обрабатывает DELETE /api/youtrack/tags/blacklist.
func (h *Handlers) HandleRemoveBlacklistTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := h.decodeTag(w, r)
	if !ok {
		return
	}
	tags, err := h.service.Blacklist().Remove(tag)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}
	h.sendTags(w, tags)
}

func (h *Handlers) decodeTag(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tag == "" {
		problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_tag",
			"Validation Failed", "tag is required")
		return "", false
	}
	return req.Tag, true
}

func (h *Handlers) sendTags(w http.ResponseWriter, tags []string) {
	if tags == nil {
		tags = []string{}
	}
	h.sendJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
