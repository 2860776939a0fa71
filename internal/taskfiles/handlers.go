package taskfiles

import (
	"encoding/json"
	"net/http"

	"github.com/fdg312/report-hub/internal/problem"
	"github.com/google/uuid"
)

// Handlers — HTTP обработчики файлов задач.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleListFiles обрабатывает GET /api/v1/report-6406/tasks/{id}/files.
func (h *Handlers) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_id",
			"Validation Failed", "task id must be a UUID")
		return
	}

	files, err := h.service.ListFiles(r.Context(), taskID)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListFilesResponse{Items: files})
}

// HandleRetryFile обрабатывает POST /api/v1/report-6406/tasks/{taskId}/files/{fileId}/retry.
func (h *Handlers) HandleRetryFile(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("taskId"))
	if err != nil {
		problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_id",
			"Validation Failed", "task id must be a UUID")
		return
	}
	fileID, err := uuid.Parse(r.PathValue("fileId"))
	if err != nil {
		problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_id",
			"Validation Failed", "file id must be a UUID")
		return
	}

	// RetryConversion всегда возвращает ошибку: либо нарушенное
	// предусловие, либо NotImplemented.
	err = h.service.RetryConversion(r.Context(), taskID, fileID)
	problem.WriteError(w, r, err)
}
