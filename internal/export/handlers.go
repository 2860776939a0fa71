package export

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/fdg312/report-hub/internal/problem"
	"github.com/fdg312/report-hub/internal/userctx"
	"github.com/google/uuid"
)

// Handlers — HTTP обработчики выгрузок.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleExport обрабатывает POST /api/v1/report-6406/tasks/export.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_json",
			"Validation Failed", "invalid JSON body")
		return
	}

	descriptor, err := h.service.Export(r.Context(), req, userctx.UserOrAnonymous(r.Context()))
	if err != nil {
		log.Printf("WARN export: export failed: %v", err)
		problem.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(descriptor)
}

// HandleDownload обрабатывает GET /api/v1/report-6406/exports/{id}/download.
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		problem.Write(w, r, http.StatusUnprocessableEntity, "invalid_id",
			"Validation Failed", "export id must be a UUID")
		return
	}

	data, redirectURL, fileName, contentType, err := h.service.Download(r.Context(), id)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	if redirectURL != "" {
		http.Redirect(w, r, redirectURL, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.Write(data)
}
