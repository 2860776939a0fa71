package storagevol

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/fdg312/report-hub/internal/problem"
)

// Handlers — HTTP обработчики состояния хранилища.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleGetVolume обрабатывает GET /api/v1/report-6406/storage/volume.
func (h *Handlers) HandleGetVolume(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Snapshot(r.Context())
	if err != nil {
		log.Printf("WARN storagevol: snapshot failed: %v", err)
		problem.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}
