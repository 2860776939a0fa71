package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/fdg312/report-hub/internal/problem"
)

// Handlers — HTTP обработчики авторизации.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleDevAuth обрабатывает POST /api/v1/auth/dev.
func (h *Handlers) HandleDevAuth(w http.ResponseWriter, r *http.Request) {
	var req DevAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, r, http.StatusUnprocessableEntity, "validation",
			"Validation Failed", "invalid JSON body")
		return
	}

	resp, err := h.service.SignInDev(req.UserName)
	if err != nil {
		if errors.Is(err, ErrEmptyUser) {
			problem.Write(w, r, http.StatusUnprocessableEntity, "validation",
				"Validation Failed", "userName is required")
			return
		}
		log.Printf("WARN auth: dev sign-in failed: %v", err)
		problem.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
