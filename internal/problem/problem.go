package problem

import (
	"encoding/json"
	"net/http"

	"github.com/fdg312/report-hub/internal/apperr"
)

// TypeBaseURL — префикс стабильных type URI в problem-ответах.
const TypeBaseURL = "https://report-hub.dev/problems/"

// Problem — RFC 7807 Problem Details документ.
type Problem struct {
	Type     string              `json:"type"`
	Title    string              `json:"title"`
	Status   int                 `json:"status"`
	Detail   string              `json:"detail"`
	Instance string              `json:"instance,omitempty"`
	Errors   []apperr.FieldError `json:"errors,omitempty"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:          http.StatusUnprocessableEntity,
	apperr.KindNotFound:            http.StatusNotFound,
	apperr.KindConflict:            http.StatusConflict,
	apperr.KindInsufficientStorage: http.StatusInsufficientStorage,
	apperr.KindNotImplemented:      http.StatusNotImplemented,
	apperr.KindUnavailable:         http.StatusServiceUnavailable,
	apperr.KindInternal:            http.StatusInternalServerError,
}

var kindTitle = map[apperr.Kind]string{
	apperr.KindValidation:          "Validation Failed",
	apperr.KindNotFound:            "Not Found",
	apperr.KindConflict:            "Conflict",
	apperr.KindInsufficientStorage: "Insufficient Storage",
	apperr.KindNotImplemented:      "Not Implemented",
	apperr.KindUnavailable:         "Upstream Unavailable",
	apperr.KindInternal:            "Internal Server Error",
}

// StatusForKind возвращает HTTP статус для Kind.
func StatusForKind(kind apperr.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Write пишет problem-документ с указанным статусом.
func Write(w http.ResponseWriter, r *http.Request, status int, code, title, detail string) {
	writeDoc(w, r, Problem{
		Type:   TypeBaseURL + code,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// WriteError мапит типизированную ошибку сервиса в problem-ответ.
// Нетипизированные ошибки становятся 500 без утечки внутренних деталей.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	typed, ok := apperr.As(err)
	if !ok {
		Write(w, r, http.StatusInternalServerError, "internal", "Internal Server Error", "internal error")
		return
	}

	kind := typed.Kind
	writeDoc(w, r, Problem{
		Type:   TypeBaseURL + typed.Code,
		Title:  kindTitle[kind],
		Status: StatusForKind(kind),
		Detail: typed.Message,
		Errors: typed.Fields,
	})
}

func writeDoc(w http.ResponseWriter, r *http.Request, doc Problem) {
	if doc.Instance == "" && r != nil {
		doc.Instance = r.URL.Path
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(doc.Status)
	json.NewEncoder(w).Encode(doc)
}
