package taskfiles

import (
	"time"
)

// Статусы конвертации файла задачи.
const (
	FileStatusPending    = "PENDING"
	FileStatusProcessing = "PROCESSING"
	FileStatusCompleted  = "COMPLETED"
	FileStatusFailed     = "FAILED"
)

// FileResponse — файл задачи в ответах API. DownloadURL заполняется только
// для COMPLETED файлов и действует ограниченное время.
type FileResponse struct {
	ID                   string     `json:"id"`
	TaskID               string     `json:"taskId"`
	FileName             string     `json:"fileName"`
	FileSize             int64      `json:"fileSize"`
	FileType             string     `json:"fileType"`
	Status               string     `json:"status"`
	DownloadURL          *string    `json:"downloadUrl"`
	DownloadURLExpiresAt *time.Time `json:"downloadUrlExpiresAt"`
	ErrorMessage         *string    `json:"errorMessage"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// ListFilesResponse — файлы одной задачи.
type ListFilesResponse struct {
	Items []FileResponse `json:"items"`
}
