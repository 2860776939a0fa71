package export

import (
	"encoding/json"
	"fmt"
	"time"
)

// Форматы выгрузки. CSV — основной; выбор колонок поддерживается только в CSV.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// StringList принимает в JSON скаляр или список и нормализует к списку.
// Единственное документированное правило коэрции фильтров.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = nil
		} else {
			*l = StringList{single}
		}
		return nil
	}
	return fmt.Errorf("expected string or string array")
}

// FilterRequest — фильтры выгрузки. Клаузы соединяются через AND,
// значения внутри списковой клаузы через OR.
type FilterRequest struct {
	Status          StringList `json:"status"`
	BranchID        StringList `json:"branchId"`
	ReportType      StringList `json:"reportType"`
	Format          StringList `json:"format"`
	PeriodStartFrom string     `json:"periodStartFrom"`
	PeriodStartTo   string     `json:"periodStartTo"`
	CreatedFrom     *time.Time `json:"createdFrom"`
	CreatedTo       *time.Time `json:"createdTo"`
}

// ExportRequest — запрос выгрузки задач.
type ExportRequest struct {
	Filters   FilterRequest `json:"filters"`
	Columns   []string      `json:"columns"`
	SortBy    string        `json:"sortBy"`
	SortOrder string        `json:"sortOrder"`
	Limit     int           `json:"limit"`
	Format    string        `json:"format"` // "csv" (default) или "pdf"
}

// DownloadDescriptor — дескриптор готовой выгрузки.
type DownloadDescriptor struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	Format      string    `json:"format"`
	SizeBytes   int64     `json:"sizeBytes"`
	RecordCount int       `json:"recordCount"`
	ExpiresAt   time.Time `json:"expiresAt"`
	DownloadURL string    `json:"downloadUrl"`
}

// Колонки CSV. Порядок defaultColumns — порядок колонок по умолчанию.
var defaultColumns = []string{
	"id", "branchId", "branchName", "reportType", "sourceCode",
	"currency", "format", "periodStart", "periodEnd", "status",
	"createdBy", "createdAt",
}

var allowedColumns = map[string]bool{
	"id": true, "branchId": true, "branchName": true, "reportType": true,
	"sourceCode": true, "currency": true, "format": true,
	"periodStart": true, "periodEnd": true, "status": true,
	"createdBy": true, "createdAt": true,
}

var allowedSortColumns = map[string]bool{
	"created_at": true, "period_start": true, "branch_id": true,
	"status": true, "report_type": true,
}
