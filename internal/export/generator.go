package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/fdg312/report-hub/internal/storage"
	"github.com/jung-kurt/gofpdf"
)

// Generator сериализует отобранные задачи в CSV или сводный PDF.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateCSV пишет задачи в CSV c заголовком из выбранных колонок.
// Квотирование по RFC 4180 обеспечивает encoding/csv.
func (g *Generator) GenerateCSV(tasks []storage.ReportTask, columns []string, branchNames map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, err
	}

	for i := range tasks {
		row := make([]string, 0, len(columns))
		for _, column := range columns {
			row = append(row, columnValue(&tasks[i], column, branchNames))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func columnValue(task *storage.ReportTask, column string, branchNames map[string]string) string {
	switch column {
	case "id":
		return task.ID.String()
	case "branchId":
		return task.BranchID
	case "branchName":
		return branchNames[task.BranchID]
	case "reportType":
		return task.ReportType
	case "sourceCode":
		return task.SourceCode
	case "currency":
		return task.Currency
	case "format":
		return task.Format
	case "periodStart":
		return task.PeriodStart
	case "periodEnd":
		return task.PeriodEnd
	case "status":
		return task.Status
	case "createdBy":
		return task.CreatedBy
	case "createdAt":
		return task.CreatedAt.Format(time.RFC3339)
	}
	return ""
}

// GeneratePDF рендерит сводный PDF по отобранному окну задач.
func (g *Generator) GeneratePDF(tasks []storage.ReportTask) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Report 6406 tasks export")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04")))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Tasks in window: %d", len(tasks)))
	pdf.Ln(12)

	byStatus := make(map[string]int)
	for i := range tasks {
		byStatus[tasks[i].Status]++
	}

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, "By status")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 12)
	for _, status := range []string{"created", "started", "completed", "failed", "cancelled"} {
		if count := byStatus[status]; count > 0 {
			pdf.Cell(0, 7, fmt.Sprintf("%s: %d", status, count))
			pdf.Ln(7)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}
