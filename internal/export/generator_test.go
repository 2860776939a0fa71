package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/fdg312/report-hub/internal/storage"
	"github.com/google/uuid"
)

func sampleTasks() []storage.ReportTask {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	make1 := func(branch, status string) storage.ReportTask {
		return storage.ReportTask{
			ID:          uuid.New(),
			BranchID:    branch,
			ReportType:  "6406",
			SourceCode:  "ABS",
			Currency:    "RUB",
			Format:      "xml",
			PeriodStart: "2026-01-01",
			PeriodEnd:   "2026-01-31",
			Status:      status,
			CreatedBy:   "ivanov",
			CreatedAt:   now,
		}
	}
	return []storage.ReportTask{
		make1("0001", "created"),
		make1("0002", "started"),
		make1("0003", "completed"),
	}
}

func TestGenerateCSV_RoundTrip(t *testing.T) {
	tasks := sampleTasks()
	branchNames := map[string]string{
		"0001": "Головной офис",
		"0002": "Branch, East",
		"0003": `Branch "North"`,
	}

	data, err := NewGenerator().GenerateCSV(tasks, defaultColumns, branchNames)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("generated CSV does not parse: %v", err)
	}
	if len(records) != len(tasks)+1 {
		t.Fatalf("expected header + %d rows, got %d records", len(tasks), len(records))
	}

	header := records[0]
	if len(header) != len(defaultColumns) {
		t.Fatalf("expected %d columns, got %d", len(defaultColumns), len(header))
	}
	for i, column := range defaultColumns {
		if header[i] != column {
			t.Errorf("header[%d]: expected %q, got %q", i, column, header[i])
		}
	}

	for i, task := range tasks {
		row := records[i+1]
		if row[0] != task.ID.String() {
			t.Errorf("row %d: expected id %s, got %s", i, task.ID, row[0])
		}
		if row[2] != branchNames[task.BranchID] {
			t.Errorf("row %d: expected branch name %q, got %q", i, branchNames[task.BranchID], row[2])
		}
		if row[9] != task.Status {
			t.Errorf("row %d: expected status %q, got %q", i, task.Status, row[9])
		}
	}

	// Поле с запятой должно быть заквочено в сыром тексте.
	if !bytes.Contains(data, []byte(`"Branch, East"`)) {
		t.Error("expected comma-containing branch name to be quoted")
	}
	if !bytes.Contains(data, []byte(`"Branch ""North"""`)) {
		t.Error("expected embedded quotes to be doubled")
	}
}

func TestGenerateCSV_SelectedColumns(t *testing.T) {
	tasks := sampleTasks()
	columns := []string{"id", "status"}

	data, err := NewGenerator().GenerateCSV(tasks, columns, nil)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(records[0]) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(records[0]))
	}
	if records[1][1] != "created" {
		t.Errorf("expected status created, got %q", records[1][1])
	}
}

func TestGeneratePDF(t *testing.T) {
	data, err := NewGenerator().GeneratePDF(sampleTasks())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("expected PDF magic header")
	}
}
