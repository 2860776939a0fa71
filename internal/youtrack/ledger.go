package youtrack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger — файловый журнал операций синхронизации. Файл является
// единственным источником истины; каждый цикл чтение-изменение-запись
// выполняется под одним мьютексом.
type Ledger struct {
	mu   sync.Mutex
	path string
}

type ledgerDoc struct {
	Operations []Operation `json:"operations"`
}

func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Append добавляет новую pending операцию и возвращает её.
func (l *Ledger) Append(opType string, payload OperationPayload) (*Operation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	op := Operation{
		ID:        uuid.New(),
		Type:      opType,
		Status:    OpStatusPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc.Operations = append(doc.Operations, op)

	if err := l.save(doc); err != nil {
		return nil, err
	}
	return &op, nil
}

// List возвращает все операции в порядке создания.
func (l *Ledger) List() ([]Operation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	return doc.Operations, nil
}

// Pending возвращает pending операции в порядке создания.
func (l *Ledger) Pending() ([]Operation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return nil, err
	}

	var pending []Operation
	for _, op := range doc.Operations {
		if op.Status == OpStatusPending {
			pending = append(pending, op)
		}
	}
	return pending, nil
}

// Update изменяет операцию через mutate и сохраняет файл.
func (l *Ledger) Update(id uuid.UUID, mutate func(*Operation)) (*Operation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return nil, err
	}

	for i := range doc.Operations {
		if doc.Operations[i].ID == id {
			mutate(&doc.Operations[i])
			doc.Operations[i].UpdatedAt = time.Now()
			if err := l.save(doc); err != nil {
				return nil, err
			}
			op := doc.Operations[i]
			return &op, nil
		}
	}
	return nil, fmt.Errorf("operation %s not found in ledger", id)
}

func (l *Ledger) load() (ledgerDoc, error) {
	var doc ledgerDoc
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, fmt.Errorf("failed to read ledger: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse ledger: %w", err)
	}
	return doc, nil
}

func (l *Ledger) save(doc ledgerDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger dir: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return nil
}
