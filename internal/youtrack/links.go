package youtrack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fdg312/report-hub/internal/apperr"
)

// Links — файловый манифест привязок: task ID -> список issue ID.
type Links struct {
	mu   sync.Mutex
	path string
}

func NewLinks(path string) *Links {
	return &Links{path: path}
}

// Get возвращает issue ID, привязанные к задаче.
func (l *Links) Get(taskID string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	manifest, err := l.load()
	if err != nil {
		return nil, err
	}
	return manifest[taskID], nil
}

// All возвращает весь манифест.
func (l *Links) All() (map[string][]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Add привязывает issue к задаче. Повторная привязка — Conflict.
func (l *Links) Add(taskID, issueID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	manifest, err := l.load()
	if err != nil {
		return err
	}

	for _, existing := range manifest[taskID] {
		if existing == issueID {
			return apperr.Conflict("link_exists",
				fmt.Sprintf("issue %s is already linked to task %s", issueID, taskID))
		}
	}

	manifest[taskID] = append(manifest[taskID], issueID)
	return l.save(manifest)
}

// Remove снимает привязку. Отсутствующая привязка — NotFound.
func (l *Links) Remove(taskID, issueID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	manifest, err := l.load()
	if err != nil {
		return err
	}

	issues := manifest[taskID]
	for i, existing := range issues {
		if existing == issueID {
			issues = append(issues[:i], issues[i+1:]...)
			if len(issues) == 0 {
				delete(manifest, taskID)
			} else {
				manifest[taskID] = issues
			}
			return l.save(manifest)
		}
	}

	return apperr.NotFound("link_not_found",
		fmt.Sprintf("issue %s is not linked to task %s", issueID, taskID))
}

func (l *Links) load() (map[string][]string, error) {
	manifest := make(map[string][]string)
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return manifest, nil
		}
		return nil, fmt.Errorf("failed to read links manifest: %w", err)
	}
	if len(data) == 0 {
		return manifest, nil
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse links manifest: %w", err)
	}
	return manifest, nil
}

func (l *Links) save(manifest map[string][]string) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal links manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create links dir: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write links manifest: %w", err)
	}
	return nil
}
