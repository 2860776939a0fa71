package youtrack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Blacklist — файловый набор тегов, исключаемых из исходящей
// синхронизации. Хранение с сохранением регистра, сравнение без учёта
// регистра.
type Blacklist struct {
	mu   sync.Mutex
	path string
}

type blacklistDoc struct {
	Tags []string `json:"tags"`
}

func NewBlacklist(path string) *Blacklist {
	return &Blacklist{path: path}
}

// List возвращает текущий набор тегов.
func (b *Blacklist) List() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return nil, err
	}
	return doc.Tags, nil
}

// Replace полностью заменяет набор нормализованным списком.
func (b *Blacklist) Replace(tags []string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc := blacklistDoc{Tags: normalizeTags(tags)}
	if err := b.save(doc); err != nil {
		return nil, err
	}
	return doc.Tags, nil
}

// Add добавляет тег; повторное добавление — no-op.
func (b *Blacklist) Add(tag string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, fmt.Errorf("empty tag")
	}

	doc, err := b.load()
	if err != nil {
		return nil, err
	}
	for _, existing := range doc.Tags {
		if strings.EqualFold(existing, tag) {
			return doc.Tags, nil
		}
	}

	doc.Tags = append(doc.Tags, tag)
	if err := b.save(doc); err != nil {
		return nil, err
	}
	return doc.Tags, nil
}

// Remove убирает тег; отсутствующий тег — no-op.
func (b *Blacklist) Remove(tag string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tag = strings.TrimSpace(tag)
	doc, err := b.load()
	if err != nil {
		return nil, err
	}

	kept := doc.Tags[:0]
	for _, existing := range doc.Tags {
		if !strings.EqualFold(existing, tag) {
			kept = append(kept, existing)
		}
	}
	doc.Tags = kept

	if err := b.save(doc); err != nil {
		return nil, err
	}
	return doc.Tags, nil
}

// FilterTags убирает из списка теги, попавшие в blacklist (без учёта
// регистра и внешних пробелов).
func (b *Blacklist) FilterTags(tags []string) ([]string, error) {
	blacklisted, err := b.List()
	if err != nil {
		return nil, err
	}

	index := make(map[string]bool, len(blacklisted))
	for _, tag := range blacklisted {
		index[strings.ToLower(tag)] = true
	}

	var out []string
	for _, tag := range tags {
		if !index[strings.ToLower(strings.TrimSpace(tag))] {
			out = append(out, tag)
		}
	}
	return out, nil
}

// normalizeTags обрезает пробелы и убирает дубликаты (без учёта регистра,
// остаётся первое вхождение).
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}

func (b *Blacklist) load() (blacklistDoc, error) {
	var doc blacklistDoc
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, fmt.Errorf("failed to read blacklist: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse blacklist: %w", err)
	}
	return doc, nil
}

func (b *Blacklist) save(doc blacklistDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal blacklist: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("failed to create blacklist dir: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write blacklist: %w", err)
	}
	return nil
}
