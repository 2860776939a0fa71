package youtrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RemoteError — ошибка удалённого вызова YouTrack. Retryable различает
// 5xx/таймауты (в очередь) и 4xx (показать вызывающему).
type RemoteError struct {
	StatusCode int
	Retryable  bool
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("youtrack: status=%d retryable=%t: %s", e.StatusCode, e.Retryable, e.Message)
}

// Client — HTTP клиент YouTrack с окном недоступности. После 5xx или
// таймаута клиент считается недоступным на время cooldown; обращения
// в этом окне не делаются.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	cooldown time.Duration

	mu               sync.Mutex
	unavailableUntil time.Time
}

func NewClient(baseURL, token string, timeout, cooldown time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		token:    token,
		http:     &http.Client{Timeout: timeout},
		cooldown: cooldown,
	}
}

// IsConfigured сообщает, заданы ли адрес и токен.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.token != ""
}

// IsUnavailable сообщает, действует ли окно недоступности.
func (c *Client) IsUnavailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Before(c.unavailableUntil)
}

// SetUnavailableFor взводит окно недоступности; d <= 0 снимает его.
func (c *Client) SetUnavailableFor(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		c.unavailableUntil = time.Time{}
		return
	}
	c.unavailableUntil = time.Now().Add(d)
}

// CreateIssue создаёт issue и возвращает его ID.
func (c *Client) CreateIssue(ctx context.Context, summary, description string, tags []string) (string, error) {
	type tagBody struct {
		Name string `json:"name"`
	}
	body := struct {
		Summary     string    `json:"summary"`
		Description string    `json:"description,omitempty"`
		Tags        []tagBody `json:"tags,omitempty"`
	}{Summary: summary, Description: description}
	for _, tag := range tags {
		body.Tags = append(body.Tags, tagBody{Name: tag})
	}

	data, err := c.do(ctx, http.MethodPost, "/api/issues?fields=id,idReadable", body)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID         string `json:"id"`
		IDReadable string `json:"idReadable"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse issue response: %w", err)
	}
	if resp.IDReadable != "" {
		return resp.IDReadable, nil
	}
	return resp.ID, nil
}

// LinkIssue привязывает issue к задаче (комментарий-ссылка на задачу).
func (c *Client) LinkIssue(ctx context.Context, issueID, taskID string) error {
	body := struct {
		Text string `json:"text"`
	}{Text: fmt.Sprintf("Linked to report task %s", taskID)}

	_, err := c.do(ctx, http.MethodPost, "/api/issues/"+issueID+"/comments", body)
	return err
}

// UnlinkIssue снимает привязку issue к задаче.
func (c *Client) UnlinkIssue(ctx context.Context, issueID, taskID string) error {
	body := struct {
		Text string `json:"text"`
	}{Text: fmt.Sprintf("Unlinked from report task %s", taskID)}

	_, err := c.do(ctx, http.MethodPost, "/api/issues/"+issueID+"/comments", body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, &RemoteError{Retryable: true, Message: "client is not configured"}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Таймаут и сетевые ошибки считаются временными.
		c.SetUnavailableFor(c.cooldown)
		return nil, &RemoteError{Retryable: true, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode >= 500:
		c.SetUnavailableFor(c.cooldown)
		return nil, &RemoteError{StatusCode: resp.StatusCode, Retryable: true, Message: truncate(string(data), 200)}
	default:
		return nil, &RemoteError{StatusCode: resp.StatusCode, Retryable: false, Message: truncate(string(data), 200)}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
