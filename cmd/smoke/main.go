package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

const (
	defaultAPIBase = "http://localhost:8080"
)

var (
	apiBase    string
	token      string
	client     = &http.Client{Timeout: 30 * time.Second}
	createdIDs = make(map[string]string) // track created resources for cleanup
)

func main() {
	fmt.Println("=== Report Hub E2E Smoke Test ===")
	fmt.Println()

	// Load config from env
	apiBase = getEnv("API_BASE_URL", defaultAPIBase)
	token = getEnv("SMOKE_TOKEN", "")

	fmt.Printf("API Base: %s\n", apiBase)
	fmt.Printf("Token: %s\n", maskString(token))
	fmt.Println()

	// Run smoke tests
	steps := []struct {
		name string
		fn   func() error
	}{
		{"Healthz", testHealthz},
		{"Dev Auth", testDevAuth},
		{"Create Task", testCreateTask},
		{"Get Task", testGetTask},
		{"Start Tasks", testStartTasks},
		{"Status History", testStatusHistory},
		{"Storage Volume", testStorageVolume},
		{"Export (CSV)", testExportCSV},
		{"Download Export", testDownloadExport},
		{"Blacklist Round Trip", testBlacklistRoundTrip},
		{"YouTrack Queue", testYouTrackQueue},
		{"Cancel Tasks", testCancelTasks},
		{"Delete Tasks", testDeleteTasks},
	}

	failed := false
	for i, step := range steps {
		fmt.Printf("[%d/%d] %s... ", i+1, len(steps), step.name)
		if err := step.fn(); err != nil {
			fmt.Printf("❌ FAILED\n")
			fmt.Printf("  Error: %v\n\n", err)
			failed = true
			break
		}
		fmt.Printf("✅ OK\n")
	}

	fmt.Println()
	if failed {
		fmt.Println("❌ SMOKE TEST FAILED")
		os.Exit(1)
	}

	fmt.Println("✅ ALL SMOKE TESTS PASSED")
}

func testHealthz() error {
	req, err := http.NewRequest("GET", apiBase+"/healthz", nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	return nil
}

func testDevAuth() error {
	// If token already set via env, skip
	if token != "" {
		return nil
	}

	payload := map[string]string{"userName": "smoke"}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", apiBase+"/api/v1/auth/dev", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	if result.AccessToken == "" {
		return fmt.Errorf("empty access token")
	}

	token = result.AccessToken
	return nil
}

func testCreateTask() error {
	periodEnd := time.Now().Format("2006-01-02")
	periodStart := time.Now().AddDate(0, -1, 0).Format("2006-01-02")

	payload := map[string]interface{}{
		"branchId":    "0001",
		"reportType":  "6406",
		"sourceCode":  "ABS",
		"currency":    "RUB",
		"format":      "xml",
		"periodStart": periodStart,
		"periodEnd":   periodEnd,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", apiBase+"/api/v1/report-6406/tasks", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	addAuth(req)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	if result.Status != "created" {
		return fmt.Errorf("expected status created, got %q", result.Status)
	}

	createdIDs["task"] = result.ID
	return nil
}

func testGetTask() error {
	taskID := createdIDs["task"]
	if taskID == "" {
		return fmt.Errorf("no task ID to get")
	}

	req, err := http.NewRequest("GET", apiBase+"/api/v1/report-6406/tasks/"+taskID, nil)
	if err != nil {
		return err
	}
	addAuth(req)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	return nil
}

func testStartTasks() error {
	taskID := createdIDs["task"]
	if taskID == "" {
		return fmt.Errorf("no task ID to start")
	}

	results, err := bulkOp("POST", apiBase+"/api/v1/report-6406/tasks/start", taskID)
	if err != nil {
		return err
	}
	if len(results) != 1 || !results[0].Success {
		return fmt.Errorf("unexpected bulk start results: %+v", results)
	}

	return nil
}

func testStatusHistory() error {
	taskID := createdIDs["task"]
	if taskID == "" {
		return fmt.Errorf("no task ID for history")
	}

	req, err := http.NewRequest("GET", apiBase+"/api/v1/report-6406/tasks/"+taskID+"/status-history", nil)
	if err != nil {
		return err
	}
	addAuth(req)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		Items []struct {
			Status string `json:"status"`
		} `json:"items"`
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	// created + started
	if result.Total < 2 {
		return fmt.Errorf("expected at least 2 history entries, got %d", result.Total)
	}
	if result.Items[0].Status != "started" {
		return fmt.Errorf("expected latest entry started, got %q", result.Items[0].Status)
	}

	return nil
}

func testStorageVolume() error {
	req, err := http.NewRequest("GET", apiBase+"/api/v1/report-6406/storage/volume", nil)
	if err != nil {
		return err
	}
	addAuth(req)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		TotalBytes int64 `json:"totalBytes"`
		FreeBytes  int64 `json:"freeBytes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	if result.TotalBytes <= 0 {
		return fmt.Errorf("totalBytes is %d", result.TotalBytes)
	}

	return nil
}

func testExportCSV() error {
	payload := map[string]interface{}{
		"format": "csv",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", apiBase+"/api/v1/report-6406/tasks/export", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	addAuth(req)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		ID          string `json:"id"`
		SizeBytes   int64  `json:"sizeBytes"`
		RecordCount int    `json:"recordCount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	if result.SizeBytes < 10 {
		return fmt.Errorf("export size is %d bytes (too small)", result.SizeBytes)
	}
	if result.RecordCount < 1 {
		return fmt.Errorf("expected at least one record, got %d", result.RecordCount)
	}

	createdIDs["export"] = result.ID
	return nil
}

func testDownloadExport() error {
	exportID := createdIDs["export"]
	if exportID == "" {
		return fmt.Errorf("no export ID to download")
	}

	url := fmt.Sprintf("%s/api/v1/report-6406/exports/%s/download", apiBase, exportID)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	addAuth(req)

	// Don't follow redirects automatically - we need to check redirect behavior
	originalCheckRedirect := client.CheckRedirect
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	defer func() { client.CheckRedirect = originalCheckRedirect }()

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Accept 200 (direct serve) or 302 (redirect)
	if resp.StatusCode == http.StatusOK {
		// Direct serve (local mode)
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		if len(data) < 10 {
			return fmt.Errorf("export too small: %d bytes", len(data))
		}
		return nil
	}

	if resp.StatusCode == http.StatusFound {
		// Redirect (S3 mode)
		location := resp.Header.Get("Location")
		if location == "" {
			return fmt.Errorf("redirect without Location header")
		}

		// Follow redirect
		getReq, err := http.NewRequest("GET", location, nil)
		if err != nil {
			return fmt.Errorf("failed to create redirect request: %w", err)
		}

		getResp, err := client.Do(getReq)
		if err != nil {
			return fmt.Errorf("failed to follow redirect: %w", err)
		}
		defer getResp.Body.Close()

		if getResp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(getResp.Body, 4096))
			return fmt.Errorf("redirect failed: status=%d body=%s", getResp.StatusCode, string(body))
		}

		data, err := io.ReadAll(getResp.Body)
		if err != nil {
			return fmt.Errorf("failed to read redirected body: %w", err)
		}
		if len(data) < 10 {
			return fmt.Errorf("export too small: %d bytes", len(data))
		}
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("unexpected status=%d body=%s", resp.StatusCode, string(body))
}

func testBlacklistRoundTrip() error {
	payload := map[string]interface{}{
		"tags": []string{"smoke-test"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	putReq, err := http.NewRequest("PUT", apiBase+"/api/youtrack/tags/blacklist", bytes.NewReader(body))
	if err != nil {
		return err
	}
	putReq.Header.Set("Content-Type", "application/json")
	addAuth(putReq)

	putResp, err := client.Do(putReq)
	if err != nil {
		return err
	}
	defer putResp.Body.Close()

	if putResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(putResp.Body, 4096))
		return fmt.Errorf("PUT status=%d body=%s", putResp.StatusCode, string(body))
	}

	getReq, err := http.NewRequest("GET", apiBase+"/api/youtrack/tags/blacklist", nil)
	if err != nil {
		return err
	}
	addAuth(getReq)

	getResp, err := client.Do(getReq)
	if err != nil {
		return err
	}
	defer getResp.Body.Close()

	if getResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(getResp.Body, 4096))
		return fmt.Errorf("GET status=%d body=%s", getResp.StatusCode, string(body))
	}

	var result struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	if len(result.Tags) != 1 || result.Tags[0] != "smoke-test" {
		return fmt.Errorf("expected [smoke-test], got %v", result.Tags)
	}

	return nil
}

func testYouTrackQueue() error {
	req, err := http.NewRequest("GET", apiBase+"/api/youtrack/queue", nil)
	if err != nil {
		return err
	}
	addAuth(req)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	return nil
}

func testCancelTasks() error {
	taskID := createdIDs["task"]
	if taskID == "" {
		return fmt.Errorf("no task ID to cancel")
	}

	results, err := bulkOp("POST", apiBase+"/api/v1/report-6406/tasks/cancel", taskID)
	if err != nil {
		return err
	}
	if len(results) != 1 || !results[0].Success {
		return fmt.Errorf("unexpected bulk cancel results: %+v", results)
	}

	return nil
}

func testDeleteTasks() error {
	taskID := createdIDs["task"]
	if taskID == "" {
		return fmt.Errorf("no task ID to delete")
	}

	results, err := bulkOp("DELETE", apiBase+"/api/v1/report-6406/tasks", taskID)
	if err != nil {
		return err
	}
	if len(results) != 1 || !results[0].Success {
		return fmt.Errorf("unexpected bulk delete results: %+v", results)
	}

	return nil
}

// Helper functions

type bulkResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
}

func bulkOp(method, url, taskID string) ([]bulkResult, error) {
	payload := map[string]interface{}{"ids": []string{taskID}}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	addAuth(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		Results []bulkResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return result.Results, nil
}

func addAuth(req *http.Request) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
