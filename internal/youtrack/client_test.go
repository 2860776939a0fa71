package youtrack

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_ServerErrorArmsCooldown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token", time.Second, time.Minute)

	_, err := client.CreateIssue(context.Background(), "summary", "", nil)
	var remote *RemoteError
	if !errors.As(err, &remote) || !remote.Retryable {
		t.Fatalf("expected retryable RemoteError, got %v", err)
	}
	if !client.IsUnavailable() {
		t.Error("5xx must arm the cooldown window")
	}
}

func TestClient_ClientErrorDoesNotArmCooldown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token", time.Second, time.Minute)

	err := client.LinkIssue(context.Background(), "RPT-1", "t-1")
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Retryable {
		t.Fatalf("expected non-retryable RemoteError, got %v", err)
	}
	if client.IsUnavailable() {
		t.Error("4xx must not arm the cooldown window")
	}
}

func TestClient_SetUnavailableFor(t *testing.T) {
	client := NewClient("http://youtrack.local", "token", time.Second, time.Minute)

	client.SetUnavailableFor(time.Minute)
	if !client.IsUnavailable() {
		t.Error("expected unavailable after arming")
	}

	client.SetUnavailableFor(0)
	if client.IsUnavailable() {
		t.Error("zero duration must clear the window")
	}
}

func TestClient_IsConfigured(t *testing.T) {
	if NewClient("", "", time.Second, 0).IsConfigured() {
		t.Error("empty base URL and token must not be configured")
	}
	if NewClient("http://youtrack.local", "", time.Second, 0).IsConfigured() {
		t.Error("missing token must not be configured")
	}
	if !NewClient("http://youtrack.local", "token", time.Second, 0).IsConfigured() {
		t.Error("base URL + token must be configured")
	}
}
