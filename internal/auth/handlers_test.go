package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fdg312/report-hub/internal/config"
	"github.com/fdg312/report-hub/internal/userctx"
)

func testConfig() *config.Config {
	return &config.Config{
		AuthMode:      "dev",
		JWTSecret:     "test-secret",
		JWTIssuer:     "report-hub",
		JWTTTLMinutes: 60,
	}
}

func TestHandleDevAuth(t *testing.T) {
	service := NewService(testConfig())
	handlers := NewHandlers(service)

	req := httptest.NewRequest("POST", "/api/v1/auth/dev", strings.NewReader(`{"userName":"ivanov"}`))
	rec := httptest.NewRecorder()
	handlers.HandleDevAuth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp DevAuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Error("expected non-empty access token")
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("expected token type Bearer, got %q", resp.TokenType)
	}
	if resp.UserName != "ivanov" {
		t.Errorf("expected userName ivanov, got %q", resp.UserName)
	}

	userName, err := service.VerifyJWT(resp.AccessToken)
	if err != nil {
		t.Fatalf("failed to verify issued token: %v", err)
	}
	if userName != "ivanov" {
		t.Errorf("expected sub ivanov, got %q", userName)
	}
}

func TestHandleDevAuth_EmptyUser(t *testing.T) {
	handlers := NewHandlers(NewService(testConfig()))

	req := httptest.NewRequest("POST", "/api/v1/auth/dev", strings.NewReader(`{"userName":"  "}`))
	rec := httptest.NewRecorder()
	handlers.HandleDevAuth(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem+json, got %q", ct)
	}
}

func TestIdentify_UserNameHeader(t *testing.T) {
	cfg := testConfig()
	middleware := NewMiddleware(cfg, NewService(cfg))

	var gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = userctx.UserOrAnonymous(r.Context())
	})

	req := httptest.NewRequest("GET", "/api/v1/report-6406/tasks", nil)
	req.Header.Set("X-User-Name", "petrov")
	rec := httptest.NewRecorder()
	middleware.Identify(next).ServeHTTP(rec, req)

	if gotUser != "petrov" {
		t.Errorf("expected user petrov, got %q", gotUser)
	}
}

func TestIdentify_BearerToken(t *testing.T) {
	cfg := testConfig()
	service := NewService(cfg)
	middleware := NewMiddleware(cfg, service)

	resp, err := service.SignInDev("sidorov")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	var gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = userctx.UserOrAnonymous(r.Context())
	})

	req := httptest.NewRequest("GET", "/api/v1/report-6406/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	rec := httptest.NewRecorder()
	middleware.Identify(next).ServeHTTP(rec, req)

	if gotUser != "sidorov" {
		t.Errorf("expected user sidorov, got %q", gotUser)
	}
}

func TestIdentify_InvalidToken(t *testing.T) {
	cfg := testConfig()
	middleware := NewMiddleware(cfg, NewService(cfg))

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest("GET", "/api/v1/report-6406/tasks", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	middleware.Identify(next).ServeHTTP(rec, req)

	if called {
		t.Error("handler must not be called with invalid token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestIdentify_AnonymousFallback(t *testing.T) {
	cfg := testConfig()
	middleware := NewMiddleware(cfg, NewService(cfg))

	var gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = userctx.UserOrAnonymous(r.Context())
	})

	req := httptest.NewRequest("GET", "/api/v1/report-6406/tasks", nil)
	rec := httptest.NewRecorder()
	middleware.Identify(next).ServeHTTP(rec, req)

	if gotUser != userctx.AnonymousUser {
		t.Errorf("expected anonymous user, got %q", gotUser)
	}
}
