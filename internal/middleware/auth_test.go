package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quickshop/catalog/internal/app/domain/user"
	"github.com/quickshop/catalog/internal/app/services/users"
	"github.com/quickshop/catalog/internal/app/storage/memory"
)

func newAuthFixture(t *testing.T) (*AuthMiddleware, string) {
	t.Helper()

	svc := users.New(memory.New(), []byte("test-secret"), time.Hour, nil)
	u, err := svc.Register(context.Background(), "mw@example.com", "hunter2hunter2", user.RoleAdmin)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, _, err := svc.IssueToken(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return NewAuthMiddleware(svc, nil, []string{"/healthz"}), token
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	mw, _ := newAuthFixture(t)
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a token")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/products", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	mw, _ := newAuthFixture(t)
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run with a bad token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddlewarePropagatesIdentity(t *testing.T) {
	mw, token := newAuthFixture(t)

	var gotUser, gotRole string
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		gotRole = GetRole(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if gotUser == "" {
		t.Fatal("expected user id in context")
	}
	if gotRole != user.RoleAdmin {
		t.Fatalf("expected admin role, got %q", gotRole)
	}
}

func TestAuthMiddlewareQueryTokenFallback(t *testing.T) {
	mw, token := newAuthFixture(t)

	handlerRan := false
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ws/echo?access_token="+token, nil))
	if !handlerRan {
		t.Fatal("expected handler to run with query token")
	}
}

func TestAuthMiddlewareSkipPaths(t *testing.T) {
	mw, _ := newAuthFixture(t)

	handlerRan := false
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !handlerRan {
		t.Fatal("expected skip path to pass through")
	}
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
