package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"vendoor.org/internal/auth"
)

func requestWithPrincipal(role string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	ctx := auth.ContextWithPrincipal(req.Context(), auth.Principal{
		User: &auth.User{ID: "user-1", Role: role},
	})
	return req.WithContext(ctx)
}

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	handler := RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithPrincipal(auth.RoleAdmin))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRequireRoleRejectsMissingRole(t *testing.T) {
	handler := RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithPrincipal(auth.RoleUser))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("expected WWW-Authenticate header set")
	}
}

func TestRequireRoleRejectsMissingPrincipal(t *testing.T) {
	handler := RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("expected WWW-Authenticate header set")
	}
}

func TestExtractCredential(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	got, err := extractCredential(req)
	if err != nil || got != "tok-123" {
		t.Fatalf("expected bearer token, got %q err=%v", got, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "sess-456"})
	got, err = extractCredential(req)
	if err != nil || got != "sess-456" {
		t.Fatalf("expected session cookie value, got %q err=%v", got, err)
	}

	// The header wins when both are present.
	req.Header.Set("Authorization", "Bearer tok-123")
	got, err = extractCredential(req)
	if err != nil || got != "tok-123" {
		t.Fatalf("expected header to take precedence, got %q err=%v", got, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if _, err := extractCredential(req); err == nil {
		t.Fatal("expected error for non-bearer scheme")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := extractCredential(req); err == nil {
		t.Fatal("expected error when no credential is presented")
	}
}

func TestIsPublicPath(t *testing.T) {
	for _, p := range []string{"/healthz", "/v1/auth/login", "/v1/auth/signup", "/metrics"} {
		if !isPublicPath(p) {
			t.Fatalf("expected %q to be public", p)
		}
	}
	for _, p := range []string{"/v1/users/me", "/v1/auth/logout", "/v1/auth/send-verification-sms"} {
		if isPublicPath(p) {
			t.Fatalf("expected %q to require a credential", p)
		}
	}
}
