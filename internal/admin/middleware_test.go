package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestTokens_Validate(t *testing.T) {
	tokens := NewTokens("admin-secret", "viewer-secret")

	tests := []struct {
		token string
		scope string
		ok    bool
	}{
		{"admin-secret", ScopeAdmin, true},
		{"viewer-secret", ScopeReadOnly, true},
		{"admin-secret2", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		scope, ok := tokens.Validate(tt.token)
		if scope != tt.scope || ok != tt.ok {
			t.Errorf("Validate(%q) = (%q, %v), want (%q, %v)", tt.token, scope, ok, tt.scope, tt.ok)
		}
	}
}

func TestTokens_Empty(t *testing.T) {
	if !NewTokens("", "").Empty() {
		t.Error("expected empty token set")
	}
	if NewTokens("x", "").Empty() {
		t.Error("expected non-empty token set")
	}
	var nilTokens *Tokens
	if _, ok := nilTokens.Validate("x"); ok {
		t.Error("nil token set must reject everything")
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	var scope string
	handler := AuthMiddleware(NewTokens("admin-secret", ""))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, _ = ScopeFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer admin-secret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusOK)
	}
	if scope != ScopeAdmin {
		t.Errorf("scope = %q, want admin", scope)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	handler := AuthMiddleware(NewTokens("admin-secret", ""))(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("handler should not be called")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer wrong"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: got status %d, want 401", header, rr.Code)
		}
	}
}

func TestRequireScope_NoAuth(t *testing.T) {
	handler := RequireScope(ScopeAdmin)(http.HandlerFunc(okHandler))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rr.Code)
	}
}

func TestWriteError_Defaults(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, http.StatusNotFound, "missing", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got status %d", rr.Code)
	}
	want := `{"error":{"code":"not_found_error","message":"missing","type":"not_found_error"}}` + "\n"
	if rr.Body.String() != want {
		t.Errorf("body = %q, want %q", rr.Body.String(), want)
	}
}
