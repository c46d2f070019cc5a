package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestMiddlewareNoopPropagatesUser(t *testing.T) {
	verifier, err := NewVerifier(Config{Mode: ModeNoop})
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}

	var got AuthenticatedUser
	h := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer user-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.UserID != "user-42" {
		t.Fatalf("expected user-42 on context, got %q", got.UserID)
	}
}

func TestMiddlewareRejectsMalformedHeader(t *testing.T) {
	verifier, _ := NewVerifier(Config{Mode: ModeNoop})
	h := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not be reached")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer   "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

// tokenVerifier accepts a single token and does not trust the user header.
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) (AuthenticatedUser, error) {
	if token != "valid-token" {
		return AuthenticatedUser{}, errors.New("token verification failed")
	}
	return AuthenticatedUser{UserID: "user_from_token", Token: token}, nil
}

func serve(t *testing.T, verifier Verifier, headers map[string]string) (int, AuthenticatedUser) {
	t.Helper()
	var got AuthenticatedUser
	h := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code, got
}

func TestMiddlewareNoopTrustsUserHeader(t *testing.T) {
	verifier, _ := NewVerifier(Config{Mode: ModeNoop})
	code, user := serve(t, verifier, map[string]string{UserHeader: "internal-user", "Authorization": "Bearer other"})
	if code != http.StatusOK || user.UserID != "internal-user" {
		t.Fatalf("expected internal-user, got %d %q", code, user.UserID)
	}
}

func TestMiddlewareVerifiesTokenWhenHeaderUntrusted(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		wantCode int
		wantUser string
	}{
		{"header alone", map[string]string{UserHeader: "u1"}, http.StatusUnauthorized, ""},
		{"header raw user as token", map[string]string{UserHeader: "u1", "Authorization": "Bearer u1"}, http.StatusUnauthorized, ""},
		{"valid token wins over header", map[string]string{UserHeader: "u1", "Authorization": "Bearer valid-token"}, http.StatusOK, "user_from_token"},
	}
	for _, tt := range tests {
		code, user := serve(t, tokenVerifier{}, tt.headers)
		if code != tt.wantCode || user.UserID != tt.wantUser {
			t.Fatalf("%s: expected %d %q, got %d %q", tt.name, tt.wantCode, tt.wantUser, code, user.UserID)
		}
	}
}

func TestClerkTrustsUserHeaderOnlyWhenConfigured(t *testing.T) {
	code, _ := serve(t, &clerkVerifier{}, map[string]string{UserHeader: "u1"})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without gateway trust, got %d", code)
	}
	code, user := serve(t, &clerkVerifier{trustHeader: true}, map[string]string{UserHeader: "u1"})
	if code != http.StatusOK || user.UserID != "u1" {
		t.Fatalf("expected u1 behind gateway, got %d %q", code, user.UserID)
	}
}

func TestUnsupportedMode(t *testing.T) {
	if _, err := NewVerifier(Config{Mode: "saml"}); err == nil {
		t.Fatalf("expected unsupported mode error")
	}
}

func TestUserFromClaims(t *testing.T) {
	user, err := userFromClaims(jwt.MapClaims{"sub": "user_1", "sid": "sess_1", "exp": float64(1700000000)}, "tok")
	if err != nil {
		t.Fatalf("userFromClaims returned error: %v", err)
	}
	if user.UserID != "user_1" || user.SessionID != "sess_1" || user.ExpiresAt != 1700000000 {
		t.Fatalf("unexpected user: %+v", user)
	}
	if _, err := userFromClaims(jwt.MapClaims{}, "tok"); err == nil {
		t.Fatalf("expected missing subject error")
	}
}
