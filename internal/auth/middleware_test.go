package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, role string, expired bool) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops-user",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	if expired {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newProtectedHandler() (*Middleware, http.Handler) {
	policy := NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	middleware := NewMiddleware(testSecret, policy)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return middleware, middleware.Wrap(next)
}

func TestMiddlewareExemptPaths(t *testing.T) {
	_, handler := newProtectedHandler()

	for _, path := range []string{"/healthz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200 without token, got %d", path, rec.Code)
		}
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	_, handler := newProtectedHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ingest/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareRejectsExpiredToken(t *testing.T) {
	_, handler := newProtectedHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ingest/status", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "viewer", true))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareEnforcesRoles(t *testing.T) {
	_, handler := newProtectedHandler()

	cases := []struct {
		name   string
		method string
		path   string
		role   string
		want   int
	}{
		{"viewer reads status", http.MethodGet, "/api/v1/ingest/status", "viewer", http.StatusOK},
		{"viewer reads balances", http.MethodGet, "/api/v1/balances", "viewer", http.StatusOK},
		{"viewer cannot trigger fetch", http.MethodPost, "/api/v1/ingest/fetch", "viewer", http.StatusForbidden},
		{"operator triggers fetch", http.MethodPost, "/api/v1/ingest/fetch", "operator", http.StatusOK},
		{"admin triggers fetch", http.MethodPost, "/api/v1/ingest/fetch", "admin", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, tc.role, false))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestMiddlewareRejectsBadSignature(t *testing.T) {
	_, handler := newProtectedHandler()

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := other.SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/balances", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
