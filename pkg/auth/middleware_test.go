package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PetJs/Soroban-Registry/pkg/auth"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.RegisteredClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_ReadsPassWithoutToken(t *testing.T) {
	validator := auth.NewJWTValidator(testSecret, "soroban-registry")
	handler := auth.NewMiddleware(validator, false)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("GET without token = %d, want 200", w.Code)
	}
}

func TestMiddleware_MutationRequiresToken(t *testing.T) {
	validator := auth.NewJWTValidator(testSecret, "soroban-registry")
	handler := auth.NewMiddleware(validator, false)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST without token = %d, want 401", w.Code)
	}
}

func TestMiddleware_ValidToken(t *testing.T) {
	validator := auth.NewJWTValidator(testSecret, "soroban-registry")

	var gotSubject string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject, _ = auth.Subject(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := auth.NewMiddleware(validator, false)(inner)

	token := signToken(t, jwt.RegisteredClaims{
		Subject:   "operator-1",
		Issuer:    "soroban-registry",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}, testSecret)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("POST with valid token = %d, want 200", w.Code)
	}
	if gotSubject != "operator-1" {
		t.Errorf("subject in context = %q, want operator-1", gotSubject)
	}
}

func TestMiddleware_RejectsBadTokens(t *testing.T) {
	validator := auth.NewJWTValidator(testSecret, "soroban-registry")
	handler := auth.NewMiddleware(validator, false)(okHandler())

	cases := map[string]string{
		"wrong secret": signToken(t, jwt.RegisteredClaims{
			Subject:   "operator-1",
			Issuer:    "soroban-registry",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}, "other-secret"),
		"wrong issuer": signToken(t, jwt.RegisteredClaims{
			Subject:   "operator-1",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}, testSecret),
		"expired": signToken(t, jwt.RegisteredClaims{
			Subject:   "operator-1",
			Issuer:    "soroban-registry",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}, testSecret),
		"missing subject": signToken(t, jwt.RegisteredClaims{
			Issuer:    "soroban-registry",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}, testSecret),
		"garbage": "not-a-token",
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	validator := auth.NewJWTValidator(testSecret, "soroban-registry")
	handler := auth.NewMiddleware(validator, false)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Basic auth = %d, want 401", w.Code)
	}
}

func TestMiddleware_DisabledPassesEverything(t *testing.T) {
	handler := auth.NewMiddleware(nil, true)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("disabled auth POST = %d, want 200", w.Code)
	}
}

func TestMiddleware_NilValidatorFailsClosed(t *testing.T) {
	handler := auth.NewMiddleware(nil, false)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("nil validator POST = %d, want 401", w.Code)
	}
}

func TestNewJWTValidator_EmptySecret(t *testing.T) {
	if v := auth.NewJWTValidator("", "issuer"); v != nil {
		t.Error("expected nil validator for empty secret")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var ctxID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = auth.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := auth.RequestIDMiddleware(inner)

	t.Run("generates id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		headerID := w.Header().Get("X-Request-ID")
		if headerID == "" {
			t.Fatal("X-Request-ID header not set")
		}
		if ctxID != headerID {
			t.Errorf("context id %q != header id %q", ctxID, headerID)
		}
	})

	t.Run("reuses client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Request-ID", "client-supplied")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if got := w.Header().Get("X-Request-ID"); got != "client-supplied" {
			t.Errorf("X-Request-ID = %q, want client-supplied", got)
		}
	})
}
