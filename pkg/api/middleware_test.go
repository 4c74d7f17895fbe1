package api

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func tagMiddleware(tag string, trace *[]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*trace = append(*trace, tag)
			next.ServeHTTP(w, r)
		})
	}
}

func TestChain_Order(t *testing.T) {
	var trace []string
	h := Chain(okHandler(),
		tagMiddleware("outer", &trace),
		tagMiddleware("inner", &trace),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if len(trace) != 2 || trace[0] != "outer" || trace[1] != "inner" {
		t.Fatalf("middleware ran in order %v, want [outer inner]", trace)
	}
}

func TestLocalLimiter_Throttles(t *testing.T) {
	limiter := NewLocalLimiter(1, 1)
	h := RateLimitMiddleware(limiter)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
	req.RemoteAddr = "10.0.0.7:53211"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: got %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("throttled response missing Retry-After header")
	}
}

func TestLocalLimiter_KeysByClient(t *testing.T) {
	limiter := NewLocalLimiter(1, 1)
	h := RateLimitMiddleware(limiter)(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:1000"
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.0.0.2:1000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first client: got %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client should have its own bucket, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_NilLimiterPasses(t *testing.T) {
	h := RateLimitMiddleware(nil)(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200", i, rec.Code)
		}
	}
}

type erroringLimiter struct{}

func (erroringLimiter) Allow(context.Context, string) (bool, error) {
	return false, fmt.Errorf("redis gone")
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	h := RateLimitMiddleware(erroringLimiter{})(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("limiter errors must not block traffic, got %d", rec.Code)
	}
}

func TestLoggingMiddleware_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"p-1"}`))
	})
	h := LoggingMiddleware(logger)(inner)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/multisig/policies", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d, want 201", rec.Code)
	}
	if rec.Body.String() != `{"id":"p-1"}` {
		t.Fatalf("body mangled: %q", rec.Body.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("status=201")) {
		t.Fatalf("log line missing status: %s", buf.String())
	}
}

func TestClientKey(t *testing.T) {
	cases := []struct {
		remote string
		want   string
	}{
		{"10.1.2.3:9000", "10.1.2.3"},
		{"[::1]:9000", "::1"},
		{"10.1.2.3", "10.1.2.3"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tc.remote
		if got := clientKey(r); got != tc.want {
			t.Errorf("clientKey(%q) = %q, want %q", tc.remote, got, tc.want)
		}
	}
}
