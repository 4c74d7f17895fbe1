package api

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"
)

// CachedResponse is a previously-served response held for idempotent replay.
type CachedResponse struct {
	Status      int
	ContentType string
	Body        []byte
	CachedAt    time.Time
}

// IdempotencyStore persists responses keyed by client idempotency key.
type IdempotencyStore interface {
	// Lookup returns the cached response for key, if present and fresh.
	Lookup(ctx context.Context, key string) (*CachedResponse, bool)
	// Save stores a response under key. Failures are best-effort.
	Save(ctx context.Context, key string, status int, contentType string, body []byte)
}

// MemoryIdempotencyStore keeps cached responses in process memory.
type MemoryIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]*CachedResponse
	ttl     time.Duration
}

// NewMemoryIdempotencyStore creates an in-memory store whose entries expire
// after ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	s := &MemoryIdempotencyStore{
		entries: make(map[string]*CachedResponse),
		ttl:     ttl,
	}
	go s.evictExpired()
	return s
}

func (s *MemoryIdempotencyStore) evictExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for key, entry := range s.entries {
			if now.Sub(entry.CachedAt) > s.ttl {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}

// Lookup implements IdempotencyStore.
func (s *MemoryIdempotencyStore) Lookup(_ context.Context, key string) (*CachedResponse, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if ok && time.Since(entry.CachedAt) < s.ttl {
		return entry, true
	}
	return nil, false
}

// Save implements IdempotencyStore.
func (s *MemoryIdempotencyStore) Save(_ context.Context, key string, status int, contentType string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &CachedResponse{
		Status:      status,
		ContentType: contentType,
		Body:        body,
		CachedAt:    time.Now(),
	}
}

// responseCapture tees the response so it can be cached after serving.
type responseCapture struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rc *responseCapture) WriteHeader(code int) {
	rc.status = code
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays cached responses for repeated mutating
// requests carrying the same Idempotency-Key header. Keys are scoped per
// method and path so one client key cannot bleed across endpoints. Only
// 2xx responses are cached; a failed request may be retried with the same
// key.
func IdempotencyMiddleware(store IdempotencyStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}
			clientKey := r.Header.Get("Idempotency-Key")
			if clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Method + " " + r.URL.Path + " " + clientKey
			if cached, ok := store.Lookup(r.Context(), key); ok {
				if cached.ContentType != "" {
					w.Header().Set("Content-Type", cached.ContentType)
				}
				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			}

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.status >= 200 && capture.status < 300 {
				store.Save(r.Context(), key, capture.status,
					w.Header().Get("Content-Type"), capture.body.Bytes())
			}
		})
	}
}
