package api

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

const pgIdempotencySchema = `
CREATE TABLE IF NOT EXISTS api_idempotency_keys (
	key          TEXT PRIMARY KEY,
	status_code  INTEGER NOT NULL,
	content_type TEXT NOT NULL DEFAULT 'application/json',
	body         BYTEA NOT NULL,
	cached_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresIdempotencyStore persists idempotency replay state in Postgres so
// it survives restarts and is shared across instances.
type PostgresIdempotencyStore struct {
	db     *sql.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewPostgresIdempotencyStore creates a Postgres-backed idempotency store.
func NewPostgresIdempotencyStore(db *sql.DB, ttl time.Duration) *PostgresIdempotencyStore {
	return &PostgresIdempotencyStore{db: db, ttl: ttl, logger: slog.Default()}
}

// Init creates the idempotency table if it does not exist.
func (s *PostgresIdempotencyStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, pgIdempotencySchema)
	return err
}

// Lookup implements IdempotencyStore.
func (s *PostgresIdempotencyStore) Lookup(ctx context.Context, key string) (*CachedResponse, bool) {
	var (
		status      int
		contentType string
		body        []byte
		cachedAt    time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status_code, content_type, body, cached_at FROM api_idempotency_keys WHERE key = $1`,
		key,
	).Scan(&status, &contentType, &body, &cachedAt)
	if err != nil {
		return nil, false
	}

	if time.Since(cachedAt) > s.ttl {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM api_idempotency_keys WHERE key = $1`, key)
		return nil, false
	}

	return &CachedResponse{
		Status:      status,
		ContentType: contentType,
		Body:        body,
		CachedAt:    cachedAt,
	}, true
}

// Save implements IdempotencyStore. Replay state is best-effort enrichment,
// so failures log instead of surfacing.
func (s *PostgresIdempotencyStore) Save(ctx context.Context, key string, status int, contentType string, body []byte) {
	if contentType == "" {
		contentType = "application/json"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_idempotency_keys (key, status_code, content_type, body, cached_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (key) DO UPDATE SET status_code = $2, content_type = $3, body = $4, cached_at = NOW()`,
		key, status, contentType, body,
	)
	if err != nil {
		s.logger.Warn("idempotency save failed", "key", key, "error", err)
	}
}

// Cleanup removes entries older than the TTL.
func (s *PostgresIdempotencyStore) Cleanup(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM api_idempotency_keys WHERE cached_at < $1`,
		time.Now().Add(-s.ttl),
	)
	return err
}
