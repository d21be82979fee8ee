package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"timeledger/internal/platform/apperr"
	"timeledger/internal/platform/querier"
)

var ErrIdempotencyConflict = apperr.New(apperr.KindConflict, "idempotency key was already used with a different request")

// IdempotencyKey scopes a client supplied key to one actor and endpoint.
// RequestHash fingerprints the target so a reused key cannot be pointed at a
// different resource.
type IdempotencyKey struct {
	TenantID    string
	UserID      string
	Endpoint    string
	Key         string
	RequestHash string
}

// IdempotencyStore persists the first successful response for each key in
// idempotency_keys.
type IdempotencyStore struct {
	db querier.Querier
}

func NewIdempotencyStore(db querier.Querier) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

func RequestHash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the stored response for k. A stored key with another
// request hash yields ErrIdempotencyConflict.
func (s *IdempotencyStore) Lookup(ctx context.Context, k IdempotencyKey) (json.RawMessage, bool, error) {
	var (
		hash     string
		response json.RawMessage
	)
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, response_json
    FROM idempotency_keys
    WHERE tenant_id = $1 AND user_id = $2 AND endpoint = $3 AND key = $4
  `, k.TenantID, k.UserID, k.Endpoint, k.Key).Scan(&hash, &response)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("lookup idempotency key: %w", err)
	case hash != k.RequestHash:
		return nil, false, ErrIdempotencyConflict
	}
	return response, true, nil
}

// Remember stores response under k. The first writer wins; a concurrent
// writer with another hash gets ErrIdempotencyConflict.
func (s *IdempotencyStore) Remember(ctx context.Context, k IdempotencyKey, response json.RawMessage) error {
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (tenant_id, user_id, endpoint, key, request_hash, response_json)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (tenant_id, user_id, key, endpoint) DO NOTHING
  `, k.TenantID, k.UserID, k.Endpoint, k.Key, k.RequestHash, response)
	if err != nil {
		return fmt.Errorf("save idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, _, err := s.Lookup(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Purge removes keys older than ttl.
func (s *IdempotencyStore) Purge(ctx context.Context, ttl time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM idempotency_keys WHERE created_at < $1", time.Now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
