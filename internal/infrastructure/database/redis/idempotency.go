package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRequestInProgress is returned while another request holds the same key
var ErrRequestInProgress = errors.New("a request with this idempotency key is still in progress")

const inProgressMarker = "__in_progress__"

// StoredResponse is the replayable outcome of a completed request
type StoredResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// IdempotencyStore remembers checkout responses per user and Idempotency-Key
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewIdempotencyStore creates a store whose entries expire after ttl
func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func idempotencyKey(userID uuid.UUID, key string) string {
	return fmt.Sprintf("checkout:idem:%s:%s", userID, key)
}

// Begin claims key for userID. It returns the stored response when the key
// already completed, or ErrRequestInProgress when it is still being served.
// A nil response with a nil error means the caller owns the key.
func (s *IdempotencyStore) Begin(ctx context.Context, userID uuid.UUID, key string) (*StoredResponse, error) {
	redisKey := idempotencyKey(userID, key)

	acquired, err := s.rdb.SetNX(ctx, redisKey, inProgressMarker, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if acquired {
		return nil, nil
	}

	raw, err := s.rdb.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		return s.Begin(ctx, userID, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if raw == inProgressMarker {
		return nil, ErrRequestInProgress
	}

	var stored StoredResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode stored response: %w", err)
	}
	return &stored, nil
}

// Complete stores the response for replay
func (s *IdempotencyStore) Complete(ctx context.Context, userID uuid.UUID, key string, resp StoredResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return s.rdb.Set(ctx, idempotencyKey(userID, key), payload, s.ttl).Err()
}

// Release forgets key so a failed request can be retried
func (s *IdempotencyStore) Release(ctx context.Context, userID uuid.UUID, key string) error {
	return s.rdb.Del(ctx, idempotencyKey(userID, key)).Err()
}
