package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/elfernagomez/doya-management/internal/domain"
	apperrors "github.com/elfernagomez/doya-management/pkg/errors"
)

const keyPrefix = "draft:"

// maxCASRetries bounds optimistic retries when a concurrent writer touches
// the key between WATCH and EXEC.
const maxCASRetries = 3

// DraftRepository implements repository.DraftRepository using Redis.
type DraftRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDraftRepository creates a new Redis-backed draft repository.
func NewDraftRepository(client *redis.Client, ttl time.Duration) *DraftRepository {
	return &DraftRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a draft by order ID from Redis.
func (r *DraftRepository) Get(ctx context.Context, orderID string) (*domain.Draft, error) {
	key := keyPrefix + orderID

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.NotFound("draft", orderID)
		}
		return nil, fmt.Errorf("redis get draft: %w", err)
	}

	var draft domain.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}

	return &draft, nil
}

// Save persists a draft to Redis with the configured TTL, bumping its version.
func (r *DraftRepository) Save(ctx context.Context, draft *domain.Draft) error {
	key := keyPrefix + draft.OrderID

	draft.Version++
	draft.ExpiresAt = time.Now().UTC().Add(r.ttl)

	data, err := json.Marshal(draft)
	if err != nil {
		draft.Version--
		return fmt.Errorf("marshal draft: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		draft.Version--
		return fmt.Errorf("redis set draft: %w", err)
	}

	return nil
}

// SaveIfVersion persists a draft only when the stored version still matches
// expectedVersion. A missing key counts as version 0, so a fresh draft can be
// written with expectedVersion=0. The check-and-set runs under WATCH so a
// concurrent writer aborts the transaction instead of being overwritten.
func (r *DraftRepository) SaveIfVersion(ctx context.Context, draft *domain.Draft, expectedVersion int) (bool, error) {
	key := keyPrefix + draft.OrderID

	txn := func(tx *redis.Tx) error {
		current := 0
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
			// no stored draft, current stays 0
		case err != nil:
			return fmt.Errorf("redis get draft: %w", err)
		default:
			var stored domain.Draft
			if err := json.Unmarshal(data, &stored); err != nil {
				return fmt.Errorf("unmarshal stored draft: %w", err)
			}
			current = stored.Version
		}

		if current != expectedVersion {
			return apperrors.ErrConflict
		}

		next := *draft
		next.Version = expectedVersion + 1
		next.ExpiresAt = time.Now().UTC().Add(r.ttl)

		payload, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("marshal draft: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis set draft: %w", err)
		}

		draft.Version = next.Version
		draft.ExpiresAt = next.ExpiresAt
		return nil
	}

	for i := 0; i < maxCASRetries; i++ {
		err := r.client.Watch(ctx, txn, key)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, apperrors.ErrConflict):
			return false, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return false, err
		}
	}
	return false, nil
}

// Delete removes a draft from Redis by order ID.
func (r *DraftRepository) Delete(ctx context.Context, orderID string) error {
	key := keyPrefix + orderID

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del draft: %w", err)
	}

	return nil
}
