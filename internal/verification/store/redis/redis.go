// Package redis provides the Redis-backed session store for multi-instance
// deployments, where the in-memory backend's durability gap (restart loses
// non-terminal sessions) is not acceptable.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"veribridge/internal/verification/models"
	id "veribridge/pkg/domain"
	"veribridge/pkg/platform/sentinel"
)

const keyPrefix = "veribridge:session:"

// maxExecuteRetries bounds the optimistic WATCH retry loop. Contention on a
// single correlation key is two racing callbacks at worst, so this is ample.
const maxExecuteRetries = 16

type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func redisKey(key id.CorrelationKey) string {
	return keyPrefix + key.String()
}

func (s *Store) Put(ctx context.Context, session *models.VerificationSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(session.CorrelationKey), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key id.CorrelationKey) (*models.VerificationSession, error) {
	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var session models.VerificationSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// Execute runs the validate-then-mutate sequence under an optimistic WATCH
// transaction; a concurrent writer invalidates the transaction and the
// sequence retries against the fresh value.
func (s *Store) Execute(ctx context.Context, key id.CorrelationKey,
	validate func(*models.VerificationSession) error,
	mutate func(*models.VerificationSession),
) (*models.VerificationSession, error) {
	rk := redisKey(key)

	var result *models.VerificationSession
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, rk).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get: %w", err)
		}
		var session models.VerificationSession
		if err := json.Unmarshal(data, &session); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if err := validate(&session); err != nil {
			return err
		}
		mutate(&session)

		out, err := json.Marshal(&session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, out, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = &session
		return nil
	}

	for i := 0; i < maxExecuteRetries; i++ {
		err := s.client.Watch(ctx, txn, rk)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("redis execute: %w after %d retries", redis.TxFailedErr, maxExecuteRetries)
}
