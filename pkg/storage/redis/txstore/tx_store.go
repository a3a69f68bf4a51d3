/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package txstore provides a redis-backed request session store.
package txstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisapi "github.com/redis/go-redis/v9"

	"github.com/vcxlabs/vcx/pkg/service/oidc4vp"
	"github.com/vcxlabs/vcx/pkg/storage/redis"
)

const (
	keyPrefix = "vcxtx"
)

// Store keeps request sessions in redis, keyed by state.
type Store struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// New creates a Store with the given session lifetime in seconds.
func New(redisClient *redis.Client, ttlSec int32) *Store {
	return &Store{
		redisClient: redisClient,
		ttl:         time.Duration(ttlSec) * time.Second,
	}
}

// Create stores the session unless the state is already taken. SETNX keeps
// the uniqueness check and the write atomic.
func (s *Store) Create(
	ctx context.Context, state oidc4vp.State, data *oidc4vp.TransactionData) (bool, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("tx encode failed: %w", err)
	}

	created, err := s.redisClient.API().SetNX(ctx, resolveRedisKey(state), b, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("tx setnx failed: %w", err)
	}

	return created, nil
}

// GetAndDelete claims the session for state. GETDEL removes the key in the
// same redis operation, so concurrent submissions for one state see at most
// one hit.
func (s *Store) GetAndDelete(
	ctx context.Context, state oidc4vp.State) (*oidc4vp.TransactionData, bool, error) {
	b, err := s.redisClient.API().GetDel(ctx, resolveRedisKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redisapi.Nil) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("tx getdel failed: %w", err)
	}

	data := &oidc4vp.TransactionData{}
	if err = json.Unmarshal(b, data); err != nil {
		return nil, false, fmt.Errorf("tx decode failed: %w", err)
	}

	return data, true, nil
}

func resolveRedisKey(state oidc4vp.State) string {
	return fmt.Sprintf("%s-%s", keyPrefix, state)
}
