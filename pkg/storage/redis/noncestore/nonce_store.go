/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package noncestore provides a redis-backed one-time nonce store.
package noncestore

import (
	"context"
	"fmt"
	"time"

	"github.com/vcxlabs/vcx/pkg/storage/redis"
)

const (
	keyPrefix = "vcxnonce"
)

// Store tracks consumed proof nonces in redis.
type Store struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// New creates a Store. A nonce stays consumed for ttlSec seconds.
func New(redisClient *redis.Client, ttlSec int32) *Store {
	return &Store{
		redisClient: redisClient,
		ttl:         time.Duration(ttlSec) * time.Second,
	}
}

// SetIfNotExist records the nonce and reports whether it was unseen. SETNX
// makes the check-and-write a single redis operation, concurrent submissions
// of the same nonce see exactly one success.
func (s *Store) SetIfNotExist(ctx context.Context, nonce string) (bool, error) {
	set, err := s.redisClient.API().SetNX(ctx, resolveRedisKey(nonce), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("nonce setnx failed: %w", err)
	}

	return set, nil
}

func resolveRedisKey(nonce string) string {
	return fmt.Sprintf("%s-%s", keyPrefix, nonce)
}
