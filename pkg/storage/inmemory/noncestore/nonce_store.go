/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package noncestore provides an in-process one-time nonce store.
package noncestore

import (
	"context"
	"sync"
	"time"
)

// Store tracks consumed nonces for a bounded replay window.
type Store struct {
	mu     sync.Mutex
	ttl    time.Duration
	seen   map[string]time.Time
	nowFn  func() time.Time
	lastGC time.Time
}

// New creates a Store. A nonce stays consumed for ttl after first use.
func New(ttl time.Duration) *Store {
	return &Store{
		ttl:   ttl,
		seen:  map[string]time.Time{},
		nowFn: time.Now,
	}
}

// SetIfNotExist records the nonce and reports whether it was unseen. The
// check and the write are a single step under the store lock.
func (s *Store) SetIfNotExist(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	s.gc(now)

	if exp, ok := s.seen[nonce]; ok && exp.After(now) {
		return false, nil
	}

	s.seen[nonce] = now.Add(s.ttl)

	return true, nil
}

func (s *Store) gc(now time.Time) {
	if now.Sub(s.lastGC) < s.ttl {
		return
	}

	for nonce, exp := range s.seen {
		if !exp.After(now) {
			delete(s.seen, nonce)
		}
	}

	s.lastGC = now
}
