/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package txstore provides an in-process request session store.
package txstore

import (
	"context"
	"sync"
	"time"

	"github.com/vcxlabs/vcx/pkg/service/oidc4vp"
)

type entry struct {
	data     *oidc4vp.TransactionData
	expireAt time.Time
}

// Store keeps request sessions keyed by state.
type Store struct {
	mu    sync.Mutex
	ttl   time.Duration
	txs   map[oidc4vp.State]entry
	nowFn func() time.Time
}

// New creates a Store with the given session lifetime.
func New(ttl time.Duration) *Store {
	return &Store{
		ttl:   ttl,
		txs:   map[oidc4vp.State]entry{},
		nowFn: time.Now,
	}
}

// Create stores the session unless the state is already taken.
func (s *Store) Create(
	_ context.Context, state oidc4vp.State, data *oidc4vp.TransactionData) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()

	if e, ok := s.txs[state]; ok && e.expireAt.After(now) {
		return false, nil
	}

	s.txs[state] = entry{data: data, expireAt: now.Add(s.ttl)}

	return true, nil
}

// GetAndDelete claims the session for state, removing it in the same step.
func (s *Store) GetAndDelete(
	_ context.Context, state oidc4vp.State) (*oidc4vp.TransactionData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.txs[state]
	if !ok {
		return nil, false, nil
	}

	delete(s.txs, state)

	if !e.expireAt.After(s.nowFn()) {
		return nil, false, nil
	}

	return e.data, true, nil
}
