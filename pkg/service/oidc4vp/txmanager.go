/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package oidc4vp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/vcxlabs/vcx/pkg/doc/presdef"
	"github.com/vcxlabs/vcx/pkg/exchangeerr"
)

const (
	tokenByteSize = 16
	maxRetries    = 10
)

type txStore interface {
	Create(ctx context.Context, state State, data *TransactionData) (bool, error)
	GetAndDelete(ctx context.Context, state State) (*TransactionData, bool, error)
}

// TxManager creates and consumes request sessions. A session is keyed by its
// state value and can be claimed at most once.
type TxManager struct {
	store txStore
}

// NewTxManager creates a TxManager.
func NewTxManager(store txStore) *TxManager {
	return &TxManager{store: store}
}

// CreateTx generates a fresh state and nonce and persists the session. State
// collisions are retried with new randomness.
func (tm *TxManager) CreateTx(
	ctx context.Context, pd *presdef.PresentationDefinition) (*Transaction, error) {
	for i := 1; ; i++ {
		state, err := genToken()
		if err != nil {
			return nil, err
		}

		nonce, err := genToken()
		if err != nil {
			return nil, err
		}

		data := &TransactionData{
			Nonce:                  nonce,
			PresentationDefinition: pd,
			CreatedAt:              time.Now().UTC(),
		}

		created, err := tm.store.Create(ctx, State(state), data)
		if err != nil {
			return nil, fmt.Errorf("create tx: %w", err)
		}

		if created {
			return &Transaction{
				State:                  State(state),
				Nonce:                  nonce,
				PresentationDefinition: pd,
				CreatedAt:              data.CreatedAt,
			}, nil
		}

		if i >= maxRetries {
			return nil, fmt.Errorf("create tx: failed to set state after %d retries", maxRetries)
		}
	}
}

// GetByState claims the session for the given state. The session is removed
// atomically, a second claim for the same state fails.
func (tm *TxManager) GetByState(ctx context.Context, state State) (*Transaction, error) {
	data, found, err := tm.store.GetAndDelete(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("get tx by state: %w", err)
	}

	if !found {
		return nil, exchangeerr.NewUnknownOrExpiredSessionError(
			fmt.Errorf("no session for state"))
	}

	return &Transaction{
		State:                  state,
		Nonce:                  data.Nonce,
		PresentationDefinition: data.PresentationDefinition,
		CreatedAt:              data.CreatedAt,
	}, nil
}

func genToken() (string, error) {
	b := make([]byte, tokenByteSize)

	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
