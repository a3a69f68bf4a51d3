/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package proofjwt signs and verifies holder proof-of-possession JWTs.
// Binding audience + nonce + issuance time defeats replay and
// credential-endpoint confusion: the nonce is consumed atomically against a
// shared store, so a proof verifies at most once per process lifecycle.
package proofjwt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3"

	"github.com/vcxlabs/vcx/pkg/exchangeerr"
	"github.com/vcxlabs/vcx/pkg/kms"
)

// TypeHeader is the typ header value required on proof JWTs.
const TypeHeader = "openid4vci-proof+jwt"

// DefaultClockSkew bounds the accepted iat window on verification.
const DefaultClockSkew = 5 * time.Minute

// Payload is the proof-of-possession claim set.
type Payload struct {
	Issuer   string `json:"iss"`
	Audience string `json:"aud"`
	Nonce    string `json:"nonce"`
	IssuedAt int64  `json:"iat"`
}

// nonceStore guards proof nonces against replay. SetIfNotExist must be an
// atomic check-and-set: two concurrent calls with the same nonce may both
// return nil error, but only one may return true.
type nonceStore interface {
	SetIfNotExist(ctx context.Context, nonce string) (bool, error)
}

// Codec issues and verifies compact proof JWTs.
type Codec struct {
	clockSkew time.Duration
	now       func() time.Time
}

// Opt configures a Codec.
type Opt func(c *Codec)

// WithClockSkew overrides the accepted iat window.
func WithClockSkew(skew time.Duration) Opt {
	return func(c *Codec) {
		c.clockSkew = skew
	}
}

// WithClock overrides the time source. Mostly used for testing.
func WithClock(now func() time.Time) Opt {
	return func(c *Codec) {
		c.now = now
	}
}

// New creates a Codec.
func New(opts ...Opt) *Codec {
	c := &Codec{
		clockSkew: DefaultClockSkew,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Issue serializes and signs the proof payload with the holder key.
func (c *Codec) Issue(payload *Payload, signer *kms.Signer) (string, error) {
	if payload == nil {
		return "", exchangeerr.NewEncodingError(errors.New("missing payload"))
	}

	if payload.Issuer == "" || payload.Audience == "" || payload.Nonce == "" || payload.IssuedAt == 0 {
		return "", exchangeerr.NewEncodingError(errors.New("proof payload fields iss, aud, nonce and iat are required"))
	}

	token, err := signer.SignClaims(payload)
	if err != nil {
		return "", exchangeerr.NewEncodingError(fmt.Errorf("sign proof: %w", err))
	}

	return token, nil
}

// Verify checks the proof signature, typ header, audience binding and iat
// window, then consumes the nonce. A verified nonce is marked consumed as a
// side effect: re-submitting the same token yields CodeNonceReused.
func (c *Codec) Verify(
	ctx context.Context,
	token string,
	verifier *kms.Verifier,
	expectedAudience string,
	store nonceStore,
) (*Payload, error) {
	rawPayload, header, err := verifier.VerifyCompact(token)
	if err != nil {
		return nil, exchangeerr.NewSignatureInvalidError(fmt.Errorf("verify proof jwt: %w", err))
	}

	if typ, _ := header.ExtraHeaders[jose.HeaderType].(string); typ != TypeHeader {
		return nil, exchangeerr.NewEncodingError(fmt.Errorf("invalid typ header %q", typ))
	}

	if header.KeyID == "" {
		return nil, exchangeerr.NewEncodingError(errors.New("missing kid header"))
	}

	var payload Payload
	if err = json.Unmarshal(rawPayload, &payload); err != nil {
		return nil, exchangeerr.NewEncodingError(fmt.Errorf("decode proof payload: %w", err))
	}

	if payload.Nonce == "" || payload.IssuedAt == 0 {
		return nil, exchangeerr.NewEncodingError(errors.New("proof payload fields nonce and iat are required"))
	}

	if payload.Audience != expectedAudience {
		return nil, exchangeerr.NewAudienceMismatchError(
			fmt.Errorf("aud %q does not match credential endpoint %q", payload.Audience, expectedAudience))
	}

	// The expiry check runs before nonce consumption so expired tokens do
	// not populate the nonce store.
	issuedAt := time.Unix(payload.IssuedAt, 0)
	now := c.now()

	if issuedAt.Before(now.Add(-c.clockSkew)) || issuedAt.After(now.Add(c.clockSkew)) {
		return nil, exchangeerr.NewTokenExpiredError(
			fmt.Errorf("iat %d outside accepted window of %s", payload.IssuedAt, c.clockSkew))
	}

	fresh, err := store.SetIfNotExist(ctx, payload.Nonce)
	if err != nil {
		return nil, fmt.Errorf("consume proof nonce: %w", err)
	}

	if !fresh {
		return nil, exchangeerr.NewNonceReusedError(errors.New("proof nonce already consumed"))
	}

	return &payload, nil
}
