/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package kms

import (
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v3"
)

// Signer produces compact JWS tokens with kid and typ headers.
type Signer struct {
	keyID string
	alg   jose.SignatureAlgorithm
	typ   string
	key   interface{}
}

// KeyID returns the signing key id embedded in the kid header.
func (s *Signer) KeyID() string {
	return s.keyID
}

// Alg returns the JWS algorithm name.
func (s *Signer) Alg() string {
	return string(s.alg)
}

// SignClaims serializes claims to JSON and signs them as a compact JWS.
func (s *Signer) SignClaims(claims interface{}) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	opts := (&jose.SignerOptions{}).WithHeader(jose.HeaderKey("kid"), s.keyID)
	if s.typ != "" {
		opts = opts.WithType(jose.ContentType(s.typ))
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: s.alg, Key: s.key}, opts)
	if err != nil {
		return "", fmt.Errorf("create jose signer: %w", err)
	}

	jws, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("sign claims: %w", err)
	}

	serialized, err := jws.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("serialize jws: %w", err)
	}

	return serialized, nil
}

// Verifier checks compact JWS tokens against a fixed public key.
type Verifier struct {
	keyID     string
	alg       jose.SignatureAlgorithm
	publicKey interface{}
}

// KeyID returns the expected signing key id.
func (v *Verifier) KeyID() string {
	return v.keyID
}

// VerifyCompact parses a compact JWS, checks the signature against the
// verifier's public key and returns the raw payload together with the
// protected header. The alg header must match the verifier's algorithm so a
// token can not downgrade the signature scheme.
func (v *Verifier) VerifyCompact(token string) ([]byte, jose.Header, error) {
	jws, err := jose.ParseSigned(token)
	if err != nil {
		return nil, jose.Header{}, fmt.Errorf("parse compact jws: %w", err)
	}

	if len(jws.Signatures) != 1 {
		return nil, jose.Header{}, fmt.Errorf("expected a single signature, got %d", len(jws.Signatures))
	}

	header := jws.Signatures[0].Header

	if header.Algorithm != string(v.alg) {
		return nil, jose.Header{}, fmt.Errorf("unexpected alg header %q", header.Algorithm)
	}

	payload, err := jws.Verify(v.publicKey)
	if err != nil {
		return nil, jose.Header{}, fmt.Errorf("verify signature: %w", err)
	}

	return payload, header, nil
}
