/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package kms holds the static key pairs consumed by the exchange core and
// builds JWS signers/verifiers over them. Key generation and storage policy
// is the hosting process concern; only the shape is fixed here.
package kms

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	"github.com/go-jose/go-jose/v3"
	"github.com/google/uuid"
)

// KeyType defines a supported signature key type.
type KeyType string

const (
	// ED25519 key type.
	ED25519 KeyType = "ED25519"
	// ECDSAP256 key type.
	ECDSAP256 KeyType = "ECDSA_P256"
)

// KeyPair is a single role key pair.
type KeyPair struct {
	KeyID      string
	Type       KeyType
	PrivateKey crypto.Signer
	PublicKey  crypto.PublicKey
}

// KeyMaterial holds the static key pairs for the holder and the
// issuer/verifier roles.
type KeyMaterial struct {
	Holder   *KeyPair
	Issuer   *KeyPair
	Verifier *KeyPair
}

// GenerateKeyPair generates a fresh key pair of the given type.
func GenerateKeyPair(keyType KeyType) (*KeyPair, error) {
	kp := &KeyPair{
		KeyID: uuid.NewString(),
		Type:  keyType,
	}

	switch keyType {
	case ED25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}

		kp.PrivateKey = priv
		kp.PublicKey = pub
	case ECDSAP256:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ecdsa p-256 key: %w", err)
		}

		kp.PrivateKey = priv
		kp.PublicKey = &priv.PublicKey
	default:
		return nil, fmt.Errorf("unsupported key type %s", keyType)
	}

	return kp, nil
}

// NewKeyMaterial generates key pairs for all roles using the given key type.
func NewKeyMaterial(keyType KeyType) (*KeyMaterial, error) {
	holder, err := GenerateKeyPair(keyType)
	if err != nil {
		return nil, fmt.Errorf("generate holder key: %w", err)
	}

	issuer, err := GenerateKeyPair(keyType)
	if err != nil {
		return nil, fmt.Errorf("generate issuer key: %w", err)
	}

	verifier, err := GenerateKeyPair(keyType)
	if err != nil {
		return nil, fmt.Errorf("generate verifier key: %w", err)
	}

	return &KeyMaterial{
		Holder:   holder,
		Issuer:   issuer,
		Verifier: verifier,
	}, nil
}

// SignatureAlgorithm returns the JWS algorithm for the key pair.
func (kp *KeyPair) SignatureAlgorithm() (jose.SignatureAlgorithm, error) {
	switch kp.Type {
	case ED25519:
		return jose.EdDSA, nil
	case ECDSAP256:
		return jose.ES256, nil
	default:
		return "", fmt.Errorf("unsupported key type %s", kp.Type)
	}
}

// Signer builds a compact JWS signer over the key pair. The typ header is
// embedded in every token produced by the signer; pass an empty string to
// omit it.
func (kp *KeyPair) Signer(typ string) (*Signer, error) {
	alg, err := kp.SignatureAlgorithm()
	if err != nil {
		return nil, err
	}

	return &Signer{
		keyID: kp.KeyID,
		alg:   alg,
		typ:   typ,
		key:   kp.PrivateKey,
	}, nil
}

// Verifier builds a compact JWS verifier over the key pair's public key.
func (kp *KeyPair) Verifier() (*Verifier, error) {
	alg, err := kp.SignatureAlgorithm()
	if err != nil {
		return nil, err
	}

	return &Verifier{
		keyID:     kp.KeyID,
		alg:       alg,
		publicKey: kp.PublicKey,
	}, nil
}
