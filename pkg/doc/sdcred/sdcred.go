/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package sdcred builds, discloses and verifies selectively-disclosable
// credentials.
//
// A credential is an issuer-signed JWT whose payload carries the
// always-visible claims plus digest commitments over the disclosable ones:
//
//	DIGEST = HASH(BASE64URL(JSON [SALT, CLAIM-NAME, CLAIM-VALUE]))
//
// The issuer signature covers digests, never raw claim values, so any subset
// of disclosures can be revealed later without invalidating the signature,
// and tampering with a revealed value is detectable by digest mismatch.
package sdcred

import (
	"crypto"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	// Link the hash implementations accepted in the _sd_alg header.
	_ "crypto/sha256"
	_ "crypto/sha512"
)

const (
	// CombinedFormatSeparator separates the SD-JWT from its disclosures in
	// serialized form.
	CombinedFormatSeparator = "~"

	// SDKey is the claim holding the digest set at each payload level.
	SDKey = "_sd"

	// SDAlgorithmKey is the claim naming the digest hash algorithm.
	SDAlgorithmKey = "_sd_alg"

	// TypeHeader is the typ header value on credential JWTs.
	TypeHeader = "vc+sd-jwt"

	// CredentialTypeKey is the claim naming the credential type.
	CredentialTypeKey = "vct"

	saltSize = 16 // 128 bits per salt
)

// RawClaimSet maps claim names to JSON-compatible claim values.
type RawClaimSet = map[string]interface{}

// registeredClaims are payload fields that are not part of the claim set.
var registeredClaims = map[string]bool{ //nolint:gochecknoglobals
	"iss":             true,
	"iat":             true,
	"jti":             true,
	CredentialTypeKey: true,
	SDAlgorithmKey:    true,
}

func generateSalt() (string, error) {
	salt := make([]byte, saltSize)

	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(salt), nil
}

func hashName(hash crypto.Hash) (string, error) {
	switch hash {
	case crypto.SHA256:
		return "sha-256", nil
	case crypto.SHA384:
		return "sha-384", nil
	case crypto.SHA512:
		return "sha-512", nil
	default:
		return "", fmt.Errorf("unsupported digest algorithm %s", hash)
	}
}

func hashFromName(name string) (crypto.Hash, error) {
	switch strings.ToLower(name) {
	case "sha-256":
		return crypto.SHA256, nil
	case "sha-384":
		return crypto.SHA384, nil
	case "sha-512":
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("%s %q not supported", SDAlgorithmKey, name)
	}
}

func computeDigest(hash crypto.Hash, encodedDisclosure string) (string, error) {
	if !hash.Available() {
		return "", fmt.Errorf("digest algorithm not linked: %s", hash)
	}

	h := hash.New()

	if _, err := h.Write([]byte(encodedDisclosure)); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}

	return parent + "." + name
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	cm := make(map[string]interface{}, len(m))

	for k, v := range m {
		if vm, ok := v.(map[string]interface{}); ok {
			cm[k] = copyMap(vm)
			continue
		}

		cm[k] = v
	}

	return cm
}

func marshalDisclosure(salt, name string, value interface{}) (string, error) {
	b, err := json.Marshal([]interface{}{salt, name, value})
	if err != nil {
		return "", fmt.Errorf("marshal disclosure: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func unmarshalDisclosure(encoded string) (salt, name string, value interface{}, err error) {
	b, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", nil, fmt.Errorf("decode disclosure: %w", err)
	}

	var arr []interface{}
	if err = json.Unmarshal(b, &arr); err != nil {
		return "", "", nil, fmt.Errorf("unmarshal disclosure: %w", err)
	}

	if len(arr) != 3 { //nolint:gomnd
		return "", "", nil, fmt.Errorf("disclosure must be a [salt, name, value] triple, got %d elements", len(arr))
	}

	salt, ok := arr[0].(string)
	if !ok {
		return "", "", nil, fmt.Errorf("disclosure salt must be a string")
	}

	name, ok = arr[1].(string)
	if !ok {
		return "", "", nil, fmt.Errorf("disclosure claim name must be a string")
	}

	return salt, name, arr[2], nil
}
