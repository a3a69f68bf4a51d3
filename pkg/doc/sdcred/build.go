/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdcred

import (
	"crypto"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vcxlabs/vcx/pkg/exchangeerr"
	"github.com/vcxlabs/vcx/pkg/kms"
)

type buildOpts struct {
	issuer         string
	credentialType string
	id             string
	issuedAt       time.Time
	hash           crypto.Hash
	getSalt        func() (string, error)
}

// BuildOpt configures credential construction.
type BuildOpt func(opts *buildOpts)

// WithIssuer sets the iss claim.
func WithIssuer(issuer string) BuildOpt {
	return func(opts *buildOpts) {
		opts.issuer = issuer
	}
}

// WithCredentialType sets the vct claim.
func WithCredentialType(credentialType string) BuildOpt {
	return func(opts *buildOpts) {
		opts.credentialType = credentialType
	}
}

// WithID sets the jti claim. A random id is generated when unset.
func WithID(id string) BuildOpt {
	return func(opts *buildOpts) {
		opts.id = id
	}
}

// WithIssuedAt sets the iat claim.
func WithIssuedAt(issuedAt time.Time) BuildOpt {
	return func(opts *buildOpts) {
		opts.issuedAt = issuedAt
	}
}

// WithHash overrides the digest algorithm. Default is SHA-256.
func WithHash(hash crypto.Hash) BuildOpt {
	return func(opts *buildOpts) {
		opts.hash = hash
	}
}

// WithSaltFn overrides salt generation. Mostly used for testing; a fresh
// salt must be chosen for each claim independently.
func WithSaltFn(getSalt func() (string, error)) BuildOpt {
	return func(opts *buildOpts) {
		opts.getSalt = getSalt
	}
}

// BuildCredential constructs an SD credential from raw claims and a
// disclosure frame, signed with the issuer key. For every claim the frame
// marks disclosable a fresh salt is generated and only the digest of the
// disclosure lands in the signed payload; always-visible claims are embedded
// directly.
func BuildCredential(
	claims RawClaimSet,
	frame Frame,
	issuerSigner *kms.Signer,
	opts ...BuildOpt,
) (*IssuedCredential, error) {
	if issuerSigner == nil {
		return nil, errors.New("issuer signer is required")
	}

	options := &buildOpts{
		id:       uuid.NewString(),
		issuedAt: time.Now(),
		hash:     crypto.SHA256,
		getSalt:  generateSalt,
	}

	for _, opt := range opts {
		opt(options)
	}

	if err := checkShape(claims, frame, ""); err != nil {
		return nil, err
	}

	alg, err := hashName(options.hash)
	if err != nil {
		return nil, err
	}

	var disclosures []*Disclosure

	payload, err := buildObject(claims, frame, "", options, &disclosures)
	if err != nil {
		return nil, err
	}

	payload[SDAlgorithmKey] = alg
	payload["jti"] = options.id
	payload["iat"] = options.issuedAt.Unix()

	if options.issuer != "" {
		payload["iss"] = options.issuer
	}

	if options.credentialType != "" {
		payload[CredentialTypeKey] = options.credentialType
	}

	sdJWT, err := issuerSigner.SignClaims(payload)
	if err != nil {
		return nil, fmt.Errorf("sign credential: %w", err)
	}

	return &IssuedCredential{
		SDJWT:       sdJWT,
		Disclosures: disclosures,
	}, nil
}

// buildObject assembles one payload level: visible claims are copied in,
// disclosable claims are replaced by digests in the local _sd array, nested
// frames recurse into child objects.
func buildObject(
	claims map[string]interface{},
	frame map[string]interface{},
	path string,
	options *buildOpts,
	disclosures *[]*Disclosure,
) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(claims))

	var digests []string

	for name, marker := range frame {
		claimValue := claims[name]

		switch m := marker.(type) {
		case bool:
			if !m {
				out[name] = claimValue
				continue
			}

			disclosure, err := newDisclosure(name, claimValue, joinPath(path, name), options)
			if err != nil {
				return nil, err
			}

			*disclosures = append(*disclosures, disclosure)
			digests = append(digests, disclosure.digest)
		default:
			// Shape validation guarantees the marker is a nested frame over
			// an object-valued claim.
			subFrame, _ := toFrameMap(marker)
			claimObj, _ := claimValue.(map[string]interface{})

			child, err := buildObject(claimObj, subFrame, joinPath(path, name), options, disclosures)
			if err != nil {
				return nil, err
			}

			out[name] = child
		}
	}

	if len(digests) > 0 {
		sort.Strings(digests)
		out[SDKey] = digests
	}

	return out, nil
}

func toFrameMap(marker interface{}) (map[string]interface{}, bool) {
	switch m := marker.(type) {
	case Frame:
		return m, true
	case map[string]interface{}:
		return m, true
	default:
		return nil, false
	}
}

func newDisclosure(name string, value interface{}, path string, options *buildOpts) (*Disclosure, error) {
	if obj, ok := value.(map[string]interface{}); ok && keyExists(SDKey, obj) {
		return nil, exchangeerr.NewFrameMismatchError(
			fmt.Errorf("claim %q value contains a reserved %s key", path, SDKey))
	}

	salt, err := options.getSalt()
	if err != nil {
		return nil, err
	}

	encoded, err := marshalDisclosure(salt, name, value)
	if err != nil {
		return nil, err
	}

	digest, err := computeDigest(options.hash, encoded)
	if err != nil {
		return nil, err
	}

	return &Disclosure{
		Salt:    salt,
		Name:    name,
		Value:   value,
		Path:    path,
		encoded: encoded,
		digest:  digest,
	}, nil
}

func keyExists(key string, m map[string]interface{}) bool {
	for k, v := range m {
		if k == key {
			return true
		}

		if obj, ok := v.(map[string]interface{}); ok && keyExists(key, obj) {
			return true
		}
	}

	return false
}
