/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdcred

import (
	"crypto"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vcxlabs/vcx/pkg/exchangeerr"
	"github.com/vcxlabs/vcx/pkg/kms"
)

// VerifiedClaims is the outcome of verifying a presentation fragment.
type VerifiedClaims struct {
	// Issuer is the iss claim of the credential.
	Issuer string

	// CredentialType is the vct claim of the credential.
	CredentialType string

	// Claims is the resolved claim set: always-visible claims plus the
	// revealed disclosures, with the digest machinery stripped.
	Claims map[string]interface{}

	// Disclosed maps the claim path of each revealed disclosure to its value.
	Disclosed map[string]interface{}
}

// digestSite locates one _sd digest within the payload tree.
type digestSite struct {
	obj  map[string]interface{}
	path string
}

// VerifyDisclosure checks the issuer signature over the fragment's SD-JWT,
// recomputes each revealed disclosure's digest and checks membership in the
// signed digest set. A digest that is absent, or claimed twice, means the
// disclosure was forged or its value altered.
func VerifyDisclosure(fragment *PresentationFragment, issuerVerifier *kms.Verifier) (*VerifiedClaims, error) {
	rawPayload, _, err := issuerVerifier.VerifyCompact(fragment.SDJWT)
	if err != nil {
		return nil, exchangeerr.NewSignatureInvalidError(fmt.Errorf("verify credential: %w", err))
	}

	var payload map[string]interface{}
	if err = json.Unmarshal(rawPayload, &payload); err != nil {
		return nil, exchangeerr.NewEncodingError(fmt.Errorf("decode credential payload: %w", err))
	}

	alg, ok := payload[SDAlgorithmKey].(string)
	if !ok {
		return nil, exchangeerr.NewEncodingError(
			fmt.Errorf("%s must be present in the credential payload", SDAlgorithmKey))
	}

	hash, err := hashFromName(alg)
	if err != nil {
		return nil, exchangeerr.NewEncodingError(err)
	}

	resolved := copyMap(payload)

	sites := map[string]*digestSite{}
	if err = indexDigests(resolved, "", sites); err != nil {
		return nil, err
	}

	disclosed, err := applyDisclosures(fragment.Disclosures, hash, sites)
	if err != nil {
		return nil, err
	}

	stripSDKeys(resolved)

	vc := &VerifiedClaims{
		Claims:    resolved,
		Disclosed: disclosed,
	}

	if iss, isString := payload["iss"].(string); isString {
		vc.Issuer = iss
	}

	if vct, isString := payload[CredentialTypeKey].(string); isString {
		vc.CredentialType = vct
	}

	for name := range registeredClaims {
		delete(vc.Claims, name)
	}

	return vc, nil
}

// indexDigests records the containing object of every committed digest. The
// same digest appearing at two places breaks the exactly-once invariant.
func indexDigests(obj map[string]interface{}, path string, sites map[string]*digestSite) error {
	if rawDigests, ok := obj[SDKey]; ok {
		digests, ok := rawDigests.([]interface{})
		if !ok {
			return exchangeerr.NewEncodingError(fmt.Errorf("%s must be an array", SDKey))
		}

		for _, rawDigest := range digests {
			digest, ok := rawDigest.(string)
			if !ok {
				return exchangeerr.NewEncodingError(fmt.Errorf("%s entries must be strings", SDKey))
			}

			if _, exists := sites[digest]; exists {
				return exchangeerr.NewDigestMismatchError(
					fmt.Errorf("digest %q is committed in more than one place", digest))
			}

			sites[digest] = &digestSite{obj: obj, path: path}
		}
	}

	for name, value := range obj {
		if child, ok := value.(map[string]interface{}); ok {
			if err := indexDigests(child, joinPath(path, name), sites); err != nil {
				return err
			}
		}
	}

	return nil
}

// applyDisclosures recomputes each disclosure digest, checks membership and
// inserts the revealed value at the digest's site.
func applyDisclosures(
	disclosures []string,
	hash crypto.Hash,
	sites map[string]*digestSite,
) (map[string]interface{}, error) {
	disclosed := map[string]interface{}{}
	used := map[string]bool{}

	for _, encoded := range disclosures {
		digest, err := computeDigest(hash, encoded)
		if err != nil {
			return nil, exchangeerr.NewEncodingError(err)
		}

		site, ok := sites[digest]
		if !ok {
			return nil, exchangeerr.NewDigestMismatchError(
				fmt.Errorf("disclosure digest %q is not in the signed digest set", digest))
		}

		if used[digest] {
			return nil, exchangeerr.NewDigestMismatchError(
				fmt.Errorf("disclosure digest %q revealed more than once", digest))
		}

		used[digest] = true

		_, name, value, err := unmarshalDisclosure(encoded)
		if err != nil {
			return nil, exchangeerr.NewEncodingError(err)
		}

		if _, exists := site.obj[name]; exists {
			return nil, exchangeerr.NewDigestMismatchError(
				fmt.Errorf("claim %q already exists at the disclosure level", joinPath(site.path, name)))
		}

		if obj, isMap := value.(map[string]interface{}); isMap && keyExists(SDKey, obj) {
			return nil, exchangeerr.NewDigestMismatchError(
				errors.New("disclosed value must not carry a digest set"))
		}

		site.obj[name] = value
		disclosed[joinPath(site.path, name)] = value
	}

	return disclosed, nil
}

func stripSDKeys(obj map[string]interface{}) {
	delete(obj, SDKey)

	for _, value := range obj {
		if child, ok := value.(map[string]interface{}); ok {
			stripSDKeys(child)
		}
	}
}
