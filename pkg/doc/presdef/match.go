/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presdef

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/vcxlabs/vcx/pkg/doc/sdcred"
	"github.com/vcxlabs/vcx/pkg/exchangeerr"
)

// MatchedCredential binds an input descriptor to the credential satisfying it.
type MatchedCredential struct {
	DescriptorID string
	Credential   *sdcred.VerifiedClaims
}

// Match checks the union of revealed claims against the definition's
// per-type constraints. Every required claim path must be present in at
// least one presented credential of the matching type; otherwise the unmet
// paths are reported in a single constraints_unsatisfied error.
func (pd *PresentationDefinition) Match(credentials []*sdcred.VerifiedClaims) ([]*MatchedCredential, error) {
	claimDocs := make([][]byte, len(credentials))

	for i, credential := range credentials {
		doc, err := json.Marshal(credential.Claims)
		if err != nil {
			return nil, fmt.Errorf("marshal revealed claims: %w", err)
		}

		claimDocs[i] = doc
	}

	var (
		matched    []*MatchedCredential
		unmetPaths []string
	)

	for _, descriptor := range pd.InputDescriptors {
		candidates := lo.Filter(lo.Range(len(credentials)), func(i int, _ int) bool {
			return credentials[i].CredentialType == descriptor.CredentialType
		})

		if len(candidates) == 0 {
			unmetPaths = append(unmetPaths, descriptorPaths(descriptor)...)
			continue
		}

		best := -1
		bestUnmet := descriptorPaths(descriptor)

		for _, i := range candidates {
			unmet := unmetForCredential(descriptor, claimDocs[i])
			if len(unmet) < len(bestUnmet) || best == -1 {
				best, bestUnmet = i, unmet
			}
		}

		if len(bestUnmet) > 0 {
			unmetPaths = append(unmetPaths, bestUnmet...)
			continue
		}

		matched = append(matched, &MatchedCredential{
			DescriptorID: descriptor.ID,
			Credential:   credentials[best],
		})
	}

	if len(unmetPaths) > 0 {
		sort.Strings(unmetPaths)

		return nil, exchangeerr.NewConstraintsUnsatisfiedError(
			fmt.Errorf("unmet claim paths: [%s]", strings.Join(lo.Uniq(unmetPaths), " ")))
	}

	return matched, nil
}

func descriptorPaths(descriptor *InputDescriptor) []string {
	if descriptor.Constraints == nil {
		return nil
	}

	var paths []string

	for _, field := range descriptor.Constraints.Fields {
		if len(field.Path) > 0 {
			paths = append(paths, normalizePath(field.Path[0]))
		}
	}

	return paths
}

// unmetForCredential returns the descriptor paths absent from the
// credential's revealed claims. A field with alternative paths is satisfied
// when any of them resolves.
func unmetForCredential(descriptor *InputDescriptor, claimDoc []byte) []string {
	if descriptor.Constraints == nil {
		return nil
	}

	var unmet []string

	for _, field := range descriptor.Constraints.Fields {
		satisfied := lo.SomeBy(field.Path, func(path string) bool {
			return gjson.GetBytes(claimDoc, normalizePath(path)).Exists()
		})

		if !satisfied && len(field.Path) > 0 {
			unmet = append(unmet, normalizePath(field.Path[0]))
		}
	}

	return unmet
}

// normalizePath strips the JSONPath root prefix so constraint paths resolve
// as gjson queries over the revealed claim document.
func normalizePath(path string) string {
	return strings.TrimPrefix(path, "$.")
}
