/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdcred

import (
	"fmt"

	"github.com/samber/lo"
)

// Disclose selects the disclosures matching revealPaths and omits the rest.
// The digest commitment in the signed SD-JWT stays valid regardless of which
// subset is revealed. Unknown paths are an error: the holder can not reveal
// a claim that was not disclosable at issuance time.
func Disclose(credential *IssuedCredential, revealPaths []string) (*PresentationFragment, error) {
	byPath := lo.KeyBy(credential.Disclosures, func(d *Disclosure) string {
		return d.Path
	})

	fragment := &PresentationFragment{SDJWT: credential.SDJWT}

	for _, path := range lo.Uniq(revealPaths) {
		disclosure, ok := byPath[path]
		if !ok {
			return nil, fmt.Errorf("no disclosable claim at path %q", path)
		}

		fragment.Disclosures = append(fragment.Disclosures, disclosure.encoded)
	}

	return fragment, nil
}
