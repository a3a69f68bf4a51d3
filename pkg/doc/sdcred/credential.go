/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdcred

import (
	"strings"
)

// Disclosure is a (salt, claim name, claim value) triple whose digest is
// committed at issuance and optionally revealed later.
type Disclosure struct {
	Salt  string
	Name  string
	Value interface{}

	// Path is the dot-joined claim path of the disclosure within the
	// credential payload.
	Path string

	encoded string
	digest  string
}

// Encoded returns the base64url encoding of the disclosure triple.
func (d *Disclosure) Encoded() string {
	return d.encoded
}

// Digest returns the digest committed in the signed payload.
func (d *Disclosure) Digest() string {
	return d.digest
}

// IssuedCredential is an issued SD credential: the issuer-signed JWT plus
// the full disclosure set. Immutable once issued.
type IssuedCredential struct {
	SDJWT       string
	Disclosures []*Disclosure
}

// Serialize assembles the combined format for issuance:
// <sd-jwt>~<disclosure1>~...~<disclosureN>.
func (c *IssuedCredential) Serialize() string {
	out := c.SDJWT
	for _, d := range c.Disclosures {
		out += CombinedFormatSeparator + d.encoded
	}

	return out
}

// DisclosurePaths lists the claim paths that can be selectively revealed.
func (c *IssuedCredential) DisclosurePaths() []string {
	paths := make([]string, 0, len(c.Disclosures))
	for _, d := range c.Disclosures {
		paths = append(paths, d.Path)
	}

	return paths
}

// PresentationFragment is the holder-selected part of a credential inside a
// presentation: the SD-JWT plus the revealed subset of disclosures.
type PresentationFragment struct {
	SDJWT       string
	Disclosures []string
}

// Serialize assembles the combined format for presentation. The trailing
// separator terminates the disclosure list.
func (f *PresentationFragment) Serialize() string {
	out := f.SDJWT
	for _, d := range f.Disclosures {
		out += CombinedFormatSeparator + d
	}

	return out + CombinedFormatSeparator
}

// ParseFragment splits a combined presentation format into its parts.
func ParseFragment(combined string) *PresentationFragment {
	parts := strings.Split(combined, CombinedFormatSeparator)

	fragment := &PresentationFragment{SDJWT: parts[0]}

	for _, p := range parts[1:] {
		if p != "" {
			fragment.Disclosures = append(fragment.Disclosures, p)
		}
	}

	return fragment
}
