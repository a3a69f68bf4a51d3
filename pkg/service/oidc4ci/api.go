/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package oidc4ci

import (
	"github.com/vcxlabs/vcx/pkg/doc/sdcred"
)

// InteractionState tracks one issuance interaction.
type InteractionState int16

const (
	InteractionStateUnknown          = InteractionState(0)
	InteractionStateAwaitingProof    = InteractionState(1)
	InteractionStateProofVerified    = InteractionState(2)
	InteractionStateCredentialIssued = InteractionState(3)
	InteractionStateRejected         = InteractionState(4)
)

// CredentialOffer points a holder at the issuer's credential endpoint.
type CredentialOffer struct {
	Issuer         string `json:"credential_issuer"`
	CredentialType string `json:"credential_type"`
	OfferURL       string `json:"-"`
}

// IssuedCredentialResult is the outcome of a successful issuance.
type IssuedCredentialResult struct {
	// Credential is the issued SD credential with its disclosure set.
	Credential *sdcred.IssuedCredential

	// HolderKeyID is the kid of the proof the credential was issued against.
	HolderKeyID string
}
