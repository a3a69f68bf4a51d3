/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package oidc4vp

import (
	"time"

	"github.com/vcxlabs/vcx/pkg/doc/presdef"
	"github.com/vcxlabs/vcx/pkg/doc/sdcred"
)

// State is the unguessable correlation handle of a request session.
type State string

// TransactionData is the stored form of a request session.
type TransactionData struct {
	Nonce                  string                          `json:"nonce"`
	PresentationDefinition *presdef.PresentationDefinition `json:"presentationDefinition"`
	CreatedAt              time.Time                       `json:"createdAt"`
}

// Transaction is a live request session: created by the request service,
// consumed exactly once by the verification service, or expired by TTL.
type Transaction struct {
	State                  State
	Nonce                  string
	PresentationDefinition *presdef.PresentationDefinition
	CreatedAt              time.Time
}

// RequestObject is the claim set of the signed request object returned to
// the wallet. It carries the presentation definition that specifies what
// credentials should be sent back.
type RequestObject struct {
	JTI                    string                          `json:"jti"`
	ISS                    string                          `json:"iss"`
	IAT                    int64                           `json:"iat"`
	EXP                    int64                           `json:"exp"`
	ResponseType           string                          `json:"response_type"`
	Nonce                  string                          `json:"nonce"`
	State                  string                          `json:"state"`
	PresentationDefinition *presdef.PresentationDefinition `json:"presentation_definition"`
}

// RequestObjectResult pairs the plaintext state, used for out-of-band
// correlation, with the signed request object handed to the holder.
type RequestObjectResult struct {
	State         State
	RequestObject string
}

// PresentationClaims is the payload of a holder-submitted presentation token.
type PresentationClaims struct {
	Issuer   string   `json:"iss"`
	IssuedAt int64    `json:"iat"`
	State    string   `json:"state"`
	Nonce    string   `json:"nonce"`
	VPTokens []string `json:"vp_token"`
}

// VerificationResult is the terminal outcome of a verified presentation.
type VerificationResult struct {
	State State

	// Credentials are the verified credentials in presentation order.
	Credentials []*sdcred.VerifiedClaims

	// Claims is the union of revealed claims keyed by credential type.
	Claims map[string]map[string]interface{}
}
