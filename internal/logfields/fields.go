/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logfields

import (
	"go.uber.org/zap"
)

// Log Fields.
const (
	FieldClaimKeys      = "claimKeys"
	FieldCredentialType = "credentialType"
	FieldDefinitionID   = "definitionID"
	FieldErrorCode      = "errorCode"
	FieldKeyID          = "keyID"
	FieldState          = "state"
)

// WithClaimKeys sets the ClaimKeys field.
func WithClaimKeys(claimKeys []string) zap.Field {
	return zap.Strings(FieldClaimKeys, claimKeys)
}

// WithCredentialType sets the CredentialType field.
func WithCredentialType(credentialType string) zap.Field {
	return zap.String(FieldCredentialType, credentialType)
}

// WithDefinitionID sets the DefinitionID field.
func WithDefinitionID(definitionID string) zap.Field {
	return zap.String(FieldDefinitionID, definitionID)
}

// WithErrorCode sets the ErrorCode field.
func WithErrorCode(code string) zap.Field {
	return zap.String(FieldErrorCode, code)
}

// WithKeyID sets the KeyID field.
func WithKeyID(keyID string) zap.Field {
	return zap.String(FieldKeyID, keyID)
}

// WithState sets the State field.
func WithState(state string) zap.Field {
	return zap.String(FieldState, state)
}
