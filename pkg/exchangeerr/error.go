/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package exchangeerr declares the terminal error outcomes of the credential
// exchange protocol. Every code is non-retryable: retrying a rejected proof
// or presentation would defeat the single-use nonce and session guarantees.
package exchangeerr

import (
	"errors"
	"fmt"
)

// Code is a protocol-level error code.
type Code string

const (
	// CodeEncoding - a token or payload is malformed or missing required fields.
	CodeEncoding Code = "encoding_error"

	// CodeSignatureInvalid - a signature does not verify against the expected key.
	CodeSignatureInvalid Code = "signature_invalid"

	// CodeAudienceMismatch - the proof audience does not match the credential endpoint identity.
	CodeAudienceMismatch Code = "audience_mismatch"

	// CodeNonceReused - the proof nonce was already consumed by an earlier request.
	CodeNonceReused Code = "nonce_reused"

	// CodeTokenExpired - the proof was issued outside the accepted clock-skew window.
	CodeTokenExpired Code = "token_expired"

	// CodeFrameMismatch - the disclosure frame shape diverges from the raw claim set.
	CodeFrameMismatch Code = "frame_mismatch"

	// CodeDigestMismatch - a revealed disclosure is absent from the signed digest
	// set, or the same digest is claimed more than once.
	CodeDigestMismatch Code = "digest_mismatch"

	// CodeUnknownOrExpiredSession - no live request session exists for the submitted state.
	CodeUnknownOrExpiredSession Code = "unknown_or_expired_session"

	// CodeNonceMismatch - the presented nonce differs from the session nonce.
	CodeNonceMismatch Code = "nonce_mismatch"

	// CodeConstraintsUnsatisfied - the revealed claims do not satisfy the
	// presentation definition constraints.
	CodeConstraintsUnsatisfied Code = "constraints_unsatisfied"

	// CodeDefinitionInvalid - the presentation definition declares no required
	// credential types or fails schema validation.
	CodeDefinitionInvalid Code = "definition_invalid"
)

// Error is a protocol error with a discriminating code.
type Error struct {
	code Code
	err  error
}

func newError(code Code, err error) *Error {
	return &Error{code: code, err: err}
}

// NewEncodingError creates an Error with CodeEncoding.
func NewEncodingError(err error) *Error {
	return newError(CodeEncoding, err)
}

// NewSignatureInvalidError creates an Error with CodeSignatureInvalid.
func NewSignatureInvalidError(err error) *Error {
	return newError(CodeSignatureInvalid, err)
}

// NewAudienceMismatchError creates an Error with CodeAudienceMismatch.
func NewAudienceMismatchError(err error) *Error {
	return newError(CodeAudienceMismatch, err)
}

// NewNonceReusedError creates an Error with CodeNonceReused.
func NewNonceReusedError(err error) *Error {
	return newError(CodeNonceReused, err)
}

// NewTokenExpiredError creates an Error with CodeTokenExpired.
func NewTokenExpiredError(err error) *Error {
	return newError(CodeTokenExpired, err)
}

// NewFrameMismatchError creates an Error with CodeFrameMismatch.
func NewFrameMismatchError(err error) *Error {
	return newError(CodeFrameMismatch, err)
}

// NewDigestMismatchError creates an Error with CodeDigestMismatch.
func NewDigestMismatchError(err error) *Error {
	return newError(CodeDigestMismatch, err)
}

// NewUnknownOrExpiredSessionError creates an Error with CodeUnknownOrExpiredSession.
func NewUnknownOrExpiredSessionError(err error) *Error {
	return newError(CodeUnknownOrExpiredSession, err)
}

// NewNonceMismatchError creates an Error with CodeNonceMismatch.
func NewNonceMismatchError(err error) *Error {
	return newError(CodeNonceMismatch, err)
}

// NewConstraintsUnsatisfiedError creates an Error with CodeConstraintsUnsatisfied.
func NewConstraintsUnsatisfiedError(err error) *Error {
	return newError(CodeConstraintsUnsatisfied, err)
}

// NewDefinitionInvalidError creates an Error with CodeDefinitionInvalid.
func NewDefinitionInvalidError(err error) *Error {
	return newError(CodeDefinitionInvalid, err)
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

// Code returns the error code.
func (e *Error) Code() Code {
	return e.code
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.err
}

// GetCode extracts the protocol code from err, unwrapping as needed.
// The second return is false when err carries no protocol code.
func GetCode(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.code, true
	}

	return "", false
}

// IsCode reports whether err wraps a protocol Error with the given code.
func IsCode(err error, code Code) bool {
	c, ok := GetCode(err)

	return ok && c == code
}
