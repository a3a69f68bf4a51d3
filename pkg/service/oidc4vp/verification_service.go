/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package oidc4vp

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"
	"github.com/valyala/fastjson"

	"github.com/vcxlabs/vcx/internal/logfields"
	"github.com/vcxlabs/vcx/pkg/doc/sdcred"
	"github.com/vcxlabs/vcx/pkg/event/spi"
	"github.com/vcxlabs/vcx/pkg/exchangeerr"
	"github.com/vcxlabs/vcx/pkg/kms"
	noopMetricsProvider "github.com/vcxlabs/vcx/pkg/observability/metrics/noop"
)

type verificationMetricsProvider interface {
	PresentationVerificationTime(value time.Duration)
	PresentationRejected(code string)
}

// VerificationServiceConfig holds the dependencies of VerificationService.
type VerificationServiceConfig struct {
	TxManager      *TxManager
	HolderVerifier *kms.Verifier
	IssuerVerifier *kms.Verifier
	EventSvc       eventService
	EventTopic     string
	Metrics        verificationMetricsProvider
}

// VerificationService verifies holder-submitted presentation tokens against
// the request session they answer.
type VerificationService struct {
	txManager      *TxManager
	holderVerifier *kms.Verifier
	issuerVerifier *kms.Verifier
	eventSvc       eventService
	eventTopic     string
	metrics        verificationMetricsProvider
}

// NewVerificationService creates VerificationService.
func NewVerificationService(cfg *VerificationServiceConfig) *VerificationService {
	metrics := cfg.Metrics

	if metrics == nil {
		metrics = &noopMetricsProvider.NoMetrics{}
	}

	return &VerificationService{
		txManager:      cfg.TxManager,
		holderVerifier: cfg.HolderVerifier,
		issuerVerifier: cfg.IssuerVerifier,
		eventSvc:       cfg.EventSvc,
		eventTopic:     cfg.EventTopic,
		metrics:        metrics,
	}
}

// VerifyPresentationToken checks the holder token end to end: holder
// signature, session claim, nonce binding, per-credential issuer signature
// and disclosure integrity, then definition constraints. The session is
// consumed whatever the outcome, a rejected submission can not be retried
// under the same state.
func (s *VerificationService) VerifyPresentationToken(
	ctx context.Context, token string) (*VerificationResult, error) {
	logger.Debugc(ctx, "VerifyPresentationToken begin", logfields.WithState(peekState(token)))
	startTime := time.Now()

	defer func() {
		s.metrics.PresentationVerificationTime(time.Since(startTime))
	}()

	result, state, err := s.verify(ctx, token)
	if err != nil {
		s.rejected(ctx, state, err)

		return nil, err
	}

	if err = s.sendEvent(ctx, state, spi.InteractionSucceeded, nil); err != nil {
		return nil, err
	}

	logger.Debugc(ctx, "VerifyPresentationToken succeed", logfields.WithState(string(state)))

	return result, nil
}

func (s *VerificationService) verify(
	ctx context.Context, token string) (*VerificationResult, State, error) {
	rawPayload, _, err := s.holderVerifier.VerifyCompact(token)
	if err != nil {
		return nil, "", exchangeerr.NewSignatureInvalidError(
			fmt.Errorf("verify presentation token: %w", err))
	}

	var claims PresentationClaims
	if err = json.Unmarshal(rawPayload, &claims); err != nil {
		return nil, "", exchangeerr.NewEncodingError(
			fmt.Errorf("decode presentation claims: %w", err))
	}

	state := State(claims.State)

	if claims.State == "" || claims.Nonce == "" || len(claims.VPTokens) == 0 {
		return nil, state, exchangeerr.NewEncodingError(
			errors.New("presentation claims state, nonce and vp_token are required"))
	}

	// The session is claimed before any credential checks so a rejected
	// submission burns its state.
	tx, err := s.txManager.GetByState(ctx, state)
	if err != nil {
		return nil, state, err
	}

	if subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(tx.Nonce)) != 1 {
		return nil, state, exchangeerr.NewNonceMismatchError(
			errors.New("presentation nonce does not match session nonce"))
	}

	logger.Debugc(ctx, "VerifyPresentationToken nonce verified",
		logfields.WithState(string(state)))

	credentials := make([]*sdcred.VerifiedClaims, 0, len(claims.VPTokens))

	for _, fragment := range claims.VPTokens {
		verified, verifyErr := sdcred.VerifyDisclosure(sdcred.ParseFragment(fragment), s.issuerVerifier)
		if verifyErr != nil {
			return nil, state, verifyErr
		}

		credentials = append(credentials, verified)
	}

	matched, err := tx.PresentationDefinition.Match(credentials)
	if err != nil {
		return nil, state, err
	}

	byType := make(map[string]map[string]interface{}, len(matched))
	for _, m := range matched {
		byType[m.Credential.CredentialType] = m.Credential.Disclosed
	}

	return &VerificationResult{
		State:       state,
		Credentials: credentials,
		Claims:      byType,
	}, state, nil
}

func (s *VerificationService) rejected(ctx context.Context, state State, err error) {
	code, ok := exchangeerr.GetCode(err)
	if ok {
		s.metrics.PresentationRejected(string(code))
	}

	logger.Debugc(ctx, "VerifyPresentationToken rejected",
		logfields.WithState(string(state)), logfields.WithErrorCode(string(code)))

	if state == "" {
		return
	}

	e := s.sendEvent(ctx, state, spi.InteractionFailed, err)
	logger.Debugc(ctx, "sending failed verifier event error, ignoring..", log.WithError(e))
}

func (s *VerificationService) sendEvent(
	ctx context.Context, state State, eventType spi.EventType, e error) error {
	event, err := createEvent(state, "source://vcx/verifier", eventType, e)
	if err != nil {
		return err
	}

	return s.eventSvc.Publish(ctx, s.eventTopic, event)
}

// peekState extracts the state claim without verifying the token, for log
// correlation only.
func peekState(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ""
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ""
	}

	v, err := fastjson.ParseBytes(raw)
	if err != nil {
		return ""
	}

	return string(v.GetStringBytes("state"))
}
