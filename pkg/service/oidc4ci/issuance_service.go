/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package oidc4ci

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/vcxlabs/vcx/internal/logfields"
	"github.com/vcxlabs/vcx/pkg/doc/proofjwt"
	"github.com/vcxlabs/vcx/pkg/doc/sdcred"
	"github.com/vcxlabs/vcx/pkg/event/spi"
	"github.com/vcxlabs/vcx/pkg/exchangeerr"
	"github.com/vcxlabs/vcx/pkg/kms"
	noopMetricsProvider "github.com/vcxlabs/vcx/pkg/observability/metrics/noop"
)

var logger = log.New("oidc4ci-service")

const offerScheme = "openid-credential-offer://"

type nonceStore interface {
	SetIfNotExist(ctx context.Context, nonce string) (bool, error)
}

type eventService interface {
	Publish(ctx context.Context, topic string, messages ...*spi.Event) error
}

type metricsProvider interface {
	CredentialIssuanceTime(value time.Duration)
	IssuanceRejected(code string)
}

// Config holds the dependencies of Service.
type Config struct {
	ProofCodec         *proofjwt.Codec
	HolderVerifier     *kms.Verifier
	NonceStore         nonceStore
	IssuerSigner       *kms.Signer
	IssuerID           string
	CredentialEndpoint string
	CredentialType     string
	EventSvc           eventService
	EventTopic         string
	Metrics            metricsProvider
}

// Service issues selectively disclosable credentials against
// proof-of-possession tokens.
type Service struct {
	proofCodec         *proofjwt.Codec
	holderVerifier     *kms.Verifier
	nonceStore         nonceStore
	issuerSigner       *kms.Signer
	issuerID           string
	credentialEndpoint string
	credentialType     string
	eventSvc           eventService
	eventTopic         string
	metrics            metricsProvider
}

// NewService creates Service.
func NewService(cfg *Config) *Service {
	metrics := cfg.Metrics

	if metrics == nil {
		metrics = &noopMetricsProvider.NoMetrics{}
	}

	return &Service{
		proofCodec:         cfg.ProofCodec,
		holderVerifier:     cfg.HolderVerifier,
		nonceStore:         cfg.NonceStore,
		issuerSigner:       cfg.IssuerSigner,
		issuerID:           cfg.IssuerID,
		credentialEndpoint: cfg.CredentialEndpoint,
		credentialType:     cfg.CredentialType,
		eventSvc:           cfg.EventSvc,
		eventTopic:         cfg.EventTopic,
		metrics:            metrics,
	}
}

// RequestCredential verifies the holder's proof of possession and, only
// then, builds the credential from claims and frame. A failed proof leaves
// no partial issuance behind, the only shared side effect is the consumed
// proof nonce.
func (s *Service) RequestCredential(
	ctx context.Context,
	proofToken string,
	claims sdcred.RawClaimSet,
	frame sdcred.Frame,
) (*IssuedCredentialResult, error) {
	logger.Debugc(ctx, "RequestCredential begin",
		logfields.WithCredentialType(s.credentialType))
	startTime := time.Now()

	state := InteractionStateAwaitingProof

	proof, err := s.proofCodec.Verify(ctx, proofToken, s.holderVerifier, s.credentialEndpoint, s.nonceStore)
	if err != nil {
		s.rejected(ctx, state, err)

		return nil, err
	}

	if err = s.advance(&state, InteractionStateProofVerified); err != nil {
		return nil, err
	}

	logger.Debugc(ctx, "RequestCredential proof verified",
		logfields.WithKeyID(s.holderVerifier.KeyID()))

	credential, err := sdcred.BuildCredential(claims, frame, s.issuerSigner,
		sdcred.WithIssuer(s.issuerID),
		sdcred.WithCredentialType(s.credentialType),
	)
	if err != nil {
		s.rejected(ctx, state, err)

		return nil, err
	}

	if err = s.advance(&state, InteractionStateCredentialIssued); err != nil {
		return nil, err
	}

	if err = s.sendEvent(ctx, spi.InteractionSucceeded, proof.Issuer, nil); err != nil {
		return nil, err
	}

	s.metrics.CredentialIssuanceTime(time.Since(startTime))

	logger.Debugc(ctx, "RequestCredential succeed",
		logfields.WithClaimKeys(claimKeys(claims)))

	return &IssuedCredentialResult{
		Credential:  credential,
		HolderKeyID: s.holderVerifier.KeyID(),
	}, nil
}

// CredentialOffer builds the offer pointer a holder dereferences to start
// an issuance interaction.
func (s *Service) CredentialOffer() (*CredentialOffer, error) {
	offer := &CredentialOffer{
		Issuer:         s.issuerID,
		CredentialType: s.credentialType,
	}

	b, err := json.Marshal(offer)
	if err != nil {
		return nil, fmt.Errorf("marshal credential offer: %w", err)
	}

	q := url.Values{}
	q.Set("credential_offer", string(b))

	offer.OfferURL = offerScheme + "?" + q.Encode()

	return offer, nil
}

func (s *Service) advance(state *InteractionState, newState InteractionState) error {
	if err := s.validateStateTransition(*state, newState); err != nil {
		return err
	}

	*state = newState

	return nil
}

func (s *Service) rejected(ctx context.Context, state InteractionState, err error) {
	if transitionErr := s.validateStateTransition(state, InteractionStateRejected); transitionErr != nil {
		logger.Warnc(ctx, "invalid rejection transition, ignoring..", log.WithError(transitionErr))
	}

	code, ok := exchangeerr.GetCode(err)
	if ok {
		s.metrics.IssuanceRejected(string(code))
	}

	logger.Debugc(ctx, "RequestCredential rejected", logfields.WithErrorCode(string(code)))

	e := s.sendEvent(ctx, spi.InteractionFailed, "", err)
	logger.Debugc(ctx, "sending failed issuer event error, ignoring..", log.WithError(e))
}

type eventPayload struct {
	Error string `json:"error,omitempty"`
}

func (s *Service) sendEvent(
	ctx context.Context, eventType spi.EventType, holderID string, e error) error {
	ep := eventPayload{}
	if e != nil {
		ep.Error = e.Error()
	}

	payload, err := json.Marshal(ep)
	if err != nil {
		return err
	}

	event := spi.NewEventWithPayload(uuid.NewString(), "source://vcx/issuer", eventType, payload)
	event.TransactionID = holderID

	return s.eventSvc.Publish(ctx, s.eventTopic, event)
}

func claimKeys(claims sdcred.RawClaimSet) []string {
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}

	return keys
}
