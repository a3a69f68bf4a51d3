/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package oidc4vp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/vcxlabs/vcx/internal/logfields"
	"github.com/vcxlabs/vcx/pkg/doc/presdef"
	"github.com/vcxlabs/vcx/pkg/event/spi"
	noopMetricsProvider "github.com/vcxlabs/vcx/pkg/observability/metrics/noop"
)

var logger = log.New("oidc4vp-service")

const (
	responseTypeVPToken  = "vp_token"
	defaultTokenLifetime = 10 * time.Minute
)

type eventService interface {
	Publish(ctx context.Context, topic string, messages ...*spi.Event) error
}

type requestSigner interface {
	SignClaims(claims interface{}) (string, error)
}

type requestMetricsProvider interface {
	InteractionInitiated()
}

// RequestServiceConfig holds the dependencies of RequestService.
type RequestServiceConfig struct {
	TxManager     *TxManager
	RequestSigner requestSigner
	VerifierID    string
	TokenLifetime time.Duration
	EventSvc      eventService
	EventTopic    string
	Metrics       requestMetricsProvider
}

// RequestService creates signed presentation request objects, one request
// session per object.
type RequestService struct {
	txManager     *TxManager
	requestSigner requestSigner
	verifierID    string
	tokenLifetime time.Duration
	eventSvc      eventService
	eventTopic    string
	metrics       requestMetricsProvider
}

// NewRequestService creates RequestService.
func NewRequestService(cfg *RequestServiceConfig) *RequestService {
	metrics := cfg.Metrics

	if metrics == nil {
		metrics = &noopMetricsProvider.NoMetrics{}
	}

	tokenLifetime := cfg.TokenLifetime
	if tokenLifetime == 0 {
		tokenLifetime = defaultTokenLifetime
	}

	return &RequestService{
		txManager:     cfg.TxManager,
		requestSigner: cfg.RequestSigner,
		verifierID:    cfg.VerifierID,
		tokenLifetime: tokenLifetime,
		eventSvc:      cfg.EventSvc,
		eventTopic:    cfg.EventTopic,
		metrics:       metrics,
	}
}

// GenerateRequestObject validates the definition, opens a request session
// and returns the signed request object for the wallet.
func (s *RequestService) GenerateRequestObject(
	ctx context.Context, pd *presdef.PresentationDefinition) (*RequestObjectResult, error) {
	logger.Debugc(ctx, "GenerateRequestObject begin", logfields.WithDefinitionID(pd.ID))

	if err := pd.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.txManager.CreateTx(ctx, pd)
	if err != nil {
		return nil, fmt.Errorf("fail to create tx: %w", err)
	}

	logger.Debugc(ctx, "GenerateRequestObject tx created", logfields.WithState(string(tx.State)))

	now := time.Now()

	token, err := s.requestSigner.SignClaims(&RequestObject{
		JTI:                    uuid.NewString(),
		ISS:                    s.verifierID,
		IAT:                    now.Unix(),
		EXP:                    now.Add(s.tokenLifetime).Unix(),
		ResponseType:           responseTypeVPToken,
		Nonce:                  tx.Nonce,
		State:                  string(tx.State),
		PresentationDefinition: pd,
	})
	if err != nil {
		return nil, fmt.Errorf("sign request object: %w", err)
	}

	if errSendEvent := s.sendEvent(ctx, tx.State, spi.InteractionInitiated, nil); errSendEvent != nil {
		return nil, errSendEvent
	}

	s.metrics.InteractionInitiated()

	logger.Debugc(ctx, "GenerateRequestObject succeed")

	return &RequestObjectResult{
		State:         tx.State,
		RequestObject: token,
	}, nil
}

func (s *RequestService) sendEvent(
	ctx context.Context, state State, eventType spi.EventType, e error) error {
	event, err := createEvent(state, "source://vcx/verifier", eventType, e)
	if err != nil {
		return err
	}

	return s.eventSvc.Publish(ctx, s.eventTopic, event)
}

type eventPayload struct {
	Error string `json:"error,omitempty"`
}

func createEvent(state State, source string, eventType spi.EventType, e error) (*spi.Event, error) {
	ep := eventPayload{}
	if e != nil {
		ep.Error = e.Error()
	}

	payload, err := json.Marshal(ep)
	if err != nil {
		return nil, err
	}

	event := spi.NewEventWithPayload(uuid.NewString(), source, eventType, payload)
	event.TransactionID = string(state)

	return event, nil
}
