/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"
)

// Logger used by the metrics providers.
var Logger = log.New("metrics-provider")

// Constants used by the metrics providers.
const (
	// Namespace Organization namespace.
	Namespace = "vcx"

	// Service operations.
	Service                        = "service"
	IssueCredentialMetric          = "service_issueCredential_seconds"
	IssuanceRejectedMetric         = "service_issuanceRejected_total"
	VerifyPresentationMetric       = "service_verifyPresentation_seconds"
	PresentationRejectedMetric     = "service_presentationRejected_total"
	InteractionInitiatedMetric     = "service_interactionInitiated_total"

	// RejectionCodeLabel is the label carrying the protocol error code on
	// rejection counters.
	RejectionCodeLabel = "code"
)

// Metrics is the interface for the metrics supported by the providers.
type Metrics interface {
	CredentialIssuanceTime(value time.Duration)
	IssuanceRejected(code string)
	PresentationVerificationTime(value time.Duration)
	PresentationRejected(code string)
	InteractionInitiated()
}
