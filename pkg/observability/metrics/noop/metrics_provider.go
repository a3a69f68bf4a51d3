/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package noop

import (
	"time"

	"github.com/vcxlabs/vcx/pkg/observability/metrics"
)

// NoMetrics provides a default no operation implementation of the Metrics interface.
type NoMetrics struct{}

// GetMetrics returns metrics implementation.
func GetMetrics() metrics.Metrics {
	return &NoMetrics{}
}

func (n *NoMetrics) CredentialIssuanceTime(_ time.Duration)       {}
func (n *NoMetrics) IssuanceRejected(_ string)                    {}
func (n *NoMetrics) PresentationVerificationTime(_ time.Duration) {}
func (n *NoMetrics) PresentationRejected(_ string)                {}
func (n *NoMetrics) InteractionInitiated()                        {}
