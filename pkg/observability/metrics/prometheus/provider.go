/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package prometheus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/vcxlabs/vcx/pkg/observability/metrics"
)

var logger = metrics.Logger

var (
	createOnce sync.Once       //nolint:gochecknoglobals
	instance   metrics.Metrics //nolint:gochecknoglobals
)

// PromMetrics provides the Prometheus implementation of the Metrics interface.
type PromMetrics struct {
	issueCredentialTime    prometheus.Histogram
	verifyPresentationTime prometheus.Histogram
	issuanceRejected       *prometheus.CounterVec
	presentationRejected   *prometheus.CounterVec
	interactionInitiated   prometheus.Counter
}

// GetMetrics returns the singleton metrics instance, registering the
// collectors on first use.
func GetMetrics() metrics.Metrics {
	createOnce.Do(func() {
		instance = NewMetrics()
	})

	return instance
}

// NewMetrics creates the Prometheus metrics provider.
func NewMetrics() *PromMetrics {
	pm := &PromMetrics{
		issueCredentialTime: newHistogram(
			metrics.Service, metrics.IssueCredentialMetric,
			"The time (in seconds) it takes to execute the RequestCredential service call.",
		),
		verifyPresentationTime: newHistogram(
			metrics.Service, metrics.VerifyPresentationMetric,
			"The time (in seconds) it takes to execute the VerifyPresentationToken service call.",
		),
		issuanceRejected: newCounterVec(
			metrics.Service, metrics.IssuanceRejectedMetric,
			"The number of rejected credential requests by protocol error code.",
		),
		presentationRejected: newCounterVec(
			metrics.Service, metrics.PresentationRejectedMetric,
			"The number of rejected presentation tokens by protocol error code.",
		),
		interactionInitiated: newCounter(
			metrics.Service, metrics.InteractionInitiatedMetric,
			"The number of initiated presentation interactions.",
		),
	}

	prometheus.MustRegister(
		pm.issueCredentialTime, pm.verifyPresentationTime,
		pm.issuanceRejected, pm.presentationRejected, pm.interactionInitiated,
	)

	return pm
}

// CredentialIssuanceTime records the time for a RequestCredential call.
func (pm *PromMetrics) CredentialIssuanceTime(value time.Duration) {
	pm.issueCredentialTime.Observe(value.Seconds())

	logger.Debug("issue credential time", log.WithDuration(value))
}

// IssuanceRejected counts a rejected credential request.
func (pm *PromMetrics) IssuanceRejected(code string) {
	pm.issuanceRejected.WithLabelValues(code).Inc()
}

// PresentationVerificationTime records the time for a VerifyPresentationToken call.
func (pm *PromMetrics) PresentationVerificationTime(value time.Duration) {
	pm.verifyPresentationTime.Observe(value.Seconds())

	logger.Debug("verify presentation time", log.WithDuration(value))
}

// PresentationRejected counts a rejected presentation token.
func (pm *PromMetrics) PresentationRejected(code string) {
	pm.presentationRejected.WithLabelValues(code).Inc()
}

// InteractionInitiated counts an initiated presentation interaction.
func (pm *PromMetrics) InteractionInitiated() {
	pm.interactionInitiated.Inc()
}

func newCounter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

func newCounterVec(subsystem, name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, []string{metrics.RejectionCodeLabel})
}

func newHistogram(subsystem, name, help string) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metrics.Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}
