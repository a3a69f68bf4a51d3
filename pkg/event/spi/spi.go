/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package spi defines the lifecycle events published by the exchange
// services. Transports and brokers are host concerns; the core only emits.
package spi

import (
	"context"
	"time"
)

const (
	// IssuerEventTopic issuer topic name.
	IssuerEventTopic = "vcx-issuer"
	// VerifierEventTopic verifier topic name.
	VerifierEventTopic = "vcx-verifier"
)

// EventType event type.
type EventType string

const (
	// InteractionInitiated is published when a request object is created.
	InteractionInitiated = EventType("oidc_interaction_initiated")
	// InteractionSucceeded is published on successful issuance/verification.
	InteractionSucceeded = EventType("oidc_interaction_succeeded")
	// InteractionFailed is published on a terminal rejection.
	InteractionFailed = EventType("oidc_interaction_failed")
)

// Payload defines event payload.
type Payload []byte

// Event is a single lifecycle event.
type Event struct {
	// SpecVersion is spec version(required).
	SpecVersion string `json:"specVersion"`

	// ID identifies the event(required).
	ID string `json:"id"`

	// Source is URI for producer(required).
	Source string `json:"source"`

	// Type defines event type(required).
	Type EventType `json:"type"`

	// Time defines time of occurrence(required).
	Time time.Time `json:"time"`

	// DataContentType is data content type(optional).
	DataContentType string `json:"dataContentType,omitempty"`

	// Data defines message(optional).
	Data []byte `json:"data,omitempty"`

	// TransactionID defines transaction ID(optional).
	TransactionID string `json:"txnId,omitempty"`
}

// Publisher publishes events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, messages ...*Event) error
}

// NewEvent creates a new Event and sets all required fields.
func NewEvent(uuid string, source string, eventType EventType) *Event {
	return &Event{
		SpecVersion: "1.0",
		ID:          uuid,
		Source:      source,
		Type:        eventType,
		Time:        time.Now(),
	}
}

// NewEventWithPayload creates a new Event with payload.
func NewEventWithPayload(uuid string, source string, eventType EventType, payload Payload) *Event {
	event := NewEvent(uuid, source, eventType)

	event.Data = payload
	event.DataContentType = "application/json"

	return event
}
