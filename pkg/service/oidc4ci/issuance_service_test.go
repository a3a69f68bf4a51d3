/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package oidc4ci_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vcxlabs/vcx/pkg/doc/proofjwt"
	"github.com/vcxlabs/vcx/pkg/doc/sdcred"
	"github.com/vcxlabs/vcx/pkg/event/spi"
	"github.com/vcxlabs/vcx/pkg/exchangeerr"
	"github.com/vcxlabs/vcx/pkg/kms"
	"github.com/vcxlabs/vcx/pkg/service/oidc4ci"
	"github.com/vcxlabs/vcx/pkg/storage/inmemory/noncestore"
)

const (
	testIssuerID           = "did:example:university"
	testCredentialEndpoint = "https://issuer.example.com/credential"
	testCredentialType     = "UniversityDegree"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []*spi.Event
}

func (r *eventRecorder) Publish(_ context.Context, _ string, messages ...*spi.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, messages...)

	return nil
}

func (r *eventRecorder) last(t *testing.T) *spi.Event {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	require.NotEmpty(t, r.events)

	return r.events[len(r.events)-1]
}

type issuanceFixture struct {
	keys       *kms.KeyMaterial
	events     *eventRecorder
	service    *oidc4ci.Service
	holderSign *kms.Signer
	codec      *proofjwt.Codec
}

func newIssuanceFixture(t *testing.T, codecOpts ...proofjwt.Opt) *issuanceFixture {
	t.Helper()

	keys, err := kms.NewKeyMaterial(kms.ED25519)
	require.NoError(t, err)

	holderSigner, err := keys.Holder.Signer(proofjwt.TypeHeader)
	require.NoError(t, err)

	holderVerifier, err := keys.Holder.Verifier()
	require.NoError(t, err)

	issuerSigner, err := keys.Issuer.Signer(sdcred.TypeHeader)
	require.NoError(t, err)

	events := &eventRecorder{}
	codec := proofjwt.New(codecOpts...)

	service := oidc4ci.NewService(&oidc4ci.Config{
		ProofCodec:         codec,
		HolderVerifier:     holderVerifier,
		NonceStore:         noncestore.New(time.Minute),
		IssuerSigner:       issuerSigner,
		IssuerID:           testIssuerID,
		CredentialEndpoint: testCredentialEndpoint,
		CredentialType:     testCredentialType,
		EventSvc:           events,
		EventTopic:         spi.IssuerEventTopic,
	})

	return &issuanceFixture{
		keys:       keys,
		events:     events,
		service:    service,
		holderSign: holderSigner,
		codec:      codec,
	}
}

func (f *issuanceFixture) proofToken(t *testing.T, nonce string) string {
	t.Helper()

	token, err := f.codec.Issue(&proofjwt.Payload{
		Issuer:   "did:example:holder",
		Audience: testCredentialEndpoint,
		Nonce:    nonce,
		IssuedAt: time.Now().Unix(),
	}, f.holderSign)
	require.NoError(t, err)

	return token
}

func TestRequestCredential(t *testing.T) {
	f := newIssuanceFixture(t)

	result, err := f.service.RequestCredential(context.Background(),
		f.proofToken(t, "nonce-1"),
		sdcred.RawClaimSet{"name": "Ada", "degree": "CS"},
		sdcred.Frame{"name": false, "degree": true},
	)
	require.NoError(t, err)
	require.NotNil(t, result.Credential)
	require.Equal(t, f.keys.Holder.KeyID, result.HolderKeyID)

	issuerVerifier, err := f.keys.Issuer.Verifier()
	require.NoError(t, err)

	fragment, err := sdcred.Disclose(result.Credential, []string{"degree"})
	require.NoError(t, err)

	verified, err := sdcred.VerifyDisclosure(fragment, issuerVerifier)
	require.NoError(t, err)
	require.Equal(t, testIssuerID, verified.Issuer)
	require.Equal(t, testCredentialType, verified.CredentialType)
	require.Equal(t, "CS", verified.Disclosed["degree"])

	event := f.events.last(t)
	require.Equal(t, spi.InteractionSucceeded, event.Type)
}

func TestRequestCredential_ProofReplay(t *testing.T) {
	f := newIssuanceFixture(t)

	token := f.proofToken(t, "nonce-1")

	claims := sdcred.RawClaimSet{"name": "Ada"}
	frame := sdcred.Frame{"name": true}

	_, err := f.service.RequestCredential(context.Background(), token, claims, frame)
	require.NoError(t, err)

	_, err = f.service.RequestCredential(context.Background(), token, claims, frame)
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeNonceReused),
		"re-submitted proof token must be rejected")

	require.Equal(t, spi.InteractionFailed, f.events.last(t).Type)
}

func TestRequestCredential_AudienceMismatch(t *testing.T) {
	f := newIssuanceFixture(t)

	token, err := f.codec.Issue(&proofjwt.Payload{
		Issuer:   "did:example:holder",
		Audience: "https://other-issuer.example.com/credential",
		Nonce:    "nonce-1",
		IssuedAt: time.Now().Unix(),
	}, f.holderSign)
	require.NoError(t, err)

	_, err = f.service.RequestCredential(context.Background(), token,
		sdcred.RawClaimSet{"name": "Ada"}, sdcred.Frame{"name": true})
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeAudienceMismatch))
}

func TestRequestCredential_ExpiredProof(t *testing.T) {
	f := newIssuanceFixture(t)

	token, err := f.codec.Issue(&proofjwt.Payload{
		Issuer:   "did:example:holder",
		Audience: testCredentialEndpoint,
		Nonce:    "nonce-1",
		IssuedAt: time.Now().Add(-time.Hour).Unix(),
	}, f.holderSign)
	require.NoError(t, err)

	_, err = f.service.RequestCredential(context.Background(), token,
		sdcred.RawClaimSet{"name": "Ada"}, sdcred.Frame{"name": true})
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeTokenExpired))
}

func TestRequestCredential_ExpiredProofKeepsNonceFresh(t *testing.T) {
	f := newIssuanceFixture(t)

	expired, err := f.codec.Issue(&proofjwt.Payload{
		Issuer:   "did:example:holder",
		Audience: testCredentialEndpoint,
		Nonce:    "nonce-1",
		IssuedAt: time.Now().Add(-time.Hour).Unix(),
	}, f.holderSign)
	require.NoError(t, err)

	_, err = f.service.RequestCredential(context.Background(), expired,
		sdcred.RawClaimSet{"name": "Ada"}, sdcred.Frame{"name": true})
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeTokenExpired))

	// The rejected proof must not have consumed the nonce.
	_, err = f.service.RequestCredential(context.Background(), f.proofToken(t, "nonce-1"),
		sdcred.RawClaimSet{"name": "Ada"}, sdcred.Frame{"name": true})
	require.NoError(t, err)
}

func TestRequestCredential_WrongHolderKey(t *testing.T) {
	f := newIssuanceFixture(t)

	otherKey, err := kms.GenerateKeyPair(kms.ED25519)
	require.NoError(t, err)

	otherSigner, err := otherKey.Signer(proofjwt.TypeHeader)
	require.NoError(t, err)

	token, err := f.codec.Issue(&proofjwt.Payload{
		Issuer:   "did:example:holder",
		Audience: testCredentialEndpoint,
		Nonce:    "nonce-1",
		IssuedAt: time.Now().Unix(),
	}, otherSigner)
	require.NoError(t, err)

	_, err = f.service.RequestCredential(context.Background(), token,
		sdcred.RawClaimSet{"name": "Ada"}, sdcred.Frame{"name": true})
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeSignatureInvalid))
}

func TestRequestCredential_FrameMismatch(t *testing.T) {
	f := newIssuanceFixture(t)

	_, err := f.service.RequestCredential(context.Background(),
		f.proofToken(t, "nonce-1"),
		sdcred.RawClaimSet{"name": "Ada"},
		sdcred.Frame{"name": true, "degree": true},
	)
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeFrameMismatch))
	require.Equal(t, spi.InteractionFailed, f.events.last(t).Type)
}

func TestCredentialOffer(t *testing.T) {
	f := newIssuanceFixture(t)

	offer, err := f.service.CredentialOffer()
	require.NoError(t, err)
	require.Equal(t, testIssuerID, offer.Issuer)
	require.Equal(t, testCredentialType, offer.CredentialType)
	require.Contains(t, offer.OfferURL, "openid-credential-offer://?credential_offer=")
	require.Contains(t, offer.OfferURL, "credential_issuer")
}
