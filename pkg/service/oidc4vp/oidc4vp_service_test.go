/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package oidc4vp_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vcxlabs/vcx/pkg/doc/presdef"
	"github.com/vcxlabs/vcx/pkg/doc/sdcred"
	"github.com/vcxlabs/vcx/pkg/event/spi"
	"github.com/vcxlabs/vcx/pkg/exchangeerr"
	"github.com/vcxlabs/vcx/pkg/kms"
	"github.com/vcxlabs/vcx/pkg/service/oidc4vp"
	"github.com/vcxlabs/vcx/pkg/storage/inmemory/txstore"
)

const testVerifierID = "did:example:verifier"

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

type exchangeFixture struct {
	keys       *kms.KeyMaterial
	events     *eventRecorder
	requestSvc *oidc4vp.RequestService
	verifySvc  *oidc4vp.VerificationService
	holderSign *kms.Signer
	issuerSign *kms.Signer
	txManager  *oidc4vp.TxManager
}

func newExchangeFixture(t *testing.T) *exchangeFixture {
	t.Helper()

	keys, err := kms.NewKeyMaterial(kms.ED25519)
	require.NoError(t, err)

	verifierSigner, err := keys.Verifier.Signer("oauth-authz-req+jwt")
	require.NoError(t, err)

	holderSigner, err := keys.Holder.Signer("")
	require.NoError(t, err)

	issuerSigner, err := keys.Issuer.Signer(sdcred.TypeHeader)
	require.NoError(t, err)

	holderVerifier, err := keys.Holder.Verifier()
	require.NoError(t, err)

	issuerVerifier, err := keys.Issuer.Verifier()
	require.NoError(t, err)

	events := &eventRecorder{}
	txManager := oidc4vp.NewTxManager(txstore.New(time.Minute))

	requestSvc := oidc4vp.NewRequestService(&oidc4vp.RequestServiceConfig{
		TxManager:     txManager,
		RequestSigner: verifierSigner,
		VerifierID:    testVerifierID,
		EventSvc:      events,
		EventTopic:    spi.VerifierEventTopic,
	})

	verifySvc := oidc4vp.NewVerificationService(&oidc4vp.VerificationServiceConfig{
		TxManager:      txManager,
		HolderVerifier: holderVerifier,
		IssuerVerifier: issuerVerifier,
		EventSvc:       events,
		EventTopic:     spi.VerifierEventTopic,
	})

	return &exchangeFixture{
		keys:       keys,
		events:     events,
		requestSvc: requestSvc,
		verifySvc:  verifySvc,
		holderSign: holderSigner,
		issuerSign: issuerSigner,
		txManager:  txManager,
	}
}

func degreeDefinition() *presdef.PresentationDefinition {
	return &presdef.PresentationDefinition{
		ID: "degree-check",
		InputDescriptors: []*presdef.InputDescriptor{
			{
				ID:             "degree-descriptor",
				CredentialType: "UniversityDegree",
				Constraints: &presdef.Constraints{
					Fields: []*presdef.Field{
						{Path: []string{"$.degree"}},
					},
				},
			},
		},
	}
}

func (f *exchangeFixture) issueDegreeCredential(t *testing.T) *sdcred.IssuedCredential {
	t.Helper()

	credential, err := sdcred.BuildCredential(
		sdcred.RawClaimSet{"name": "Ada", "degree": "CS"},
		sdcred.Frame{"name": false, "degree": true},
		f.issuerSign,
		sdcred.WithIssuer("did:example:issuer"),
		sdcred.WithCredentialType("UniversityDegree"),
	)
	require.NoError(t, err)

	return credential
}

func (f *exchangeFixture) requestObjectClaims(t *testing.T, token string) *oidc4vp.RequestObject {
	t.Helper()

	verifier, err := f.keys.Verifier.Verifier()
	require.NoError(t, err)

	raw, _, err := verifier.VerifyCompact(token)
	require.NoError(t, err)

	var ro oidc4vp.RequestObject
	require.NoError(t, json.Unmarshal(raw, &ro))

	return &ro
}

func (f *exchangeFixture) signPresentation(
	t *testing.T, state, nonce string, vpTokens []string) string {
	t.Helper()

	token, err := f.holderSign.SignClaims(&oidc4vp.PresentationClaims{
		Issuer:   "did:example:holder",
		IssuedAt: time.Now().Unix(),
		State:    state,
		Nonce:    nonce,
		VPTokens: vpTokens,
	})
	require.NoError(t, err)

	return token
}

func TestGenerateRequestObject(t *testing.T) {
	f := newExchangeFixture(t)

	result, err := f.requestSvc.GenerateRequestObject(context.Background(), degreeDefinition())
	require.NoError(t, err)
	require.NotEmpty(t, result.State)

	ro := f.requestObjectClaims(t, result.RequestObject)
	require.Equal(t, testVerifierID, ro.ISS)
	require.Equal(t, "vp_token", ro.ResponseType)
	require.Equal(t, string(result.State), ro.State)
	require.NotEmpty(t, ro.Nonce)
	require.NotEqual(t, ro.Nonce, ro.State)
	require.Equal(t, "degree-check", ro.PresentationDefinition.ID)
	require.Greater(t, ro.EXP, ro.IAT)

	event := f.events.last(t)
	require.Equal(t, spi.InteractionInitiated, event.Type)
	require.Equal(t, string(result.State), event.TransactionID)
}

func TestGenerateRequestObject_InvalidDefinition(t *testing.T) {
	f := newExchangeFixture(t)

	_, err := f.requestSvc.GenerateRequestObject(context.Background(),
		&presdef.PresentationDefinition{ID: "empty"})
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeDefinitionInvalid))
}

func TestGenerateRequestObject_FreshSessionPerRequest(t *testing.T) {
	f := newExchangeFixture(t)

	first, err := f.requestSvc.GenerateRequestObject(context.Background(), degreeDefinition())
	require.NoError(t, err)

	second, err := f.requestSvc.GenerateRequestObject(context.Background(), degreeDefinition())
	require.NoError(t, err)

	require.NotEqual(t, first.State, second.State)
	require.NotEqual(t,
		f.requestObjectClaims(t, first.RequestObject).Nonce,
		f.requestObjectClaims(t, second.RequestObject).Nonce)
}

func TestVerifyPresentationToken(t *testing.T) {
	f := newExchangeFixture(t)
	credential := f.issueDegreeCredential(t)

	result, err := f.requestSvc.GenerateRequestObject(context.Background(), degreeDefinition())
	require.NoError(t, err)

	ro := f.requestObjectClaims(t, result.RequestObject)

	fragment, err := sdcred.Disclose(credential, []string{"degree"})
	require.NoError(t, err)

	token := f.signPresentation(t, ro.State, ro.Nonce, []string{fragment.Serialize()})

	verification, err := f.verifySvc.VerifyPresentationToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, result.State, verification.State)
	require.Equal(t, "CS", verification.Claims["UniversityDegree"]["degree"])
	require.Len(t, verification.Credentials, 1)
	require.Equal(t, "did:example:issuer", verification.Credentials[0].Issuer)

	event := f.events.last(t)
	require.Equal(t, spi.InteractionSucceeded, event.Type)
	require.Equal(t, string(result.State), event.TransactionID)
}

func TestVerifyPresentationToken_Replay(t *testing.T) {
	f := newExchangeFixture(t)
	credential := f.issueDegreeCredential(t)

	result, err := f.requestSvc.GenerateRequestObject(context.Background(), degreeDefinition())
	require.NoError(t, err)

	ro := f.requestObjectClaims(t, result.RequestObject)

	fragment, err := sdcred.Disclose(credential, []string{"degree"})
	require.NoError(t, err)

	token := f.signPresentation(t, ro.State, ro.Nonce, []string{fragment.Serialize()})

	_, err = f.verifySvc.VerifyPresentationToken(context.Background(), token)
	require.NoError(t, err)

	_, err = f.verifySvc.VerifyPresentationToken(context.Background(), token)
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeUnknownOrExpiredSession),
		"session must be single use")
}

func TestVerifyPresentationToken_WrongHolderKey(t *testing.T) {
	f := newExchangeFixture(t)

	otherKey, err := kms.GenerateKeyPair(kms.ED25519)
	require.NoError(t, err)

	otherSigner, err := otherKey.Signer("")
	require.NoError(t, err)

	token, err := otherSigner.SignClaims(&oidc4vp.PresentationClaims{
		State:    "state",
		Nonce:    "nonce",
		VPTokens: []string{"x"},
	})
	require.NoError(t, err)

	_, err = f.verifySvc.VerifyPresentationToken(context.Background(), token)
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeSignatureInvalid))
}

func TestVerifyPresentationToken_UnknownState(t *testing.T) {
	f := newExchangeFixture(t)

	token := f.signPresentation(t, "no-such-state", "nonce", []string{"x"})

	_, err := f.verifySvc.VerifyPresentationToken(context.Background(), token)
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeUnknownOrExpiredSession))

	event := f.events.last(t)
	require.Equal(t, spi.InteractionFailed, event.Type)
}

func TestVerifyPresentationToken_NonceMismatch(t *testing.T) {
	f := newExchangeFixture(t)
	credential := f.issueDegreeCredential(t)

	result, err := f.requestSvc.GenerateRequestObject(context.Background(), degreeDefinition())
	require.NoError(t, err)

	ro := f.requestObjectClaims(t, result.RequestObject)

	fragment, err := sdcred.Disclose(credential, []string{"degree"})
	require.NoError(t, err)

	token := f.signPresentation(t, ro.State, "wrong-nonce", []string{fragment.Serialize()})

	_, err = f.verifySvc.VerifyPresentationToken(context.Background(), token)
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeNonceMismatch))
	require.Equal(t, string(result.State), f.events.last(t).TransactionID)
}

func TestVerifyPresentationToken_ConstraintsUnsatisfied(t *testing.T) {
	f := newExchangeFixture(t)
	credential := f.issueDegreeCredential(t)

	result, err := f.requestSvc.GenerateRequestObject(context.Background(), degreeDefinition())
	require.NoError(t, err)

	ro := f.requestObjectClaims(t, result.RequestObject)

	// Nothing revealed, the required degree path stays hidden.
	fragment, err := sdcred.Disclose(credential, nil)
	require.NoError(t, err)

	token := f.signPresentation(t, ro.State, ro.Nonce, []string{fragment.Serialize()})

	_, err = f.verifySvc.VerifyPresentationToken(context.Background(), token)
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeConstraintsUnsatisfied))
	require.Contains(t, err.Error(), "unmet claim paths: [degree]")

	// The rejected submission burned its session.
	retry := f.signPresentation(t, ro.State, ro.Nonce, []string{fragment.Serialize()})

	_, err = f.verifySvc.VerifyPresentationToken(context.Background(), retry)
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeUnknownOrExpiredSession))
}

func TestVerifyPresentationToken_ForgedDisclosure(t *testing.T) {
	f := newExchangeFixture(t)
	credential := f.issueDegreeCredential(t)

	result, err := f.requestSvc.GenerateRequestObject(context.Background(), degreeDefinition())
	require.NoError(t, err)

	ro := f.requestObjectClaims(t, result.RequestObject)

	fragment, err := sdcred.Disclose(credential, []string{"degree"})
	require.NoError(t, err)

	forged := sdcred.ParseFragment(fragment.Serialize())
	forged.Disclosures = []string{"eyJmb3JnZWQiOiB0cnVlfQ"}

	token := f.signPresentation(t, ro.State, ro.Nonce, []string{forged.Serialize()})

	_, err = f.verifySvc.VerifyPresentationToken(context.Background(), token)
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeDigestMismatch))
}

func TestTxManager_ClaimTwice(t *testing.T) {
	manager := oidc4vp.NewTxManager(txstore.New(time.Minute))

	tx, err := manager.CreateTx(context.Background(), degreeDefinition())
	require.NoError(t, err)
	require.NotEmpty(t, tx.State)
	require.NotEmpty(t, tx.Nonce)

	claimed, err := manager.GetByState(context.Background(), tx.State)
	require.NoError(t, err)
	require.Equal(t, tx.Nonce, claimed.Nonce)

	_, err = manager.GetByState(context.Background(), tx.State)
	require.True(t, exchangeerr.IsCode(err, exchangeerr.CodeUnknownOrExpiredSession))
}
