/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package oidc4ci

import "fmt"

func (s *Service) validateStateTransition(
	oldState InteractionState,
	newState InteractionState,
) error {
	if oldState == InteractionStateAwaitingProof &&
		newState == InteractionStateProofVerified {
		return nil
	}

	if oldState == InteractionStateProofVerified &&
		newState == InteractionStateCredentialIssued {
		return nil
	}

	if newState == InteractionStateRejected &&
		oldState != InteractionStateCredentialIssued {
		return nil // any non-terminal state may fail
	}

	return fmt.Errorf("unexpected transition from %v to %v", oldState, newState)
}
