/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdcred

import (
	"fmt"
	"strings"

	"github.com/vcxlabs/vcx/pkg/exchangeerr"
)

// Frame specifies which claims of a raw claim set are selectively
// disclosable. It structurally mirrors the claim set: a boolean leaf marks
// the claim disclosable (true) or always-visible (false); a nested map
// recurses into an object-valued claim.
type Frame map[string]interface{}

// checkShape validates that frame and claims have the same shape at every
// nesting level. Missing or extra keys on either side are a frame mismatch.
func checkShape(claims map[string]interface{}, frame map[string]interface{}, path string) error {
	for name := range claims {
		if strings.HasPrefix(name, SDKey) {
			return exchangeerr.NewFrameMismatchError(
				fmt.Errorf("claim name %q is reserved", joinPath(path, name)))
		}

		if path == "" && registeredClaims[name] {
			return exchangeerr.NewFrameMismatchError(
				fmt.Errorf("claim name %q is reserved", name))
		}

		if _, ok := frame[name]; !ok {
			return exchangeerr.NewFrameMismatchError(
				fmt.Errorf("claim %q is not declared in the frame", joinPath(path, name)))
		}
	}

	for name, marker := range frame {
		claimValue, ok := claims[name]
		if !ok {
			return exchangeerr.NewFrameMismatchError(
				fmt.Errorf("frame declares %q but the claim is absent", joinPath(path, name)))
		}

		var subFrame map[string]interface{}

		switch m := marker.(type) {
		case bool:
			continue
		case Frame:
			subFrame = m
		case map[string]interface{}:
			subFrame = m
		default:
			return exchangeerr.NewFrameMismatchError(
				fmt.Errorf("frame marker for %q must be a bool or a nested frame, got %T", joinPath(path, name), marker))
		}

		claimObj, isMap := claimValue.(map[string]interface{})
		if !isMap {
			return exchangeerr.NewFrameMismatchError(
				fmt.Errorf("frame nests into %q but the claim is not an object", joinPath(path, name)))
		}

		if err := checkShape(claimObj, subFrame, joinPath(path, name)); err != nil {
			return err
		}
	}

	return nil
}
