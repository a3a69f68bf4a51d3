/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package presdef models the verifier's presentation definition: which
// credential types a presentation must contain and which claim paths must be
// disclosed per type. Definitions are static, immutable inputs.
package presdef

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/vcxlabs/vcx/pkg/exchangeerr"
)

//go:embed schema.json
var definitionSchema []byte

// PresentationDefinition declares the credential types and disclosed-claim
// constraints a presentation must satisfy.
type PresentationDefinition struct {
	ID               string             `json:"id"`
	Name             string             `json:"name,omitempty"`
	Purpose          string             `json:"purpose,omitempty"`
	InputDescriptors []*InputDescriptor `json:"input_descriptors"`
}

// InputDescriptor requires one credential of a given type.
type InputDescriptor struct {
	ID             string       `json:"id"`
	CredentialType string       `json:"credential_type"`
	Purpose        string       `json:"purpose,omitempty"`
	Constraints    *Constraints `json:"constraints,omitempty"`
}

// Constraints lists the claims the verifier demands disclosed.
type Constraints struct {
	Fields []*Field `json:"fields,omitempty"`
}

// Field is a single required claim path.
type Field struct {
	Path    []string `json:"path"`
	Purpose string   `json:"purpose,omitempty"`
}

// Validate checks the definition against the embedded JSON schema. A
// definition declaring zero required credential types is invalid.
func (pd *PresentationDefinition) Validate() error {
	if pd == nil {
		return exchangeerr.NewDefinitionInvalidError(errors.New("presentation definition is required"))
	}

	if len(pd.InputDescriptors) == 0 {
		return exchangeerr.NewDefinitionInvalidError(errors.New("definition declares no required credential types"))
	}

	raw, err := json.Marshal(pd)
	if err != nil {
		return exchangeerr.NewDefinitionInvalidError(fmt.Errorf("marshal definition: %w", err))
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(definitionSchema),
		gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return exchangeerr.NewDefinitionInvalidError(fmt.Errorf("validate definition: %w", err))
	}

	if !result.Valid() {
		return exchangeerr.NewDefinitionInvalidError(
			fmt.Errorf("definition schema violation: %s", result.Errors()[0].String()))
	}

	return nil
}
