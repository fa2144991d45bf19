// Package schema validates the structural shape of credential documents
// before they enter the canonicalization and signing pipeline.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/credverse/credverse-go/credential/common/canonical"
)

// credentialSchema is the JSON Schema for the portable credential document.
// The issuer field is restricted to the reference-string variant; issuer
// records must be normalized to a DID string before entering the pipeline.
const credentialSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["@context", "id", "type", "issuer", "issuanceDate", "credentialSubject", "metadata"],
	"properties": {
		"@context": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string"}
		},
		"id": {"type": "string", "minLength": 1},
		"type": {
			"type": "array",
			"minItems": 2,
			"items": {"type": "string"}
		},
		"issuer": {"type": "string", "minLength": 1},
		"issuanceDate": {"type": "string", "format": "date-time"},
		"credentialSubject": {"type": "object"},
		"metadata": {
			"type": "object",
			"required": ["version", "templateId", "issuerDID"],
			"properties": {
				"version": {"type": "string"},
				"templateId": {"type": "string"},
				"issuerDID": {"type": "string"},
				"anchorDigest": {"type": "string"},
				"storageRefs": {"type": "array", "items": {"type": "string"}},
				"tags": {"type": "array", "items": {"type": "string"}},
				"compliance": {"type": "object", "additionalProperties": {"type": "boolean"}}
			}
		},
		"proof": {
			"type": "object",
			"required": ["type", "created", "verificationMethod", "proofPurpose"],
			"properties": {
				"type": {"type": "string"},
				"created": {"type": "string"},
				"verificationMethod": {"type": "string"},
				"proofPurpose": {"type": "string"},
				"proofValue": {"type": "string"}
			}
		}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(credentialSchema)

// ValidateDocument checks a decoded credential document against the portable
// document schema. Violations are reported as ErrMalformedDocument.
func ValidateDocument(doc canonical.Document) error {
	if doc == nil {
		return canonical.ErrMalformedDocument
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", canonical.ErrMalformedDocument, err)
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("%w: %s", canonical.ErrMalformedDocument, strings.Join(details, "; "))
}
