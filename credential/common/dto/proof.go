package dto

import (
	"encoding/json"
	"fmt"
)

// Proof is the cryptographic attestation binding a credential digest to an
// issuer identity.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	ProofValue         string `json:"proofValue,omitempty"`
}

// ParseRawToProof converts a raw decoded JSON value into a Proof.
func ParseRawToProof(raw interface{}) (*Proof, error) {
	if raw == nil {
		return nil, fmt.Errorf("proof is nil")
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proof: %w", err)
	}

	var proof Proof
	if err := json.Unmarshal(data, &proof); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proof: %w", err)
	}
	return &proof, nil
}
