package vc

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/credverse/credverse-go/credential/common/crypto"
	"github.com/credverse/credverse-go/credential/common/dto"
	"github.com/credverse/credverse-go/credential/common/resolver"
)

// AddProof signs the proof-stripped canonical digest with the issuer's
// private key and attaches the resulting proof. Signing is atomic: the
// credential is left untouched on any failure.
func (c *Credential) AddProof(hexPrivateKey string) error {
	if strings.TrimSpace(hexPrivateKey) == "" {
		return crypto.ErrSigningKeyUnavailable
	}

	digest, err := c.Digest()
	if err != nil {
		return fmt.Errorf("failed to compute signing digest: %w", err)
	}

	signature, err := crypto.SignDigest(digest.Bytes(), hexPrivateKey)
	if err != nil {
		return fmt.Errorf("failed to sign credential: %w", err)
	}

	c.Proof = &dto.Proof{
		Type:               ProofType,
		Created:            time.Now().UTC().Format(time.RFC3339),
		VerificationMethod: c.Issuer + KeyFragment,
		ProofPurpose:       ProofPurposeAssertion,
		ProofValue:         "0x" + hex.EncodeToString(signature),
	}
	return nil
}

// VerifyReason classifies why a proof check failed. The boolean verdict is
// uniform for callers; the reason is diagnostic only.
type VerifyReason string

const (
	ReasonNone              VerifyReason = ""
	ReasonMissingProof      VerifyReason = "missing_proof"
	ReasonMalformedProof    VerifyReason = "malformed_proof"
	ReasonIssuerResolution  VerifyReason = "issuer_resolution_failed"
	ReasonSignatureMismatch VerifyReason = "signature_mismatch"
)

// Diagnosis is the detailed outcome of a proof verification.
type Diagnosis struct {
	OK     bool
	Reason VerifyReason
	Detail string
}

// VerifyProof checks the credential's proof against the issuer's resolved
// verification key. It never returns an error for adversarial input: any
// malformed or forged proof yields false.
func (c *Credential) VerifyProof(ctx context.Context, res resolver.Resolver) bool {
	return c.VerifyProofDetailed(ctx, res).OK
}

// VerifyProofDetailed is VerifyProof with a diagnostic reason. The possible
// failure causes — missing proof, malformed proof, resolution failure, and
// digest/signature mismatch — stay distinguishable here even though the
// boolean verdict is uniform.
func (c *Credential) VerifyProofDetailed(ctx context.Context, res resolver.Resolver) Diagnosis {
	if c == nil || !c.IsSigned() {
		return Diagnosis{Reason: ReasonMissingProof, Detail: "credential has no proof"}
	}

	signature, err := crypto.KeyToBytes(c.Proof.ProofValue)
	if err != nil {
		return Diagnosis{Reason: ReasonMalformedProof, Detail: fmt.Sprintf("proofValue is not valid hex: %v", err)}
	}

	digest, err := c.Digest()
	if err != nil {
		return Diagnosis{Reason: ReasonMalformedProof, Detail: err.Error()}
	}

	publicKey, err := res.Resolve(ctx, c.Issuer)
	if err != nil {
		return Diagnosis{Reason: ReasonIssuerResolution, Detail: err.Error()}
	}

	if !crypto.VerifyDigestSignature(publicKey, digest.Bytes(), signature) {
		return Diagnosis{
			Reason: ReasonSignatureMismatch,
			Detail: "signature was not produced over this digest by the issuer's key",
		}
	}
	return Diagnosis{OK: true}
}
