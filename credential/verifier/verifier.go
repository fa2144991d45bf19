// Package verifier combines proof checking and registry lookup into a single
// verification verdict. A credential is valid only when its signature checks
// out, its digest is anchored, the entry is not revoked, and the anchoring
// identity matches the document's issuer.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/credverse/credverse-go/credential/common/canonical"
	"github.com/credverse/credverse-go/credential/common/resolver"
	"github.com/credverse/credverse-go/credential/vc"
	"github.com/credverse/credverse-go/registry"
)

// Reason classifies a failed verification. Exactly one reason is reported per
// verdict, in check order: malformed document, bad signature, missing entry,
// revoked entry, issuer mismatch. Registry outages are reported as their own
// reason so callers never mistake an outage for an invalid credential.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonMalformed           Reason = "malformed"
	ReasonSignatureInvalid    Reason = "signature_invalid"
	ReasonNotFound            Reason = "not_found"
	ReasonRevoked             Reason = "revoked"
	ReasonIssuerMismatch      Reason = "issuer_mismatch"
	ReasonRegistryUnavailable Reason = "registry_unavailable"
)

// Verdict is the outcome of one verification. Registry-derived fields are
// populated whenever an entry was found, including for invalid verdicts, so a
// caller can report "revoked on <date>" rather than a bare false.
type Verdict struct {
	Valid            bool
	Reason           Reason
	Detail           string
	Digest           canonical.Digest
	Issuer           string
	AnchoredAt       time.Time
	Revoked          bool
	RevocationReason string
}

// Orchestrator runs full credential verifications against a registry and an
// issuer key resolver.
type Orchestrator struct {
	registry *registry.Client
	resolver resolver.Resolver
}

// New creates an orchestrator. The resolver may be nil, in which case document
// verification degrades to registry-only checks (digest anchoring and
// revocation state) and never reports signature_invalid.
func New(client *registry.Client, res resolver.Resolver) (*Orchestrator, error) {
	if client == nil {
		return nil, errors.New("registry client is required")
	}
	return &Orchestrator{registry: client, resolver: res}, nil
}

// VerifyDocument parses and fully verifies a raw credential document.
// Adversarial input never produces an error, only an invalid verdict.
func (o *Orchestrator) VerifyDocument(ctx context.Context, raw []byte) Verdict {
	cred, err := vc.ParseCredential(raw)
	if err != nil {
		return Verdict{Reason: ReasonMalformed, Detail: err.Error()}
	}
	return o.VerifyCredential(ctx, cred)
}

// VerifyCredential fully verifies a parsed credential: signature first, then
// registry state. The revocation state is re-read from the registry on every
// call; there is no caching layer to go stale.
func (o *Orchestrator) VerifyCredential(ctx context.Context, cred *vc.Credential) Verdict {
	if cred == nil {
		return Verdict{Reason: ReasonMalformed, Detail: "credential is nil"}
	}

	digest, err := cred.Digest()
	if err != nil {
		return Verdict{Reason: ReasonMalformed, Detail: err.Error()}
	}
	verdict := Verdict{Digest: digest}

	if o.resolver != nil {
		if diag := cred.VerifyProofDetailed(ctx, o.resolver); !diag.OK {
			verdict.Reason = ReasonSignatureInvalid
			verdict.Detail = fmt.Sprintf("%s: %s", diag.Reason, diag.Detail)
			// Still consult the registry so the verdict carries the
			// anchoring facts alongside the signature failure.
			o.fillFromRegistry(ctx, &verdict, digest)
			return verdict
		}
	}

	entry, err := o.registry.Lookup(ctx, digest)
	if err != nil {
		return o.lookupFailure(verdict, err)
	}
	fillEntry(&verdict, entry)

	if entry.Revoked {
		verdict.Reason = ReasonRevoked
		verdict.Detail = entry.RevocationReason
		return verdict
	}
	if !identityEqual(entry.Issuer, cred.Issuer) {
		verdict.Reason = ReasonIssuerMismatch
		verdict.Detail = fmt.Sprintf("anchored by %q, document claims %q", entry.Issuer, cred.Issuer)
		return verdict
	}

	verdict.Valid = true
	return verdict
}

// VerifyDigest verifies a bare digest against the registry: anchored and not
// revoked. No signature or issuer check is possible without the document.
func (o *Orchestrator) VerifyDigest(ctx context.Context, digest canonical.Digest) Verdict {
	verdict := Verdict{Digest: digest}
	if digest.IsZero() {
		verdict.Reason = ReasonMalformed
		verdict.Detail = "digest is empty"
		return verdict
	}

	entry, err := o.registry.Lookup(ctx, digest)
	if err != nil {
		return o.lookupFailure(verdict, err)
	}
	fillEntry(&verdict, entry)

	if entry.Revoked {
		verdict.Reason = ReasonRevoked
		verdict.Detail = entry.RevocationReason
		return verdict
	}
	verdict.Valid = true
	return verdict
}

func (o *Orchestrator) lookupFailure(verdict Verdict, err error) Verdict {
	if errors.Is(err, registry.ErrNotFound) {
		verdict.Reason = ReasonNotFound
		verdict.Detail = "digest is not anchored"
		return verdict
	}
	verdict.Reason = ReasonRegistryUnavailable
	verdict.Detail = err.Error()
	return verdict
}

// fillFromRegistry best-effort populates registry facts on a verdict whose
// reason is already decided. Lookup failures are ignored here.
func (o *Orchestrator) fillFromRegistry(ctx context.Context, verdict *Verdict, digest canonical.Digest) {
	entry, err := o.registry.Lookup(ctx, digest)
	if err != nil {
		return
	}
	fillEntry(verdict, entry)
}

func fillEntry(verdict *Verdict, entry *registry.Entry) {
	verdict.Issuer = entry.Issuer
	verdict.AnchoredAt = entry.AnchoredAt
	verdict.Revoked = entry.Revoked
	verdict.RevocationReason = entry.RevocationReason
}

// identityEqual compares issuer identities case-insensitively: ledger
// backends report hex addresses whose casing is not significant.
func identityEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
