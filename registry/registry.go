// Package registry defines the append-only credential registry contract: the
// external ledger that records anchored digests and their revocation state.
// The ledger owns all ordering guarantees (digest uniqueness, monotonic
// revocation); this package only types its operations and conflicts.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/credverse/credverse-go/credential/common/canonical"
)

var (
	// ErrNotFound is returned when no entry exists for a digest.
	ErrNotFound = errors.New("registry: entry not found")

	// ErrAlreadyAnchored is returned when an entry already exists for a digest.
	ErrAlreadyAnchored = errors.New("registry: digest already anchored")

	// ErrAlreadyRevoked is returned when the revoked flag is already set.
	ErrAlreadyRevoked = errors.New("registry: credential already revoked")

	// ErrNotIssuer is returned when a revocation caller is not the
	// original anchoring identity.
	ErrNotIssuer = errors.New("registry: caller is not the anchoring issuer")

	// ErrUnauthorized is returned when the calling identity lacks anchor rights.
	ErrUnauthorized = errors.New("registry: caller lacks anchor rights")

	// ErrUnavailable is returned after transient failures exhaust the retry
	// budget.
	ErrUnavailable = errors.New("registry: unavailable")
)

// Entry is one record of the append-only registry. At most one entry exists
// per digest; Revoked flips false to true exactly once and never back.
type Entry struct {
	Digest           canonical.Digest
	Issuer           string
	AnchoredAt       time.Time
	Revoked          bool
	RevocationReason string
	CredentialID     string
	StorageRefs      []string
}

// AnchorReceipt confirms a successful anchor operation.
type AnchorReceipt struct {
	Digest       canonical.Digest
	CredentialID string
	AnchoredAt   time.Time
	Ref          string // backend-specific reference, e.g. a transaction hash
}

// RevocationReceipt confirms a successful revoke operation.
type RevocationReceipt struct {
	CredentialID string
	Reason       string
	RevokedAt    time.Time
	Ref          string
}

// Registry is the ledger transport. Implementations may be slow and
// unavailable; every operation is context-bound. The caller identity is
// explicit so the ledger can enforce anchor rights and issuer-only
// revocation.
type Registry interface {
	Anchor(ctx context.Context, caller string, digest canonical.Digest, credentialID string, storageRefs []string) (*AnchorReceipt, error)
	Lookup(ctx context.Context, digest canonical.Digest) (*Entry, error)
	Revoke(ctx context.Context, caller string, credentialID string, reason string) (*RevocationReceipt, error)
	IsAuthorizedIssuer(ctx context.Context, identity string) (bool, error)
}

// IsConflict reports whether the error is a ledger-reported conflict that
// must be surfaced verbatim and never retried.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyAnchored) ||
		errors.Is(err, ErrAlreadyRevoked) ||
		errors.Is(err, ErrNotIssuer) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound)
}
