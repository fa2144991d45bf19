// Package memory provides the in-memory reference registry. It honors the
// same contracts as a real ledger — digest uniqueness, issuer authorization,
// monotonic revocation — so protocol logic can be exercised without a
// network dependency.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/credverse/credverse-go/credential/common/canonical"
	"github.com/credverse/credverse-go/registry"
)

// Registry is an in-memory append-only registry.
type Registry struct {
	mu           sync.RWMutex
	entries      map[canonical.Digest]*registry.Entry
	byCredential map[string]canonical.Digest
	authorized   map[string]bool
	now          func() time.Time
}

// New creates a registry with the given identities holding anchor rights.
func New(authorizedIssuers ...string) *Registry {
	r := &Registry{
		entries:      make(map[canonical.Digest]*registry.Entry),
		byCredential: make(map[string]canonical.Digest),
		authorized:   make(map[string]bool),
		now:          time.Now,
	}
	for _, issuer := range authorizedIssuers {
		r.authorized[issuer] = true
	}
	return r
}

// SetClock overrides the anchor timestamp source, for tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Authorize grants anchor rights to an identity.
func (r *Registry) Authorize(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authorized[identity] = true
}

// Anchor records a new entry keyed by digest.
func (r *Registry) Anchor(ctx context.Context, caller string, digest canonical.Digest, credentialID string, storageRefs []string) (*registry.AnchorReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.authorized[caller] {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnauthorized, caller)
	}
	if _, exists := r.entries[digest]; exists {
		return nil, fmt.Errorf("%w: %s", registry.ErrAlreadyAnchored, digest.Hex())
	}

	entry := &registry.Entry{
		Digest:       digest,
		Issuer:       caller,
		AnchoredAt:   r.now().UTC(),
		CredentialID: credentialID,
		StorageRefs:  append([]string(nil), storageRefs...),
	}
	r.entries[digest] = entry
	r.byCredential[credentialID] = digest

	return &registry.AnchorReceipt{
		Digest:       digest,
		CredentialID: credentialID,
		AnchoredAt:   entry.AnchoredAt,
	}, nil
}

// Lookup returns a copy of the entry for the digest.
func (r *Registry) Lookup(ctx context.Context, digest canonical.Digest) (*registry.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[digest]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotFound, digest.Hex())
	}
	return copyEntry(entry), nil
}

// Revoke marks the credential's entry revoked. The flag is monotonic: once
// set it never clears, and a repeat revocation is reported, not absorbed.
func (r *Registry) Revoke(ctx context.Context, caller string, credentialID string, reason string) (*registry.RevocationReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	digest, ok := r.byCredential[credentialID]
	if !ok {
		return nil, fmt.Errorf("%w: credential %s", registry.ErrNotFound, credentialID)
	}
	entry := r.entries[digest]

	if entry.Issuer != caller {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotIssuer, caller)
	}
	if entry.Revoked {
		return nil, fmt.Errorf("%w: %s", registry.ErrAlreadyRevoked, credentialID)
	}

	entry.Revoked = true
	entry.RevocationReason = reason

	return &registry.RevocationReceipt{
		CredentialID: credentialID,
		Reason:       reason,
		RevokedAt:    r.now().UTC(),
	}, nil
}

// IsAuthorizedIssuer reports whether an identity holds anchor rights.
func (r *Registry) IsAuthorizedIssuer(ctx context.Context, identity string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.authorized[identity], nil
}

func copyEntry(e *registry.Entry) *registry.Entry {
	out := *e
	out.StorageRefs = append([]string(nil), e.StorageRefs...)
	return &out
}
