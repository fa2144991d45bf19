// Package issuer drives the issuing side of the credential lifecycle: build a
// draft, sign it, persist the portable document, and anchor its digest in the
// registry.
package issuer

import (
	"context"
	"errors"
	"fmt"

	"github.com/credverse/credverse-go/credential/vc"
	"github.com/credverse/credverse-go/registry"
	"github.com/credverse/credverse-go/storage"
)

// Manager issues, anchors and revokes credentials as one issuer identity.
type Manager struct {
	issuerDID  string
	signingKey string
	builder    *vc.Builder
	registry   *registry.Client
	store      storage.Store
}

// ManagerOpt configures a Manager.
type ManagerOpt func(*Manager)

// WithStore attaches a content store; anchored credentials are persisted
// there and their content addresses recorded as the entry's storage refs.
func WithStore(store storage.Store) ManagerOpt {
	return func(m *Manager) {
		m.store = store
	}
}

// WithBuilder overrides the draft builder, e.g. to pin the clock in tests.
func WithBuilder(builder *vc.Builder) ManagerOpt {
	return func(m *Manager) {
		m.builder = builder
	}
}

// NewManager creates a Manager bound to one issuer DID and signing key. The
// registry client must be bound to the same identity the ledger authorizes.
func NewManager(issuerDID, signingKey string, client *registry.Client, opts ...ManagerOpt) (*Manager, error) {
	if issuerDID == "" {
		return nil, errors.New("issuer DID is required")
	}
	if client == nil {
		return nil, errors.New("registry client is required")
	}

	builder, err := vc.NewBuilder(issuerDID)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		issuerDID:  issuerDID,
		signingKey: signingKey,
		builder:    builder,
		registry:   client,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue builds and signs a credential in one step. The returned credential is
// signed but not yet anchored.
func (m *Manager) Issue(subject vc.Subject, templateID string, meta vc.Metadata) (*vc.Credential, error) {
	cred, err := m.builder.Build(subject, templateID, meta)
	if err != nil {
		return nil, err
	}
	if err := cred.AddProof(m.signingKey); err != nil {
		return nil, err
	}
	return cred, nil
}

// Anchor records the credential's digest in the registry. When a content
// store is attached, the signed document is persisted first and its content
// address travels with the registry entry. On success the credential's
// metadata is stamped with the anchored digest.
func (m *Manager) Anchor(ctx context.Context, cred *vc.Credential) (*registry.AnchorReceipt, error) {
	if cred == nil {
		return nil, errors.New("credential is nil")
	}
	if !cred.IsSigned() {
		return nil, errors.New("credential must be signed before anchoring")
	}

	digest, err := cred.Digest()
	if err != nil {
		return nil, err
	}

	var refs []string
	if m.store != nil {
		doc, err := cred.ToJSON()
		if err != nil {
			return nil, err
		}
		address, err := m.store.Put(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to persist credential document: %w", err)
		}
		refs = []string{address}
	}

	receipt, err := m.registry.Anchor(ctx, digest, cred.ID, refs)
	if err != nil {
		return nil, err
	}

	cred.Metadata.AnchorDigest = digest.Hex()
	cred.Metadata.StorageRefs = refs
	return receipt, nil
}

// IssueAndAnchor is the full pipeline: build, sign, persist, anchor.
func (m *Manager) IssueAndAnchor(ctx context.Context, subject vc.Subject, templateID string, meta vc.Metadata) (*vc.Credential, *registry.AnchorReceipt, error) {
	cred, err := m.Issue(subject, templateID, meta)
	if err != nil {
		return nil, nil, err
	}
	receipt, err := m.Anchor(ctx, cred)
	if err != nil {
		return nil, nil, err
	}
	return cred, receipt, nil
}

// Revoke marks the credential revoked in the registry with an advisory
// reason. Only the anchoring identity may revoke; a second revocation
// surfaces the ledger's already-revoked conflict.
func (m *Manager) Revoke(ctx context.Context, credentialID, reason string) (*registry.RevocationReceipt, error) {
	return m.registry.Revoke(ctx, credentialID, reason)
}

// IssuerDID returns the identity this manager issues as.
func (m *Manager) IssuerDID() string {
	return m.issuerDID
}
