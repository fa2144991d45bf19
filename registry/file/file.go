// Package file provides a file-backed reference registry so the CLI and
// local tooling can anchor and verify across process restarts. State is a
// single JSON document; every operation loads, mutates and rewrites it under
// an in-process lock.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/credverse/credverse-go/credential/common/canonical"
	"github.com/credverse/credverse-go/registry"
)

// Registry is a file-backed append-only registry.
type Registry struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

type state struct {
	Authorized []string             `json:"authorized"`
	Entries    map[string]fileEntry `json:"entries"` // keyed by digest hex
}

type fileEntry struct {
	Digest           string    `json:"digest"`
	Issuer           string    `json:"issuer"`
	AnchoredAt       time.Time `json:"anchoredAt"`
	Revoked          bool      `json:"revoked"`
	RevocationReason string    `json:"revocationReason,omitempty"`
	CredentialID     string    `json:"credentialId"`
	StorageRefs      []string  `json:"storageRefs,omitempty"`
}

// Open creates or opens a registry file at path.
func Open(path string) (*Registry, error) {
	if path == "" {
		return nil, fmt.Errorf("registry path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	r := &Registry{path: path, now: time.Now}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := r.save(&state{Entries: make(map[string]fileEntry)}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Authorize grants anchor rights to an identity.
func (r *Registry) Authorize(identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return err
	}
	for _, id := range st.Authorized {
		if id == identity {
			return nil
		}
	}
	st.Authorized = append(st.Authorized, identity)
	return r.save(st)
}

// Anchor records a new entry keyed by digest.
func (r *Registry) Anchor(ctx context.Context, caller string, digest canonical.Digest, credentialID string, storageRefs []string) (*registry.AnchorReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return nil, err
	}

	if !contains(st.Authorized, caller) {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnauthorized, caller)
	}
	key := digest.Hex()
	if _, exists := st.Entries[key]; exists {
		return nil, fmt.Errorf("%w: %s", registry.ErrAlreadyAnchored, key)
	}

	anchoredAt := r.now().UTC()
	st.Entries[key] = fileEntry{
		Digest:       key,
		Issuer:       caller,
		AnchoredAt:   anchoredAt,
		CredentialID: credentialID,
		StorageRefs:  append([]string(nil), storageRefs...),
	}
	if err := r.save(st); err != nil {
		return nil, err
	}

	return &registry.AnchorReceipt{
		Digest:       digest,
		CredentialID: credentialID,
		AnchoredAt:   anchoredAt,
	}, nil
}

// Lookup returns the entry for a digest.
func (r *Registry) Lookup(ctx context.Context, digest canonical.Digest) (*registry.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return nil, err
	}

	fe, ok := st.Entries[digest.Hex()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotFound, digest.Hex())
	}
	return toEntry(fe)
}

// Revoke marks the credential's entry revoked; the flag never clears.
func (r *Registry) Revoke(ctx context.Context, caller string, credentialID string, reason string) (*registry.RevocationReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return nil, err
	}

	for key, fe := range st.Entries {
		if fe.CredentialID != credentialID {
			continue
		}
		if fe.Issuer != caller {
			return nil, fmt.Errorf("%w: %s", registry.ErrNotIssuer, caller)
		}
		if fe.Revoked {
			return nil, fmt.Errorf("%w: %s", registry.ErrAlreadyRevoked, credentialID)
		}

		fe.Revoked = true
		fe.RevocationReason = reason
		st.Entries[key] = fe
		if err := r.save(st); err != nil {
			return nil, err
		}

		return &registry.RevocationReceipt{
			CredentialID: credentialID,
			Reason:       reason,
			RevokedAt:    r.now().UTC(),
		}, nil
	}
	return nil, fmt.Errorf("%w: credential %s", registry.ErrNotFound, credentialID)
}

// IsAuthorizedIssuer reports whether an identity holds anchor rights.
func (r *Registry) IsAuthorizedIssuer(ctx context.Context, identity string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return false, err
	}
	return contains(st.Authorized, identity), nil
}

func (r *Registry) load() (*state, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", registry.ErrUnavailable, err)
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: corrupt registry file: %v", registry.ErrUnavailable, err)
	}
	if st.Entries == nil {
		st.Entries = make(map[string]fileEntry)
	}
	return &st, nil
}

func (r *Registry) save(st *state) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry state: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", registry.ErrUnavailable, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("%w: %v", registry.ErrUnavailable, err)
	}
	return nil
}

func toEntry(fe fileEntry) (*registry.Entry, error) {
	digest, err := canonical.ParseDigest(fe.Digest)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt digest in registry file: %v", registry.ErrUnavailable, err)
	}
	return &registry.Entry{
		Digest:           digest,
		Issuer:           fe.Issuer,
		AnchoredAt:       fe.AnchoredAt,
		Revoked:          fe.Revoked,
		RevocationReason: fe.RevocationReason,
		CredentialID:     fe.CredentialID,
		StorageRefs:      fe.StorageRefs,
	}, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
