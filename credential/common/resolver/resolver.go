// Package resolver turns an issuer identity (DID) into the verification key
// that checks credential proofs. Resolution is an external collaborator: the
// SDK only defines the lookup contract and two reference implementations.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/credverse/credverse-go/credential/common/crypto"
)

// ErrUnknownIssuer is returned when an issuer identity cannot be resolved.
var ErrUnknownIssuer = errors.New("unknown issuer")

// Resolver resolves an issuer DID to its compressed secp256k1 verification key.
type Resolver interface {
	Resolve(ctx context.Context, issuerDID string) ([]byte, error)
}

// Static is an in-process resolver backed by a fixed DID-to-key table.
// Registration accepts hex keys in compressed or uncompressed form.
type Static struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

// NewStatic creates an empty static resolver.
func NewStatic() *Static {
	return &Static{keys: make(map[string][]byte)}
}

// Register associates an issuer DID with a hex-encoded public key.
func (s *Static) Register(issuerDID, hexPublicKey string) error {
	if issuerDID == "" {
		return errors.New("issuer DID is empty")
	}
	key, err := crypto.NormalizePublicKey(hexPublicKey)
	if err != nil {
		return fmt.Errorf("failed to register issuer %s: %w", issuerDID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[issuerDID] = key
	return nil
}

// Resolve returns the verification key for the issuer DID.
func (s *Static) Resolve(ctx context.Context, issuerDID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	key, ok := s.keys[issuerDID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIssuer, issuerDID)
	}
	out := make([]byte, len(key))
	copy(out, key)
	return out, nil
}

// didDocument is the subset of a resolved DID document the SDK needs.
type didDocument struct {
	ID                 string `json:"id"`
	VerificationMethod []struct {
		ID           string `json:"id"`
		Type         string `json:"type"`
		Controller   string `json:"controller"`
		PublicKeyHex string `json:"publicKeyHex"`
	} `json:"verificationMethod"`
}

// HTTP resolves DIDs against a DID-document endpoint using the
// <baseURL>/<escaped did> convention.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP creates a DID resolver for the given base URL. The transport is
// instrumented for tracing.
func NewHTTP(baseURL string) *HTTP {
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Resolve fetches the issuer's DID document and returns the first usable
// verification key.
func (h *HTTP) Resolve(ctx context.Context, issuerDID string) ([]byte, error) {
	if issuerDID == "" {
		return nil, fmt.Errorf("%w: empty issuer DID", ErrUnknownIssuer)
	}

	apiURL := h.baseURL + "/" + url.PathEscape(issuerDID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build DID resolver request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call DID resolver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIssuer, issuerDID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DID resolver returned non-200 status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read DID resolver response: %w", err)
	}

	var doc didDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DID document: %w", err)
	}

	for _, vm := range doc.VerificationMethod {
		if vm.PublicKeyHex == "" {
			continue
		}
		key, err := crypto.NormalizePublicKey(vm.PublicKeyHex)
		if err != nil {
			continue
		}
		return key, nil
	}
	return nil, fmt.Errorf("%w: DID document for %s has no usable verification key", ErrUnknownIssuer, issuerDID)
}
