package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/credverse/credverse-go/credential/common/canonical"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultBackoffBase = 200 * time.Millisecond
)

// Client is the typed façade over a ledger transport. It binds a calling
// identity, applies a per-attempt timeout, and retries transient failures
// with bounded exponential backoff. Conflicts pass through untouched.
//
// A Client with an empty identity can still Lookup: reads require no signing
// capability.
type Client struct {
	backend     Registry
	identity    string
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
}

// ClientOpt configures a Client.
type ClientOpt func(*Client)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) ClientOpt {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxAttempts caps the number of attempts per operation.
func WithMaxAttempts(n int) ClientOpt {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoffBase sets the first retry delay; each retry doubles it.
func WithBackoffBase(d time.Duration) ClientOpt {
	return func(c *Client) {
		c.backoffBase = d
	}
}

// NewClient creates a registry client acting as the given identity.
func NewClient(backend Registry, identity string, opts ...ClientOpt) (*Client, error) {
	if backend == nil {
		return nil, errors.New("registry backend is required")
	}

	c := &Client{
		backend:     backend,
		identity:    identity,
		timeout:     defaultTimeout,
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Identity returns the calling identity the client was bound to.
func (c *Client) Identity() string {
	return c.identity
}

// Anchor records a new entry for the digest. The ledger enforces digest
// uniqueness and issuer authorization; ErrAlreadyAnchored and ErrUnauthorized
// are surfaced verbatim.
func (c *Client) Anchor(ctx context.Context, digest canonical.Digest, credentialID string, storageRefs []string) (*AnchorReceipt, error) {
	if digest.IsZero() {
		return nil, errors.New("digest is empty")
	}
	if credentialID == "" {
		return nil, errors.New("credential id is empty")
	}

	return retry(ctx, c, func(ctx context.Context) (*AnchorReceipt, error) {
		return c.backend.Anchor(ctx, c.identity, digest, credentialID, storageRefs)
	})
}

// Lookup reads the entry for a digest. ErrNotFound when no entry exists.
func (c *Client) Lookup(ctx context.Context, digest canonical.Digest) (*Entry, error) {
	return retry(ctx, c, func(ctx context.Context) (*Entry, error) {
		return c.backend.Lookup(ctx, digest)
	})
}

// Revoke flips the revoked flag for the credential's entry. Only the original
// anchoring identity may revoke; a second revocation reports
// ErrAlreadyRevoked rather than silently succeeding.
func (c *Client) Revoke(ctx context.Context, credentialID, reason string) (*RevocationReceipt, error) {
	if credentialID == "" {
		return nil, errors.New("credential id is empty")
	}

	return retry(ctx, c, func(ctx context.Context) (*RevocationReceipt, error) {
		return c.backend.Revoke(ctx, c.identity, credentialID, reason)
	})
}

// IsAuthorizedIssuer reports whether an identity holds anchor rights.
func (c *Client) IsAuthorizedIssuer(ctx context.Context, identity string) (bool, error) {
	ok, err := retry(ctx, c, func(ctx context.Context) (*bool, error) {
		v, err := c.backend.IsAuthorizedIssuer(ctx, identity)
		if err != nil {
			return nil, err
		}
		return &v, nil
	})
	if err != nil {
		return false, err
	}
	return *ok, nil
}

// retry runs op with a per-attempt timeout, retrying transient failures with
// exponential backoff up to the attempt cap, then reports ErrUnavailable.
// Conflicts and caller cancellation abort immediately.
func retry[T any](ctx context.Context, c *Client, op func(context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		result, err := op(attemptCtx)
		cancel()

		if err == nil {
			return result, nil
		}
		if IsConflict(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %d attempts failed, last error: %v", ErrUnavailable, c.maxAttempts, lastErr)
}
