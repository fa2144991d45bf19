package verifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credverse/credverse-go/credential/common/canonical"
	"github.com/credverse/credverse-go/credential/common/crypto"
	"github.com/credverse/credverse-go/credential/common/resolver"
	"github.com/credverse/credverse-go/credential/vc"
	"github.com/credverse/credverse-go/registry"
	regmemory "github.com/credverse/credverse-go/registry/memory"
)

const testIssuerDID = "did:cv:issuer:university-of-somewhere"

type fixture struct {
	orchestrator *Orchestrator
	registry     *regmemory.Registry
	client       *registry.Client
	keys         *crypto.KeyPair
	resolver     *resolver.Static
	builder      *vc.Builder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	res := resolver.NewStatic()
	require.NoError(t, res.Register(testIssuerDID, keys.PublicKey))

	reg := regmemory.New(testIssuerDID)
	client, err := registry.NewClient(reg, testIssuerDID, registry.WithBackoffBase(time.Millisecond))
	require.NoError(t, err)

	orchestrator, err := New(client, res)
	require.NoError(t, err)

	builder, err := vc.NewBuilder(testIssuerDID)
	require.NoError(t, err)

	return &fixture{
		orchestrator: orchestrator,
		registry:     reg,
		client:       client,
		keys:         keys,
		resolver:     res,
		builder:      builder,
	}
}

func (f *fixture) signedCredential(t *testing.T, studentID string) *vc.Credential {
	t.Helper()
	cred, err := f.builder.Build(vc.Subject{
		StudentID:       studentID,
		StudentName:     "Asha Patel",
		ProgramName:     "B.Sc. Computer Science",
		InstitutionName: "University of Somewhere",
		GraduationDate:  "2024-06-15",
	}, "degree-bsc", vc.Metadata{})
	require.NoError(t, err)
	require.NoError(t, cred.AddProof(f.keys.PrivateKey))
	return cred
}

func (f *fixture) anchor(t *testing.T, cred *vc.Credential) canonical.Digest {
	t.Helper()
	digest, err := cred.Digest()
	require.NoError(t, err)
	_, err = f.client.Anchor(context.Background(), digest, cred.ID, nil)
	require.NoError(t, err)
	return digest
}

func TestVerifyValidCredential(t *testing.T) {
	f := newFixture(t)
	cred := f.signedCredential(t, "STU-1")
	digest := f.anchor(t, cred)

	verdict := f.orchestrator.VerifyCredential(context.Background(), cred)
	assert.True(t, verdict.Valid)
	assert.Equal(t, ReasonNone, verdict.Reason)
	assert.Equal(t, digest, verdict.Digest)
	assert.Equal(t, testIssuerDID, verdict.Issuer)
	assert.False(t, verdict.AnchoredAt.IsZero())
	assert.False(t, verdict.Revoked)
}

func TestVerifyUnanchoredCredential(t *testing.T) {
	f := newFixture(t)
	cred := f.signedCredential(t, "STU-1")

	verdict := f.orchestrator.VerifyCredential(context.Background(), cred)
	assert.False(t, verdict.Valid)
	assert.Equal(t, ReasonNotFound, verdict.Reason)
}

func TestVerifyTamperedCredential(t *testing.T) {
	f := newFixture(t)
	cred := f.signedCredential(t, "STU-1")
	f.anchor(t, cred)

	cred.CredentialSubject.ProgramName = "Ph.D. Everything"

	verdict := f.orchestrator.VerifyCredential(context.Background(), cred)
	assert.False(t, verdict.Valid)
	// Tampering breaks the signature first; the shifted digest also no
	// longer matches any anchored entry.
	assert.Equal(t, ReasonSignatureInvalid, verdict.Reason)
}

func TestVerifyRevokedCredential(t *testing.T) {
	f := newFixture(t)
	cred := f.signedCredential(t, "STU-1")
	f.anchor(t, cred)

	_, err := f.client.Revoke(context.Background(), cred.ID, "degree rescinded")
	require.NoError(t, err)

	verdict := f.orchestrator.VerifyCredential(context.Background(), cred)
	assert.False(t, verdict.Valid)
	assert.Equal(t, ReasonRevoked, verdict.Reason)
	assert.True(t, verdict.Revoked)
	assert.Equal(t, "degree rescinded", verdict.RevocationReason)
	assert.Equal(t, "degree rescinded", verdict.Detail)
}

func TestRevocationIsVisibleImmediately(t *testing.T) {
	f := newFixture(t)
	cred := f.signedCredential(t, "STU-1")
	f.anchor(t, cred)

	require.True(t, f.orchestrator.VerifyCredential(context.Background(), cred).Valid)

	_, err := f.client.Revoke(context.Background(), cred.ID, "superseded")
	require.NoError(t, err)

	verdict := f.orchestrator.VerifyCredential(context.Background(), cred)
	assert.Equal(t, ReasonRevoked, verdict.Reason)
}

func TestVerifyIssuerMismatch(t *testing.T) {
	f := newFixture(t)
	cred := f.signedCredential(t, "STU-1")

	// Anchored by a different identity than the document claims.
	otherDID := "did:cv:issuer:someone-else"
	f.registry.Authorize(otherDID)
	otherClient, err := registry.NewClient(f.registry, otherDID)
	require.NoError(t, err)
	digest, err := cred.Digest()
	require.NoError(t, err)
	_, err = otherClient.Anchor(context.Background(), digest, cred.ID, nil)
	require.NoError(t, err)

	verdict := f.orchestrator.VerifyCredential(context.Background(), cred)
	assert.False(t, verdict.Valid)
	assert.Equal(t, ReasonIssuerMismatch, verdict.Reason)
	assert.Equal(t, otherDID, verdict.Issuer)
}

func TestVerifyMalformedDocument(t *testing.T) {
	f := newFixture(t)

	for _, raw := range [][]byte{nil, []byte("not json"), []byte(`[1]`)} {
		verdict := f.orchestrator.VerifyDocument(context.Background(), raw)
		assert.False(t, verdict.Valid)
		assert.Equal(t, ReasonMalformed, verdict.Reason)
	}
}

func TestVerifyRegistryUnavailable(t *testing.T) {
	f := newFixture(t)
	cred := f.signedCredential(t, "STU-1")

	client, err := registry.NewClient(&downBackend{}, testIssuerDID,
		registry.WithMaxAttempts(2),
		registry.WithBackoffBase(time.Millisecond),
	)
	require.NoError(t, err)
	orchestrator, err := New(client, f.resolver)
	require.NoError(t, err)

	verdict := orchestrator.VerifyCredential(context.Background(), cred)
	assert.False(t, verdict.Valid)
	assert.Equal(t, ReasonRegistryUnavailable, verdict.Reason)
}

func TestVerifyDigestOnly(t *testing.T) {
	f := newFixture(t)
	cred := f.signedCredential(t, "STU-1")
	digest := f.anchor(t, cred)

	verdict := f.orchestrator.VerifyDigest(context.Background(), digest)
	assert.True(t, verdict.Valid)
	assert.Equal(t, testIssuerDID, verdict.Issuer)

	verdict = f.orchestrator.VerifyDigest(context.Background(), canonical.HashBytes([]byte("unknown")))
	assert.Equal(t, ReasonNotFound, verdict.Reason)

	verdict = f.orchestrator.VerifyDigest(context.Background(), canonical.Digest{})
	assert.Equal(t, ReasonMalformed, verdict.Reason)
}

func TestVerifyBatchIsolatesFailures(t *testing.T) {
	f := newFixture(t)

	valid := f.signedCredential(t, "STU-1")
	f.anchor(t, valid)

	revoked := f.signedCredential(t, "STU-2")
	f.anchor(t, revoked)
	_, err := f.client.Revoke(context.Background(), revoked.ID, "rescinded")
	require.NoError(t, err)

	unanchored := f.signedCredential(t, "STU-3")

	results, err := f.orchestrator.VerifyBatch(context.Background(),
		[]*vc.Credential{valid, revoked, unanchored, nil}, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].Verdict.Valid)
	assert.Equal(t, valid.ID, results[0].CredentialID)
	assert.Equal(t, ReasonRevoked, results[1].Verdict.Reason)
	assert.Equal(t, ReasonNotFound, results[2].Verdict.Reason)
	assert.Equal(t, ReasonMalformed, results[3].Verdict.Reason)
}

func TestVerifyDocumentsBatch(t *testing.T) {
	f := newFixture(t)

	cred := f.signedCredential(t, "STU-1")
	f.anchor(t, cred)
	doc, err := cred.ToJSON()
	require.NoError(t, err)

	results, err := f.orchestrator.VerifyDocuments(context.Background(),
		[][]byte{doc, []byte("garbage")}, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Verdict.Valid)
	assert.Equal(t, cred.ID, results[0].CredentialID)
	assert.Equal(t, ReasonMalformed, results[1].Verdict.Reason)
}

// downBackend fails every call with a transient error.
type downBackend struct{}

func (d *downBackend) Anchor(context.Context, string, canonical.Digest, string, []string) (*registry.AnchorReceipt, error) {
	return nil, errors.New("connection refused")
}

func (d *downBackend) Lookup(context.Context, canonical.Digest) (*registry.Entry, error) {
	return nil, errors.New("connection refused")
}

func (d *downBackend) Revoke(context.Context, string, string, string) (*registry.RevocationReceipt, error) {
	return nil, errors.New("connection refused")
}

func (d *downBackend) IsAuthorizedIssuer(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}
