package evm

import (
	"context"
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credverse/credverse-go/credential/common/canonical"
	"github.com/credverse/credverse-go/credential/common/crypto"
	"github.com/credverse/credverse-go/registry"
)

// fakeCaller answers eth_call with canned ABI-encoded outputs keyed by the
// 4-byte method selector.
type fakeCaller struct {
	responses map[string][]byte
}

func (f *fakeCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x01}, nil
}

func (f *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	selector := hex.EncodeToString(call.Data[:4])
	return f.responses[selector], nil
}

type recordingSubmitter struct {
	rawTxHex string
}

func (s *recordingSubmitter) SubmitTx(ctx context.Context, rawTxHex string) (string, error) {
	s.rawTxHex = rawTxHex
	return "0xsubmitted", nil
}

type chainRecord struct {
	Hash             [32]byte
	Issuer           common.Address
	Timestamp        *big.Int
	IsRevoked        bool
	RevocationReason string
	CredentialId     string
	IpfsHash         string
	ArweaveId        string
}

func selectorOf(t *testing.T, method string) string {
	t.Helper()
	contractABI, err := loadABI()
	require.NoError(t, err)
	return hex.EncodeToString(contractABI.Methods[method].ID)
}

func packOutputs(t *testing.T, method string, values ...interface{}) []byte {
	t.Helper()
	contractABI, err := loadABI()
	require.NoError(t, err)
	out, err := contractABI.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func emptyRecord() chainRecord {
	return chainRecord{Timestamp: big.NewInt(0)}
}

func newFakeRegistry(t *testing.T, caller *fakeCaller, signer TxSigner, submitter TxSubmitter) *Registry {
	t.Helper()
	r, err := New(ClientConfig{ContractAddress: "0x00000000000000000000000000000000000000aa", ChainID: 1337},
		caller, signer, submitter,
		func(ctx context.Context, address string) (uint64, error) { return 7, nil })
	require.NoError(t, err)
	return r
}

func TestLookupMapsChainRecord(t *testing.T) {
	digest := canonical.HashBytes([]byte("cred-1"))
	issuer := common.HexToAddress("0x00000000000000000000000000000000000000Bb")
	anchoredAt := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

	caller := &fakeCaller{responses: map[string][]byte{
		selectorOf(t, "getCredential"): packOutputs(t, "getCredential", chainRecord{
			Hash:             digest.Bytes32(),
			Issuer:           issuer,
			Timestamp:        big.NewInt(anchoredAt.Unix()),
			IsRevoked:        true,
			RevocationReason: "rescinded",
			CredentialId:     "urn:cred:1",
			IpfsHash:         "QmRef",
			ArweaveId:        "arRef",
		}),
	}}
	r := newFakeRegistry(t, caller, nil, nil)

	entry, err := r.Lookup(context.Background(), digest)
	require.NoError(t, err)
	assert.Equal(t, digest, entry.Digest)
	assert.Equal(t, "0x00000000000000000000000000000000000000bb", entry.Issuer)
	assert.Equal(t, anchoredAt, entry.AnchoredAt)
	assert.True(t, entry.Revoked)
	assert.Equal(t, "rescinded", entry.RevocationReason)
	assert.Equal(t, "urn:cred:1", entry.CredentialID)
	assert.Equal(t, []string{"QmRef", "arRef"}, entry.StorageRefs)
}

func TestLookupZeroHashIsNotFound(t *testing.T) {
	caller := &fakeCaller{responses: map[string][]byte{
		selectorOf(t, "getCredential"): packOutputs(t, "getCredential", emptyRecord()),
	}}
	r := newFakeRegistry(t, caller, nil, nil)

	_, err := r.Lookup(context.Background(), canonical.HashBytes([]byte("missing")))
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestIsAuthorizedIssuer(t *testing.T) {
	caller := &fakeCaller{responses: map[string][]byte{
		selectorOf(t, "isIssuer"): packOutputs(t, "isIssuer", true),
	}}
	r := newFakeRegistry(t, caller, nil, nil)

	ok, err := r.IsAuthorizedIssuer(context.Background(), "0x00000000000000000000000000000000000000bb")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAnchorBuildsAndSubmitsTransaction(t *testing.T) {
	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	signer, err := NewDefaultSigner(keys.PrivateKey)
	require.NoError(t, err)
	submitter := &recordingSubmitter{}

	caller := &fakeCaller{responses: map[string][]byte{
		// Pre-anchor existence check finds nothing.
		selectorOf(t, "getCredential"): packOutputs(t, "getCredential", emptyRecord()),
	}}
	r := newFakeRegistry(t, caller, signer, submitter)

	digest := canonical.HashBytes([]byte("cred-1"))
	receipt, err := r.Anchor(context.Background(), signer.GetAddress(), digest, "urn:cred:1", []string{"QmRef"})
	require.NoError(t, err)
	assert.Equal(t, "0xsubmitted", receipt.Ref)
	assert.Equal(t, digest, receipt.Digest)
	assert.NotEmpty(t, submitter.rawTxHex, "signed raw transaction must reach the submitter")
}

func TestAnchorRejectsExistingEntry(t *testing.T) {
	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	signer, err := NewDefaultSigner(keys.PrivateKey)
	require.NoError(t, err)

	digest := canonical.HashBytes([]byte("cred-1"))
	caller := &fakeCaller{responses: map[string][]byte{
		selectorOf(t, "getCredential"): packOutputs(t, "getCredential", chainRecord{
			Hash:      digest.Bytes32(),
			Timestamp: big.NewInt(1),
		}),
	}}
	r := newFakeRegistry(t, caller, signer, &recordingSubmitter{})

	_, err = r.Anchor(context.Background(), signer.GetAddress(), digest, "urn:cred:1", nil)
	assert.ErrorIs(t, err, registry.ErrAlreadyAnchored)
}

func TestWritePathGuards(t *testing.T) {
	caller := &fakeCaller{responses: map[string][]byte{}}
	digest := canonical.HashBytes([]byte("cred-1"))

	readOnly := newFakeRegistry(t, caller, nil, nil)
	_, err := readOnly.Anchor(context.Background(), "0xabc", digest, "urn:cred:1", nil)
	assert.ErrorIs(t, err, registry.ErrUnavailable)

	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	signer, err := NewDefaultSigner(keys.PrivateKey)
	require.NoError(t, err)

	r := newFakeRegistry(t, caller, signer, &recordingSubmitter{})
	_, err = r.Revoke(context.Background(), "0x0000000000000000000000000000000000000001", "urn:cred:1", "reason")
	assert.ErrorIs(t, err, registry.ErrUnauthorized)
}
