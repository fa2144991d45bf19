// Package evm is a CredentialRegistry smart-contract client. Reads go through
// an injected contract caller; anchor and revoke are built as signed RLP
// transactions decoupled from broadcasting, so callers decide how and when to
// submit on-chain.
package evm

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/credverse/credverse-go/credential/common/canonical"
	"github.com/credverse/credverse-go/registry"
)

//go:embed credential_registry_abi.json
var registryABIJSON []byte

var (
	parsedABI    abi.ABI
	parseABIOnce sync.Once
	errParseABI  error
)

func loadABI() (abi.ABI, error) {
	parseABIOnce.Do(func() {
		type hardhatArtifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		var artifact hardhatArtifact
		if err := json.Unmarshal(registryABIJSON, &artifact); err != nil {
			errParseABI = fmt.Errorf("failed to unmarshal artifact JSON: %w", err)
			return
		}
		parsedABI, errParseABI = abi.JSON(strings.NewReader(string(artifact.ABI)))
	})
	return parsedABI, errParseABI
}

// TxSubmitter broadcasts a signed raw transaction and returns its hash.
type TxSubmitter interface {
	SubmitTx(ctx context.Context, rawTxHex string) (string, error)
}

// TxSigner signs transaction hashes for one on-chain identity.
type TxSigner interface {
	Sign(payload []byte) ([]byte, error)
	GetAddress() string
}

// ClientConfig holds configuration for the registry contract client.
type ClientConfig struct {
	ContractAddress string
	ChainID         int64
	// GasPrice and GasLimit default to values suitable for gas-free subnets;
	// on mainnet/L2 they should be configured or estimated dynamically.
	GasPrice *big.Int
	GasLimit uint64
}

// Registry is an EVM-backed credential registry client.
type Registry struct {
	contract     *bind.BoundContract
	chainID      *big.Int
	contractAddr common.Address
	gasPrice     *big.Int
	gasLimit     uint64
	signer       TxSigner
	submitter    TxSubmitter
	nonce        func(ctx context.Context, address string) (uint64, error)
}

// New creates a registry contract client. caller serves the read path and may
// not be nil; signer/submitter serve the write path and may be nil for a
// read-only (verifier) client.
func New(cfg ClientConfig, caller bind.ContractCaller, signer TxSigner, submitter TxSubmitter, nonce func(ctx context.Context, address string) (uint64, error)) (*Registry, error) {
	if cfg.ContractAddress == "" {
		return nil, errors.New("contract address is required")
	}
	if caller == nil {
		return nil, errors.New("contract caller is required")
	}

	contractABI, err := loadABI()
	if err != nil {
		return nil, err
	}

	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = 300000
	}
	gasPrice := cfg.GasPrice
	if gasPrice == nil {
		gasPrice = big.NewInt(0)
	}

	addr := common.HexToAddress(cfg.ContractAddress)
	return &Registry{
		contract:     bind.NewBoundContract(addr, contractABI, caller, nil, nil),
		chainID:      big.NewInt(cfg.ChainID),
		contractAddr: addr,
		gasPrice:     gasPrice,
		gasLimit:     gasLimit,
		signer:       signer,
		submitter:    submitter,
		nonce:        nonce,
	}, nil
}

// Anchor builds, signs and submits an anchorCredential transaction. The
// ledger enforces uniqueness; an existing entry is reported as
// ErrAlreadyAnchored before any transaction is built.
func (r *Registry) Anchor(ctx context.Context, caller string, digest canonical.Digest, credentialID string, storageRefs []string) (*registry.AnchorReceipt, error) {
	if err := r.checkWriter(caller); err != nil {
		return nil, err
	}

	if _, err := r.Lookup(ctx, digest); err == nil {
		return nil, fmt.Errorf("%w: %s", registry.ErrAlreadyAnchored, digest.Hex())
	} else if !errors.Is(err, registry.ErrNotFound) {
		return nil, err
	}

	ipfsRef, arweaveRef := splitStorageRefs(storageRefs)
	opts, err := r.transactOpts(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := r.contract.Transact(opts, "anchorCredential", digest.Bytes32(), credentialID, ipfsRef, arweaveRef)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build anchorCredential tx: %v", registry.ErrUnavailable, err)
	}

	txHash, err := r.submit(ctx, tx)
	if err != nil {
		return nil, err
	}

	return &registry.AnchorReceipt{
		Digest:       digest,
		CredentialID: credentialID,
		AnchoredAt:   time.Now().UTC(),
		Ref:          txHash,
	}, nil
}

// Lookup reads the registry entry for a digest via getCredential.
func (r *Registry) Lookup(ctx context.Context, digest canonical.Digest) (*registry.Entry, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := r.contract.Call(opts, &out, "getCredential", digest.Bytes32()); err != nil {
		return nil, fmt.Errorf("%w: getCredential call failed: %v", registry.ErrUnavailable, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: unexpected getCredential result arity %d", registry.ErrUnavailable, len(out))
	}

	type chainCredential struct {
		Hash             [32]byte
		Issuer           common.Address
		Timestamp        *big.Int
		IsRevoked        bool
		RevocationReason string
		CredentialId     string
		IpfsHash         string
		ArweaveId        string
	}
	record := *abi.ConvertType(out[0], new(chainCredential)).(*chainCredential)

	if record.Hash == ([32]byte{}) {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotFound, digest.Hex())
	}

	var refs []string
	if record.IpfsHash != "" {
		refs = append(refs, record.IpfsHash)
	}
	if record.ArweaveId != "" {
		refs = append(refs, record.ArweaveId)
	}

	return &registry.Entry{
		Digest:           canonical.Digest(record.Hash),
		Issuer:           strings.ToLower(record.Issuer.Hex()),
		AnchoredAt:       time.Unix(record.Timestamp.Int64(), 0).UTC(),
		Revoked:          record.IsRevoked,
		RevocationReason: record.RevocationReason,
		CredentialID:     record.CredentialId,
		StorageRefs:      refs,
	}, nil
}

// Revoke builds, signs and submits a revokeCredential transaction. Issuer
// checks and revocation monotonicity are enforced by the contract.
func (r *Registry) Revoke(ctx context.Context, caller string, credentialID string, reason string) (*registry.RevocationReceipt, error) {
	if err := r.checkWriter(caller); err != nil {
		return nil, err
	}

	opts, err := r.transactOpts(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := r.contract.Transact(opts, "revokeCredential", credentialID, reason)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build revokeCredential tx: %v", registry.ErrUnavailable, err)
	}

	txHash, err := r.submit(ctx, tx)
	if err != nil {
		return nil, err
	}

	return &registry.RevocationReceipt{
		CredentialID: credentialID,
		Reason:       reason,
		RevokedAt:    time.Now().UTC(),
		Ref:          txHash,
	}, nil
}

// IsAuthorizedIssuer reports whether the identity holds anchor rights on the
// contract.
func (r *Registry) IsAuthorizedIssuer(ctx context.Context, identity string) (bool, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := r.contract.Call(opts, &out, "isIssuer", common.HexToAddress(identity)); err != nil {
		return false, fmt.Errorf("%w: isIssuer call failed: %v", registry.ErrUnavailable, err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("%w: unexpected isIssuer result arity %d", registry.ErrUnavailable, len(out))
	}
	ok, valid := out[0].(bool)
	if !valid {
		return false, fmt.Errorf("%w: unexpected isIssuer result of type %T", registry.ErrUnavailable, out[0])
	}
	return ok, nil
}

func (r *Registry) checkWriter(caller string) error {
	if r.signer == nil || r.submitter == nil {
		return fmt.Errorf("%w: client is read-only", registry.ErrUnavailable)
	}
	if !strings.EqualFold(caller, r.signer.GetAddress()) {
		return fmt.Errorf("%w: caller %s does not match signing identity %s", registry.ErrUnauthorized, caller, r.signer.GetAddress())
	}
	return nil
}

func (r *Registry) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	fromAddress := common.HexToAddress(r.signer.GetAddress())

	nonce, err := r.nonce(ctx, r.signer.GetAddress())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch nonce: %v", registry.ErrUnavailable, err)
	}

	signerFn := func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
		eip155Signer := types.NewEIP155Signer(r.chainID)
		h := eip155Signer.Hash(tx)
		sig, err := r.signer.Sign(h.Bytes())
		if err != nil {
			return nil, err
		}
		return tx.WithSignature(eip155Signer, sig)
	}

	return &bind.TransactOpts{
		From:     fromAddress,
		Nonce:    new(big.Int).SetUint64(nonce),
		Value:    big.NewInt(0),
		GasLimit: r.gasLimit,
		GasPrice: r.gasPrice,
		Context:  ctx,
		Signer:   signerFn,
		NoSend:   true, // raw tx is handed to the submitter, never sent here
	}, nil
}

func (r *Registry) submit(ctx context.Context, tx *types.Transaction) (string, error) {
	var buf bytes.Buffer
	if err := rlp.Encode(&buf, tx); err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}

	txHash, err := r.submitter.SubmitTx(ctx, hex.EncodeToString(buf.Bytes()))
	if err != nil {
		return "", fmt.Errorf("%w: transaction submission failed: %v", registry.ErrUnavailable, err)
	}
	if txHash == "" {
		txHash = tx.Hash().Hex()
	}
	return txHash, nil
}

func splitStorageRefs(refs []string) (string, string) {
	ipfsRef, arweaveRef := "", ""
	if len(refs) > 0 {
		ipfsRef = refs[0]
	}
	if len(refs) > 1 {
		arweaveRef = refs[1]
	}
	return ipfsRef, arweaveRef
}
