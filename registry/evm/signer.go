package evm

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultSigner is a TxSigner backed by an in-memory private key.
type DefaultSigner struct {
	priv *ecdsa.PrivateKey
}

// NewDefaultSigner creates a signer from a hex private key.
func NewDefaultSigner(privHex string) (*DefaultSigner, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &DefaultSigner{priv: priv}, nil
}

// Sign signs a transaction hash.
func (s *DefaultSigner) Sign(payload []byte) ([]byte, error) {
	signature, err := crypto.Sign(payload, s.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}
	if len(signature) != 65 {
		return nil, fmt.Errorf("invalid signature length: expected 65 bytes, got %d", len(signature))
	}
	return signature, nil
}

// GetAddress returns the lowercase address of the signing identity.
func (s *DefaultSigner) GetAddress() string {
	return strings.ToLower(crypto.PubkeyToAddress(s.priv.PublicKey).Hex())
}
