// Package crypto implements the secp256k1 signing primitives used to bind an
// issuer identity to a credential digest.
package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// SignatureLength is the length of a recoverable [R || S || V] signature.
	SignatureLength = 65

	// CompressedPubKeyLength is the length of a compressed secp256k1 public key.
	CompressedPubKeyLength = 33

	privateKeyLength = 32
)

// ErrSigningKeyUnavailable is returned when no usable signing key was supplied.
var ErrSigningKeyUnavailable = errors.New("signing key unavailable")

// KeyToBytes converts a hex key string, with or without the 0x prefix, to bytes.
func KeyToBytes(key string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return nil, fmt.Errorf("key is not valid hex: %w", err)
	}
	return b, nil
}

// SignDigest signs a 32-byte digest with secp256k1, producing a 65-byte
// recoverable [R || S || V] signature.
func SignDigest(digest []byte, hexPrivateKey string) ([]byte, error) {
	if strings.TrimSpace(hexPrivateKey) == "" {
		return nil, ErrSigningKeyUnavailable
	}

	keyBytes, err := KeyToBytes(hexPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningKeyUnavailable, err)
	}
	if len(keyBytes) != privateKeyLength {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrSigningKeyUnavailable, privateKeyLength, len(keyBytes))
	}

	privKey, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningKeyUnavailable, err)
	}

	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}

	signature, err := crypto.Sign(digest, privKey)
	if err != nil {
		return nil, fmt.Errorf("ecdsa: sign error: %w", err)
	}
	if len(signature) != SignatureLength {
		return nil, fmt.Errorf("ecdsa: invalid signature length, expected %d bytes", SignatureLength)
	}

	return signature, nil
}

// VerifyDigestSignature reports whether the signature over the digest was
// produced by the private counterpart of the compressed public key. It never
// returns an error: malformed input yields false, since verification runs
// over untrusted data.
func VerifyDigestSignature(compressedPubKey, digest, signature []byte) bool {
	if len(digest) != 32 || len(compressedPubKey) != CompressedPubKeyLength {
		return false
	}
	if len(signature) == SignatureLength-1 {
		// Signature without the recovery byte cannot be recovered; verify directly.
		return crypto.VerifySignature(compressedPubKey, digest, signature)
	}
	if len(signature) != SignatureLength {
		return false
	}

	recovered, err := crypto.Ecrecover(digest, signature)
	if err != nil {
		return false
	}

	recoveredKey, err := crypto.UnmarshalPubkey(recovered)
	if err != nil {
		return false
	}

	return bytes.Equal(crypto.CompressPubkey(recoveredKey), compressedPubKey)
}

// NormalizePublicKey parses a hex public key in compressed or uncompressed
// form and returns the compressed 33-byte representation.
func NormalizePublicKey(hexPublicKey string) ([]byte, error) {
	b, err := KeyToBytes(hexPublicKey)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.New("public key is empty")
	}

	pubKey, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return pubKey.SerializeCompressed(), nil
}
