package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyPair holds a freshly generated secp256k1 keypair in hex form.
type KeyPair struct {
	PrivateKey string // 32-byte private key, hex
	PublicKey  string // 33-byte compressed public key, hex
	Address    string // lowercase Ethereum-style address derived from the key
}

// GenerateKeyPair creates a new secp256k1 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	ecdsaKey := priv.ToECDSA()
	return &KeyPair{
		PrivateKey: hex.EncodeToString(priv.Serialize()),
		PublicKey:  hex.EncodeToString(priv.PubKey().SerializeCompressed()),
		Address:    strings.ToLower(crypto.PubkeyToAddress(ecdsaKey.PublicKey).Hex()),
	}, nil
}

// PublicKeyOf derives the compressed public key hex from a private key hex.
func PublicKeyOf(hexPrivateKey string) (string, error) {
	keyBytes, err := KeyToBytes(hexPrivateKey)
	if err != nil {
		return "", err
	}
	if len(keyBytes) != privateKeyLength {
		return "", fmt.Errorf("private key must be %d bytes, got %d", privateKeyLength, len(keyBytes))
	}

	priv := secp256k1.PrivKeyFromBytes(keyBytes)
	return hex.EncodeToString(priv.PubKey().SerializeCompressed()), nil
}

// AddressOf derives the lowercase Ethereum-style address from a private key hex.
func AddressOf(hexPrivateKey string) (string, error) {
	keyBytes, err := KeyToBytes(hexPrivateKey)
	if err != nil {
		return "", err
	}
	priv, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	return strings.ToLower(crypto.PubkeyToAddress(priv.PublicKey).Hex()), nil
}
