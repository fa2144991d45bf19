package canonical

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// DigestSize is the width of a content digest in bytes.
const DigestSize = 32

// Digest is the Keccak-256 content address of a credential's canonical bytes.
// It is the signing input and the registry key; a verifier holding only the
// plaintext document can recompute the exact value the issuer anchored.
type Digest [DigestSize]byte

// HashDocument canonicalizes the value and digests the result.
func HashDocument(v interface{}) (Digest, error) {
	data, err := Canonicalize(v)
	if err != nil {
		return Digest{}, err
	}
	return HashBytes(data), nil
}

// HashBytes digests raw bytes with Keccak-256.
func HashBytes(data []byte) Digest {
	var d Digest
	copy(d[:], crypto.Keccak256(data))
	return d
}

// Hex returns the 0x-prefixed hex form used as the registry key.
func (d Digest) Hex() string {
	return "0x" + hex.EncodeToString(d[:])
}

// Bytes returns the digest as a byte slice.
func (d Digest) Bytes() []byte {
	out := make([]byte, DigestSize)
	copy(out, d[:])
	return out
}

// Bytes32 returns the digest as a fixed-size array for contract calls.
func (d Digest) Bytes32() [32]byte {
	return d
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest decodes a hex digest string, with or without the 0x prefix.
func ParseDigest(s string) (Digest, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest hex: %w", err)
	}
	if len(b) != DigestSize {
		return Digest{}, fmt.Errorf("invalid digest length: expected %d bytes, got %d", DigestSize, len(b))
	}
	var d Digest
	copy(d[:], b)
	return d, nil
}
