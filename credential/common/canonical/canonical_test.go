package canonical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name        string
		input       interface{}
		expected    string
		expectError bool
		errorMsg    string
	}{
		{
			name: "Keys sorted recursively",
			input: Document{
				"zeta":  "last",
				"alpha": Document{"b": "2", "a": "1"},
			},
			expected: `{"alpha":{"a":"1","b":"2"},"zeta":"last"}`,
		},
		{
			name: "Proof stripped",
			input: Document{
				"id":    "urn:x:1",
				"proof": Document{"type": "EcdsaSecp256k1RecoverySignature2020", "proofValue": "0xabc"},
			},
			expected: `{"id":"urn:x:1"}`,
		},
		{
			name: "Null fields omitted",
			input: Document{
				"id":    "urn:x:1",
				"gpa":   nil,
				"major": "CS",
			},
			expected: `{"id":"urn:x:1","major":"CS"}`,
		},
		{
			name: "Array order preserved",
			input: Document{
				"type": []interface{}{"VerifiableCredential", "CredVerseCredential"},
			},
			expected: `{"type":["VerifiableCredential","CredVerseCredential"]}`,
		},
		{
			name: "Integral float formatted without fraction",
			input: Document{
				"gpa":     9.0,
				"credits": 120,
			},
			expected: `{"credits":120,"gpa":9}`,
		},
		{
			name: "Non-integral float keeps shortest form",
			input: Document{
				"gpa": 8.75,
			},
			expected: `{"gpa":8.75}`,
		},
		{
			name:        "Top-level array rejected",
			input:       []interface{}{"not", "an", "object"},
			expectError: true,
			errorMsg:    "top level must be a JSON object",
		},
		{
			name:        "Top-level string rejected",
			input:       "just a string",
			expectError: true,
			errorMsg:    "top level must be a JSON object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Canonicalize(tt.input)

			if tt.expectError {
				assert.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedDocument)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestCanonicalizeIsInsertionOrderIndependent(t *testing.T) {
	a := Document{}
	b := Document{}

	// Populate the same fields in opposite order.
	fields := []string{"studentId", "studentName", "programName", "institutionName", "graduationDate"}
	for i, f := range fields {
		a[f] = f + "-value"
		b[fields[len(fields)-1-i]] = fields[len(fields)-1-i] + "-value"
	}

	ca, err := Canonicalize(Document{"credentialSubject": a})
	require.NoError(t, err)
	cb, err := Canonicalize(Document{"credentialSubject": b})
	require.NoError(t, err)

	assert.Equal(t, ca, cb)
}

func TestCanonicalizeNumberSourceTypes(t *testing.T) {
	// A value decoded from JSON text and the same value built from Go types
	// must canonicalize identically.
	var decoded Document
	require.NoError(t, json.Unmarshal([]byte(`{"credits": 120, "gpa": 9.0}`), &decoded))

	built := Document{"credits": 120, "gpa": float64(9)}

	c1, err := Canonicalize(decoded)
	require.NoError(t, err)
	c2, err := Canonicalize(built)
	require.NoError(t, err)

	assert.Equal(t, string(c1), string(c2))
	assert.Equal(t, `{"credits":120,"gpa":9}`, string(c1))
}

func TestHashDocumentProofExclusion(t *testing.T) {
	base := Document{
		"id":     "urn:credverse:credential:1",
		"issuer": "did:credverse:issuer:demo-u",
		"credentialSubject": Document{
			"studentId":   "S-001",
			"studentName": "Jane Doe",
		},
	}

	withProof := Document{}
	for k, v := range base {
		withProof[k] = v
	}
	withProof["proof"] = Document{
		"type":       "EcdsaSecp256k1RecoverySignature2020",
		"proofValue": "0xdeadbeef",
	}

	d1, err := HashDocument(base)
	require.NoError(t, err)
	d2, err := HashDocument(withProof)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
}

func TestHashDocumentDeterminism(t *testing.T) {
	doc := Document{
		"issuer": "did:credverse:issuer:demo-u",
		"credentialSubject": Document{
			"achievements": []interface{}{
				Document{"name": "Dean's List", "year": 2024},
			},
		},
	}

	first, err := HashDocument(doc)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := HashDocument(doc)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDigestHexRoundTrip(t *testing.T) {
	d := HashBytes([]byte("canonical bytes"))

	assert.Len(t, d.Hex(), 2+2*DigestSize)
	assert.Equal(t, "0x", d.Hex()[:2])

	parsed, err := ParseDigest(d.Hex())
	assert.NoError(t, err)
	assert.Equal(t, d, parsed)

	parsed, err = ParseDigest(d.Hex()[2:])
	assert.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestCanonicalizeStripsAnchorDigestPlaceholder(t *testing.T) {
	unstamped := Document{
		"id":       "urn:credverse:credential:1",
		"metadata": Document{"templateId": "degree-bsc", "version": "1.0.0"},
	}
	stamped := Document{
		"id": "urn:credverse:credential:1",
		"metadata": Document{
			"templateId":   "degree-bsc",
			"version":      "1.0.0",
			"anchorDigest": "0xabcd",
		},
	}

	c1, err := Canonicalize(unstamped)
	require.NoError(t, err)
	c2, err := Canonicalize(stamped)
	require.NoError(t, err)

	assert.Equal(t, string(c1), string(c2))
}

func TestNormalizeJSONLD(t *testing.T) {
	// Inline context keeps normalization fully offline.
	doc := Document{
		"@context": Document{"name": "http://schema.org/name"},
		"@id":      "urn:credverse:credential:1",
		"name":     "Jane Doe",
		"proof":    Document{"proofValue": "0xabc"},
	}

	quads, err := NormalizeJSONLD(doc)
	require.NoError(t, err)
	assert.Contains(t, string(quads), "<http://schema.org/name>")
	assert.Contains(t, string(quads), `"Jane Doe"`)
	assert.NotContains(t, string(quads), "proofValue", "proof must be stripped before normalization")
}

func TestParseDigestErrors(t *testing.T) {
	_, err := ParseDigest("0x1234")
	assert.ErrorContains(t, err, "invalid digest length")

	_, err = ParseDigest("not-hex")
	assert.ErrorContains(t, err, "invalid digest hex")
}
