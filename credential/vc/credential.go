// Package vc models the CredVerse verifiable credential: the portable JSON
// document that is canonicalized, hashed, signed and anchored.
package vc

import (
	"encoding/json"
	"fmt"

	"github.com/credverse/credverse-go/credential/common/canonical"
	"github.com/credverse/credverse-go/credential/common/dto"
	"github.com/credverse/credverse-go/credential/common/schema"
)

// Fixed context and type prefixes for every CredVerse credential.
const (
	ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"
	ContextCredVerseV1   = "https://credverse.in/contexts/v1"

	TypeVerifiableCredential = "VerifiableCredential"
	TypeCredVerseCredential  = "CredVerseCredential"

	ProofType             = "EcdsaSecp256k1RecoverySignature2020"
	ProofPurposeAssertion = "assertionMethod"

	// KeyFragment identifies the issuer key within its DID document.
	KeyFragment = "#keys-1"
)

// Metadata is the self-contained descriptive block carried inside every
// credential. AnchorDigest stays empty until the credential is anchored.
type Metadata struct {
	Version      string          `json:"version"`
	TemplateID   string          `json:"templateId"`
	IssuerDID    string          `json:"issuerDID"`
	AnchorDigest string          `json:"anchorDigest,omitempty"`
	StorageRefs  []string        `json:"storageRefs,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Category     string          `json:"category,omitempty"`
	Level        string          `json:"level,omitempty"`
	Language     string          `json:"language,omitempty"`
	Region       string          `json:"region,omitempty"`
	Compliance   map[string]bool `json:"compliance,omitempty"`
}

// Credential is the W3C-shaped CredVerse credential document.
type Credential struct {
	Context           []string   `json:"@context"`
	ID                string     `json:"id"`
	Type              []string   `json:"type"`
	Issuer            string     `json:"issuer"`
	IssuanceDate      string     `json:"issuanceDate"`
	CredentialSubject Subject    `json:"credentialSubject"`
	Metadata          Metadata   `json:"metadata"`
	Proof             *dto.Proof `json:"proof,omitempty"`
}

// CredentialOpt configures credential parsing.
type CredentialOpt func(*credentialOptions)

type credentialOptions struct {
	validateSchema bool
}

// WithSchemaValidation enables document-shape validation during parsing.
func WithSchemaValidation() CredentialOpt {
	return func(o *credentialOptions) {
		o.validateSchema = true
	}
}

// ParseCredential parses a portable credential document. The issuer field
// must be the reference-string variant; issuer records are rejected as
// malformed so that both forms cannot denote the same issuer under two
// different digests.
func ParseCredential(raw []byte, opts ...CredentialOpt) (*Credential, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: document is empty", canonical.ErrMalformedDocument)
	}

	options := &credentialOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var doc canonical.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", canonical.ErrMalformedDocument, err)
	}

	if issuer, ok := doc["issuer"]; ok {
		if _, isRecord := issuer.(map[string]interface{}); isRecord {
			return nil, fmt.Errorf("%w: issuer must be a reference string, not a record", canonical.ErrMalformedDocument)
		}
	}

	if options.validateSchema {
		if err := schema.ValidateDocument(doc); err != nil {
			return nil, err
		}
	}

	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("%w: %v", canonical.ErrMalformedDocument, err)
	}
	return &cred, nil
}

// ToJSON serializes the credential to its portable JSON form.
func (c *Credential) ToJSON() ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("credential is nil")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credential: %w", err)
	}
	return data, nil
}

// Canonicalize returns the canonical proof-stripped bytes of the credential.
func (c *Credential) Canonicalize() ([]byte, error) {
	return canonical.Canonicalize(c)
}

// Digest returns the content digest of the canonical form. It is both the
// signing input and the registry key.
func (c *Credential) Digest() (canonical.Digest, error) {
	return canonical.HashDocument(c)
}

// IsSigned reports whether a proof is attached. A credential counts as signed
// only once the proof also passes verification.
func (c *Credential) IsSigned() bool {
	return c.Proof != nil && c.Proof.ProofValue != ""
}

// Summary is a compact display projection of a credential.
type Summary struct {
	ID              string
	Issuer          string
	IssuedAt        string
	StudentID       string
	StudentName     string
	ProgramName     string
	InstitutionName string
	GraduationDate  string
	TemplateID      string
	Signed          bool
}

// Summarize extracts the display projection of the credential.
func (c *Credential) Summarize() Summary {
	return Summary{
		ID:              c.ID,
		Issuer:          c.Issuer,
		IssuedAt:        c.IssuanceDate,
		StudentID:       c.CredentialSubject.StudentID,
		StudentName:     c.CredentialSubject.StudentName,
		ProgramName:     c.CredentialSubject.ProgramName,
		InstitutionName: c.CredentialSubject.InstitutionName,
		GraduationDate:  c.CredentialSubject.GraduationDate,
		TemplateID:      c.Metadata.TemplateID,
		Signed:          c.IsSigned(),
	}
}
