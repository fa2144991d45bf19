package vc

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultMetadataVersion = "1.0.0"

// Builder assembles well-formed draft credentials for one issuer identity.
type Builder struct {
	issuerDID string
	now       func() time.Time
	newID     func() string
}

// BuilderOpt configures a Builder.
type BuilderOpt func(*Builder)

// WithClock overrides the issuance timestamp source.
func WithClock(now func() time.Time) BuilderOpt {
	return func(b *Builder) {
		b.now = now
	}
}

// WithIDGenerator overrides credential id generation.
func WithIDGenerator(newID func() string) BuilderOpt {
	return func(b *Builder) {
		b.newID = newID
	}
}

// NewBuilder creates a Builder for the given issuer DID.
func NewBuilder(issuerDID string, opts ...BuilderOpt) (*Builder, error) {
	if issuerDID == "" {
		return nil, fmt.Errorf("issuer DID is required")
	}

	b := &Builder{
		issuerDID: issuerDID,
		now:       time.Now,
		newID:     newCredentialID,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// newCredentialID combines a monotonic time component with 122 bits of
// random entropy so accidental collision is astronomically unlikely.
func newCredentialID() string {
	return fmt.Sprintf("urn:credverse:credential:%d:%s", time.Now().UnixNano(), uuid.NewString())
}

// Build assembles an unsigned draft credential: fixed context and type
// prefixes, fresh globally-unique id, current issuance timestamp, and
// metadata stamped with the template id and issuer identity. The subject's
// required-field set is validated before the draft is returned.
func (b *Builder) Build(subject Subject, templateID string, meta Metadata) (*Credential, error) {
	if templateID == "" {
		return nil, fmt.Errorf("template id is required")
	}
	if err := subject.Validate(); err != nil {
		return nil, err
	}

	meta.TemplateID = templateID
	meta.IssuerDID = b.issuerDID
	meta.AnchorDigest = "" // set only by anchoring
	if meta.Version == "" {
		meta.Version = defaultMetadataVersion
	}

	return &Credential{
		Context:           []string{ContextCredentialsV1, ContextCredVerseV1},
		ID:                b.newID(),
		Type:              []string{TypeVerifiableCredential, TypeCredVerseCredential, templateID},
		Issuer:            b.issuerDID,
		IssuanceDate:      b.now().UTC().Format(time.RFC3339),
		CredentialSubject: subject,
		Metadata:          meta,
	}, nil
}
