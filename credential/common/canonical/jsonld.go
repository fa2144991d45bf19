package canonical

import (
	"fmt"

	"github.com/piprate/json-gold/ld"
)

const (
	jsonldFormat    = "application/n-quads"
	jsonldAlgorithm = ld.AlgorithmURDNA2015
)

// defaultDocumentLoader is a shared caching loader so repeated normalization
// calls do not refetch remote contexts.
var defaultDocumentLoader ld.DocumentLoader

func init() {
	defaultDocumentLoader = ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(nil))
}

// NormalizeJSONLD produces the URDNA2015 N-Quads normalization of the
// proof-stripped document. This path exists for interop with RDF-based proof
// suites; the registry digest is always defined over Canonicalize output.
func NormalizeJSONLD(v interface{}) ([]byte, error) {
	doc, err := toDocument(v)
	if err != nil {
		return nil, err
	}
	delete(doc, proofField)

	opts := ld.NewJsonLdOptions("")
	opts.ProcessingMode = ld.JsonLd_1_1
	opts.Format = jsonldFormat
	opts.Algorithm = jsonldAlgorithm
	opts.DocumentLoader = defaultDocumentLoader

	proc := ld.NewJsonLdProcessor()
	view, err := proc.Normalize(doc, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize JSON-LD document: %w", err)
	}

	normalized, ok := view.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected normalization result of type %T", view)
	}
	return []byte(normalized), nil
}
