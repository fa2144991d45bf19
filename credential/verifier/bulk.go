package verifier

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/credverse/credverse-go/credential/vc"
)

// DefaultConcurrency bounds the parallel fan-out of bulk verification.
const DefaultConcurrency = 8

// BatchResult pairs one input of a bulk verification with its verdict. Index
// refers to the position in the input slice; results keep input order.
type BatchResult struct {
	Index        int
	CredentialID string
	Verdict      Verdict
}

// VerifyBatch verifies many credentials with a bounded number of concurrent
// registry lookups. One credential's failure never aborts the batch: every
// input gets a verdict, and the only error returned is caller cancellation.
func (o *Orchestrator) VerifyBatch(ctx context.Context, creds []*vc.Credential, concurrency int) ([]BatchResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]BatchResult, len(creds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, cred := range creds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := BatchResult{Index: i, Verdict: o.VerifyCredential(gctx, cred)}
			if cred != nil {
				result.CredentialID = cred.ID
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// VerifyDocuments is VerifyBatch over raw documents. Unparseable documents
// get a malformed verdict in place rather than failing the batch.
func (o *Orchestrator) VerifyDocuments(ctx context.Context, docs [][]byte, concurrency int) ([]BatchResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]BatchResult, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, raw := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := BatchResult{Index: i}
			if cred, err := vc.ParseCredential(raw); err != nil {
				result.Verdict = Verdict{Reason: ReasonMalformed, Detail: err.Error()}
			} else {
				result.CredentialID = cred.ID
				result.Verdict = o.VerifyCredential(gctx, cred)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
