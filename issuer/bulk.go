package issuer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/credverse/credverse-go/credential/vc"
	"github.com/credverse/credverse-go/registry"
)

// DefaultConcurrency bounds the parallel fan-out of bulk issuance.
const DefaultConcurrency = 8

// BulkRequest is one subject of a bulk issuance run.
type BulkRequest struct {
	Subject    vc.Subject
	TemplateID string
	Metadata   vc.Metadata
}

// BulkResult is the per-subject outcome of a bulk issuance run. Err is set
// when this subject failed; the rest of the batch is unaffected.
type BulkResult struct {
	Index      int
	Credential *vc.Credential
	Receipt    *registry.AnchorReceipt
	Err        error
}

// BulkIssue issues and anchors one credential per request with a bounded
// number of concurrent anchor calls. A failing subject is reported in its
// slot and never aborts the batch; only caller cancellation does. Results
// keep input order.
func (m *Manager) BulkIssue(ctx context.Context, requests []BulkRequest, concurrency int) ([]BulkResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]BulkResult, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, req := range requests {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cred, receipt, err := m.IssueAndAnchor(gctx, req.Subject, req.TemplateID, req.Metadata)
			results[i] = BulkResult{Index: i, Credential: cred, Receipt: receipt, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
