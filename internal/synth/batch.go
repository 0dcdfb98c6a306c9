package synth

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// BatchResult is the outcome of one request of a batch.
type BatchResult struct {
	Request tts.Request
	Result  Result
	Err     error
}

// SynthesizeBatch synthesizes reqs with at most concurrency calls in flight.
// Requests are independent: a failure does not stop the others. Results are
// returned in request order.
func (s *Synthesizer) SynthesizeBatch(ctx context.Context, reqs []tts.Request, policy Policy, concurrency int) []BatchResult {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]BatchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			results[i].Request = req
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Result, results[i].Err = s.Synthesize(ctx, req, policy)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
