package compiler

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the CompileAll concurrency used when none is configured.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// Outcome is the result of one request in a batch.
type Outcome struct {
	Artifact *Artifact
	Err      error
}

// CompileAll runs reqs concurrently, at most Workers at a time. Outcomes are
// in request order. Requests not started before ctx is done fail with the
// context error, which is also returned.
func (c *Compiler) CompileAll(ctx context.Context, reqs []Request) ([]Outcome, error) {
	out := make([]Outcome, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, req := range reqs {
		if err := gctx.Err(); err != nil {
			out[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			out[i].Artifact, out[i].Err = c.Do(req)
			return nil
		})
	}
	_ = g.Wait()

	c.logger().Debugf("batch of %d request(s) done", len(reqs))
	return out, ctx.Err()
}

// Results is CompileAll with each outcome converted to a Result.
func (c *Compiler) Results(ctx context.Context, reqs []Request) ([]Result, error) {
	outcomes, err := c.CompileAll(ctx, reqs)
	res := make([]Result, len(outcomes))
	for i, o := range outcomes {
		res[i] = reqs[i].Result(o.Artifact, o.Err)
	}
	return res, err
}
