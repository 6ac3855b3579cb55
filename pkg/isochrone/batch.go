package isochrone

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchResult holds one Result per origin lane of a batched isochrone
// query.
type BatchResult struct {
	Contours []Result
}

// GenerateBatch runs spec.md §5's "data-parallel fork-join": given the
// per-lane distance arrays from batch.QueryBatch (or QueryBatchBounded),
// it extracts reachable segments and generates a contour for each lane
// concurrently. The batched PHAST scan itself stays single-threaded
// (spec.md §5: "parallelism lives between phase 2 and phase 3") — this
// function is what the caller invokes after that scan has already
// produced laneDist.
func GenerateBatch(ctx context.Context, ex *Extractor, laneDist [][]uint32, thresholdMs uint32, cfg Config) (BatchResult, error) {
	k := len(laneDist)
	contours := make([]Result, k)

	g, ctx := errgroup.WithContext(ctx)
	for lane := 0; lane < k; lane++ {
		lane := lane
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			segs := ex.ExtractReachableSegments(laneDist[lane], thresholdMs)
			contours[lane] = Generate(segs, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}
	return BatchResult{Contours: contours}, nil
}
