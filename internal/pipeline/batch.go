package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// FileFunc processes the i-th file of a batch and reports on it. Failures
// belong in Report.Err.
type FileFunc func(ctx context.Context, i int, path string) Report

// Batch runs fn over paths with at most workers files in flight (values
// below 1 mean sequential). Reports come back in input order. A canceled
// context stops files that have not started yet; they are reported with the
// context error.
func Batch(ctx context.Context, paths []string, workers int, stage string, fn FileFunc) []Report {
	if workers < 1 {
		workers = 1
	}
	reports := make([]Report, len(paths))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				reports[i] = Report{Stage: stage, Input: p, Err: &FileError{Path: p, Stage: stage, Err: err}}
				return nil
			}
			reports[i] = fn(ctx, i, p)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// claimOutputs maps each input to its output path and fails every input
// after the first that would write the same output.
func claimOutputs(paths []string, output func(string) string) (outs []string, conflicts map[int]error) {
	outs = make([]string, len(paths))
	owner := make(map[string]string, len(paths))
	for i, p := range paths {
		o := filepath.Clean(output(p))
		outs[i] = o
		if first, taken := owner[o]; taken {
			if conflicts == nil {
				conflicts = map[int]error{}
			}
			conflicts[i] = configError(fmt.Errorf("output %s already produced from %s", o, first))
			continue
		}
		owner[o] = p
	}
	return outs, conflicts
}
