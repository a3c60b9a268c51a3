package builder

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/androiddrew/vdist/src/config"
)

// Job is one named build in a batch.
type Job struct {
	Name   string
	Config *config.Configuration
}

// Report is the result of one job. Exactly one of Result and Err is set.
type Report struct {
	Name   string
	Result *Result
	Err    error
}

// RunAll runs jobs with at most parallel builds at a time and returns one
// report per job, in input order. A failing job does not stop the others.
// Each job gets its own build directory: a fresh one, or BuildDir/<name>
// when BuildDir is set.
func (b *Builder) RunAll(ctx context.Context, jobs []Job, parallel int) []Report {
	if parallel < 1 {
		parallel = 1
	}
	reports := make([]Report, len(jobs))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, job := range jobs {
		g.Go(func() error {
			jb := *b
			if b.BuildDir != "" {
				jb.BuildDir = filepath.Join(b.BuildDir, job.Name)
			}
			jb.Logger = b.logger().With("build", job.Name)

			res, err := jb.Build(ctx, job.Config)
			reports[i] = Report{Name: job.Name, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// Failed returns the reports that carry an error.
func Failed(reports []Report) []Report {
	var out []Report
	for _, r := range reports {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
