// Package scan runs one measurement pass over all located storage directories.
package scan

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/idelchi/fileculator/internal/config"
	"github.com/idelchi/fileculator/internal/dirstat"
	"github.com/idelchi/fileculator/internal/locator"
	"github.com/idelchi/fileculator/internal/report"
	"github.com/idelchi/fileculator/internal/sizefmt"
)

// Summary describes the outcome of a run.
type Summary struct {
	// Located is the number of storage directories found.
	Located int
	// Written is the number of reports written successfully.
	Written int
	// Failed is the number of directories that could not be measured or written.
	Failed int
	// FinishedAt is when the run completed.
	FinishedAt time.Time
}

// Runner measures located directories and writes their reports.
type Runner struct {
	// Out receives the console report.
	Out io.Writer
	// Log receives diagnostics.
	Log *zap.Logger
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Progress, if set, returns a progress hook for the walk of path.
	Progress func(path string) func(files, bytes int64)
	// ProgressInterval controls progress callback cadence.
	ProgressInterval time.Duration
	// BeforeMeasure, if set, runs before each measurement.
	BeforeMeasure func()
	// AfterMeasure, if set, runs after each measurement.
	AfterMeasure func()
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}

	return r.Now()
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}

	return r.Log
}

// Run locates every storage directory under cfg.Root, measures it and writes
// its report. Errors for individual directories are printed and counted;
// only an invalid root aborts the run.
//
//nolint:forbidigo // Console output is the job's report.
func (r *Runner) Run(ctx context.Context, cfg config.Config) (Summary, error) {
	var summary Summary

	log := r.logger()

	fmt.Fprintln(r.Out, "Searching for directories...")
	fmt.Fprintln(r.Out)

	loc, err := locator.New(cfg.Root, cfg.Depth, log)
	if err != nil {
		return summary, err
	}

	log.Debug("locating storage directories",
		zap.String("root", cfg.Root),
		zap.String("pattern", loc.Pattern()),
	)

	for dir := range loc.All() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.Located++

		if err := r.process(ctx, dir, cfg.StorageOnly); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}

			summary.Failed++

			fmt.Fprintln(r.Out, err)
			log.Error("skipping directory", zap.String("path", dir), zap.Error(err))

			continue
		}

		summary.Written++
	}

	summary.FinishedAt = r.now()

	fmt.Fprintf(r.Out, "\nWritten in %d directories.\n", summary.Written)
	fmt.Fprintf(r.Out, "Finished at %s\n", summary.FinishedAt.Format(report.TimeLayout))

	return summary, nil
}

// process measures one located directory and writes its report.
//
//nolint:forbidigo // Console output is the job's report.
func (r *Runner) process(ctx context.Context, dir string, storageOnly bool) error {
	target := dirstat.TraversalRoot(dir, storageOnly)

	var hook func(int64, int64)
	if r.Progress != nil {
		hook = r.Progress(target)
	}

	if r.BeforeMeasure != nil {
		r.BeforeMeasure()
	}

	stats, err := dirstat.Run(ctx, dirstat.Options{
		Path:             target,
		ProgressInterval: r.ProgressInterval,
	}, hook, r.logger())

	if r.AfterMeasure != nil {
		r.AfterMeasure()
	}

	if err != nil {
		return fmt.Errorf("measuring %q: %w", target, err)
	}

	fmt.Fprintf(r.Out, "%s has %s of files\n", dir, sizefmt.FormatInt(stats.TotalBytes))

	r.logPrevious(dir, stats.TotalBytes)

	return report.Write(dir, report.New(stats.TotalBytes, r.now()))
}

// logPrevious records how the size changed since the report being replaced.
func (r *Runner) logPrevious(dir string, size int64) {
	log := r.logger()
	if !log.Core().Enabled(zap.DebugLevel) {
		return
	}

	prev, err := report.Read(dir)
	if err != nil {
		log.Debug("no previous report", zap.String("path", dir), zap.Error(err))

		return
	}

	log.Debug("replacing report",
		zap.String("path", dir),
		zap.Int64("previous_size", prev.Size),
		zap.String("previous_written_at", prev.WrittenAt),
		zap.Int64("delta", size-prev.Size),
	)
}
