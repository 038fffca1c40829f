package dirstat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// DefaultProgressInterval is the default interval for progress updates.
const DefaultProgressInterval = 500 * time.Millisecond

// TraversalRoot returns the directory to measure for a located storage directory.
// In whole-project mode this is two levels above it, i.e. the project that
// contains storage/app.
func TraversalRoot(located string, storageOnly bool) string {
	if storageOnly {
		return located
	}

	return filepath.Dir(filepath.Dir(located))
}

// startProgressReporter invokes hook(files, bytes) on each tick until ctx is done.
// The returned channel is closed once the reporter has exited.
//
//nolint:varnamelen // c is idiomatic for collector
func startProgressReporter(ctx context.Context, c *collector, hook func(int64, int64), interval time.Duration) <-chan struct{} {
	done := make(chan struct{})

	if hook == nil {
		close(done)

		return done
	}

	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				hook(c.snapshot())
			case <-ctx.Done():
				return
			}
		}
	}()

	return done
}

// Run walks opt.Path and returns the total size of all regular files below it.
//
// Directories, symlinks and special files contribute nothing, and neither do
// entries that disappear while the walk is running. Any other error reading
// a directory or a file's metadata aborts the walk: an undercounted total
// would be reported as if it were correct.
//
// The walk can be cancelled via ctx. Progress updates are sent to
// progressHook if provided.
func Run(ctx context.Context, opt Options, progressHook func(int64, int64), log *zap.Logger) (*Stats, error) {
	if log == nil {
		log = zap.NewNop()
	}

	opt.Path = filepath.Clean(opt.Path)

	if statInfo, err := os.Stat(opt.Path); err != nil {
		return nil, fmt.Errorf("accessing path %q: %w", opt.Path, err)
	} else if !statInfo.IsDir() {
		return nil, fmt.Errorf("path %q is not a directory", opt.Path)
	}

	collector := &collector{}

	// Create child context to ensure progress reporter cleanup
	ctx, cancel := context.WithCancel(ctx)

	// No progress update may be printed once Run has returned.
	reporterDone := startProgressReporter(ctx, collector, progressHook, opt.ProgressInterval)
	defer func() {
		cancel()
		<-reporterDone
	}()

	start := time.Now()

	conf := &fastwalk.Config{
		Follow:     false,
		NumWorkers: 1,
	}

	//nolint:varnamelen // d is standard for DirEntry
	walkErr := fastwalk.Walk(conf, opt.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debug("entry vanished during walk", zap.String("path", path))

				return nil
			}

			return fmt.Errorf("reading %q: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !d.Type().IsRegular() {
			return nil
		}

		fileInfo, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return fmt.Errorf("reading metadata of %q: %w", path, err)
		}

		collector.add(fileInfo.Size())

		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	stats := collector.finalize(opt.Path)

	stats.Elapsed = time.Since(start)

	log.Debug("measured directory",
		zap.String("path", stats.Path),
		zap.Int64("files", stats.FileCount),
		zap.Int64("bytes", stats.TotalBytes),
		zap.String("size", humanize.IBytes(uint64(stats.TotalBytes))), //nolint:gosec // Bytes is always positive
		zap.Duration("elapsed", stats.Elapsed),
	)

	return stats, nil
}
