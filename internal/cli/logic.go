package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/idelchi/fileculator/internal/config"
	"github.com/idelchi/fileculator/internal/logging"
	"github.com/idelchi/fileculator/internal/scan"
)

func progressEnabled(options Options) bool {
	switch options.Progress {
	case "always":
		return true
	case "never":
		return false
	default:
		return !options.Debug && isatty.IsTerminal(os.Stderr.Fd())
	}
}

//nolint:forbidigo // Console output is the job's report.
func logic(ctx context.Context, options Options, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log, err := logging.New(options.Debug)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	defer func() { _ = log.Sync() }()

	// The console report goes to stderr when stdout carries the JSON summary.
	out := stdout
	if options.Output == "json" {
		out = stderr
	}

	fmt.Fprintln(out, "Reading variables...")

	src, err := config.LoadSource(options.EnvFile, options.envFileChanged)
	if err != nil {
		return err
	}

	cfg, err := config.Resolve(src, log)
	if err != nil {
		return err
	}

	runner := &scan.Runner{
		Out:              out,
		Log:              log,
		ProgressInterval: options.ProgressInterval,
	}

	if progressEnabled(options) {
		runner.BeforeMeasure = func() {
			// Hide cursor for in-place updates
			fmt.Fprint(stderr, "\033[?25l")
		}
		runner.AfterMeasure = func() {
			// Clear the status line and restore the cursor
			fmt.Fprint(stderr, "\r\033[2K\r\033[?25h")
		}
		runner.Progress = func(path string) func(files, bytes int64) {
			return func(files, bytes int64) {
				msg := fmt.Sprintf("Scanning %s… %s files, %s",
					path, humanize.Comma(files), humanize.IBytes(uint64(bytes))) //nolint:gosec // Bytes is always positive
				fmt.Fprintf(stderr, "\r\033[2K%s\r", msg)
			}
		}
	}

	summary, err := runner.Run(ctx, cfg)
	if err != nil {
		return err
	}

	log.Debug("run complete",
		zap.Int("located", summary.Located),
		zap.Int("written", summary.Written),
		zap.Int("failed", summary.Failed),
	)

	if options.Output == "json" {
		return PrintJSON(summary, stdout)
	}

	return nil
}
