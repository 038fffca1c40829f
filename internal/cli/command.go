package cli

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/idelchi/fileculator/internal/integration"
)

// Options holds the command-line flags.
type Options struct {
	// EnvFile is the dotenv file to read configuration from.
	EnvFile string
	// Debug indicates whether debug output is enabled.
	Debug bool
	// Progress controls the progress line: auto, always or never.
	Progress string
	// ProgressInterval controls progress update cadence.
	ProgressInterval time.Duration
	// Output represents the summary format (text or json).
	Output string
	// Version indicates whether to show version and exit.
	Version bool
	// Integration indicates whether to output the crontab line.
	Integration bool
	// Schedule is the cron schedule used with Integration.
	Schedule string

	envFileChanged bool
}

// CLI represents the command-line interface.
type CLI struct {
	version string
}

// New creates a new CLI instance with the given version.
func New(version string) CLI {
	return CLI{version: version}
}

//nolint:gochecknoglobals // Config constants
var (
	allowedOutputs  = []string{"text", "json"}
	allowedProgress = []string{"auto", "always", "never"}
)

func bindFlags(flags *pflag.FlagSet, options *Options) {
	flags.StringVarP(&options.EnvFile, "env-file", "e", ".env", "Dotenv file with PROJECT_ROOT, PROJECT_DEPTH and STORAGE_ONLY")
	flags.BoolVar(&options.Debug, "debug", false, "Enable debug output")
	flags.StringVar(&options.Progress, "progress", "auto", "Progress line while measuring: auto, always or never")
	flags.DurationVar(&options.ProgressInterval, "progress-interval", 500*time.Millisecond, "Progress update interval")
	flags.StringVarP(&options.Output, "output", "o", "text", "Summary format: text or json")
	flags.BoolVarP(&options.Version, "version", "v", false, "Show version and exit")
	flags.BoolVarP(&options.Integration, "init", "i", false, "Output a crontab line for running the job and exit")
	flags.StringVar(&options.Schedule, "schedule", integration.DefaultSchedule, "Cron schedule used with --init")
	flags.SortFlags = false
}

// Command builds the root command.
func (c CLI) Command() *cobra.Command {
	var options Options

	cmd := &cobra.Command{
		Use:   "fileculator [flags]",
		Short: "Measure storage directories of deployed projects and write usage reports",
		Long: heredoc.Doc(`
			fileculator finds the storage/app directory of every project below
			PROJECT_ROOT and writes the total size of its files to storage.json.

			Configuration is read from the environment, layered over a dotenv file:

			  PROJECT_ROOT   Directory containing the projects (required).
			                 Relative paths are resolved against $HOME.
			  PROJECT_DEPTH  Number of directories between PROJECT_ROOT and storage (1 or 2, default 2).
			  STORAGE_ONLY   1 to measure storage/app only, 0 to measure the whole project (default 1).

			The job is meant to run periodically; use --init to print a crontab line.
		`),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if options.Version {
				fmt.Fprintln(cmd.OutOrStdout(), c.version)

				return nil
			}

			if options.Integration {
				rendered, err := integration.Render(integration.Params{
					Schedule: options.Schedule,
					EnvFile:  options.EnvFile,
				})
				if err != nil {
					return fmt.Errorf("rendering crontab line: %w", err)
				}

				fmt.Fprintln(cmd.OutOrStdout(), rendered)

				return nil
			}

			if !slices.Contains(allowedOutputs, options.Output) {
				return fmt.Errorf("invalid output format %q: must be one of %v", options.Output, allowedOutputs)
			}

			if !slices.Contains(allowedProgress, options.Progress) {
				return fmt.Errorf("invalid progress mode %q: must be one of %v", options.Progress, allowedProgress)
			}

			options.envFileChanged = cmd.Flags().Changed("env-file")

			return logic(cmd.Context(), options, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	bindFlags(cmd.Flags(), &options)

	return cmd
}

// Execute runs the CLI with the process arguments. Cancelling ctx stops the
// running measurement.
func (c CLI) Execute(ctx context.Context) error {
	return c.Command().ExecuteContext(ctx)
}
