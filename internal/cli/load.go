package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Database string
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <file.sql>",
		Short: "Run a SQL file atomically",
		Long: `Run every statement of a SQL file as one atomic batch.

Example:
  opsql load --db ./app.db ./schema.sql`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	return cmd
}

func runLoad(opts *LoadOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(path); err != nil {
		return reportError(formatter, newCommandError(ErrCodeNotFound, err))
	}

	db, err := openDB(opts.RootOptions, opts.Database, newLogger(cmd.ErrOrStderr(), opts.Verbose))
	if err != nil {
		return reportError(formatter, err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	br, err := db.LoadFile(ctx, path)
	if err != nil {
		return reportError(formatter, err)
	}

	return formatter.Success(newBatchView(br))
}
