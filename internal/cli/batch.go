package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	Database string
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Execute a batch of commands atomically",
		Long: `Execute the commands listed in a YAML or CUE file as one atomic batch.
Either every command commits or none does.

YAML:
  commands:
    - sql: INSERT INTO User (id, name) VALUES (?, ?)
      args: [1, Ann]

CUE:
  commands: [{sql: "INSERT INTO User (id, name) VALUES (?, ?)", args: [1, "Ann"]}]

Example:
  opsql batch --db ./app.db ./seed.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	return cmd
}

func runBatch(opts *BatchOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	bf, err := LoadBatchFile(path)
	if err != nil {
		return reportError(formatter, err)
	}
	formatter.VerboseLog("loaded %d command(s) from %s", len(bf.Commands), path)

	db, err := openDB(opts.RootOptions, opts.Database, newLogger(cmd.ErrOrStderr(), opts.Verbose))
	if err != nil {
		return reportError(formatter, err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	br, err := db.ExecuteBatch(ctx, bf.Commands)
	if err != nil {
		return reportError(formatter, err)
	}

	return formatter.Success(newBatchView(br))
}
