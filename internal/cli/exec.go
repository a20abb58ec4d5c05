package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Database string
	Args     string
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Execute SQL and print the result",
		Long: `Execute one SQL string against the database and print the result of its
last statement. Several statements separated by semicolons run in order.

Positional ? placeholders are bound from --args, a JSON array.

Example:
  opsql exec --db ./app.db "SELECT * FROM User WHERE id = ?" --args '[7]'
  opsql exec --db ./app.db --format json "SELECT count(*) FROM User"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Args, "args", "", "statement arguments as a JSON array")

	return cmd
}

func runExec(opts *ExecOptions, query string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	args, err := ParseArgs(opts.Args)
	if err != nil {
		return reportError(formatter, err)
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

	formatter.VerboseLog("executing against %s", db.Path())
	res, err := db.Execute(ctx, query, args...)
	if err != nil {
		return reportError(formatter, err)
	}

	return formatter.Success(newResultView(res))
}

// newFormatter builds the formatter for a command's output streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
