// Command opsql runs statements, batches and SQL files against a SQLite
// database through a single serialized connection.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/opsql/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			// Errors from cobra itself (unknown flag, bad --format)
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
