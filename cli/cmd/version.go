package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/gantry/types"
)

// VersionCommand returns the version command. It reports the canonical
// project version and never contacts the backend.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "gantry %s (commit: %s)\n", types.Version, commit)
			return nil
		},
	}
}
