package cmd

import (
	"io"

	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"
	"github.com/tabular-tools/tik/server"
)

// ServeMain is wrapped by NewServeCommand and only exported for testing
// purposes.
var ServeMain *server.Main

// NewServeCommand returns a new cobra command wrapping ServeMain.
func NewServeCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	ServeMain = server.NewMain()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the transform and push operations over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ServeMain.Run()
		},
	}
	if err := commandeer.Flags(cmd.Flags(), ServeMain); err != nil {
		panic(err)
	}
	return cmd
}

func init() {
	subcommandFns["serve"] = NewServeCommand
}
