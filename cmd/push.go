package cmd

import (
	"io"
	"log"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"
	"github.com/tabular-tools/tik/integration"
)

// PushMain is wrapped by NewPushCommand and only exported for testing
// purposes.
var PushMain *integration.Main

// NewPushCommand returns a new cobra command wrapping PushMain.
func NewPushCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	PushMain = integration.NewMain()
	cmd := &cobra.Command{
		Use:   "push",
		Short: "push a comprehension file to a downstream REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := PushMain.Run(); err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	if err := commandeer.Flags(cmd.Flags(), PushMain); err != nil {
		panic(err)
	}
	return cmd
}

func init() {
	subcommandFns["push"] = NewPushCommand
}
