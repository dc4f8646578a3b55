package cmd

import (
	"io"

	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"
	"github.com/tabular-tools/tik/transform"
)

// FolderMain is wrapped by NewFolderCommand and only exported for testing
// purposes.
var FolderMain *transform.FolderMain

// NewFolderCommand returns a new cobra command wrapping FolderMain.
func NewFolderCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	FolderMain = transform.NewFolderMain()
	cmd := &cobra.Command{
		Use:   "folderentities",
		Short: "transform every tabular file in a folder into one comprehension, one entity per file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return FolderMain.Run()
		},
	}
	if err := commandeer.Flags(cmd.Flags(), FolderMain); err != nil {
		panic(err)
	}
	return cmd
}

func init() {
	subcommandFns["folderentities"] = NewFolderCommand
}
