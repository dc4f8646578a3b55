package cmd

import (
	"io"

	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"
	"github.com/tabular-tools/tik/transform"
)

// CSVCheckMain is wrapped by NewCSVCheckCommand and only exported for testing
// purposes.
var CSVCheckMain *transform.CheckMain

// NewCSVCheckCommand returns a new cobra command wrapping CSVCheckMain.
func NewCSVCheckCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	CSVCheckMain = transform.NewCSVCheckMain()
	cmd := &cobra.Command{
		Use:   "csvcheck",
		Short: "gather per-column statistics for a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return CSVCheckMain.Run()
		},
	}
	if err := commandeer.Flags(cmd.Flags(), CSVCheckMain); err != nil {
		panic(err)
	}
	return cmd
}

// TSVCheckMain is wrapped by NewTSVCheckCommand and only exported for testing
// purposes.
var TSVCheckMain *transform.CheckMain

// NewTSVCheckCommand returns a new cobra command wrapping TSVCheckMain.
func NewTSVCheckCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	TSVCheckMain = transform.NewTSVCheckMain()
	cmd := &cobra.Command{
		Use:   "tsvcheck",
		Short: "gather per-column statistics for a TSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return TSVCheckMain.Run()
		},
	}
	if err := commandeer.Flags(cmd.Flags(), TSVCheckMain); err != nil {
		panic(err)
	}
	return cmd
}

func init() {
	subcommandFns["csvcheck"] = NewCSVCheckCommand
	subcommandFns["tsvcheck"] = NewTSVCheckCommand
}
