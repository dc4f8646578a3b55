package cmd

import (
	"io"

	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"
	"github.com/tabular-tools/tik/compose"
)

// IntersectMain is wrapped by NewIntersectCommand and only exported for
// testing purposes.
var IntersectMain *compose.IntersectMain

// NewIntersectCommand returns a new cobra command wrapping IntersectMain.
func NewIntersectCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	IntersectMain = compose.NewIntersectMain()
	cmd := &cobra.Command{
		Use:   "comprehensionintersect",
		Short: "merge two comprehension files, the secondary winning overlaps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return IntersectMain.Run()
		},
	}
	if err := commandeer.Flags(cmd.Flags(), IntersectMain); err != nil {
		panic(err)
	}
	return cmd
}

// ToArrayMain is wrapped by NewToArrayCommand and only exported for testing
// purposes.
var ToArrayMain *compose.ArrayMain

// NewToArrayCommand returns a new cobra command wrapping ToArrayMain.
func NewToArrayCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	ToArrayMain = compose.NewArrayMain()
	cmd := &cobra.Command{
		Use:   "comprehensiontoarray",
		Short: "unroll one entity of a comprehension into a JSON array",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ToArrayMain.Run()
		},
	}
	if err := commandeer.Flags(cmd.Flags(), ToArrayMain); err != nil {
		panic(err)
	}
	return cmd
}

// ToCSVMain is wrapped by NewToCSVCommand and only exported for testing
// purposes.
var ToCSVMain *compose.CSVMain

// NewToCSVCommand returns a new cobra command wrapping ToCSVMain.
func NewToCSVCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	ToCSVMain = compose.NewCSVMain()
	cmd := &cobra.Command{
		Use:   "objectarraytocsv",
		Short: "render a comprehension entity or JSON object array as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ToCSVMain.Run()
		},
	}
	if err := commandeer.Flags(cmd.Flags(), ToCSVMain); err != nil {
		panic(err)
	}
	return cmd
}

func init() {
	subcommandFns["comprehensionintersect"] = NewIntersectCommand
	subcommandFns["comprehensiontoarray"] = NewToArrayCommand
	subcommandFns["objectarraytocsv"] = NewToCSVCommand
}
