package cmd

import (
	"io"
	"log"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"
	"github.com/tabular-tools/tik/transform"
)

// CSVTransformMain is wrapped by NewCSVTransformCommand and only exported for
// testing purposes.
var CSVTransformMain *transform.Main

// NewCSVTransformCommand returns a new cobra command wrapping CSVTransformMain.
func NewCSVTransformCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	CSVTransformMain = transform.NewCSVMain()
	cmd := &cobra.Command{
		Use:   "csvtransform",
		Short: "transform a CSV file into an entity comprehension",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := CSVTransformMain.Run(); err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	if err := commandeer.Flags(cmd.Flags(), CSVTransformMain); err != nil {
		panic(err)
	}
	return cmd
}

// TSVTransformMain is wrapped by NewTSVTransformCommand and only exported for
// testing purposes.
var TSVTransformMain *transform.Main

// NewTSVTransformCommand returns a new cobra command wrapping TSVTransformMain.
func NewTSVTransformCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	TSVTransformMain = transform.NewTSVMain()
	cmd := &cobra.Command{
		Use:   "tsvtransform",
		Short: "transform a TSV file into an entity comprehension",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := TSVTransformMain.Run(); err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	if err := commandeer.Flags(cmd.Flags(), TSVTransformMain); err != nil {
		panic(err)
	}
	return cmd
}

// JSONArrayTransformMain is wrapped by NewJSONArrayTransformCommand and only
// exported for testing purposes.
var JSONArrayTransformMain *transform.Main

// NewJSONArrayTransformCommand returns a new cobra command wrapping
// JSONArrayTransformMain.
func NewJSONArrayTransformCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	JSONArrayTransformMain = transform.NewJSONArrayMain()
	cmd := &cobra.Command{
		Use:   "jsonarraytransform",
		Short: "transform a JSON array of objects into an entity comprehension",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := JSONArrayTransformMain.Run(); err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	if err := commandeer.Flags(cmd.Flags(), JSONArrayTransformMain); err != nil {
		panic(err)
	}
	return cmd
}

func init() {
	subcommandFns["csvtransform"] = NewCSVTransformCommand
	subcommandFns["tsvtransform"] = NewTSVTransformCommand
	subcommandFns["jsonarraytransform"] = NewJSONArrayTransformCommand
}
