package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/framepen/pkg/errors"
	docio "github.com/matzehuels/framepen/pkg/io"
	"github.com/matzehuels/framepen/pkg/pipeline"
)

// renderCommand creates the render command, which turns an exported JSON
// document back into timed text without decoding the source again.
func (c *CLI) renderCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "render <document.json>",
		Short: "Render an exported JSON document to timed text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: input with .ytt extension)")
	return cmd
}

func runRender(input, output string) error {
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "." + pipeline.FormatYTT
	}
	if err := errors.ValidateOutputPath(output); err != nil {
		return err
	}
	if output == input {
		return errors.New(errors.ErrCodeInvalidPath, "output would overwrite the input %s", input)
	}

	doc, err := docio.ImportJSON(input)
	if err != nil {
		return err
	}
	artifacts, err := pipeline.Render(doc, []string{pipeline.FormatYTT})
	if err != nil {
		return err
	}
	data := artifacts[pipeline.FormatYTT]
	if err := writeFileAtomic(output, data); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printSuccess("Rendered %s", input)
	printFile(output, len(data))
	printStats(0, len(doc.Blocks), len(doc.Pens), false)
	return nil
}
