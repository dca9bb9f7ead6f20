package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/dagview/pkg/graph"
	"github.com/matzehuels/dagview/pkg/parse"
)

// parseCommand creates the parse command, which converts any supported input
// file into the canonical graph JSON.
func (c *CLI) parseCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a graph file into canonical JSON",
		Long: `Parse a graph file into canonical JSON.

The format is chosen by extension:
  .txt        "Graph Nodes:/Graph Edges:" sections, or one "source target [label]" per line
  .json       {"nodes": [...], "edges": [...]} or a nested {"graph": {...}} document
  .csv        source,target[,label] rows with an optional header
  .dot, .gv   Graphviz DOT

Malformed lines are logged and skipped. The result is written to stdout
unless --output is given.

Examples:
  dagview parse deps.txt
  dagview parse deps.csv -o deps.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runParse(cmd.Context(), args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if empty)")

	return cmd
}

func (c *CLI) runParse(ctx context.Context, input, output string) error {
	doc, err := c.readDocument(input)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if output == "" {
		return graph.WriteDocument(doc, os.Stdout)
	}
	if err := graph.WriteDocumentFile(doc, output); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}

	printSuccess("Parsed %s", input)
	printFile(output)
	printStats(doc.Metadata.NodeCount, doc.Metadata.EdgeCount, "")
	printNewline()
	printNextStep("Render", "dagview render "+output)
	return nil
}

// readDocument reads and parses a graph file.
func (c *CLI) readDocument(path string) (*graph.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	prog := newProgress(c.Logger)
	doc, err := parse.Parse(filepath.Base(path), content, parse.Options{Logger: c.Logger})
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Parsed %d nodes and %d edges (%s)", doc.Metadata.NodeCount, doc.Metadata.EdgeCount, doc.Metadata.Variant))
	return doc, nil
}
