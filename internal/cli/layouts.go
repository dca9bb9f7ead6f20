package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/dagview/pkg/config"
	"github.com/matzehuels/dagview/pkg/engine"
	"github.com/matzehuels/dagview/pkg/facade"
)

// layoutsCommand lists the named layouts available to render, edit and serve.
func (c *CLI) layoutsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "layouts",
		Short: "List available layouts",
		Long: `List available layouts.

Built-in layouts map to Graphviz engines. Additional layouts can be defined
in the [layouts.<name>] tables of the config file; a config layout with a
built-in name replaces it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(layoutsTable(c.Config))
			return nil
		},
	}
}

func layoutsTable(cfg *config.Config) string {
	layouts := cfg.AllLayouts()
	custom := cfg.CustomLayouts()
	def := cfg.Editor.Layout
	if def == "" {
		def = facade.DefaultLayout
	}

	keys := facade.LayoutKeys(layouts)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		l := layouts[k]
		var marks []string
		if k == def {
			marks = append(marks, "default")
		}
		if slices.Contains(custom, k) {
			marks = append(marks, "config")
		}
		rows = append(rows, []string{k, l.Algorithm, l.RankDir, formatParams(l), strings.Join(marks, ", ")})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Layout", "Engine", "Rank", "Params", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			switch col {
			case 0:
				if keys[row] == def {
					return styleLayout.Bold(true)
				}
				return styleLayout
			case 4:
				return StyleDim
			}
			return StyleValue
		}).
		Render()
}

func formatParams(l engine.LayoutConfig) string {
	keys := make([]string, 0, len(l.Params))
	for k := range l.Params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(l.Params[k], 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
