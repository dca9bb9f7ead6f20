package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/dagview/pkg/cache"
	"github.com/matzehuels/dagview/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render and watch commands.
type renderOpts struct {
	output  string   // output file (single format) or base path (multiple)
	layout  string   // named layout, config default if empty
	formats []string // output formats: png, jpg, jpeg, layout, graph, dot
	theme   string   // stylesheet theme, config default if empty
	noCache bool
	cache   cache.Cache // nil disables caching

	// Style commands applied before export.
	selectIDs   string
	color       string
	borderColor string
	borderWidth float64
	opacity     float64
	setOpacity  bool
	shape       string
}

func (o *renderOpts) style() pipeline.StyleOptions {
	s := pipeline.StyleOptions{
		Select:      splitList(o.selectIDs),
		Color:       o.color,
		BorderColor: o.borderColor,
		BorderWidth: o.borderWidth,
		Shape:       o.shape,
	}
	if o.setOpacity {
		v := o.opacity
		s.Opacity = &v
	}
	return s
}

// renderCommand creates the render command, which runs the editor headlessly:
// upload, layout, optional style commands, export.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	opts := renderOpts{borderWidth: 2, opacity: 1}

	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Lay out a graph file and export images",
		Long: `Lay out a graph file and export images or layout data.

Formats:
  png, jpg, jpeg   rendered view on the theme background
  layout           node positions as JSON
  graph            the parsed graph as canonical JSON
  dot              Graphviz source with positions pinned

Style flags apply to --select nodes, or to every node when --select is empty.

Results are cached by file content and options; --no-cache forces a fresh
layout.

Examples:
  dagview render deps.txt
  dagview render deps.json -l circular -f png,layout -o out/deps
  dagview render deps.csv --select app,lib --color orange --shape square`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			opts.setOpacity = cmd.Flags().Changed("opacity")
			if err := pipeline.ValidateFormats(opts.formats); err != nil {
				return err
			}
			opts.cache = c.openCache(opts.noCache)
			return c.runRender(cmd.Context(), args[0], &opts)
		},
	}

	addRenderFlags(cmd, &opts, &formatsStr)

	return cmd
}

func addRenderFlags(cmd *cobra.Command, opts *renderOpts, formatsStr *string) {
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&opts.layout, "layout", "l", "", "named layout (see 'dagview layouts')")
	cmd.Flags().StringVarP(formatsStr, "format", "f", "", "output format(s): png (default), jpg, jpeg, layout, graph, dot (comma-separated)")
	cmd.Flags().StringVar(&opts.theme, "theme", "", "stylesheet theme: light, dark")
	cmd.Flags().StringVar(&opts.selectIDs, "select", "", "node ids to style (comma-separated, default all)")
	cmd.Flags().StringVar(&opts.color, "color", "", "background color for styled nodes")
	cmd.Flags().StringVar(&opts.borderColor, "border-color", "", "border color for styled nodes")
	cmd.Flags().Float64Var(&opts.borderWidth, "border-width", opts.borderWidth, "border width, used with --border-color")
	cmd.Flags().Float64Var(&opts.opacity, "opacity", opts.opacity, "opacity between 0 and 1 for styled nodes")
	cmd.Flags().StringVar(&opts.shape, "shape", "", "shape for styled nodes: ellipse, rectangle, diamond, triangle, hexagon, circle, square")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "skip the render cache")
}

func (c *CLI) runRender(ctx context.Context, input string, opts *renderOpts) error {
	spinner := newSpinner(ctx, fmt.Sprintf("Rendering %s...", filepath.Base(input)))
	spinner.Start()

	result, paths, err := c.renderOnce(ctx, input, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()

	printRendered(input, result, paths)
	return nil
}

func printRendered(input string, result *pipeline.Result, paths []string) {
	if result.Stats.Cached {
		printSuccess("Rendered %s %s", input, StyleDim.Render("(cached)"))
	} else {
		printSuccess("Rendered %s", input)
	}
	for _, p := range paths {
		printFile(p)
	}
	printStats(result.Stats.NodeCount, result.Stats.EdgeCount, result.Layout.Key)
}

// renderOnce runs the pipeline and writes every artifact. Nothing is written
// when any stage fails.
func (c *CLI) renderOnce(ctx context.Context, input string, opts *renderOpts) (*pipeline.Result, []string, error) {
	content, err := os.ReadFile(input)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", input, err)
	}

	popts := pipeline.Options{
		Layout:  opts.layout,
		Formats: opts.formats,
		Theme:   opts.theme,
		Style:   opts.style(),
		Facade:  c.Config.FacadeOptions(),
		Logger:  c.Logger,
	}
	prog := newProgress(c.Logger)
	result, err := c.newRunner(opts.cache).Execute(ctx, filepath.Base(input), content, popts)
	if err != nil {
		return nil, nil, err
	}

	paths, err := writeArtifacts(result, opts.formats, opts.output, input)
	if err != nil {
		return nil, nil, err
	}
	prog.done(fmt.Sprintf("Wrote %d file(s)", len(paths)))
	return result, paths, nil
}

// writeArtifacts writes one file per format. A single format goes to output
// verbatim when output is set; otherwise files are named <base>.<ext>.
func writeArtifacts(result *pipeline.Result, formats []string, output, input string) ([]string, error) {
	base := basePath(output, input)
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		path := base + "." + pipeline.Extension(format)
		if len(formats) == 1 && output != "" && filepath.Ext(output) != "" {
			path = output
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create output dir: %w", err)
			}
		}
		if err := os.WriteFile(path, result.Artifacts[format], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
