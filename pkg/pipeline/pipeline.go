// Package pipeline runs the editor headlessly: upload, layout, optional style
// commands, export.
//
// The CLI render and watch commands use it to turn a graph file into images
// and layout data without an interactive session. Every stage goes through
// the same [facade.Controller] the editor uses, so output matches what a user
// would see after the same commands.
//
// # Usage
//
//	runner := pipeline.NewRunner(nil, logger)
//	result, err := runner.Execute(ctx, "deps.json", content, pipeline.Options{
//	    Layout:  "circular",
//	    Formats: []string{"png", "layout"},
//	})
//	png := result.Artifacts["png"]
package pipeline

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagview/pkg/engine"
	"github.com/matzehuels/dagview/pkg/facade"
	"github.com/matzehuels/dagview/pkg/graph"
	"github.com/matzehuels/dagview/pkg/style"
)

// Output formats.
const (
	FormatPNG    = "png"
	FormatJPG    = "jpg"
	FormatJPEG   = "jpeg"
	FormatLayout = "layout" // graph.Layout as JSON
	FormatGraph  = "graph"  // graph.Document as JSON
	FormatDOT    = "dot"    // Graphviz source with pinned positions
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatPNG:    true,
	FormatJPG:    true,
	FormatJPEG:   true,
	FormatLayout: true,
	FormatGraph:  true,
	FormatDOT:    true,
}

// DefaultFormats are produced when Options.Formats is empty.
var DefaultFormats = []string{FormatPNG}

// Extension returns the file extension used for a format.
func Extension(format string) string {
	switch format {
	case FormatLayout:
		return "layout.json"
	case FormatGraph:
		return "json"
	default:
		return format
	}
}

// StyleOptions are style commands applied to Select before export. Empty
// fields are skipped.
type StyleOptions struct {
	Select      []string
	Color       string
	BorderColor string
	BorderWidth float64
	Opacity     *float64
	Shape       string
}

func (s StyleOptions) empty() bool {
	return s.Color == "" && s.BorderColor == "" && s.Opacity == nil && s.Shape == ""
}

// Options configures a pipeline run.
type Options struct {
	Layout  string
	Formats []string
	Theme   string
	Style   StyleOptions

	// Controller defaults (layouts, padding, limits). Theme and DefaultLayout
	// are overridden by the fields above when set.
	Facade facade.Options

	Logger *log.Logger
}

// ValidateAndSetDefaults fills in defaults and checks names.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	if o.Facade.Layouts == nil {
		o.Facade.Layouts = facade.DefaultLayouts()
	}
	if o.Layout == "" {
		o.Layout = o.Facade.DefaultLayout
	}
	if o.Layout == "" {
		o.Layout = facade.DefaultLayout
	}
	if _, ok := o.Facade.Layouts[o.Layout]; !ok {
		return fmt.Errorf("unknown layout %q (available: %s)",
			o.Layout, strings.Join(facade.LayoutKeys(o.Facade.Layouts), ", "))
	}
	o.Facade.DefaultLayout = o.Layout

	if o.Theme != "" {
		t, err := style.LookupTheme(o.Theme)
		if err != nil {
			return err
		}
		o.Facade.Theme = t
	}

	if len(o.Formats) == 0 {
		o.Formats = slices.Clone(DefaultFormats)
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	return nil
}

// ValidateFormat checks a single output format.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format %q: must be one of png, jpg, jpeg, layout, graph, dot", format)
	}
	return nil
}

// ValidateFormats checks every format.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// Result holds a pipeline run's outputs.
type Result struct {
	Document  *graph.Document
	Layout    graph.Layout
	Artifacts map[string][]byte
	Stats     Stats
}

// Stats are per-stage timings and graph sizes.
type Stats struct {
	ParseTime  time.Duration
	LayoutTime time.Duration
	RenderTime time.Duration
	NodeCount  int
	EdgeCount  int
	Cached     bool // Served from the runner's cache; timings are zero
}

// EngineFactory creates a fresh engine for each run.
type EngineFactory func() engine.Engine
