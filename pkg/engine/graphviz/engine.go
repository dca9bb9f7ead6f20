// Package graphviz implements [engine.Engine] on top of an in-process
// Graphviz (github.com/goccy/go-graphviz).
//
// The engine keeps node styles and model positions itself. Layout runs build a
// DOT document from that state, let Graphviz position it, and read the node
// positions back from the rendered xdot output. Model coordinates use a
// top-left origin with y pointing down; screen coordinates are
// model*zoom + pan.
//
// Exports pin every node to its model position with the nop layout so the
// image matches what the editor shows.
package graphviz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	gv "github.com/goccy/go-graphviz"

	"github.com/matzehuels/dagview/pkg/engine"
	"github.com/matzehuels/dagview/pkg/graph"
	"github.com/matzehuels/dagview/pkg/style"
)

// Zoom limits.
const (
	MinZoom = 0.1
	MaxZoom = 4.0
)

// Defaults for [Options].
const (
	DefaultCanvasWidth  = 1200
	DefaultCanvasHeight = 800
)

// Options configures an Engine.
type Options struct {
	Logger *log.Logger

	// Canvas size in screen units, used by Fit and Center.
	CanvasWidth  float64
	CanvasHeight float64
}

type node struct {
	id    string
	label string
	style style.NodeStyle
	x, y  float64 // Model-space center
}

type edge struct {
	id, source, target, label string
}

// Engine is a Graphviz-backed rendering engine. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	logger   *log.Logger
	canvasW  float64
	canvasH  float64
	sheet    style.Stylesheet
	order    []string
	nodes    map[string]*node
	edges    []edge
	selected map[string]bool
	vp       engine.Viewport
	input    bool
	gen      int
}

var _ engine.Engine = (*Engine)(nil)

// New creates an empty engine.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.CanvasWidth <= 0 {
		opts.CanvasWidth = DefaultCanvasWidth
	}
	if opts.CanvasHeight <= 0 {
		opts.CanvasHeight = DefaultCanvasHeight
	}
	return &Engine{
		logger:   opts.Logger,
		canvasW:  opts.CanvasWidth,
		canvasH:  opts.CanvasHeight,
		sheet:    style.DefaultTheme().Sheet,
		nodes:    make(map[string]*node),
		selected: make(map[string]bool),
		vp:       engine.Viewport{Zoom: 1},
		input:    true,
	}
}

// =============================================================================
// Elements & Styles
// =============================================================================

// Load replaces all elements. Nodes start on a grid until the first layout
// completes.
func (e *Engine) Load(elements []graph.Element, sheet style.Stylesheet) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	e.sheet = sheet
	e.order = nil
	e.nodes = make(map[string]*node)
	e.edges = nil
	e.selected = make(map[string]bool)

	for _, el := range elements {
		if el.Group != graph.GroupNodes {
			continue
		}
		id := el.ID()
		if id == "" {
			return fmt.Errorf("node element without id")
		}
		if _, dup := e.nodes[id]; dup {
			continue
		}
		label, _ := el.Data["label"].(string)
		if label == "" {
			label = id
		}
		e.order = append(e.order, id)
		e.nodes[id] = &node{id: id, label: label, style: sheet.Node}
	}

	cols := max(1, int(math.Ceil(math.Sqrt(float64(len(e.order))))))
	for i, id := range e.order {
		n := e.nodes[id]
		n.x = float64(i%cols) * 2 * n.style.Width
		n.y = float64(i/cols) * 2 * n.style.Height
	}

	for _, el := range elements {
		if el.Group != graph.GroupEdges {
			continue
		}
		src, _ := el.Data["source"].(string)
		tgt, _ := el.Data["target"].(string)
		label, _ := el.Data["label"].(string)
		e.edges = append(e.edges, edge{id: el.ID(), source: src, target: tgt, label: label})
	}

	e.logger.Debug("elements loaded", "nodes", len(e.order), "edges", len(e.edges))
	return nil
}

func (e *Engine) HasNode(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.nodes[id]
	return ok
}

func (e *Engine) NodeIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.order)
}

func (e *Engine) NodeStyle(id string) (style.NodeStyle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[id]
	if !ok {
		return style.NodeStyle{}, false
	}
	return n.style, true
}

func (e *Engine) SetNodeStyle(id string, s style.NodeStyle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[id]
	if !ok {
		return fmt.Errorf("unknown node %q", id)
	}
	n.style = s
	return nil
}

func (e *Engine) SetSelection(ids []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = make(map[string]bool, len(ids))
	for _, id := range ids {
		e.selected[id] = true
	}
}

// Position returns a node's model-space center.
func (e *Engine) Position(id string) (x, y float64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[id]
	if !ok {
		return 0, 0, false
	}
	return n.x, n.y, true
}

// DOT returns the current state as Graphviz DOT with pinned positions.
func (e *Engine) DOT() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.toDOT(dotOptions{Pinned: true})
}

// =============================================================================
// Viewport
// =============================================================================

func (e *Engine) BoundingBox(id string) (engine.Rect, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[id]
	if !ok {
		return engine.Rect{}, false
	}
	x1, y1 := e.vp.ToScreen(n.x-n.style.Width/2, n.y-n.style.Height/2)
	x2, y2 := e.vp.ToScreen(n.x+n.style.Width/2, n.y+n.style.Height/2)
	return engine.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}, true
}

func (e *Engine) Viewport() engine.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vp
}

func (e *Engine) Pan(dx, dy float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.input {
		return false
	}
	e.vp.PanX += dx
	e.vp.PanY += dy
	return true
}

// Zoom sets the zoom level keeping the screen point (x, y) fixed. The level
// is clamped to [MinZoom, MaxZoom].
func (e *Engine) Zoom(level, x, y float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.input || level <= 0 {
		return false
	}
	level = clampZoom(level)
	mx := (x - e.vp.PanX) / e.vp.Zoom
	my := (y - e.vp.PanY) / e.vp.Zoom
	e.vp = engine.Viewport{Zoom: level, PanX: x - mx*level, PanY: y - my*level}
	return true
}

func (e *Engine) Fit(padding float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.order) == 0 {
		e.vp = engine.Viewport{Zoom: 1}
		return
	}
	b := e.modelBounds()
	availW := math.Max(1, e.canvasW-2*padding)
	availH := math.Max(1, e.canvasH-2*padding)
	zoom := float64(MaxZoom)
	if b.Width() > 0 {
		zoom = math.Min(zoom, availW/b.Width())
	}
	if b.Height() > 0 {
		zoom = math.Min(zoom, availH/b.Height())
	}
	e.vp.Zoom = clampZoom(zoom)
	e.center(b)
}

func (e *Engine) Center() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.order) == 0 {
		return
	}
	e.center(e.modelBounds())
}

func (e *Engine) center(b engine.Rect) {
	cx, cy := (b.X1+b.X2)/2, (b.Y1+b.Y2)/2
	e.vp.PanX = e.canvasW/2 - cx*e.vp.Zoom
	e.vp.PanY = e.canvasH/2 - cy*e.vp.Zoom
}

// SetCanvas changes the canvas size used by Fit and Center.
func (e *Engine) SetCanvas(width, height float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if width > 0 && height > 0 {
		e.canvasW, e.canvasH = width, height
	}
}

func (e *Engine) SetUserInput(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.input = enabled
}

func (e *Engine) UserInput() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.input
}

// modelBounds returns the box around all nodes in model space.
func (e *Engine) modelBounds() engine.Rect {
	if len(e.order) == 0 {
		return engine.Rect{}
	}
	b := engine.Rect{X1: math.Inf(1), Y1: math.Inf(1), X2: math.Inf(-1), Y2: math.Inf(-1)}
	for _, n := range e.nodes {
		b.X1 = math.Min(b.X1, n.x-n.style.Width/2)
		b.Y1 = math.Min(b.Y1, n.y-n.style.Height/2)
		b.X2 = math.Max(b.X2, n.x+n.style.Width/2)
		b.Y2 = math.Max(b.Y2, n.y+n.style.Height/2)
	}
	return b
}

func clampZoom(z float64) float64 {
	return math.Min(MaxZoom, math.Max(MinZoom, z))
}

// =============================================================================
// Layout
// =============================================================================

// RunLayout lays the graph out in a background goroutine and calls done with
// the new positions. Results for a document that was replaced in the
// meantime are discarded and reported as an error.
func (e *Engine) RunLayout(cfg engine.LayoutConfig, done func(engine.LayoutResult)) {
	e.mu.Lock()
	dot := e.toDOT(dotOptions{Layout: cfg, Aliases: true})
	ids := make(map[string]string, len(e.order))
	for i, id := range e.order {
		ids[nodeAlias(i)] = id
	}
	gen := e.gen
	e.mu.Unlock()

	go func() {
		start := time.Now()
		l, err := runGraphviz(context.Background(), cfg, dot, ids)
		if err != nil {
			e.logger.Warn("graphviz layout failed", "layout", cfg.Name, "algorithm", cfg.Algorithm, "err", err)
			done(engine.LayoutResult{Err: err})
			return
		}
		if err := e.apply(gen, l); err != nil {
			done(engine.LayoutResult{Err: err})
			return
		}
		e.logger.Debug("graphviz layout applied", "layout", cfg.Name, "nodes", len(l.Nodes), "took", time.Since(start))
		done(engine.LayoutResult{Layout: l})
	}()
}

func (e *Engine) apply(gen int, l graph.Layout) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return fmt.Errorf("document replaced during layout")
	}
	for i, p := range l.Nodes {
		n, ok := e.nodes[p.ID]
		if !ok {
			continue
		}
		n.x, n.y = p.X, p.Y
		l.Nodes[i].Width, l.Nodes[i].Height = n.style.Width, n.style.Height
	}
	return nil
}

// runGraphviz renders dot as xdot with the configured algorithm and reads
// back node positions, flipping y so the origin is top-left. ids maps DOT
// node names back to document ids.
func runGraphviz(ctx context.Context, cfg engine.LayoutConfig, dot []byte, ids map[string]string) (graph.Layout, error) {
	g, err := gv.New(ctx)
	if err != nil {
		return graph.Layout{}, fmt.Errorf("init graphviz: %w", err)
	}
	defer g.Close()
	g.SetLayout(gv.Layout(cfg.Algorithm))

	in, err := gv.ParseBytes(dot)
	if err != nil {
		return graph.Layout{}, fmt.Errorf("parse DOT: %w", err)
	}
	defer in.Close()

	var buf bytes.Buffer
	if err := g.Render(ctx, in, gv.XDOT, &buf); err != nil {
		return graph.Layout{}, fmt.Errorf("layout %s: %w", cfg.Algorithm, err)
	}

	out, err := gv.ParseBytes(buf.Bytes())
	if err != nil {
		return graph.Layout{}, fmt.Errorf("parse layout output: %w", err)
	}
	defer out.Close()

	bb, ok := parseBox(out.GetStr("bb"))
	if !ok {
		return graph.Layout{}, fmt.Errorf("layout output has no bounding box")
	}

	l := graph.Layout{Key: cfg.Name, Engine: cfg.Algorithm, Width: bb.Width(), Height: bb.Height()}
	for n, err := out.FirstNode(); n != nil; n, err = out.NextNode(n) {
		if err != nil {
			return graph.Layout{}, fmt.Errorf("read layout output: %w", err)
		}
		name, err := n.Name()
		if err != nil {
			return graph.Layout{}, fmt.Errorf("read node name: %w", err)
		}
		id, ok := ids[name]
		if !ok {
			continue
		}
		x, y, ok := parsePoint(n.GetStr("pos"))
		if !ok {
			continue
		}
		l.Nodes = append(l.Nodes, graph.Position{ID: id, X: x - bb.X1, Y: bb.Y2 - y})
	}
	return l, nil
}

// =============================================================================
// Export
// =============================================================================

// ExportImage renders the current positions and styles as png or jpg on the
// given background color.
func (e *Engine) ExportImage(ctx context.Context, format, background string) ([]byte, error) {
	var f gv.Format
	switch format {
	case "png":
		f = gv.PNG
	case "jpg", "jpeg":
		f = gv.JPG
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}

	e.mu.Lock()
	dot := e.toDOT(dotOptions{Pinned: true, Background: background, Aliases: true})
	e.mu.Unlock()

	g, err := gv.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer g.Close()
	g.SetLayout(gv.NOP)

	in, err := gv.ParseBytes(dot)
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer in.Close()

	var buf bytes.Buffer
	if err := g.Render(ctx, in, f, &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}
