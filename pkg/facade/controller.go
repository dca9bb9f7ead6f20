package facade

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagview/pkg/engine"
	"github.com/matzehuels/dagview/pkg/errors"
	"github.com/matzehuels/dagview/pkg/graph"
	"github.com/matzehuels/dagview/pkg/observability"
	"github.com/matzehuels/dagview/pkg/overlay"
	"github.com/matzehuels/dagview/pkg/parse"
	"github.com/matzehuels/dagview/pkg/style"
)

// DefaultFitPadding is the padding used by fit-to-view in screen units.
const DefaultFitPadding = 30

// Options configures a Controller.
type Options struct {
	Logger   *log.Logger
	Notifier Notifier
	Theme    style.Theme

	// Layouts are the named layouts available to ApplyLayout. Defaults to
	// DefaultLayouts().
	Layouts       map[string]engine.LayoutConfig
	DefaultLayout string
	FitPadding    float64
	Limits        overlay.Limits
}

// Controller owns one editor session.
type Controller struct {
	mu       sync.Mutex
	logger   *log.Logger
	notifier Notifier
	theme    style.Theme
	layouts  map[string]engine.LayoutConfig
	padding  float64
	limits   overlay.Limits

	eng      engine.Engine
	gen      int
	ov       *overlay.Overlay
	doc      *graph.Document
	original map[string]style.NodeStyle

	layoutKey  string
	running    bool
	relayout   bool
	lastLayout *graph.Layout

	subs    map[int]func(Event)
	nextSub int
	outbox  []Event
	alerts  []string
}

// New creates a controller over eng. eng may be nil; every command is then a
// logged no-op until [Controller.AttachEngine] is called.
func New(eng engine.Engine, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Theme.Name == "" {
		opts.Theme = style.DefaultTheme()
	}
	if opts.Layouts == nil {
		opts.Layouts = DefaultLayouts()
	}
	if opts.DefaultLayout == "" {
		opts.DefaultLayout = DefaultLayout
	}
	if opts.FitPadding <= 0 {
		opts.FitPadding = DefaultFitPadding
	}
	if opts.Limits == (overlay.Limits{}) {
		opts.Limits = overlay.DefaultLimits()
	}
	c := &Controller{
		logger:    opts.Logger,
		notifier:  opts.Notifier,
		theme:     opts.Theme,
		layouts:   opts.Layouts,
		padding:   opts.FitPadding,
		limits:    opts.Limits,
		layoutKey: opts.DefaultLayout,
		subs:      make(map[int]func(Event)),
	}
	if c.notifier == nil {
		c.notifier = NotifierFunc(func(msg string) { c.logger.Warn(msg) })
	}
	c.attach(eng)
	return c
}

// AttachEngine replaces the engine. A loaded document is rendered on the new
// engine and laid out with the current layout.
func (c *Controller) AttachEngine(eng engine.Engine) error {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attach(eng)
	c.running, c.relayout = false, false
	if eng == nil || c.doc == nil {
		return nil
	}
	return c.render()
}

func (c *Controller) attach(eng engine.Engine) {
	c.eng = eng
	c.gen++
	c.ov = nil
	if eng != nil {
		c.ov = overlay.New(eng, c.logger)
		c.ov.SetLimits(c.limits)
	}
}

// unavailable logs a command issued without an engine and reports whether
// the caller must stop.
func (c *Controller) unavailable(op string) bool {
	if c.eng != nil {
		return false
	}
	c.logger.Warn("no rendering engine", "op", op, "code", errors.ErrCodeEngineUnavailable)
	return true
}

// =============================================================================
// Documents
// =============================================================================

// Upload parses a file and loads the resulting document.
func (c *Controller) Upload(ctx context.Context, fileName string, content []byte) (*graph.Document, error) {
	if err := errors.ValidateFileName(fileName); err != nil {
		return nil, err
	}
	ext := parse.Extension(fileName)
	hooks := observability.Pipeline()
	hooks.OnParseStart(ctx, ext)
	start := time.Now()
	doc, err := parse.Parse(fileName, content, parse.Options{Logger: c.logger})
	nodes := 0
	if doc != nil {
		nodes = len(doc.Nodes)
	}
	hooks.OnParseComplete(ctx, ext, nodes, time.Since(start), err)
	if err != nil {
		c.logger.Warn("upload rejected", "file", fileName, "code", errors.GetCode(err), "err", err)
		return nil, err
	}
	if err := c.Load(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Load replaces the current document. The engine is cleared, the document's
// elements are added, the original styles are captured and the current
// layout is applied.
func (c *Controller) Load(doc *graph.Document) error {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc = doc
	c.lastLayout = nil
	c.emit(Event{Kind: EventDocument})
	if c.unavailable("load") {
		return nil
	}
	return c.render()
}

func (c *Controller) render() error {
	c.ov.Reset()
	if err := c.eng.Load(c.doc.Elements(), c.theme.Sheet); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "load document into engine")
	}
	c.original = make(map[string]style.NodeStyle, len(c.doc.Nodes))
	for _, id := range c.eng.NodeIDs() {
		if st, ok := c.eng.NodeStyle(id); ok {
			c.original[id] = st
		}
	}
	c.logger.Info("document loaded",
		"file", c.doc.Metadata.FileName,
		"nodes", c.doc.Metadata.NodeCount,
		"edges", c.doc.Metadata.EdgeCount)
	if dangling := c.doc.DanglingEdges(); len(dangling) > 0 {
		c.logger.Warn("edges reference missing nodes", "count", len(dangling))
	}
	c.emitHandles()
	if c.running {
		c.relayout = true
		return nil
	}
	c.applyLayout(c.layoutKey)
	return nil
}

// Document returns the current document, or nil.
func (c *Controller) Document() *graph.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

// =============================================================================
// Layout & View
// =============================================================================

// ApplyLayout runs the named layout. It is ignored while another layout is
// running; an unknown key is logged and ignored.
func (c *Controller) ApplyLayout(key string) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable("layout") {
		return
	}
	if _, ok := c.layouts[key]; !ok {
		c.logger.Warn("unknown layout", "layout", key, "code", errors.ErrCodeInvalidLayout)
		return
	}
	if c.running {
		c.logger.Debug("layout already running, ignoring", "layout", key)
		return
	}
	c.applyLayout(key)
}

func (c *Controller) applyLayout(key string) {
	cfg, ok := c.layouts[key]
	if !ok {
		return
	}
	c.layoutKey = key
	c.running = true
	c.emit(Event{Kind: EventLayout, Layout: key, Message: "running"})

	nodes := len(c.eng.NodeIDs())
	observability.Pipeline().OnLayoutStart(context.Background(), key, nodes)
	c.logger.Info("layout started", "layout", key, "algorithm", cfg.Algorithm, "nodes", nodes)
	start, gen := time.Now(), c.gen
	c.eng.RunLayout(cfg, func(res engine.LayoutResult) {
		observability.Pipeline().OnLayoutComplete(context.Background(), key, time.Since(start), res.Err)
		c.layoutDone(gen, key, res)
	})
}

func (c *Controller) layoutDone(gen int, key string, res engine.LayoutResult) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// Engine was replaced while this layout ran.
		return
	}
	c.running = false

	if c.relayout {
		c.relayout = false
		c.logger.Debug("document changed during layout, relaying out", "layout", c.layoutKey)
		c.applyLayout(c.layoutKey)
		return
	}
	if res.Err != nil {
		c.logger.Error("layout failed", "layout", key, "code", errors.ErrCodeLayoutFailed, "err", res.Err)
		c.emit(Event{Kind: EventLayout, Layout: key, Message: "failed", Error: errors.UserMessage(res.Err)})
		return
	}
	l := res.Layout
	c.lastLayout = &l
	c.eng.Fit(c.cfgPadding(key))
	c.ov.Refresh()
	c.logger.Info("layout finished", "layout", key, "nodes", len(l.Nodes))
	c.emit(Event{Kind: EventLayout, Layout: key, Message: "done"})
	c.emitHandles()
}

func (c *Controller) cfgPadding(key string) float64 {
	return c.layouts[key].Param("padding", c.padding)
}

// LayoutKey returns the key of the current (or last started) layout.
func (c *Controller) LayoutKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layoutKey
}

// LayoutRunning reports whether a layout is in progress.
func (c *Controller) LayoutRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// LastLayout returns the positions of the last completed layout.
func (c *Controller) LastLayout() (graph.Layout, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastLayout == nil {
		return graph.Layout{}, false
	}
	return *c.lastLayout, true
}

// Layouts returns the available layout keys, sorted.
func (c *Controller) Layouts() []string {
	return LayoutKeys(c.layouts)
}

// ResetView fits all nodes with padding and centers them.
func (c *Controller) ResetView() {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable("reset view") {
		return
	}
	c.eng.Fit(c.padding)
	c.eng.Center()
	c.ov.Refresh()
	c.emitHandles()
}

// Pan moves the viewport. It is ignored while a resize is in progress.
func (c *Controller) Pan(dx, dy float64) bool {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable("pan") || !c.eng.Pan(dx, dy) {
		return false
	}
	c.ov.Refresh()
	c.emitHandles()
	return true
}

// Zoom sets the zoom level around (x, y). It is ignored while a resize is in
// progress.
func (c *Controller) Zoom(level, x, y float64) bool {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable("zoom") || !c.eng.Zoom(level, x, y) {
		return false
	}
	c.ov.Refresh()
	c.emitHandles()
	return true
}

// Viewport returns the engine viewport.
func (c *Controller) Viewport() engine.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eng == nil {
		return engine.Viewport{Zoom: 1}
	}
	return c.eng.Viewport()
}

// =============================================================================
// Export
// =============================================================================

// ExportImage rasterizes the view on the theme background. Format is png,
// jpg or jpeg. The file name is graph-<layout>.<format>.
func (c *Controller) ExportImage(ctx context.Context, format string) (*Export, error) {
	c.mu.Lock()
	eng, key, bg := c.eng, c.layoutKey, c.theme.Background
	c.mu.Unlock()

	if eng == nil {
		c.logger.Warn("no rendering engine", "op", "export", "code", errors.ErrCodeEngineUnavailable)
		return nil, errors.New(errors.ErrCodeEngineUnavailable, "no rendering engine")
	}

	var engFormat, contentType string
	switch format {
	case "png":
		engFormat, contentType = "png", "image/png"
	case "jpg", "jpeg":
		engFormat, contentType = "jpg", "image/jpeg"
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported export format %q (use png, jpg or jpeg)", format)
	}

	hooks := observability.Pipeline()
	hooks.OnExportStart(ctx, engFormat)
	start := time.Now()
	data, err := eng.ExportImage(ctx, engFormat, bg)
	hooks.OnExportComplete(ctx, engFormat, len(data), time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "export %s", format)
	}
	c.logger.Info("image exported", "format", format, "bytes", len(data))
	return &Export{
		FileName:    fmt.Sprintf("graph-%s.%s", key, format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// =============================================================================
// Style Commands
// =============================================================================

// ChangeSelectedNodesColor sets the background color of every selected node.
func (c *Controller) ChangeSelectedNodesColor(color string) error {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable("color") {
		return nil
	}
	norm, err := c.color(color)
	if err != nil {
		return err
	}
	return c.restyle("color", func(st *style.NodeStyle) { st.BackgroundColor = norm })
}

// ChangeSelectedNodesBorder sets the border color and width of every
// selected node.
func (c *Controller) ChangeSelectedNodesBorder(color string, width float64) error {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable("border") {
		return nil
	}
	norm, err := c.color(color)
	if err != nil {
		return err
	}
	if err := errors.ValidateNonNegative("border width", width); err != nil {
		c.alert(errors.UserMessage(err))
		return err
	}
	return c.restyle("border", func(st *style.NodeStyle) {
		st.BorderColor = norm
		st.BorderWidth = width
	})
}

// ChangeSelectedNodesOpacity sets the opacity of every selected node.
func (c *Controller) ChangeSelectedNodesOpacity(value float64) error {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable("opacity") {
		return nil
	}
	if err := errors.ValidateUnitInterval("opacity", value); err != nil {
		c.alert(errors.UserMessage(err))
		return err
	}
	return c.restyle("opacity", func(st *style.NodeStyle) { st.Opacity = value })
}

// ChangeSelectedNodesShape sets the shape of every selected node and resets
// its size to the shape's default. Unknown shapes fall back to the default
// shape. With nothing selected the user is prompted to select a node.
func (c *Controller) ChangeSelectedNodesShape(shape string) error {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable("shape") {
		return nil
	}
	if !c.ov.HasSelection() {
		c.alert("Please select at least one node to change its shape.")
		return nil
	}
	spec, known := style.ResolveShape(shape)
	if !known {
		c.logger.Warn("unknown shape, using default", "shape", shape, "default", spec.Name)
	}
	return c.restyle("shape", func(st *style.NodeStyle) {
		st.Shape = spec.Engine
		st.AppShape = spec.Name
		st.Width = spec.Width
		st.Height = spec.Height
	})
}

// ResetAllNodesToOriginal restores every node's style from the snapshot
// taken at load time and drops app shape tags.
func (c *Controller) ResetAllNodesToOriginal() {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable("reset styles") {
		return
	}
	restored := 0
	for _, id := range c.eng.NodeIDs() {
		st, ok := c.original[id]
		if !ok {
			continue
		}
		st.AppShape = ""
		if err := c.eng.SetNodeStyle(id, st); err != nil {
			c.logger.Warn("restore style failed", "node", id, "err", err)
			continue
		}
		restored++
	}
	c.ov.Refresh()
	c.logger.Info("styles reset", "nodes", restored)
	c.emitHandles()
	c.emitSelectedStyle()
}

func (c *Controller) color(s string) (string, error) {
	norm, err := style.NormalizeColor(s)
	if err != nil {
		c.alert(errors.UserMessage(err))
		return "", err
	}
	return norm, nil
}

// restyle applies fn to every selected node. An empty selection is logged.
func (c *Controller) restyle(op string, fn func(*style.NodeStyle)) error {
	sel := c.ov.Selected()
	if len(sel) == 0 {
		c.logger.Info("no nodes selected", "op", op, "code", errors.ErrCodeEmptySelection)
		return nil
	}
	for _, id := range sel {
		st, ok := c.eng.NodeStyle(id)
		if !ok {
			continue
		}
		fn(&st)
		if err := c.eng.SetNodeStyle(id, st); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "%s: node %s", op, id)
		}
	}
	c.ov.Refresh()
	c.logger.Debug("nodes restyled", "op", op, "nodes", len(sel))
	c.emitHandles()
	c.emitSelectedStyle()
	return nil
}

// NodeStyle returns the engine style of a node.
func (c *Controller) NodeStyle(id string) (style.NodeStyle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eng == nil {
		return style.NodeStyle{}, false
	}
	return c.eng.NodeStyle(id)
}

// OriginalStyle returns the style a node had when the document was loaded.
func (c *Controller) OriginalStyle(id string) (style.NodeStyle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.original[id]
	return st, ok
}

// Theme returns the active theme.
func (c *Controller) Theme() style.Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

// SetTheme switches the theme. The loaded document is re-rendered with the
// new stylesheet, which also refreshes the original-style snapshot.
func (c *Controller) SetTheme(t style.Theme) error {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.theme = t
	c.logger.Info("theme changed", "theme", t.Name)
	if c.eng == nil || c.doc == nil {
		return nil
	}
	return c.render()
}

// =============================================================================
// Selection & Resize
// =============================================================================

// Select replaces the selection.
func (c *Controller) Select(ids []string) {
	c.withOverlay("select", func(ov *overlay.Overlay) {
		ov.SetSelection(ids)
		c.emitSelectedStyle()
	})
}

// Tap toggles a node's selection.
func (c *Controller) Tap(id string) {
	c.withOverlay("tap", func(ov *overlay.Overlay) {
		ov.Toggle(id)
		c.emitSelectedStyle()
	})
}

// ClearSelection deselects all nodes.
func (c *Controller) ClearSelection() {
	c.withOverlay("clear selection", func(ov *overlay.Overlay) { ov.ClearSelection() })
}

// Selected returns the selected node ids.
func (c *Controller) Selected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ov == nil {
		return nil
	}
	return c.ov.Selected()
}

// Handles returns the resize handles of the selected nodes.
func (c *Controller) Handles() []overlay.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ov == nil {
		return nil
	}
	return c.ov.Handles()
}

// PointerDown starts a resize on a handle.
func (c *Controller) PointerDown(handleID string, x, y float64) bool {
	var started bool
	c.withOverlay("pointerdown", func(ov *overlay.Overlay) {
		started = ov.PointerDown(handleID, x, y)
	})
	return started
}

// PointerMove continues an active resize.
func (c *Controller) PointerMove(x, y float64) (overlay.Size, bool) {
	var size overlay.Size
	var ok bool
	c.withOverlay("pointermove", func(ov *overlay.Overlay) {
		size, ok = ov.PointerMove(x, y)
	})
	return size, ok
}

// PointerUp finishes an active resize.
func (c *Controller) PointerUp(x, y float64) (overlay.Size, bool) {
	var size overlay.Size
	var ok bool
	c.withOverlay("pointerup", func(ov *overlay.Overlay) {
		size, ok = ov.PointerUp(x, y)
		if ok {
			c.emitSelectedStyle()
		}
	})
	return size, ok
}

func (c *Controller) withOverlay(op string, fn func(*overlay.Overlay)) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable(op) {
		return
	}
	before := c.ov.Handles()
	fn(c.ov)
	if after := c.ov.Handles(); !slices.Equal(before, after) {
		c.emitHandles()
	}
}

// =============================================================================
// Events
// =============================================================================

// Subscribe registers fn for controller events and returns a function that
// removes it. fn runs on the goroutine that issued the command, after the
// controller lock is released.
func (c *Controller) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Controller) emit(ev Event) {
	c.outbox = append(c.outbox, ev)
}

func (c *Controller) emitHandles() {
	c.emit(Event{Kind: EventHandles, Handles: c.ov.Handles()})
}

// emitSelectedStyle publishes the style of the first selected node so a
// side panel can mirror it.
func (c *Controller) emitSelectedStyle() {
	sel := c.ov.Selected()
	if len(sel) == 0 {
		return
	}
	st, ok := c.eng.NodeStyle(sel[0])
	if !ok {
		return
	}
	c.emit(Event{Kind: EventStyle, NodeID: sel[0], Style: &st})
}

func (c *Controller) alert(msg string) {
	c.alerts = append(c.alerts, msg)
	c.emit(Event{Kind: EventAlert, Message: msg})
}

// flush delivers queued alerts and events outside the lock.
func (c *Controller) flush() {
	c.mu.Lock()
	events, alerts := c.outbox, c.alerts
	c.outbox, c.alerts = nil, nil
	subs := make([]func(Event), 0, len(c.subs))
	for _, id := range slices.Sorted(maps.Keys(c.subs)) {
		subs = append(subs, c.subs[id])
	}
	notifier := c.notifier
	c.mu.Unlock()

	for _, msg := range alerts {
		notifier.Alert(msg)
	}
	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
