// Package enginetest provides an in-memory engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/matzehuels/dagview/pkg/engine"
	"github.com/matzehuels/dagview/pkg/graph"
	"github.com/matzehuels/dagview/pkg/style"
)

// Fake is a deterministic engine. Nodes are placed on a row 100 units apart
// and layouts complete only when the test calls [Fake.CompleteLayout].
type Fake struct {
	mu        sync.Mutex
	order     []string
	styles    map[string]style.NodeStyle
	centers   map[string][2]float64
	vp        engine.Viewport
	input     bool
	selection []string
	pending   []pendingLayout

	// Recorded calls.
	Layouts []engine.LayoutConfig
	Fits    int
	Centers int
	Exports []string

	// ExportErr is returned by ExportImage when set.
	ExportErr error

	// AutoLayout completes every layout on its own goroutine with
	// LayoutErr instead of waiting for CompleteLayout.
	AutoLayout bool
	LayoutErr  error
}

type pendingLayout struct {
	cfg  engine.LayoutConfig
	done func(engine.LayoutResult)
}

var _ engine.Engine = (*Fake)(nil)

// New returns an empty fake engine with zoom 1 and user input enabled.
func New() *Fake {
	return &Fake{
		styles:  make(map[string]style.NodeStyle),
		centers: make(map[string][2]float64),
		vp:      engine.Viewport{Zoom: 1},
		input:   true,
	}
}

func (f *Fake) Load(elements []graph.Element, sheet style.Stylesheet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = nil
	f.styles = make(map[string]style.NodeStyle)
	f.centers = make(map[string][2]float64)
	f.selection = nil
	for _, el := range elements {
		if el.Group != graph.GroupNodes {
			continue
		}
		id := el.ID()
		f.order = append(f.order, id)
		f.styles[id] = sheet.Node
		f.centers[id] = [2]float64{float64(len(f.order)-1) * 100, 0}
	}
	return nil
}

func (f *Fake) HasNode(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.styles[id]
	return ok
}

func (f *Fake) NodeIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.order)
}

func (f *Fake) NodeStyle(id string) (style.NodeStyle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.styles[id]
	return s, ok
}

func (f *Fake) SetNodeStyle(id string, s style.NodeStyle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.styles[id]; !ok {
		return fmt.Errorf("unknown node %q", id)
	}
	f.styles[id] = s
	return nil
}

func (f *Fake) BoundingBox(id string) (engine.Rect, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.styles[id]
	if !ok {
		return engine.Rect{}, false
	}
	c := f.centers[id]
	x1, y1 := f.vp.ToScreen(c[0]-s.Width/2, c[1]-s.Height/2)
	x2, y2 := f.vp.ToScreen(c[0]+s.Width/2, c[1]+s.Height/2)
	return engine.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}, true
}

func (f *Fake) Viewport() engine.Viewport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vp
}

// SetViewport forces a viewport regardless of user input.
func (f *Fake) SetViewport(vp engine.Viewport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vp = vp
}

func (f *Fake) Pan(dx, dy float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.input {
		return false
	}
	f.vp.PanX += dx
	f.vp.PanY += dy
	return true
}

func (f *Fake) Zoom(level, x, y float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.input || level <= 0 {
		return false
	}
	f.vp.Zoom = level
	return true
}

func (f *Fake) Fit(float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fits++
}

func (f *Fake) Center() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Centers++
}

func (f *Fake) SetUserInput(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.input = enabled
}

func (f *Fake) UserInput() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input
}

func (f *Fake) SetSelection(ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selection = slices.Clone(ids)
}

// Selection returns the last highlighted ids.
func (f *Fake) Selection() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.selection)
}

func (f *Fake) RunLayout(cfg engine.LayoutConfig, done func(engine.LayoutResult)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Layouts = append(f.Layouts, cfg)
	f.pending = append(f.pending, pendingLayout{cfg: cfg, done: done})
	if f.AutoLayout {
		go f.CompleteLayout(f.LayoutErr)
	}
}

// PendingLayouts returns the number of layouts awaiting completion.
func (f *Fake) PendingLayouts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// CompleteLayout finishes the oldest pending layout with err and reports
// whether one was pending.
func (f *Fake) CompleteLayout(err error) bool {
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		return false
	}
	p := f.pending[0]
	f.pending = f.pending[1:]
	res := engine.LayoutResult{Err: err, Layout: graph.Layout{Key: p.cfg.Name, Engine: p.cfg.Algorithm}}
	if err == nil {
		for _, id := range f.order {
			c, s := f.centers[id], f.styles[id]
			res.Layout.Nodes = append(res.Layout.Nodes, graph.Position{ID: id, X: c[0], Y: c[1], Width: s.Width, Height: s.Height})
		}
	}
	f.mu.Unlock()
	p.done(res)
	return true
}

func (f *Fake) ExportImage(_ context.Context, format, background string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ExportErr != nil {
		return nil, f.ExportErr
	}
	f.Exports = append(f.Exports, format)
	return []byte(format + ":" + background), nil
}
