// Package engine defines the contract between dagview and the rendering
// engine that owns layout, hit-testing and rasterization.
//
// The engine keeps node styles and positions. Callers address nodes by id and
// never see engine internals. Layout runs are asynchronous: [Engine.RunLayout]
// returns immediately and invokes the completion callback exactly once.
package engine

import (
	"context"

	"github.com/matzehuels/dagview/pkg/graph"
	"github.com/matzehuels/dagview/pkg/style"
)

// Engine is a rendering and layout backend.
type Engine interface {
	// Load replaces all elements and applies the stylesheet.
	Load(elements []graph.Element, sheet style.Stylesheet) error

	// HasNode reports whether a node with the id is loaded.
	HasNode(id string) bool
	// NodeIDs returns the loaded node ids in load order.
	NodeIDs() []string
	NodeStyle(id string) (style.NodeStyle, bool)
	SetNodeStyle(id string, s style.NodeStyle) error

	// BoundingBox returns the node's box in screen coordinates.
	BoundingBox(id string) (Rect, bool)

	Viewport() Viewport
	// Pan and Zoom apply user viewport gestures. Both return false and do
	// nothing while user input is disabled.
	Pan(dx, dy float64) bool
	Zoom(level, x, y float64) bool
	// Fit scales and pans so all nodes are visible with the given padding.
	Fit(padding float64)
	Center()
	SetUserInput(enabled bool)
	UserInput() bool

	// SetSelection highlights the given nodes.
	SetSelection(ids []string)

	// RunLayout computes positions asynchronously and calls done exactly once.
	// done is never invoked before RunLayout has returned.
	RunLayout(cfg LayoutConfig, done func(LayoutResult))

	// ExportImage rasterizes the current view. Format is "png" or "jpg".
	ExportImage(ctx context.Context, format, background string) ([]byte, error)
}

// Rect is an axis-aligned box.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// Width returns the box width.
func (r Rect) Width() float64 { return r.X2 - r.X1 }

// Height returns the box height.
func (r Rect) Height() float64 { return r.Y2 - r.Y1 }

// Viewport maps model coordinates to screen coordinates:
// screen = model*Zoom + Pan.
type Viewport struct {
	Zoom float64 `json:"zoom"`
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
}

// ToScreen converts a model point.
func (v Viewport) ToScreen(x, y float64) (float64, float64) {
	return x*v.Zoom + v.PanX, y*v.Zoom + v.PanY
}

// LayoutConfig names a layout algorithm and its numeric tuning parameters.
type LayoutConfig struct {
	Name      string             `json:"name" toml:"name"`           // Layout key
	Algorithm string             `json:"algorithm" toml:"algorithm"` // Engine algorithm, e.g. "dot"
	RankDir   string             `json:"rankDir,omitempty" toml:"rank_dir"`
	Params    map[string]float64 `json:"params,omitempty" toml:"params"`
}

// Param returns a tuning parameter or def when unset.
func (c LayoutConfig) Param(name string, def float64) float64 {
	if v, ok := c.Params[name]; ok {
		return v
	}
	return def
}

// LayoutResult is delivered to the completion callback.
type LayoutResult struct {
	Layout graph.Layout
	Err    error
}
