// Package overlay tracks node selection and drives corner-handle resizing.
//
// The overlay is a two-state machine. In the idle state it keeps one handle
// per corner of every selected node, derived from the node's screen-space
// bounding box. A pointer-down on a handle enters the dragging state: engine
// pan and zoom are suspended and every pointer-move resizes the node. A
// pointer-up applies the final size, restores user input and returns to idle.
//
// Handles are derived data. Call [Overlay.Refresh] whenever node geometry or
// the viewport changes outside the overlay's own operations.
//
// An Overlay is not safe for concurrent use; its owner serializes calls.
package overlay

import (
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagview/pkg/engine"
)

// Corner identifies a handle position.
type Corner string

// Handle corners.
const (
	TopLeft     Corner = "tl"
	TopRight    Corner = "tr"
	BottomLeft  Corner = "bl"
	BottomRight Corner = "br"
)

// Corners lists all corners in handle order.
var Corners = []Corner{TopLeft, TopRight, BottomLeft, BottomRight}

// signs returns the width and height multipliers for pointer deltas.
func (c Corner) signs() (float64, float64) {
	switch c {
	case TopLeft:
		return -1, -1
	case TopRight:
		return 1, -1
	case BottomLeft:
		return -1, 1
	default:
		return 1, 1
	}
}

// point returns the corner of r.
func (c Corner) point(r engine.Rect) (float64, float64) {
	switch c {
	case TopLeft:
		return r.X1, r.Y1
	case TopRight:
		return r.X2, r.Y1
	case BottomLeft:
		return r.X1, r.Y2
	default:
		return r.X2, r.Y2
	}
}

// Handle is a draggable corner control in screen coordinates.
type Handle struct {
	ID     string  `json:"id"`
	NodeID string  `json:"nodeId"`
	Corner Corner  `json:"position"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// HandleID returns the id of a node's corner handle.
func HandleID(nodeID string, c Corner) string { return nodeID + "-" + string(c) }

// DragState is the single in-progress resize.
type DragState struct {
	HandleID       string  `json:"handleId"`
	NodeID         string  `json:"nodeId"`
	Corner         Corner  `json:"position"`
	StartX         float64 `json:"startX"`
	StartY         float64 `json:"startY"`
	OriginalWidth  float64 `json:"originalWidth"`
	OriginalHeight float64 `json:"originalHeight"`
	Shape          string  `json:"shape"`
}

// Overlay owns the selection, the handle list and the drag state.
type Overlay struct {
	eng      engine.Engine
	logger   *log.Logger
	limits   Limits
	selected []string
	handles  []Handle
	drag     *DragState
}

// New creates an idle overlay over eng. A nil logger discards output.
func New(eng engine.Engine, logger *log.Logger) *Overlay {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Overlay{eng: eng, logger: logger, limits: DefaultLimits()}
}

// SetLimits replaces the resize limits.
func (o *Overlay) SetLimits(l Limits) { o.limits = l }

// =============================================================================
// Selection
// =============================================================================

// Selected returns the selected node ids in selection order.
func (o *Overlay) Selected() []string { return slices.Clone(o.selected) }

// HasSelection reports whether any node is selected.
func (o *Overlay) HasSelection() bool { return len(o.selected) > 0 }

// IsSelected reports whether id is selected.
func (o *Overlay) IsSelected(id string) bool { return slices.Contains(o.selected, id) }

// SetSelection replaces the selection. Unknown and repeated ids are dropped.
func (o *Overlay) SetSelection(ids []string) {
	next := make([]string, 0, len(ids))
	for _, id := range ids {
		if !o.eng.HasNode(id) || slices.Contains(next, id) {
			continue
		}
		next = append(next, id)
	}
	o.selected = next
	o.selectionChanged()
}

// Select adds id to the selection.
func (o *Overlay) Select(id string) {
	if o.IsSelected(id) || !o.eng.HasNode(id) {
		return
	}
	o.selected = append(o.selected, id)
	o.selectionChanged()
}

// Unselect removes id from the selection.
func (o *Overlay) Unselect(id string) {
	i := slices.Index(o.selected, id)
	if i < 0 {
		return
	}
	o.selected = slices.Delete(o.selected, i, i+1)
	o.selectionChanged()
}

// Toggle flips the selection state of id, as a tap does.
func (o *Overlay) Toggle(id string) {
	if o.IsSelected(id) {
		o.Unselect(id)
		return
	}
	o.Select(id)
}

// ClearSelection deselects everything.
func (o *Overlay) ClearSelection() {
	if len(o.selected) == 0 {
		return
	}
	o.selected = nil
	o.selectionChanged()
}

func (o *Overlay) selectionChanged() {
	o.eng.SetSelection(o.selected)
	o.Refresh()
	o.logger.Debug("selection changed", "selected", len(o.selected))
}

// =============================================================================
// Handles
// =============================================================================

// Handles returns the current handles.
func (o *Overlay) Handles() []Handle { return slices.Clone(o.handles) }

// Refresh regenerates handles from the selected nodes' screen boxes.
func (o *Overlay) Refresh() {
	handles := make([]Handle, 0, len(o.selected)*len(Corners))
	for _, id := range o.selected {
		box, ok := o.eng.BoundingBox(id)
		if !ok {
			continue
		}
		for _, c := range Corners {
			x, y := c.point(box)
			handles = append(handles, Handle{ID: HandleID(id, c), NodeID: id, Corner: c, X: x, Y: y})
		}
	}
	o.handles = handles
}

func (o *Overlay) handle(id string) (Handle, bool) {
	for _, h := range o.handles {
		if h.ID == id {
			return h, true
		}
	}
	return Handle{}, false
}

// =============================================================================
// Drag State Machine
// =============================================================================

// Dragging reports whether a resize is in progress.
func (o *Overlay) Dragging() bool { return o.drag != nil }

// Drag returns a copy of the active drag state.
func (o *Overlay) Drag() (DragState, bool) {
	if o.drag == nil {
		return DragState{}, false
	}
	return *o.drag, true
}

// PointerDown starts a resize from the handle. It returns false when a drag
// is already active or the handle does not belong to a selected node.
func (o *Overlay) PointerDown(handleID string, x, y float64) bool {
	if o.drag != nil {
		return false
	}
	h, ok := o.handle(handleID)
	if !ok || !o.IsSelected(h.NodeID) {
		return false
	}
	st, ok := o.eng.NodeStyle(h.NodeID)
	if !ok {
		return false
	}

	o.drag = &DragState{
		HandleID:       h.ID,
		NodeID:         h.NodeID,
		Corner:         h.Corner,
		StartX:         x,
		StartY:         y,
		OriginalWidth:  st.Width,
		OriginalHeight: st.Height,
		Shape:          st.EffectiveShape(),
	}
	o.eng.SetUserInput(false)
	o.logger.Debug("resize started", "node", h.NodeID, "corner", h.Corner, "shape", o.drag.Shape)
	return true
}

// PointerMove resizes the dragged node for a pointer at (x, y).
func (o *Overlay) PointerMove(x, y float64) (Size, bool) {
	if o.drag == nil {
		return Size{}, false
	}
	return o.resize(x, y), true
}

// PointerUp applies the final size and ends the drag.
func (o *Overlay) PointerUp(x, y float64) (Size, bool) {
	if o.drag == nil {
		return Size{}, false
	}
	size := o.resize(x, y)
	o.logger.Debug("resize finished", "node", o.drag.NodeID, "width", size.Width, "height", size.Height)
	o.drag = nil
	o.eng.SetUserInput(true)
	o.Refresh()
	return size, true
}

// Cancel drops an active drag without applying a final size.
func (o *Overlay) Cancel() {
	if o.drag == nil {
		return
	}
	o.drag = nil
	o.eng.SetUserInput(true)
	o.Refresh()
}

// Reset clears selection, handles and any drag. Used when the document is
// replaced.
func (o *Overlay) Reset() {
	if o.drag != nil {
		o.drag = nil
		o.eng.SetUserInput(true)
	}
	o.selected = nil
	o.handles = nil
}

func (o *Overlay) resize(x, y float64) Size {
	size := ComputeSize(*o.drag, x, y, o.eng.Viewport().Zoom, o.limits)
	if st, ok := o.eng.NodeStyle(o.drag.NodeID); ok {
		st.Width, st.Height = size.Width, size.Height
		if err := o.eng.SetNodeStyle(o.drag.NodeID, st); err != nil {
			o.logger.Warn("resize failed", "node", o.drag.NodeID, "err", err)
		}
	}
	o.Refresh()
	return size
}
