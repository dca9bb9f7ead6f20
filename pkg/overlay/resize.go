package overlay

import (
	"math"

	"github.com/matzehuels/dagview/pkg/style"
)

// Size limits shared by all shapes.
const (
	MinSize = 30
	MaxSize = 200

	// Sensitivity divides zoom-corrected pointer deltas.
	Sensitivity = 2
)

// Limits bounds resize results.
type Limits struct {
	Min         float64
	Max         float64
	Sensitivity float64
}

// DefaultLimits returns the standard 30..200 range with sensitivity 2.
func DefaultLimits() Limits {
	return Limits{Min: MinSize, Max: MaxSize, Sensitivity: Sensitivity}
}

func (l Limits) clamp(v float64) float64 {
	return math.Min(l.Max, math.Max(l.Min, v))
}

// Size is a node width and height.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ComputeSize returns the node size for a pointer at (x, y) during drag d.
//
// The pointer delta is divided by zoom and then by the sensitivity. The
// corner decides the sign: dragging outward grows the node. Regular shapes
// let the axis with the larger delta drive the other through the original
// aspect ratio.
func ComputeSize(d DragState, x, y, zoom float64, lim Limits) Size {
	if zoom <= 0 {
		zoom = 1
	}
	if lim.Sensitivity <= 0 {
		lim.Sensitivity = 1
	}
	dx := (x - d.StartX) / zoom / lim.Sensitivity
	dy := (y - d.StartY) / zoom / lim.Sensitivity

	sx, sy := d.Corner.signs()
	dw, dh := sx*dx, sy*dy

	if !style.IsRegular(d.Shape) {
		return Size{
			Width:  lim.clamp(d.OriginalWidth + dw),
			Height: lim.clamp(d.OriginalHeight + dh),
		}
	}

	ratio := 1.0
	if d.OriginalWidth > 0 && d.OriginalHeight > 0 {
		ratio = d.OriginalHeight / d.OriginalWidth
	}

	var w, h float64
	if math.Abs(dw) >= math.Abs(dh) {
		w = lim.clamp(d.OriginalWidth + dw)
		h = w * ratio
		if c := lim.clamp(h); c != h {
			h = c
			w = lim.clamp(h / ratio)
		}
	} else {
		h = lim.clamp(d.OriginalHeight + dh)
		w = h / ratio
		if c := lim.clamp(w); c != w {
			w = c
			h = lim.clamp(w * ratio)
		}
	}
	return Size{Width: w, Height: h}
}
