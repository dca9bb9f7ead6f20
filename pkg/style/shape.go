package style

import "strings"

// App-level shape names accepted by the shape command.
const (
	AppRectangle = "rectangle"
	AppSquare    = "square"
	AppCircle    = "circle"
	AppEllipse   = "ellipse"
	AppDiamond   = "diamond"
	AppTriangle  = "triangle"
	AppHexagon   = "hexagon"
)

// Engine shape primitives. Circles and squares have no primitive of their
// own; they render as ellipses and rectangles and carry an app shape tag.
const (
	ShapeEllipse   = "ellipse"
	ShapeRectangle = "rectangle"
	ShapeDiamond   = "diamond"
	ShapeTriangle  = "triangle"
	ShapeHexagon   = "hexagon"
)

// ShapeSpec describes how an app shape renders.
type ShapeSpec struct {
	Name    string  // App-level name
	Engine  string  // Engine primitive
	Width   float64 // Default width
	Height  float64 // Default height
	Regular bool    // Resizes keep the aspect ratio
}

var shapes = map[string]ShapeSpec{
	AppRectangle: {Name: AppRectangle, Engine: ShapeRectangle, Width: 80, Height: 50},
	AppSquare:    {Name: AppSquare, Engine: ShapeRectangle, Width: 60, Height: 60, Regular: true},
	AppCircle:    {Name: AppCircle, Engine: ShapeEllipse, Width: 60, Height: 60, Regular: true},
	AppEllipse:   {Name: AppEllipse, Engine: ShapeEllipse, Width: 90, Height: 60},
	AppDiamond:   {Name: AppDiamond, Engine: ShapeDiamond, Width: 60, Height: 60, Regular: true},
	AppTriangle:  {Name: AppTriangle, Engine: ShapeTriangle, Width: 70, Height: 60},
	AppHexagon:   {Name: AppHexagon, Engine: ShapeHexagon, Width: 70, Height: 60},
}

// DefaultShape is used for unknown shape names.
const DefaultShape = AppEllipse

// Shapes returns the known app shape names in menu order.
func Shapes() []string {
	return []string{AppRectangle, AppSquare, AppCircle, AppEllipse, AppDiamond, AppTriangle, AppHexagon}
}

// LookupShape returns the spec for an app shape name (case-insensitive).
func LookupShape(name string) (ShapeSpec, bool) {
	s, ok := shapes[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// ResolveShape returns the spec for name, falling back to [DefaultShape].
// The boolean reports whether name was recognized.
func ResolveShape(name string) (ShapeSpec, bool) {
	if s, ok := LookupShape(name); ok {
		return s, true
	}
	return shapes[DefaultShape], false
}

// IsRegular reports whether resizes of the given effective shape keep the
// aspect ratio.
func IsRegular(shape string) bool {
	s, ok := LookupShape(shape)
	return ok && s.Regular
}
