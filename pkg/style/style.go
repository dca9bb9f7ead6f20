// Package style defines node styling, the shape vocabulary and the themes
// used to build the engine stylesheet.
package style

import (
	"fmt"
	"slices"
	"strings"
)

// NodeStyle holds every per-node style field the editor can change.
type NodeStyle struct {
	BackgroundColor string  `json:"backgroundColor"`
	BorderColor     string  `json:"borderColor"`
	BorderWidth     float64 `json:"borderWidth"`
	Opacity         float64 `json:"opacity"`
	Shape           string  `json:"shape"` // Engine primitive
	Width           float64 `json:"width"`
	Height          float64 `json:"height"`
	AppShape        string  `json:"appShape,omitempty"` // Tag set by the shape command
}

// EffectiveShape returns the app shape tag if present, else the engine shape.
func (s NodeStyle) EffectiveShape() string {
	if s.AppShape != "" {
		return s.AppShape
	}
	return s.Shape
}

// EdgeStyle holds edge styling.
type EdgeStyle struct {
	LineColor string  `json:"lineColor"`
	Width     float64 `json:"width"`
	Arrow     string  `json:"arrow"`
}

// Stylesheet is the declarative rule set handed to the engine, keyed by
// element class and selection state.
type Stylesheet struct {
	Node         NodeStyle `json:"node"`
	NodeSelected NodeStyle `json:"nodeSelected"` // Only border fields apply
	Edge         EdgeStyle `json:"edge"`
	EdgeSelected EdgeStyle `json:"edgeSelected"`
	LabelColor   string    `json:"labelColor"`
	FontSize     float64   `json:"fontSize"`
}

// Theme pairs a canvas background with a stylesheet.
type Theme struct {
	Name       string     `json:"name"`
	Background string     `json:"background"`
	Sheet      Stylesheet `json:"stylesheet"`
}

// Theme names.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

var themes = map[string]Theme{
	ThemeLight: {
		Name:       ThemeLight,
		Background: "#ffffff",
		Sheet: Stylesheet{
			Node: NodeStyle{
				BackgroundColor: "#6fb1fc",
				BorderColor:     "#2b6cb0",
				BorderWidth:     2,
				Opacity:         1,
				Shape:           ShapeEllipse,
				Width:           60,
				Height:          60,
			},
			NodeSelected: NodeStyle{BorderColor: "#f6ad55", BorderWidth: 4},
			Edge:         EdgeStyle{LineColor: "#9aa5b1", Width: 2, Arrow: "triangle"},
			EdgeSelected: EdgeStyle{LineColor: "#f6ad55", Width: 3, Arrow: "triangle"},
			LabelColor:   "#1a202c",
			FontSize:     12,
		},
	},
	ThemeDark: {
		Name:       ThemeDark,
		Background: "#1e1e1e",
		Sheet: Stylesheet{
			Node: NodeStyle{
				BackgroundColor: "#3b82f6",
				BorderColor:     "#93c5fd",
				BorderWidth:     2,
				Opacity:         1,
				Shape:           ShapeEllipse,
				Width:           60,
				Height:          60,
			},
			NodeSelected: NodeStyle{BorderColor: "#fbbf24", BorderWidth: 4},
			Edge:         EdgeStyle{LineColor: "#6b7280", Width: 2, Arrow: "triangle"},
			EdgeSelected: EdgeStyle{LineColor: "#fbbf24", Width: 3, Arrow: "triangle"},
			LabelColor:   "#f3f4f6",
			FontSize:     12,
		},
	},
}

// Themes returns the known theme names, sorted.
func Themes() []string {
	names := make([]string, 0, len(themes))
	for k := range themes {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// LookupTheme returns the theme with the given name (case-insensitive).
func LookupTheme(name string) (Theme, error) {
	t, ok := themes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Theme{}, fmt.Errorf("unknown theme %q (available: %s)", name, strings.Join(Themes(), ", "))
	}
	return t, nil
}

// DefaultTheme returns the light theme.
func DefaultTheme() Theme { return themes[ThemeLight] }
