package graphviz

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	gv "github.com/goccy/go-graphviz"

	"github.com/matzehuels/dagview/pkg/engine"
	"github.com/matzehuels/dagview/pkg/style"
)

// pointsPerInch converts between style sizes (points) and Graphviz node
// sizes (inches).
const pointsPerInch = 72

// dotOptions selects what toDOT emits.
type dotOptions struct {
	Layout     engine.LayoutConfig
	Pinned     bool   // Emit pos="x,y!" from model positions
	Background string // bgcolor; empty means transparent
	Aliases    bool   // Name nodes n<index> in e.order instead of by id
}

// nodeAlias is the DOT name of the i-th node when dotOptions.Aliases is set.
func nodeAlias(i int) string { return "n" + strconv.Itoa(i) }

// dotQuote quotes s as a DOT id. Only the double quote is escaped; Graphviz
// keeps other backslashes in ids verbatim.
func dotQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// dotLabel quotes s as a label. Backslash starts an escape sequence in
// Graphviz labels, so it is doubled.
func dotLabel(s string) string {
	return `"` + labelEscaper.Replace(s) + `"`
}

// toDOT converts the engine state to Graphviz DOT. The caller holds e.mu.
func (e *Engine) toDOT(opts dotOptions) []byte {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")

	bg := opts.Background
	if bg == "" {
		bg = "transparent"
	}
	fmt.Fprintf(&buf, "  bgcolor=%q;\n", bg)
	buf.WriteString("  outputorder=edgesfirst;\n")
	if opts.Layout.RankDir != "" {
		fmt.Fprintf(&buf, "  rankdir=%s;\n", opts.Layout.RankDir)
	}
	for _, k := range slices.Sorted(maps.Keys(opts.Layout.Params)) {
		if k == "padding" {
			continue
		}
		fmt.Fprintf(&buf, "  %s=%s;\n", k, fmtFloat(opts.Layout.Params[k]))
	}
	if opts.Pinned {
		buf.WriteString("  splines=true;\n")
	}
	fmt.Fprintf(&buf, "  node [style=filled, fixedsize=true, fontsize=%s, fontcolor=%q];\n",
		fmtFloat(e.sheet.FontSize), e.sheet.LabelColor)
	fmt.Fprintf(&buf, "  edge [color=%q, penwidth=%s, arrowhead=%s];\n",
		e.sheet.Edge.LineColor, fmtFloat(e.sheet.Edge.Width), arrowHead(e.sheet.Edge.Arrow))
	buf.WriteString("\n")

	names := make(map[string]string, len(e.order))
	for i, id := range e.order {
		if opts.Aliases {
			names[id] = nodeAlias(i)
		} else {
			names[id] = dotQuote(id)
		}
	}

	maxY := e.modelBounds().Y2
	for _, id := range e.order {
		n := e.nodes[id]
		attrs := e.nodeAttrs(n)
		if opts.Pinned {
			attrs = append(attrs, fmt.Sprintf("pos=\"%s,%s!\"", fmtFloat(n.x), fmtFloat(maxY-n.y)))
		}
		fmt.Fprintf(&buf, "  %s [%s];\n", names[id], strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, ed := range e.edges {
		if _, ok := e.nodes[ed.source]; !ok {
			continue
		}
		if _, ok := e.nodes[ed.target]; !ok {
			continue
		}
		var attrs []string
		if ed.label != "" {
			attrs = append(attrs, "label="+dotLabel(ed.label))
		}
		if e.selected[ed.source] || e.selected[ed.target] {
			attrs = append(attrs,
				fmt.Sprintf("color=%q", e.sheet.EdgeSelected.LineColor),
				"penwidth="+fmtFloat(e.sheet.EdgeSelected.Width))
		}
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %s -> %s;\n", names[ed.source], names[ed.target])
			continue
		}
		fmt.Fprintf(&buf, "  %s -> %s [%s];\n", names[ed.source], names[ed.target], strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.Bytes()
}

func (e *Engine) nodeAttrs(n *node) []string {
	st := n.style
	border, penwidth := st.BorderColor, st.BorderWidth
	if e.selected[n.id] {
		border, penwidth = e.sheet.NodeSelected.BorderColor, e.sheet.NodeSelected.BorderWidth
	}
	return []string{
		"label=" + dotLabel(n.label),
		"shape=" + string(dotShape(st.Shape)),
		"width=" + fmtFloat(st.Width/pointsPerInch),
		"height=" + fmtFloat(st.Height/pointsPerInch),
		fmt.Sprintf("fillcolor=%q", withOpacity(st.BackgroundColor, st.Opacity)),
		fmt.Sprintf("color=%q", withOpacity(border, st.Opacity)),
		"penwidth=" + fmtFloat(penwidth),
	}
}

// dotShape maps an engine shape primitive to a Graphviz shape.
func dotShape(shape string) gv.Shape {
	switch shape {
	case style.ShapeRectangle:
		return gv.BoxShape
	case style.ShapeDiamond:
		return gv.DiamondShape
	case style.ShapeTriangle:
		return gv.TriangleShape
	case style.ShapeHexagon:
		return gv.HexagonShape
	default:
		return gv.EllipseShape
	}
}

func arrowHead(arrow string) string {
	switch arrow {
	case "", "none":
		return "none"
	case "vee":
		return "vee"
	default:
		return "normal"
	}
}

// withOpacity folds an opacity into a "#rrggbb" or "#rrggbbaa" color.
func withOpacity(color string, opacity float64) string {
	if opacity >= 1 || !strings.HasPrefix(color, "#") {
		return color
	}
	alpha := 1.0
	switch len(color) {
	case 7:
	case 9:
		a, err := strconv.ParseUint(color[7:], 16, 8)
		if err != nil {
			return color
		}
		alpha = float64(a) / 255
		color = color[:7]
	default:
		return color
	}
	return fmt.Sprintf("%s%02x", color, uint8(alpha*max(opacity, 0)*255+0.5))
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parsePoint parses a Graphviz "x,y" or "x,y!" point.
func parsePoint(s string) (float64, float64, bool) {
	x, y, ok := strings.Cut(strings.TrimSuffix(strings.TrimSpace(s), "!"), ",")
	if !ok {
		return 0, 0, false
	}
	fx, err1 := strconv.ParseFloat(x, 64)
	fy, err2 := strconv.ParseFloat(y, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return fx, fy, true
}

// parseBox parses a Graphviz "llx,lly,urx,ury" bounding box.
func parseBox(s string) (engine.Rect, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return engine.Rect{}, false
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return engine.Rect{}, false
		}
		v[i] = f
	}
	return engine.Rect{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, true
}
