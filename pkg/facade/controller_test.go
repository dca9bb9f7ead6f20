package facade

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagview/pkg/engine/enginetest"
	"github.com/matzehuels/dagview/pkg/errors"
	"github.com/matzehuels/dagview/pkg/overlay"
	"github.com/matzehuels/dagview/pkg/style"
)

const chain = "Graph Nodes:\nA; B; C\nGraph Edges:\n1. A --> B\n2. B --> C\n"

type alerts struct {
	mu   sync.Mutex
	msgs []string
}

func (a *alerts) Alert(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, msg)
}

func (a *alerts) list() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.msgs)
}

func newLoaded(t *testing.T) (*Controller, *enginetest.Fake, *alerts) {
	t.Helper()
	eng := enginetest.New()
	al := &alerts{}
	c := New(eng, Options{Notifier: al})
	if _, err := c.Upload(context.Background(), "chain.txt", []byte(chain)); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !eng.CompleteLayout(nil) {
		t.Fatal("upload should start a layout")
	}
	return c, eng, al
}

// =============================================================================
// Loading & Layout
// =============================================================================

func TestUploadAppliesDefaultLayout(t *testing.T) {
	c, eng, _ := newLoaded(t)

	if got := len(eng.Layouts); got != 1 || eng.Layouts[0].Name != LayoutHierarchical {
		t.Errorf("layouts = %v, want one %s run", eng.Layouts, LayoutHierarchical)
	}
	if eng.Fits != 1 {
		t.Errorf("Fits = %d, want 1 after layout", eng.Fits)
	}
	if c.LayoutRunning() {
		t.Error("layout should have finished")
	}
	l, ok := c.LastLayout()
	if !ok || len(l.Nodes) != 3 {
		t.Errorf("LastLayout() = %+v, %v", l, ok)
	}
}

func TestUploadRejectsBadFile(t *testing.T) {
	c := New(enginetest.New(), Options{})
	ctx := context.Background()

	if _, err := c.Upload(ctx, "graph.xml", []byte("<g/>")); !errors.Is(err, errors.ErrCodeUnsupportedFormat) {
		t.Errorf("xml upload error = %v, want UNSUPPORTED_FORMAT", err)
	}
	if _, err := c.Upload(ctx, "../etc/g.txt", []byte(chain)); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("path upload error = %v, want INVALID_PATH", err)
	}
	if c.Document() != nil {
		t.Error("rejected uploads should not replace the document")
	}
}

func TestRejectedUploadKeepsLoadedDocument(t *testing.T) {
	c, eng, _ := newLoaded(t)
	c.Select([]string{"B"})
	if err := c.ChangeSelectedNodesColor("#ff0000"); err != nil {
		t.Fatalf("ChangeSelectedNodesColor() error = %v", err)
	}
	doc := c.Document()
	styled, _ := c.NodeStyle("B")
	orig, _ := c.OriginalStyle("B")
	layouts := len(eng.Layouts)

	_, err := c.Upload(context.Background(), "graph.json", []byte(`{"vertices":[]}`))
	if !errors.Is(err, errors.ErrCodeUnrecognizedJSONSchema) {
		t.Fatalf("Upload() error = %v, want UNRECOGNIZED_JSON_SCHEMA", err)
	}

	if c.Document() != doc {
		t.Error("rejected upload replaced the document")
	}
	if got := c.Selected(); !slices.Equal(got, []string{"B"}) {
		t.Errorf("Selected() = %v, want [B]", got)
	}
	if st, _ := c.NodeStyle("B"); st != styled {
		t.Errorf("NodeStyle(B) = %+v, want %+v", st, styled)
	}
	if st, _ := c.OriginalStyle("B"); st != orig {
		t.Errorf("OriginalStyle(B) = %+v, want %+v", st, orig)
	}
	if len(eng.Layouts) != layouts {
		t.Errorf("rejected upload started a layout")
	}
}

func TestApplyLayoutIgnoredWhileRunning(t *testing.T) {
	c, eng, _ := newLoaded(t)

	c.ApplyLayout(LayoutCircular)
	c.ApplyLayout(LayoutForce)
	c.ApplyLayout(LayoutRadial)

	if got := eng.PendingLayouts(); got != 1 {
		t.Fatalf("pending layouts = %d, want 1", got)
	}
	if got := c.LayoutKey(); got != LayoutCircular {
		t.Errorf("LayoutKey() = %q, want %q", got, LayoutCircular)
	}

	eng.CompleteLayout(nil)
	c.ApplyLayout(LayoutForce)
	if got := eng.PendingLayouts(); got != 1 {
		t.Errorf("layout after completion should run, pending = %d", got)
	}
}

func TestApplyLayoutUnknownKey(t *testing.T) {
	c, eng, _ := newLoaded(t)
	c.ApplyLayout("spiral")
	if eng.PendingLayouts() != 0 || c.LayoutKey() != LayoutHierarchical {
		t.Error("unknown layout should be ignored")
	}
}

func TestLayoutFailureClearsFlag(t *testing.T) {
	c, eng, _ := newLoaded(t)
	var got []Event
	c.Subscribe(func(ev Event) { got = append(got, ev) })

	c.ApplyLayout(LayoutGrid)
	eng.CompleteLayout(fmt.Errorf("engine crashed"))

	if c.LayoutRunning() {
		t.Error("failed layout should clear the running flag")
	}
	last := got[len(got)-1]
	if last.Kind != EventLayout || last.Error == "" {
		t.Errorf("last event = %+v, want failed layout event", last)
	}
}

func TestLoadDuringLayoutRelaysOut(t *testing.T) {
	eng := enginetest.New()
	c := New(eng, Options{})
	ctx := context.Background()

	c.Upload(ctx, "a.txt", []byte("A B\n"))
	c.Upload(ctx, "b.txt", []byte("X Y\nY Z\n"))
	if got := eng.PendingLayouts(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}

	eng.CompleteLayout(nil)
	if got := eng.PendingLayouts(); got != 1 {
		t.Fatalf("stale completion should trigger a relayout, pending = %d", got)
	}
	eng.CompleteLayout(nil)
	l, _ := c.LastLayout()
	if len(l.Nodes) != 3 {
		t.Errorf("final layout nodes = %d, want 3", len(l.Nodes))
	}
}

func TestResetView(t *testing.T) {
	c, eng, _ := newLoaded(t)
	c.ResetView()
	if eng.Fits != 2 || eng.Centers != 1 {
		t.Errorf("Fits=%d Centers=%d, want 2 and 1", eng.Fits, eng.Centers)
	}
}

// =============================================================================
// Style Commands
// =============================================================================

func TestColorAppliesToSelection(t *testing.T) {
	c, _, _ := newLoaded(t)
	c.Select([]string{"A", "C"})

	if err := c.ChangeSelectedNodesColor("red"); err != nil {
		t.Fatalf("ChangeSelectedNodesColor() error = %v", err)
	}
	for id, want := range map[string]string{"A": "#ff0000", "B": "#6fb1fc", "C": "#ff0000"} {
		st, _ := c.NodeStyle(id)
		if st.BackgroundColor != want {
			t.Errorf("%s background = %q, want %q", id, st.BackgroundColor, want)
		}
	}
}

func TestInvalidColorMutatesNothing(t *testing.T) {
	c, _, al := newLoaded(t)
	c.Select([]string{"A"})
	before, _ := c.NodeStyle("A")

	tests := []struct {
		name string
		run  func() error
	}{
		{"color", func() error { return c.ChangeSelectedNodesColor("notacolor") }},
		{"border", func() error { return c.ChangeSelectedNodesBorder("#12", 3) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, errors.ErrCodeInvalidColor) {
				t.Errorf("error = %v, want INVALID_COLOR", err)
			}
			if after, _ := c.NodeStyle("A"); after != before {
				t.Errorf("style changed to %+v", after)
			}
		})
	}
	if got := len(al.list()); got != 2 {
		t.Errorf("alerts = %d, want 2", got)
	}
}

func TestBorderAndOpacity(t *testing.T) {
	c, _, al := newLoaded(t)
	c.Select([]string{"B"})

	if err := c.ChangeSelectedNodesBorder("rgb(0, 128, 0)", 5); err != nil {
		t.Fatal(err)
	}
	if err := c.ChangeSelectedNodesOpacity(0.25); err != nil {
		t.Fatal(err)
	}
	st, _ := c.NodeStyle("B")
	if st.BorderColor != "#008000" || st.BorderWidth != 5 || st.Opacity != 0.25 {
		t.Errorf("style = %+v", st)
	}

	if err := c.ChangeSelectedNodesOpacity(1.5); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("opacity 1.5 error = %v, want INVALID_INPUT", err)
	}
	if err := c.ChangeSelectedNodesBorder("black", -1); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("negative width error = %v, want INVALID_INPUT", err)
	}
	if st2, _ := c.NodeStyle("B"); st2 != st {
		t.Error("rejected commands should not change the style")
	}
	if got := len(al.list()); got != 2 {
		t.Errorf("alerts = %d, want 2", got)
	}
}

func TestEmptySelectionIsLoggedNotAlerted(t *testing.T) {
	var buf bytes.Buffer
	eng := enginetest.New()
	al := &alerts{}
	c := New(eng, Options{Notifier: al, Logger: log.New(&buf)})
	c.Upload(context.Background(), "g.txt", []byte(chain))

	if err := c.ChangeSelectedNodesColor("blue"); err != nil {
		t.Errorf("error = %v, want nil", err)
	}
	if err := c.ChangeSelectedNodesOpacity(0.5); err != nil {
		t.Errorf("error = %v, want nil", err)
	}
	if len(al.list()) != 0 {
		t.Errorf("alerts = %v, want none", al.list())
	}
	if !strings.Contains(buf.String(), string(errors.ErrCodeEmptySelection)) {
		t.Errorf("log should mention EMPTY_SELECTION, got %q", buf.String())
	}
}

func TestShapeRequiresSelection(t *testing.T) {
	c, _, al := newLoaded(t)

	if err := c.ChangeSelectedNodesShape("square"); err != nil {
		t.Fatal(err)
	}
	got := al.list()
	if len(got) != 1 || !strings.Contains(got[0], "select at least one node") {
		t.Errorf("alerts = %v, want selection prompt", got)
	}
}

func TestShapeResetsSize(t *testing.T) {
	c, _, _ := newLoaded(t)
	c.Select([]string{"A", "B"})

	tests := []struct {
		shape      string
		wantEngine string
		wantTag    string
		wantW      float64
		wantH      float64
	}{
		{"square", style.ShapeRectangle, style.AppSquare, 60, 60},
		{"rectangle", style.ShapeRectangle, style.AppRectangle, 80, 50},
		{"circle", style.ShapeEllipse, style.AppCircle, 60, 60},
		{"hexagon", style.ShapeHexagon, style.AppHexagon, 70, 60},
		{"blob", style.ShapeEllipse, style.AppEllipse, 90, 60},
	}
	for _, tt := range tests {
		t.Run(tt.shape, func(t *testing.T) {
			if err := c.ChangeSelectedNodesShape(tt.shape); err != nil {
				t.Fatal(err)
			}
			for _, id := range []string{"A", "B"} {
				st, _ := c.NodeStyle(id)
				if st.Shape != tt.wantEngine || st.AppShape != tt.wantTag || st.Width != tt.wantW || st.Height != tt.wantH {
					t.Errorf("%s = %s/%s %vx%v, want %s/%s %vx%v", id,
						st.Shape, st.AppShape, st.Width, st.Height,
						tt.wantEngine, tt.wantTag, tt.wantW, tt.wantH)
				}
			}
		})
	}
}

func TestResetAllNodesToOriginal(t *testing.T) {
	c, _, _ := newLoaded(t)
	c.Select([]string{"A", "B", "C"})
	c.ChangeSelectedNodesColor("#000")
	c.ChangeSelectedNodesBorder("white", 7)
	c.ChangeSelectedNodesOpacity(0.1)
	c.ChangeSelectedNodesShape("square")

	c.ResetAllNodesToOriginal()

	for _, id := range []string{"A", "B", "C"} {
		st, _ := c.NodeStyle(id)
		orig, _ := c.OriginalStyle(id)
		if st != orig {
			t.Errorf("%s = %+v, want %+v", id, st, orig)
		}
		if st.AppShape != "" {
			t.Errorf("%s kept app shape %q", id, st.AppShape)
		}
	}
}

// =============================================================================
// Export
// =============================================================================

func TestExportImage(t *testing.T) {
	c, eng, _ := newLoaded(t)
	ctx := context.Background()

	tests := []struct {
		format   string
		wantName string
		wantType string
		wantData string
	}{
		{"png", "graph-hierarchical.png", "image/png", "png:#ffffff"},
		{"jpg", "graph-hierarchical.jpg", "image/jpeg", "jpg:#ffffff"},
		{"jpeg", "graph-hierarchical.jpeg", "image/jpeg", "jpg:#ffffff"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exp, err := c.ExportImage(ctx, tt.format)
			if err != nil {
				t.Fatal(err)
			}
			if exp.FileName != tt.wantName || exp.ContentType != tt.wantType || string(exp.Data) != tt.wantData {
				t.Errorf("export = %s %s %q", exp.FileName, exp.ContentType, exp.Data)
			}
		})
	}

	if _, err := c.ExportImage(ctx, "svg"); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("svg error = %v, want INVALID_FORMAT", err)
	}
	if len(eng.Exports) != 3 {
		t.Errorf("engine exports = %v", eng.Exports)
	}
}

// =============================================================================
// No Engine
// =============================================================================

func TestNoEngineIsNoop(t *testing.T) {
	al := &alerts{}
	c := New(nil, Options{Notifier: al})
	ctx := context.Background()

	if _, err := c.Upload(ctx, "g.txt", []byte(chain)); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	c.ApplyLayout(LayoutCircular)
	c.ResetView()
	c.Select([]string{"A"})
	c.ResetAllNodesToOriginal()
	for _, err := range []error{
		c.ChangeSelectedNodesColor("zzz"),
		c.ChangeSelectedNodesBorder("red", -3),
		c.ChangeSelectedNodesOpacity(7),
		c.ChangeSelectedNodesShape("square"),
	} {
		if err != nil {
			t.Errorf("command without engine returned %v", err)
		}
	}
	if len(al.list()) != 0 {
		t.Errorf("alerts = %v, want none", al.list())
	}
	if _, err := c.ExportImage(ctx, "png"); !errors.Is(err, errors.ErrCodeEngineUnavailable) {
		t.Errorf("export error = %v, want ENGINE_UNAVAILABLE", err)
	}

	eng := enginetest.New()
	if err := c.AttachEngine(eng); err != nil {
		t.Fatal(err)
	}
	if !eng.HasNode("A") || eng.PendingLayouts() != 1 {
		t.Error("attaching an engine should render the loaded document")
	}
	if c.LayoutKey() != LayoutHierarchical {
		t.Errorf("LayoutKey() = %q, want default", c.LayoutKey())
	}
}

// =============================================================================
// Resize & Events
// =============================================================================

func TestResizeThroughController(t *testing.T) {
	c, _, _ := newLoaded(t)
	c.Select([]string{"A"})
	c.ChangeSelectedNodesShape("square")

	h := overlay.HandleID("A", overlay.BottomRight)
	if !c.PointerDown(h, 0, 0) {
		t.Fatal("PointerDown should start")
	}
	if c.Pan(5, 5) {
		t.Error("pan during resize should be ignored")
	}
	size, ok := c.PointerUp(40, 40)
	if !ok || size.Width != 80 || size.Height != 80 {
		t.Errorf("PointerUp() = %+v, %v, want 80x80", size, ok)
	}
	if !c.Pan(5, 5) {
		t.Error("pan should work after resize")
	}
}

func TestSubscribeEvents(t *testing.T) {
	c, _, _ := newLoaded(t)
	var kinds []EventKind
	unsubscribe := c.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		// Callbacks may call back into the controller.
		_ = c.Selected()
	})

	c.Select([]string{"A"})
	if !slices.Contains(kinds, EventHandles) || !slices.Contains(kinds, EventStyle) {
		t.Errorf("select events = %v, want handles and style", kinds)
	}

	unsubscribe()
	kinds = nil
	c.Select([]string{"B"})
	if len(kinds) != 0 {
		t.Errorf("events after unsubscribe = %v", kinds)
	}
}

func TestSetThemeReloads(t *testing.T) {
	c, eng, _ := newLoaded(t)
	dark, _ := style.LookupTheme(style.ThemeDark)

	if err := c.SetTheme(dark); err != nil {
		t.Fatal(err)
	}
	st, _ := c.NodeStyle("A")
	if st.BackgroundColor != dark.Sheet.Node.BackgroundColor {
		t.Errorf("background = %q, want dark theme", st.BackgroundColor)
	}
	if orig, _ := c.OriginalStyle("A"); orig != st {
		t.Error("snapshot should follow the theme")
	}
	if eng.PendingLayouts() != 1 {
		t.Error("theme change should relayout")
	}
}
