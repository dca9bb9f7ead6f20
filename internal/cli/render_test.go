package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/dagview/pkg/graph"
)

const chainTxt = "A B\nB C\n"

func TestRenderOnceWritesArtifacts(t *testing.T) {
	c := newTestCLI(t)
	input := writeInput(t, "deps.txt", chainTxt)

	opts := &renderOpts{formats: []string{"png", "layout", "graph"}, layout: "circular"}
	result, paths, err := c.renderOnce(context.Background(), input, opts)
	if err != nil {
		t.Fatalf("renderOnce: %v", err)
	}

	base := strings.TrimSuffix(input, ".txt")
	want := []string{base + ".png", base + ".layout.json", base + ".json"}
	if !slices.Equal(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
	if result.Stats.NodeCount != 3 || result.Stats.EdgeCount != 2 {
		t.Errorf("stats = %+v, want 3 nodes and 2 edges", result.Stats)
	}

	png, err := os.ReadFile(base + ".png")
	if err != nil {
		t.Fatal(err)
	}
	if string(png) != "png:#ffffff" {
		t.Errorf("png = %q, want fake export on light background", png)
	}

	data, err := os.ReadFile(base + ".layout.json")
	if err != nil {
		t.Fatal(err)
	}
	var layout graph.Layout
	if err := json.Unmarshal(data, &layout); err != nil {
		t.Fatalf("layout json: %v", err)
	}
	if layout.Key != "circular" {
		t.Errorf("layout key = %q, want circular", layout.Key)
	}

	doc, err := graph.ReadDocumentFile(base + ".json")
	if err != nil {
		t.Fatalf("graph json: %v", err)
	}
	if len(doc.Nodes) != 3 {
		t.Errorf("graph nodes = %d, want 3", len(doc.Nodes))
	}
}

func TestRenderOnceSingleOutputFile(t *testing.T) {
	c := newTestCLI(t)
	input := writeInput(t, "deps.txt", chainTxt)
	out := filepath.Join(t.TempDir(), "nested", "chart.jpg")

	_, paths, err := c.renderOnce(context.Background(), input, &renderOpts{formats: []string{"jpg"}, output: out})
	if err != nil {
		t.Fatalf("renderOnce: %v", err)
	}
	if len(paths) != 1 || paths[0] != out {
		t.Errorf("paths = %v, want [%s]", paths, out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestRenderOnceAppliesTheme(t *testing.T) {
	c := newTestCLI(t)
	input := writeInput(t, "deps.txt", chainTxt)

	_, _, err := c.renderOnce(context.Background(), input, &renderOpts{formats: []string{"png"}, theme: "dark"})
	if err != nil {
		t.Fatalf("renderOnce: %v", err)
	}
	png, _ := os.ReadFile(strings.TrimSuffix(input, ".txt") + ".png")
	if string(png) != "png:#1e1e1e" {
		t.Errorf("png = %q, want dark background", png)
	}
}

func TestRenderOnceErrorsWriteNothing(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		opts    renderOpts
	}{
		{"unsupported extension", "deps.xml", "<graph/>", renderOpts{}},
		{"unknown layout", "deps.txt", chainTxt, renderOpts{layout: "spiral"}},
		{"bad color", "deps.txt", chainTxt, renderOpts{color: "not-a-color"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCLI(t)
			input := writeInput(t, tt.file, tt.content)
			tt.opts.formats = []string{"png"}

			if _, _, err := c.renderOnce(context.Background(), input, &tt.opts); err == nil {
				t.Fatal("expected error")
			}
			entries, _ := os.ReadDir(filepath.Dir(input))
			if len(entries) != 1 {
				t.Errorf("dir has %d entries, want only the input", len(entries))
			}
		})
	}
}

func TestRenderOptsStyle(t *testing.T) {
	o := renderOpts{selectIDs: "a, b", color: "red", opacity: 0.4}
	if s := o.style(); s.Opacity != nil {
		t.Errorf("Opacity = %v, want nil when flag unset", *s.Opacity)
	}

	o.setOpacity = true
	s := o.style()
	if s.Opacity == nil || *s.Opacity != 0.4 {
		t.Errorf("Opacity = %v, want 0.4", s.Opacity)
	}
	if !slices.Equal(s.Select, []string{"a", "b"}) {
		t.Errorf("Select = %v, want [a b]", s.Select)
	}
}

func TestRenderCommandRejectsBadFormat(t *testing.T) {
	c := newTestCLI(t)
	input := writeInput(t, "deps.txt", chainTxt)
	cfg := writeInput(t, "config.toml", "")

	root := c.RootCommand()
	root.SetArgs([]string{"--config", cfg, "render", input, "-f", "svg"})
	root.SetErr(&syncBuffer{})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("err = %v, want invalid format", err)
	}
}
