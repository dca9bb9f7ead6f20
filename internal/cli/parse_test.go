package cli

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/matzehuels/dagview/pkg/graph"
)

func TestRunParseWritesCanonicalJSON(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		nodes   []string
	}{
		{"edge list", "deps.txt", "app lib\nlib core\n", []string{"app", "lib", "core"}},
		{"csv", "deps.csv", "source,target\napp,lib\n", []string{"app", "lib"}},
		{"dot", "deps.dot", "digraph { a -> b; b -> c }", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCLI(t)
			input := writeInput(t, tt.file, tt.content)
			out := filepath.Join(t.TempDir(), "out.json")

			if err := c.runParse(context.Background(), input, out); err != nil {
				t.Fatalf("runParse: %v", err)
			}
			doc, err := graph.ReadDocumentFile(out)
			if err != nil {
				t.Fatalf("ReadDocumentFile: %v", err)
			}
			ids := make([]string, len(doc.Nodes))
			for i, n := range doc.Nodes {
				ids[i] = n.ID
			}
			if !slices.Equal(ids, tt.nodes) {
				t.Errorf("nodes = %v, want %v", ids, tt.nodes)
			}
			if doc.Metadata.FileName != tt.file {
				t.Errorf("FileName = %q, want %q", doc.Metadata.FileName, tt.file)
			}
		})
	}
}

func TestReadDocumentErrors(t *testing.T) {
	c := newTestCLI(t)
	if _, err := c.readDocument(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := c.readDocument(writeInput(t, "deps.yaml", "a: b")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
