package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/dagview/pkg/cache"
)

func TestRenderOnceCachesResults(t *testing.T) {
	c := newTestCLI(t)
	input := writeInput(t, "deps.txt", chainTxt)
	rc := cache.NewMemoryCache(4, 0)

	opts := &renderOpts{formats: []string{"png"}, cache: rc}
	first, _, err := c.renderOnce(context.Background(), input, opts)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	second, _, err := c.renderOnce(context.Background(), input, opts)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if first.Stats.Cached || !second.Stats.Cached {
		t.Errorf("Cached = %v, %v, want false, true", first.Stats.Cached, second.Stats.Cached)
	}
}

func TestOpenCache(t *testing.T) {
	c := newTestCLI(t)
	c.Config.Cache.Dir = filepath.Join(t.TempDir(), "cache")

	if c.openCache(true) != nil {
		t.Error("--no-cache should disable caching")
	}
	if _, ok := c.openCache(false).(*cache.FileCache); !ok {
		t.Error("expected a file cache")
	}
	c.Config.Cache.Disabled = true
	if c.openCache(false) != nil {
		t.Error("config should disable caching")
	}
}

func TestCacheCommands(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	cfg := writeInput(t, "config.toml", "[cache]\ndir = \""+filepath.ToSlash(dir)+"\"\n")

	c := newTestCLI(t)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfg, "cache", "path"})
	if err := root.Execute(); err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != filepath.ToSlash(dir) {
		t.Errorf("cache path = %q, want %q", got, dir)
	}

	fc, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	_ = fc.Set(context.Background(), "k", []byte("v"), 0)

	root = c.RootCommand()
	root.SetArgs([]string{"--config", cfg, "cache", "clear"})
	if err := root.Execute(); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if _, hit, _ := fc.Get(context.Background(), "k"); hit {
		t.Error("entry survived cache clear")
	}
}
