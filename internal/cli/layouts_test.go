package cli

import (
	"strings"
	"testing"

	"github.com/matzehuels/dagview/pkg/config"
	"github.com/matzehuels/dagview/pkg/engine"
)

func TestLayoutsTable(t *testing.T) {
	cfg := config.Default()
	cfg.Layouts = map[string]engine.LayoutConfig{
		"wide": {Algorithm: "dot", RankDir: "LR", Params: map[string]float64{"ranksep": 2}},
	}

	out := layoutsTable(cfg)
	for _, want := range []string{"hierarchical", "circular", "radial", "wide", "twopi", "ranksep=2", "default", "config"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestFormatParams(t *testing.T) {
	l := engine.LayoutConfig{Params: map[string]float64{"sep": 0.3, "K": 1.2}}
	if got, want := formatParams(l), "K=1.2 sep=0.3"; got != want {
		t.Errorf("formatParams = %q, want %q", got, want)
	}
}
