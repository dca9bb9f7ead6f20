package facade

import (
	"maps"
	"slices"

	"github.com/matzehuels/dagview/pkg/engine"
)

// Layout keys.
const (
	LayoutHierarchical   = "hierarchical"
	LayoutHierarchicalLR = "hierarchical-lr"
	LayoutCircular       = "circular"
	LayoutForce          = "force"
	LayoutSpring         = "spring"
	LayoutRadial         = "radial"
	LayoutGrid           = "grid"

	DefaultLayout = LayoutHierarchical
)

// DefaultLayouts returns the built-in named layouts.
func DefaultLayouts() map[string]engine.LayoutConfig {
	return map[string]engine.LayoutConfig{
		LayoutHierarchical: {
			Name: LayoutHierarchical, Algorithm: "dot", RankDir: "TB",
			Params: map[string]float64{"nodesep": 0.5, "ranksep": 0.75, "padding": 30},
		},
		LayoutHierarchicalLR: {
			Name: LayoutHierarchicalLR, Algorithm: "dot", RankDir: "LR",
			Params: map[string]float64{"nodesep": 0.5, "ranksep": 0.75, "padding": 30},
		},
		LayoutCircular: {
			Name: LayoutCircular, Algorithm: "circo",
			Params: map[string]float64{"mindist": 1, "padding": 30},
		},
		LayoutForce: {
			Name: LayoutForce, Algorithm: "fdp",
			Params: map[string]float64{"K": 1.2, "sep": 0.3, "padding": 30},
		},
		LayoutSpring: {
			Name: LayoutSpring, Algorithm: "neato",
			Params: map[string]float64{"sep": 0.3, "padding": 30},
		},
		LayoutRadial: {
			Name: LayoutRadial, Algorithm: "twopi",
			Params: map[string]float64{"ranksep": 1.2, "padding": 30},
		},
		LayoutGrid: {
			Name: LayoutGrid, Algorithm: "osage",
			Params: map[string]float64{"sep": 0.3, "padding": 30},
		},
	}
}

// MergeLayouts overlays extra on base. Entries in extra replace entries with
// the same key; their Name is forced to the key.
func MergeLayouts(base, extra map[string]engine.LayoutConfig) map[string]engine.LayoutConfig {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]engine.LayoutConfig, len(extra))
	}
	for k, cfg := range extra {
		cfg.Name = k
		out[k] = cfg
	}
	return out
}

// LayoutKeys returns the keys of layouts, sorted.
func LayoutKeys(layouts map[string]engine.LayoutConfig) []string {
	return slices.Sorted(maps.Keys(layouts))
}
