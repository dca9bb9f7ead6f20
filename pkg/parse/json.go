package parse

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagview/pkg/errors"
	"github.com/matzehuels/dagview/pkg/graph"
)

// Fields copied from the nested (Tetrad) JSON shape.
var (
	nestedNodeFields = []string{"centerX", "centerY", "nodeType", "nodeVariableType"}
	nestedEdgeFields = []string{"endpoint1", "endpoint2", "probability"}
)

func parseJSON(fileName string, content []byte, logger *log.Logger) (*graph.Document, error) {
	var root any
	if err := json.Unmarshal(content, &root); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidJSON, err, "invalid JSON in %s", fileName)
	}
	return fromJSON(fileName, root, logger)
}

func fromJSON(fileName string, root any, logger *log.Logger) (*graph.Document, error) {
	obj, ok := root.(map[string]any)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnrecognizedJSONSchema, "unrecognized JSON structure: top level is not an object")
	}

	if g, ok := obj["graph"].(map[string]any); ok {
		nodes, okN := g["nodes"].([]any)
		edges, okE := g["edgesSet"].([]any)
		if okN && okE {
			return nestedDocument(fileName, nodes, edges), nil
		}
	}

	nodes, okN := obj["nodes"].([]any)
	edges, okE := obj["edges"].([]any)
	if okN && okE {
		return standardDocument(fileName, nodes, edges, logger), nil
	}

	if g, ok := obj["graph"].(map[string]any); ok {
		logger.Debug("descending into .graph")
		return fromJSON(fileName, g, logger)
	}

	return nil, errors.New(errors.ErrCodeUnrecognizedJSONSchema,
		"unrecognized JSON structure: expected nodes/edges or graph.nodes/graph.edgesSet")
}

// =============================================================================
// Nested Shape
// =============================================================================

func nestedDocument(fileName string, rawNodes, rawEdges []any) *graph.Document {
	set := newNodeSet()
	for i, raw := range rawNodes {
		rec, _ := raw.(map[string]any)
		id := firstID(rec, "name", "id")
		if id == "" {
			id = fmt.Sprintf("node-%d", i)
		}
		set.put(graph.Node{ID: id, Label: id, Attrs: pick(rec, nestedNodeFields)})
	}

	edges := make([]graph.Edge, 0, len(rawEdges))
	for i, raw := range rawEdges {
		rec, _ := raw.(map[string]any)
		src := endpointName(rec, "node1")
		if src == "" {
			src = fmt.Sprintf("node1-%d", i)
		}
		dst := endpointName(rec, "node2")
		if dst == "" {
			dst = fmt.Sprintf("node2-%d", i)
		}
		edges = append(edges, graph.Edge{
			ID:     graph.EdgeID(i),
			Source: src,
			Target: dst,
			Attrs:  pick(rec, nestedEdgeFields),
		})
	}

	return graph.NewDocument(fileName, graph.FileTypeJSON, graph.VariantNestedJSON, set.list(), edges)
}

func endpointName(rec map[string]any, key string) string {
	node, _ := rec[key].(map[string]any)
	return firstID(node, "name")
}

// pick copies the named fields. Objects carrying a "name" member collapse to
// that name so attributes stay scalar.
func pick(rec map[string]any, fields []string) graph.Attrs {
	var out graph.Attrs
	for _, f := range fields {
		v, ok := rec[f]
		if !ok || v == nil {
			continue
		}
		if m, ok := v.(map[string]any); ok {
			v = m["name"]
		}
		if out == nil {
			out = graph.Attrs{}
		}
		if err := out.Set(f, v); err != nil {
			delete(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// =============================================================================
// Standard Shape
// =============================================================================

func standardDocument(fileName string, rawNodes, rawEdges []any, logger *log.Logger) *graph.Document {
	set := newNodeSet()
	for i, raw := range rawNodes {
		rec, ok := raw.(map[string]any)
		if !ok {
			// Bare scalars are accepted as node ids.
			if id := stringify(raw); id != "" {
				set.put(graph.Node{ID: id, Label: id})
			} else {
				malformed(logger, i, fmt.Sprint(raw), "node entry is not an object")
			}
			continue
		}
		id := firstID(rec, "id", "name")
		if id == "" {
			id = fmt.Sprintf("node-%d", i)
		}
		label := firstID(rec, "label", "name", "id")
		if label == "" {
			label = fmt.Sprintf("Node %d", i)
		}
		set.put(graph.Node{ID: id, Label: label, Attrs: graph.ScalarAttrs(rec, "id", "label")})
	}

	edges := make([]graph.Edge, 0, len(rawEdges))
	for i, raw := range rawEdges {
		rec, ok := raw.(map[string]any)
		if !ok {
			malformed(logger, i, fmt.Sprint(raw), "edge entry is not an object")
			continue
		}
		src := firstID(rec, "source", "from")
		dst := firstID(rec, "target", "to")
		if src == "" || dst == "" {
			malformed(logger, i, fmt.Sprint(raw), "edge is missing source or target")
			continue
		}
		id := firstID(rec, "id")
		if id == "" {
			id = graph.EdgeID(i)
		}
		edges = append(edges, graph.Edge{
			ID:     id,
			Source: src,
			Target: dst,
			Label:  firstID(rec, "label", "name"),
			Attrs:  graph.ScalarAttrs(rec, "id", "source", "target", "label"),
		})
	}

	return graph.NewDocument(fileName, graph.FileTypeJSON, graph.VariantStandardJSON, set.list(), edges)
}

// =============================================================================
// Helpers
// =============================================================================

// firstID returns the first key whose value is a present, non-null scalar,
// rendered as a string.
func firstID(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
