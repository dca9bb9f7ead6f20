package graph

import (
	"fmt"
	"maps"
	"slices"
)

// =============================================================================
// Constants
// =============================================================================

// File types, identical to the lowercased dispatch extension.
const (
	FileTypeTXT  = "txt"
	FileTypeJSON = "json"
	FileTypeCSV  = "csv"
	FileTypeDOT  = "dot"
	FileTypeGV   = "gv"
)

// Variants name the sub-mode a parser detected inside a file type.
const (
	VariantHeadered     = "headered"
	VariantEdgeList     = "edge-list"
	VariantNestedJSON   = "nested-json"
	VariantStandardJSON = "standard-json"
	VariantCSV          = "csv"
	VariantDOT          = "dot"
)

// Element groups.
const (
	GroupNodes = "nodes"
	GroupEdges = "edges"
)

// EdgeID returns the synthesized identifier for the edge at index i.
func EdgeID(i int) string { return fmt.Sprintf("edge-%d", i) }

// =============================================================================
// Attrs - Open Scalar Attributes
// =============================================================================

// Attrs holds named scalar attributes. Values are string, float64 or bool.
type Attrs map[string]any

// Set stores a scalar value. Integers are widened to float64; any other
// non-scalar value is rejected.
func (a Attrs) Set(key string, v any) error {
	s, ok := scalar(v)
	if !ok {
		return fmt.Errorf("attribute %q: unsupported value type %T", key, v)
	}
	a[key] = s
	return nil
}

// String returns the attribute as a string if it is one.
func (a Attrs) String(key string) (string, bool) {
	s, ok := a[key].(string)
	return s, ok
}

// Float returns the attribute as a float64 if it is numeric.
func (a Attrs) Float(key string) (float64, bool) {
	f, ok := a[key].(float64)
	return f, ok
}

// Clone returns a shallow copy, or nil for an empty map.
func (a Attrs) Clone() Attrs {
	if len(a) == 0 {
		return nil
	}
	return maps.Clone(a)
}

// ScalarAttrs filters a generic map down to its scalar entries, skipping the
// given reserved keys. Returns nil when nothing remains.
func ScalarAttrs(m map[string]any, reserved ...string) Attrs {
	var out Attrs
	for k, v := range m {
		if slices.Contains(reserved, k) {
			continue
		}
		s, ok := scalar(v)
		if !ok {
			continue
		}
		if out == nil {
			out = make(Attrs, len(m))
		}
		out[k] = s
	}
	return out
}

func scalar(v any) (any, bool) {
	switch t := v.(type) {
	case string, bool, float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	}
	return nil, false
}

// =============================================================================
// Node / Edge
// =============================================================================

// Node is a vertex of the canonical graph.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"` // Display label (defaults to ID)
	Attrs Attrs  `json:"attrs,omitempty"`
}

// DisplayLabel returns the label if set, otherwise the ID.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Edge is a directed edge. Self-loops and parallel edges are allowed.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
	Attrs  Attrs  `json:"attrs,omitempty"`
}

// =============================================================================
// Document
// =============================================================================

// Metadata describes where a document came from.
type Metadata struct {
	FileName  string `json:"fileName"`
	FileType  string `json:"fileType"`
	Variant   string `json:"variant,omitempty"`
	NodeCount int    `json:"nodeCount"`
	EdgeCount int    `json:"edgeCount"`
}

// Document is the normalized result of an upload.
type Document struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Metadata Metadata `json:"metadata"`
}

// NewDocument builds a document and derives the metadata counts.
func NewDocument(fileName, fileType, variant string, nodes []Node, edges []Edge) *Document {
	if nodes == nil {
		nodes = []Node{}
	}
	if edges == nil {
		edges = []Edge{}
	}
	return &Document{
		Nodes: nodes,
		Edges: edges,
		Metadata: Metadata{
			FileName:  fileName,
			FileType:  fileType,
			Variant:   variant,
			NodeCount: len(nodes),
			EdgeCount: len(edges),
		},
	}
}

// Node returns the node with the given id.
func (d *Document) Node(id string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// NodeIDs returns node ids in document order.
func (d *Document) NodeIDs() []string {
	ids := make([]string, len(d.Nodes))
	for i, n := range d.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// DanglingEdges returns edges whose source or target is not a known node.
func (d *Document) DanglingEdges() []Edge {
	known := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		known[n.ID] = struct{}{}
	}
	var out []Edge
	for _, e := range d.Edges {
		_, okS := known[e.Source]
		_, okT := known[e.Target]
		if !okS || !okT {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// Elements - Renderer Records
// =============================================================================

// Element is one flat renderer record.
type Element struct {
	Group string         `json:"group"`
	Data  map[string]any `json:"data"`
}

// ID returns the element id.
func (e Element) ID() string {
	id, _ := e.Data["id"].(string)
	return id
}

// Elements flattens the document into renderer records: nodes first, then
// edges. Core fields take precedence over attributes of the same name.
func (d *Document) Elements() []Element {
	out := make([]Element, 0, len(d.Nodes)+len(d.Edges))
	for _, n := range d.Nodes {
		data := make(map[string]any, len(n.Attrs)+2)
		maps.Copy(data, n.Attrs)
		data["id"] = n.ID
		data["label"] = n.DisplayLabel()
		out = append(out, Element{Group: GroupNodes, Data: data})
	}
	for _, e := range d.Edges {
		data := make(map[string]any, len(e.Attrs)+4)
		maps.Copy(data, e.Attrs)
		data["id"] = e.ID
		data["source"] = e.Source
		data["target"] = e.Target
		if e.Label != "" {
			data["label"] = e.Label
		}
		out = append(out, Element{Group: GroupEdges, Data: data})
	}
	return out
}
