// Package graph provides the canonical graph model shared by every dagview
// component.
//
// Every input format (Tetrad text, edge lists, several JSON shapes, CSV, DOT)
// is normalized into a [Document]. Downstream code never sees the source
// format again: the rendering engine consumes [Document.Elements], the CLI
// writes documents back out as JSON, and the HTTP API serves them verbatim.
//
// # Core Types
//
//   - [Document]: nodes, edges and upload [Metadata]
//   - [Node], [Edge]: identity, label and open scalar [Attrs]
//   - [Element]: flat renderer record derived from a node or an edge
//   - [Layout]: node positions computed by a layout run
//
// # Invariants
//
// [NewDocument] is the only constructor. It derives NodeCount and EdgeCount
// from the slices, so metadata counts always match. Documents are treated as
// immutable; an upload replaces the whole document.
//
// Edges may reference nodes that are absent from the node list. This is not
// rejected; [Document.DanglingEdges] reports such edges.
//
// # Serialization
//
// Documents use a node-link JSON format:
//
//	{
//	  "nodes": [{"id": "X1", "label": "X1"}, {"id": "X2", "label": "X2"}],
//	  "edges": [{"id": "edge-0", "source": "X1", "target": "X2"}],
//	  "metadata": {"fileName": "g.txt", "fileType": "txt", "nodeCount": 2, "edgeCount": 1}
//	}
//
// Use [WriteDocument], [WriteDocumentFile], [ReadDocument] and
// [ReadDocumentFile] for I/O.
package graph
