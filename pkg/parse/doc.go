// Package parse turns uploaded graph files into canonical documents.
//
// [Parse] dispatches on the lowercased extension of the file name:
//
//	txt        Tetrad text (headered) or a whitespace edge list
//	json       nested Tetrad JSON, standard nodes/edges JSON, or a .graph wrapper
//	csv        source,target[,label] rows
//	dot, gv    Graphviz DOT
//
// Any other extension fails with UNSUPPORTED_FORMAT. Parsing never returns a
// partial document: a call either yields a complete [graph.Document] or an
// error. Problems confined to a single line are logged as warnings and the
// line is skipped.
//
// # Text
//
// A text file containing both "Graph Nodes:" and "Graph Edges:" is parsed in
// headered mode:
//
//	Graph Nodes:
//	X1;X2;X3
//
//	Graph Edges:
//	1. X1 --> X2
//	2. X2 --> X3
//
// Otherwise every non-blank line is "source target [label words...]".
//
// # JSON
//
// Three shapes are tried in order: a nested graph with .graph.nodes and
// .graph.edgesSet, a standard object with top-level nodes and edges, and an
// object whose .graph member is reprocessed as the whole document.
package parse
