package parse

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagview/pkg/graph"
)

const (
	markerNodes = "Graph Nodes:"
	markerEdges = "Graph Edges:"
)

// tetradEdgeRe matches "1. X1 --> X2" with an optional index prefix.
var tetradEdgeRe = regexp.MustCompile(`^\s*(?:\d+\.\s*)?(\w+)\s*-->\s*(\w+)`)

func parseText(fileName, content string, logger *log.Logger) *graph.Document {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if strings.Contains(content, markerNodes) && strings.Contains(content, markerEdges) {
		nodes, edges := parseHeadered(lines, logger)
		return graph.NewDocument(fileName, graph.FileTypeTXT, graph.VariantHeadered, nodes, edges)
	}
	nodes, edges := parseEdgeList(lines, logger)
	return graph.NewDocument(fileName, graph.FileTypeTXT, graph.VariantEdgeList, nodes, edges)
}

func parseHeadered(lines []string, logger *log.Logger) ([]graph.Node, []graph.Edge) {
	set := newNodeSet()
	var edges []graph.Edge

	nodesAt, edgesAt := -1, -1
	for i, line := range lines {
		if nodesAt < 0 && strings.Contains(line, markerNodes) {
			nodesAt = i
		}
		if edgesAt < 0 && strings.Contains(line, markerEdges) {
			edgesAt = i
		}
	}

	if nodesAt+1 < len(lines) && nodesAt+1 != edgesAt {
		for _, name := range strings.Split(lines[nodesAt+1], ";") {
			if name = strings.TrimSpace(name); name != "" {
				set.ensure(name)
			}
		}
	}

	for i := edgesAt + 1; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := tetradEdgeRe.FindStringSubmatch(line)
		if m == nil {
			malformed(logger, i+1, line, "expected \"A --> B\"")
			continue
		}
		set.ensure(m[1])
		set.ensure(m[2])
		edges = append(edges, graph.Edge{ID: graph.EdgeID(len(edges)), Source: m[1], Target: m[2]})
	}

	return set.list(), edges
}

func parseEdgeList(lines []string, logger *log.Logger) ([]graph.Node, []graph.Edge) {
	set := newNodeSet()
	var edges []graph.Edge

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			malformed(logger, i+1, line, "expected at least source and target")
			continue
		}
		set.ensure(fields[0])
		set.ensure(fields[1])
		edges = append(edges, graph.Edge{
			ID:     graph.EdgeID(len(edges)),
			Source: fields[0],
			Target: fields[1],
			Label:  strings.Join(fields[2:], " "),
		})
	}

	return set.list(), edges
}
