package parse

import (
	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/dagview/pkg/errors"
	"github.com/matzehuels/dagview/pkg/graph"
)

// placeholderLabel is the label Graphviz assigns to nodes without one.
const placeholderLabel = `\N`

func parseDOT(fileName, ext string, content []byte) (*graph.Document, error) {
	g, err := graphviz.ParseBytes(content)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse DOT in %s", fileName)
	}
	defer g.Close()

	set := newNodeSet()
	var edges []graph.Edge

	for n, err := g.FirstNode(); n != nil; n, err = g.NextNode(n) {
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "iterate DOT nodes")
		}
		id, err := n.Name()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "read DOT node name")
		}
		label := n.GetStr("label")
		if label == "" || label == placeholderLabel {
			label = id
		}
		set.put(graph.Node{ID: id, Label: label})
	}

	for n, _ := g.FirstNode(); n != nil; n, _ = g.NextNode(n) {
		for e, err := g.FirstOut(n); e != nil; e, err = g.NextOut(e) {
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInternal, err, "iterate DOT edges")
			}
			src, err := endpointID(e.Tail())
			if err != nil {
				return nil, err
			}
			dst, err := endpointID(e.Head())
			if err != nil {
				return nil, err
			}
			edges = append(edges, graph.Edge{
				ID:     graph.EdgeID(len(edges)),
				Source: src,
				Target: dst,
				Label:  e.GetStr("label"),
			})
		}
	}

	return graph.NewDocument(fileName, ext, graph.VariantDOT, set.list(), edges), nil
}

func endpointID(n *graphviz.Node, err error) (string, error) {
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "read DOT edge endpoint")
	}
	name, err := n.Name()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "read DOT edge endpoint")
	}
	return name, nil
}
