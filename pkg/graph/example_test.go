package graph_test

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/matzehuels/dagview/pkg/graph"
)

func ExampleWriteDocument() {
	doc := graph.NewDocument("g.txt", graph.FileTypeTXT, graph.VariantEdgeList,
		[]graph.Node{{ID: "X1", Label: "X1"}, {ID: "X2", Label: "X2"}},
		[]graph.Edge{{ID: graph.EdgeID(0), Source: "X1", Target: "X2", Label: "causes"}},
	)

	var buf bytes.Buffer
	if err := graph.WriteDocument(doc, &buf); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Print(buf.String())
	// Output:
	// {
	//   "nodes": [
	//     {
	//       "id": "X1",
	//       "label": "X1"
	//     },
	//     {
	//       "id": "X2",
	//       "label": "X2"
	//     }
	//   ],
	//   "edges": [
	//     {
	//       "id": "edge-0",
	//       "source": "X1",
	//       "target": "X2",
	//       "label": "causes"
	//     }
	//   ],
	//   "metadata": {
	//     "fileName": "g.txt",
	//     "fileType": "txt",
	//     "variant": "edge-list",
	//     "nodeCount": 2,
	//     "edgeCount": 1
	//   }
	// }
}

func ExampleReadDocument() {
	input := `{
		"nodes": [{"id": "a"}, {"id": "b", "attrs": {"weight": 2}}],
		"edges": [{"id": "e1", "source": "a", "target": "b"}],
		"metadata": {"fileName": "g.json", "fileType": "json", "nodeCount": 99, "edgeCount": 99}
	}`

	doc, err := graph.ReadDocument(strings.NewReader(input))
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Println("Nodes:", doc.Metadata.NodeCount)
	fmt.Println("Edges:", doc.Metadata.EdgeCount)
	fmt.Println("Weight:", doc.Nodes[1].Attrs["weight"])
	// Output:
	// Nodes: 2
	// Edges: 1
	// Weight: 2
}

func ExampleDocument_Elements() {
	doc := graph.NewDocument("g.txt", graph.FileTypeTXT, graph.VariantEdgeList,
		[]graph.Node{{ID: "a"}, {ID: "b", Attrs: graph.Attrs{"nodeType": "measured"}}},
		[]graph.Edge{{ID: "edge-0", Source: "a", Target: "b"}},
	)

	for _, el := range doc.Elements() {
		fmt.Println(el.Group, el.ID(), el.Data["label"])
	}
	// Output:
	// nodes a a
	// nodes b b
	// edges edge-0 <nil>
}
