package parse

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagview/pkg/errors"
	"github.com/matzehuels/dagview/pkg/graph"
)

// Options configures parsing.
type Options struct {
	// Logger receives warnings for skipped lines. Defaults to a discarding logger.
	Logger *log.Logger
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.New(io.Discard)
}

// Supported returns the extensions Parse accepts.
func Supported() []string {
	return []string{graph.FileTypeTXT, graph.FileTypeJSON, graph.FileTypeCSV, graph.FileTypeDOT, graph.FileTypeGV}
}

// Extension returns the lowercased text after the final dot of name, or ""
// when name has no dot.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Parse converts the content of fileName into a document.
// On error no document is returned.
func Parse(fileName string, content []byte, opts Options) (*graph.Document, error) {
	ext := Extension(fileName)
	logger := opts.logger().With("file", fileName)

	var (
		doc *graph.Document
		err error
	)
	switch ext {
	case graph.FileTypeTXT:
		doc = parseText(fileName, string(content), logger)
	case graph.FileTypeJSON:
		doc, err = parseJSON(fileName, content, logger)
	case graph.FileTypeCSV:
		doc, err = parseCSV(fileName, content, logger)
	case graph.FileTypeDOT, graph.FileTypeGV:
		doc, err = parseDOT(fileName, ext, content)
	default:
		return nil, errors.New(errors.ErrCodeUnsupportedFormat, "unsupported file format: %q (supported: %s)",
			ext, strings.Join(Supported(), ", "))
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("parsed document",
		"type", doc.Metadata.FileType,
		"variant", doc.Metadata.Variant,
		"nodes", doc.Metadata.NodeCount,
		"edges", doc.Metadata.EdgeCount)
	return doc, nil
}

// =============================================================================
// Node Accumulation
// =============================================================================

// nodeSet keeps nodes in first-appearance order. A repeated id keeps its
// original position and takes the data of the latest record.
type nodeSet struct {
	index map[string]int
	nodes []graph.Node
}

func newNodeSet() *nodeSet {
	return &nodeSet{index: make(map[string]int)}
}

func (s *nodeSet) put(n graph.Node) {
	if i, ok := s.index[n.ID]; ok {
		s.nodes[i] = n
		return
	}
	s.index[n.ID] = len(s.nodes)
	s.nodes = append(s.nodes, n)
}

// ensure adds a bare node unless one with that id already exists.
func (s *nodeSet) ensure(id string) {
	if _, ok := s.index[id]; ok {
		return
	}
	s.put(graph.Node{ID: id, Label: id})
}

func (s *nodeSet) list() []graph.Node { return s.nodes }

func malformed(logger *log.Logger, line int, text, reason string) {
	logger.Warn("skipping line",
		"code", errors.ErrCodeMalformedLine,
		"line", line,
		"reason", reason,
		"text", strings.TrimSpace(text))
}
