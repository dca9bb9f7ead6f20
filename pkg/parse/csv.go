package parse

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagview/pkg/errors"
	"github.com/matzehuels/dagview/pkg/graph"
)

func parseCSV(fileName string, content []byte, logger *log.Logger) (*graph.Document, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comment = '#'

	set := newNodeSet()
	var edges []graph.Edge

	for row := 0; ; row++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if stderrors.As(err, &pe) {
				malformed(logger, pe.StartLine, "", pe.Err.Error())
				continue
			}
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", fileName)
		}

		fields := trimFields(rec)
		if row == 0 && isHeader(fields) {
			continue
		}
		if len(fields) < 2 {
			line, _ := r.FieldPos(0)
			malformed(logger, line, strings.Join(rec, ","), "expected at least source and target")
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

	return graph.NewDocument(fileName, graph.FileTypeCSV, graph.VariantCSV, set.list(), edges), nil
}

// trimFields trims every field and drops empty ones.
func trimFields(rec []string) []string {
	out := rec[:0:0]
	for _, f := range rec {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isHeader(fields []string) bool {
	if len(fields) < 2 {
		return false
	}
	a, b := strings.ToLower(fields[0]), strings.ToLower(fields[1])
	return (a == "source" && b == "target") || (a == "from" && b == "to")
}
