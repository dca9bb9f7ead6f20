package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// =============================================================================
// Document Serialization API
// =============================================================================

// MarshalDocument converts a document to indented JSON bytes.
func MarshalDocument(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeDocumentTo(d, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDocumentFile writes a document to a JSON file.
func WriteDocumentFile(d *Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return writeDocumentTo(d, f)
}

// WriteDocument writes a document as JSON to w.
func WriteDocument(d *Document, w io.Writer) error {
	return writeDocumentTo(d, w)
}

// ReadDocumentFile reads a document previously written by [WriteDocumentFile].
func ReadDocumentFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readDocumentFrom(f)
}

// ReadDocument reads a document from JSON.
func ReadDocument(r io.Reader) (*Document, error) {
	return readDocumentFrom(r)
}

// =============================================================================
// Internal Implementation
// =============================================================================

func writeDocumentTo(d *Document, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func readDocumentFrom(r io.Reader) (*Document, error) {
	var data Document
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	// Counts are re-derived so a hand-edited file cannot disagree with itself.
	return NewDocument(data.Metadata.FileName, data.Metadata.FileType, data.Metadata.Variant, data.Nodes, data.Edges), nil
}
