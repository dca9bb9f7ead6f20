package graph

import (
	"encoding/json"
	"fmt"
	"os"
)

// =============================================================================
// Layout - Computed Positions
// =============================================================================

// Layout is the serialization format for a finished layout run.
//
// Positions are model coordinates in points with the origin at the top-left
// of the layout bounding box. Width and Height are that box's extent.
type Layout struct {
	Key    string     `json:"layout"`
	Engine string     `json:"engine"`
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	Nodes  []Position `json:"nodes"`
}

// Position places one node.
type Position struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MarshalLayout serializes a layout to indented JSON.
func MarshalLayout(l Layout) ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}

// UnmarshalLayout deserializes JSON bytes to a layout.
func UnmarshalLayout(data []byte) (Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// WriteLayoutFile writes a layout to a JSON file.
func WriteLayoutFile(l Layout, path string) error {
	data, err := MarshalLayout(l)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
