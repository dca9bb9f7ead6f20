package errors

import (
	"math"
	"testing"
)

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid txt", "graph.txt", false},
		{"valid json", "tetrad-output.JSON", false},
		{"valid no extension", "graph", false},
		{"valid hidden", ".graph.txt", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"with path /", "path/to/graph.txt", true},
		{"with path \\", "path\\to\\graph.txt", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"null byte", "graph\x00.txt", true},
		{"newline", "graph\n.txt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFileName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidateFileName(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidPath)
			}
		})
	}
}

func TestValidateUnitInterval(t *testing.T) {
	tests := []struct {
		input   float64
		wantErr bool
	}{
		{0, false},
		{0.5, false},
		{1, false},
		{-0.1, true},
		{1.01, true},
		{math.NaN(), true},
	}

	for _, tt := range tests {
		err := ValidateUnitInterval("opacity", tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateUnitInterval(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateNonNegative(t *testing.T) {
	tests := []struct {
		input   float64
		wantErr bool
	}{
		{0, false},
		{3, false},
		{-1, true},
		{math.NaN(), true},
	}

	for _, tt := range tests {
		err := ValidateNonNegative("border width", tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateNonNegative(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}
