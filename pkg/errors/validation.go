package errors

import (
	"strings"
	"unicode"
)

// ValidateFileName validates an uploaded file name.
// The name is only used for format dispatch and export naming, so it must be
// a plain basename without path components.
//
// Validation rules:
//   - No empty names
//   - Maximum length of 255 characters
//   - No control characters or null bytes
//   - No path separators or traversal sequences
func ValidateFileName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPath, "file name cannot be empty")
	}

	const maxNameLength = 255
	if len(name) > maxNameLength {
		return New(ErrCodeInvalidPath, "file name too long (max %d characters)", maxNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "file name contains invalid control characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidPath, "file name cannot contain path separators")
	}

	if name == "." || name == ".." {
		return New(ErrCodeInvalidPath, "file name cannot be %q", name)
	}

	return nil
}

// ValidateUnitInterval validates that v lies in [0, 1].
func ValidateUnitInterval(field string, v float64) error {
	if v != v || v < 0 || v > 1 {
		return New(ErrCodeInvalidInput, "%s must be between 0 and 1, got %v", field, v)
	}
	return nil
}

// ValidateNonNegative validates that v is zero or positive.
func ValidateNonNegative(field string, v float64) error {
	if v != v || v < 0 {
		return New(ErrCodeInvalidInput, "%s cannot be negative, got %v", field, v)
	}
	return nil
}
