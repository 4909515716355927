package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "trims and lowercases", input: "  Python ", expected: "python"},
		{name: "collapses inner whitespace", input: "machine \t\n learning", expected: "machine learning"},
		{name: "fullwidth folds to ascii", input: "Ｇｏ", expected: "go"},
		{name: "zero-width space dropped", input: "Ru\u200Bst", expected: "rust"},
		{name: "whitespace only", input: " \t ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Canonical(tt.input))
		})
	}
}

func TestDedupeCanonical(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{
			name:     "case and width variants collapse",
			input:    []string{"  Go ", "go", "Ｇｏ", "", "Rust"},
			expected: []string{"go", "rust"},
		},
		{
			name:     "order preserved",
			input:    []string{"sql", "python", "SQL"},
			expected: []string{"sql", "python"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeCanonical(tt.input))
		})
	}
}
