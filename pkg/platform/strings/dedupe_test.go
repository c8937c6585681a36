package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "single element",
			input:    []string{"localhost:9092"},
			expected: []string{"localhost:9092"},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  kafka-1:9092  ", "kafka-2:9092  ", "  kafka-3:9092"},
			expected: []string{"kafka-1:9092", "kafka-2:9092", "kafka-3:9092"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"a", "b", "a", "c", "b"},
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "drops empty and blank entries",
			input:    []string{"a", "", "  ", "b"},
			expected: []string{"a", "b"},
		},
		{
			name:     "preserves case",
			input:    []string{"Foo", "foo", "FOO"},
			expected: []string{"Foo", "foo", "FOO"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
