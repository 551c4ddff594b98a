package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEllipsis(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{name: "fits", input: "<ping ()>", max: 20, expected: "<ping ()>"},
		{name: "truncated", input: "<greet (\"a long argument\")>", max: 12, expected: "<greet (\"..."},
		{name: "no room for dots", input: "abcdefg", max: 3, expected: "abc"},
		{name: "zero", input: "abc", max: 0, expected: ""},
		{name: "negative", input: "abc", max: -1, expected: ""},
		{name: "newlines flattened", input: "  a\r\nb\nc  ", max: 10, expected: "a b c"},
		{name: "multibyte kept whole", input: "héllo wörld", max: 8, expected: "héllo..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Ellipsis(tt.input, tt.max))
		})
	}
}
