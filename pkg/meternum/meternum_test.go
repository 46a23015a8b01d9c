package meternum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		num, err := Generate()
		require.NoError(t, err)
		assert.True(t, Valid(num), "generated %q should be valid", num)
		seen[num] = true
	}
	// 100 draws from a 90M space should not all collide
	assert.Greater(t, len(seen), 1)
}

func TestValid(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"12345678", true},
		{"99999999", true},
		{"10000000", true},
		{"01234567", false}, // leading zero
		{"1234567", false},  // too short
		{"123456789", false},
		{"1234567a", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Valid(tc.in), "Valid(%q)", tc.in)
	}
}
