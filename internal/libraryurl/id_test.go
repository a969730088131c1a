package libraryurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadLibraryID(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{1, "00001"},
		{73, "00073"},
		{12345, "12345"},
		{123456, "123456"},
		{"1", "00001"},
		{"00073", "00073"},
		{" 42 ", "00042"},
		{"0000123456", "123456"},
		{int64(7), "00007"},
		{float64(9), "00009"},
		{-3, "00000"},
		{"abc", "00000"},
		{nil, "00000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PadLibraryID(tt.in), "PadLibraryID(%v)", tt.in)
	}
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "", NormalizeID(nil))
	assert.Equal(t, "", NormalizeID("  "))
	assert.Equal(t, "73", NormalizeID("00073"))
	assert.Equal(t, "73", NormalizeID(73))
}

func TestAllDigits(t *testing.T) {
	assert.True(t, AllDigits("00073"))
	assert.False(t, AllDigits(""))
	assert.False(t, AllDigits("12a"))
	assert.False(t, AllDigits("-1"))
}
