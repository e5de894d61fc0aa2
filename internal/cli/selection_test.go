package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  []int
	}{
		{"all", "all", 3, []int{0, 1, 2}},
		{"all uppercase", " ALL ", 2, []int{0, 1}},
		{"single", "2", 3, []int{1}},
		{"list and range", "1,3,5-8", 10, []int{0, 2, 4, 5, 6, 7}},
		{"spaces", " 1 , 2 - 3 ", 3, []int{0, 1, 2}},
		{"duplicates keep first order", "3,1,3,1-2", 3, []int{2, 0, 1}},
		{"trailing comma", "1,", 2, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSelection(tt.input, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSelection_Errors(t *testing.T) {
	_, err := ParseSelection("", 3)
	assert.ErrorIs(t, err, ErrAborted)

	_, err = ParseSelection(" , ", 3)
	assert.ErrorIs(t, err, ErrAborted)

	_, err = ParseSelection("4", 3)
	assert.EqualError(t, err, "4 is out of range 1-3")

	_, err = ParseSelection("0", 3)
	assert.Error(t, err)

	_, err = ParseSelection("3-1", 3)
	assert.EqualError(t, err, `invalid range "3-1"`)

	_, err = ParseSelection("two", 3)
	assert.EqualError(t, err, `invalid selection "two"`)

	_, err = ParseSelection("1-x", 3)
	assert.Error(t, err)
}
