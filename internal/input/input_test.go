package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRowNumbers(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		bounds Bounds
		want   []int
		err    error
	}{
		{name: "ranges and singles", text: "2-5, 7", want: []int{2, 3, 4, 5, 7}},
		{name: "dedupe and sort", text: "9,3-4, 3 ,9", want: []int{3, 4, 9}},
		{name: "spaces inside range", text: " 2 - 3 ", want: []int{2, 3}},
		{name: "within bounds", text: "2-4", bounds: Bounds{Min: 2, Max: 4}, want: []int{2, 3, 4}},
		{name: "header row rejected", text: "1-3", bounds: Bounds{Min: 2}, err: ErrInvalidRow},
		{name: "past last row", text: "5", bounds: Bounds{Min: 2, Max: 4}, err: ErrInvalidRow},
		{name: "reversed range", text: "5-2", err: ErrInvalidRow},
		{name: "garbage", text: "two", err: ErrInvalidRow},
		{name: "empty", text: "  ", err: ErrEmptyInput},
		{name: "only commas", text: ",,", err: ErrEmptyInput},
		{name: "huge range", text: "2-100000", err: ErrRangeTooWide},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRowNumbers(tt.text, tt.bounds)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEmailAddresses(t *testing.T) {
	got := ParseEmailAddresses("jane@utexas.edu, bob@test.org\n<carl+lab@x.io>; not-an-address jane@utexas.edu bad@host")
	assert.Equal(t, []string{"jane@utexas.edu", "bob@test.org", "carl+lab@x.io"}, got)

	assert.Empty(t, ParseEmailAddresses(""))
}
