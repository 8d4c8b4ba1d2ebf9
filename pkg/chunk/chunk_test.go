package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlice(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		n    int
		want [][]int
	}{
		{
			name: "nil input",
			in:   nil,
			n:    3,
			want: nil,
		},
		{
			name: "empty input",
			in:   []int{},
			n:    3,
			want: nil,
		},
		{
			name: "even split",
			in:   []int{1, 2, 3, 4, 5, 6},
			n:    2,
			want: [][]int{{1, 2}, {3, 4}, {5, 6}},
		},
		{
			name: "remainder in final chunk",
			in:   []int{1, 2, 3, 4, 5},
			n:    2,
			want: [][]int{{1, 2}, {3, 4}, {5}},
		},
		{
			name: "chunk larger than input",
			in:   []int{1, 2},
			n:    10,
			want: [][]int{{1, 2}},
		},
		{
			name: "non-positive size returns single chunk",
			in:   []int{1, 2, 3},
			n:    0,
			want: [][]int{{1, 2, 3}},
		},
		{
			name: "size one",
			in:   []int{1, 2, 3},
			n:    1,
			want: [][]int{{1}, {2}, {3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slice(tt.in, tt.n))
		})
	}
}

func TestSliceStrings(t *testing.T) {
	got := Slice([]string{"a", "b", "c"}, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, got)
}
