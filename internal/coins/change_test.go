package coins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChange(t *testing.T) {
	idx := NewDefaultIndex()

	tests := []struct {
		amount int
		want   []int
	}{
		{amount: 0, want: []int{}},
		{amount: 5, want: []int{5}},
		{amount: 75, want: []int{50, 20, 5}},
		{amount: 105, want: []int{100, 5}},
		{amount: 100, want: []int{100}},
		{amount: 30, want: []int{20, 10}},
		{amount: 185, want: []int{100, 50, 20, 10, 5}},
		{amount: 400, want: []int{100, 100, 100, 100}},
	}

	for _, tc := range tests {
		got, err := BuildChange(tc.amount, idx)
		require.NoError(t, err, "amount %d", tc.amount)
		assert.Equal(t, tc.want, got, "amount %d", tc.amount)
	}
}

func TestBuildChangeNotRepresentable(t *testing.T) {
	idx := NewDefaultIndex()

	for _, amount := range []int{1, 2, 3, 4, 7, 23, 101, -5} {
		_, err := BuildChange(amount, idx)
		assert.ErrorIs(t, err, ErrNotRepresentable, "amount %d", amount)
	}
}

func TestBuildChangeGreedyInvariant(t *testing.T) {
	idx := NewDefaultIndex()

	// Every multiple of the smallest coin is representable; the result sums
	// to the amount and is non-increasing.
	for amount := 0; amount <= 1000; amount += 5 {
		change, err := BuildChange(amount, idx)
		require.NoError(t, err, "amount %d", amount)

		sum := 0
		for i, coin := range change {
			sum += coin
			if i > 0 {
				assert.LessOrEqual(t, coin, change[i-1], "amount %d not non-increasing", amount)
			}
		}
		assert.Equal(t, amount, sum, "amount %d", amount)
	}
}
