package coins

import "errors"

// ErrNotRepresentable is returned when an amount cannot be expressed exactly
// with the available denominations (e.g. a nonzero remainder below the
// smallest coin).
var ErrNotRepresentable = errors.New("amount not representable in available denominations")

// BuildChange decomposes amount (in cents) into an ordered, largest-first
// list of denominations summing exactly to amount. Greedy selection is exact
// for the canonical coin set because every denomination divides the next tier
// up; this does not hold for arbitrary coin sets.
func BuildChange(amount int, idx *Index) ([]int, error) {
	if amount < 0 {
		return nil, ErrNotRepresentable
	}

	change := []int{}
	for amount > 0 {
		coin, ok := idx.GreatestLTE(amount)
		if !ok {
			return nil, ErrNotRepresentable
		}
		change = append(change, coin)
		amount -= coin
	}

	return change, nil
}
