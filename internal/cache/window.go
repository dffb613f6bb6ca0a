package cache

// Window returns the half-open range [lo, hi) of indices to keep warm around
// focus in a list of length n.
//
// When the whole list fits (n <= 2*radius) the window is [0, n). Otherwise it
// is 2*radius+1 wide and centered on focus; width clipped at one end is added
// back at the other, so focus is always inside and the width never shrinks.
func Window(focus, n, radius int) (lo, hi int) {
	switch {
	case n <= 2*radius:
		return 0, n
	case focus+radius > n-1:
		// not enough room on the right
		overflow := radius - (n - 1 - focus)
		return focus - radius - overflow, n
	case radius > focus:
		// not enough room on the left
		return 0, 2*radius + 1
	default:
		return focus - radius, focus + radius + 1
	}
}

// nearestFirst orders [lo, hi) by distance from focus, focus first and the
// right neighbour before the left one at equal distance.
func nearestFirst(focus, lo, hi int) []int {
	order := make([]int, 0, hi-lo)
	if focus >= lo && focus < hi {
		order = append(order, focus)
	}
	for d := 1; len(order) < hi-lo; d++ {
		if r := focus + d; r >= lo && r < hi {
			order = append(order, r)
		}
		if l := focus - d; l >= lo && l < hi {
			order = append(order, l)
		}
	}
	return order
}
