package cache

import "fmt"

// Direction is a relative move through the path list
type Direction int

const (
	Stay Direction = iota
	Left
	Right
	First
	Last
)

func (d Direction) String() string {
	switch d {
	case Stay:
		return "stay"
	case Left:
		return "left"
	case Right:
		return "right"
	case First:
		return "first"
	case Last:
		return "last"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Next returns the index reached by moving from idx in direction dir over a
// list of length n. Moves past either end are clamped, not errors. n must be
// positive.
func Next(idx int, dir Direction, n int) int {
	switch dir {
	case Left:
		if idx > 0 {
			return idx - 1
		}
		return idx
	case Right:
		if idx < n-1 {
			return idx + 1
		}
		return idx
	case First:
		return 0
	case Last:
		return n - 1
	default:
		return idx
	}
}

// clamp keeps an absolute index inside [0, n)
func clamp(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
