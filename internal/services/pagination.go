package services

import "math"

// Page selects a window of a list; Number starts at 1
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows to skip, saturating at math.MaxInt
func (p Page) Offset() int {
	if p.Number < 1 || p.Size <= 0 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// Unbounded reports whether the page selects every row
func (p Page) Unbounded() bool {
	return p.Size <= 0
}
