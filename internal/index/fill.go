package index

import "math"

// Fill returns a copy of grid with each column forward-filled and then
// backward-filled. Forward runs first so a leading gap takes the ticker's
// first real price, never a later one. Filling a full grid is a no-op.
func Fill(grid *PriceGrid) *PriceGrid {
	out := grid.Clone()
	for _, t := range out.Tickers {
		col := out.columns[t]
		forwardFill(col)
		backwardFill(col)
	}
	return out
}

func forwardFill(col []float64) {
	last := math.NaN()
	for i, v := range col {
		if math.IsNaN(v) {
			col[i] = last
			continue
		}
		last = v
	}
}

func backwardFill(col []float64) {
	next := math.NaN()
	for i := len(col) - 1; i >= 0; i-- {
		if math.IsNaN(col[i]) {
			col[i] = next
			continue
		}
		next = col[i]
	}
}
