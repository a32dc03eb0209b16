package systems

import "github.com/pthm-cable/beaker/components"

// ActiveCount returns how many leading slots sit inside a liquid column of height
// liquidHeight: whole visible rows times columns, capped at the grid length.
func ActiveCount(g *Grid, liquidHeight float64) int {
	n := visibleRows(liquidHeight, g.layout.Size) * g.layout.Cols
	return min(max(n, 0), g.Len())
}

// ApplyMask computes the active window for liquidHeight and immediately resets every
// non-Water slot outside it to Water. Returns the active count and the reset indices.
// Applying it again with the same height changes nothing.
func ApplyMask(g *Grid, liquidHeight float64) (int, []int) {
	active := ActiveCount(g, liquidHeight)

	var resets []int
	for i := active; i < g.Len(); i++ {
		if g.Species(i) != components.Water {
			g.Retype(i, components.Water)
			resets = append(resets, i)
		}
	}
	return active, resets
}
