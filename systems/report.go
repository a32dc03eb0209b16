package systems

import "github.com/pthm-cable/beaker/components"

// Census counts every species, Water included, over the slots below active.
func Census(g *Grid, active int) [components.NumSpecies]int {
	var out [components.NumSpecies]int

	query := g.particleFilter.Query()
	for query.Next() {
		cell, p := query.Get()
		if cell.Index >= active {
			continue
		}
		if int(p.Species) < len(out) {
			out[p.Species]++
		}
	}
	return out
}

// Tally returns the observed counts of the three tracked species over the active window.
func Tally(g *Grid, active int) components.Counts {
	c := Census(g, active)
	return components.Counts{
		Substance: c[components.Substance],
		Primary:   c[components.PrimaryIon],
		Secondary: c[components.SecondaryIon],
	}
}
