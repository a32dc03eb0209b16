package systems

import "github.com/pthm-cable/beaker/components"

// DefaultMutationsPerTick bounds how many slots a single tick may retype.
const DefaultMutationsPerTick = 2

// Rand is the random source used for tie-breaking among candidate slots.
// *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Mutation records one slot changing species.
type Mutation struct {
	Index int
	From  components.Species
	To    components.Species
}

// StepResult describes one bounded reconciliation step.
type StepResult struct {
	Mutations []Mutation
	Observed  components.Counts // counts after the last mutation
	Converged bool              // every diff is zero
	Stalled   bool              // a diff remains but no candidate slot can resolve it
}

// attemptOrder is the species precedence for each micro-step.
var attemptOrder = [...]components.Species{
	components.PrimaryIon,
	components.SecondaryIon,
	components.Substance,
}

// Reconciler drives observed counts toward desired counts one slot at a time.
type Reconciler struct {
	rng     Rand
	perTick int
	buf     []int
}

// NewReconciler creates a reconciler that applies at most perTick mutations per step.
func NewReconciler(rng Rand, perTick int) *Reconciler {
	if perTick < 1 {
		perTick = DefaultMutationsPerTick
	}
	return &Reconciler{rng: rng, perTick: perTick}
}

// Step performs up to perTick single-slot mutations on the active window of g.
// Diffs are recomputed from the grid after every mutation, so a step never overshoots.
func (r *Reconciler) Step(g *Grid, active int, desired components.Counts) StepResult {
	desired = desired.Normalized()
	res := StepResult{Observed: Tally(g, active)}

	for n := 0; n < r.perTick; n++ {
		diff := desired.Sub(res.Observed)
		if diff.IsZero() {
			res.Converged = true
			return res
		}

		m, ok := r.pick(g, active, diff)
		if !ok {
			res.Stalled = true
			return res
		}
		g.Retype(m.Index, m.To)
		res.Mutations = append(res.Mutations, m)
		res.Observed = Tally(g, active)
	}

	res.Converged = desired.Sub(res.Observed).IsZero()
	return res
}

// pick chooses the next mutation: the first species in attemptOrder with a nonzero
// diff and at least one candidate slot wins.
func (r *Reconciler) pick(g *Grid, active int, diff components.Counts) (Mutation, bool) {
	for _, s := range attemptOrder {
		d := diff.Get(s)
		if d == 0 {
			continue
		}

		var to components.Species
		if d > 0 {
			r.buf = r.sources(g, active, s)
			to = s
		} else {
			r.buf = g.Indices(active, s, r.buf[:0])
			to = components.Water
		}
		if len(r.buf) == 0 {
			continue
		}

		idx := r.buf[r.rng.Intn(len(r.buf))]
		return Mutation{Index: idx, From: g.Species(idx), To: to}, true
	}
	return Mutation{}, false
}

// sources returns the slots that can become species s.
// Ions are made from Substance when any is present, otherwise directly from Water.
func (r *Reconciler) sources(g *Grid, active int, s components.Species) []int {
	buf := r.buf[:0]
	if s == components.PrimaryIon || s == components.SecondaryIon {
		buf = g.Indices(active, components.Substance, buf)
		if len(buf) > 0 {
			return buf
		}
	}
	return g.Indices(active, components.Water, buf)
}

// Drain resets every non-Water slot below active to Water in one pass.
func Drain(g *Grid, active int) []Mutation {
	active = min(active, g.Len())
	var out []Mutation
	for i := 0; i < active; i++ {
		if from := g.Species(i); from != components.Water {
			g.Retype(i, components.Water)
			out = append(out, Mutation{Index: i, From: from, To: components.Water})
		}
	}
	return out
}
