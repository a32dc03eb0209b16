package systems

import (
	"math/rand"
	"testing"

	"github.com/pthm-cable/beaker/components"
)

// firstRand always picks the first candidate.
type firstRand struct{}

func (firstRand) Intn(int) int { return 0 }

func TestTallyAndCensus(t *testing.T) {
	g := newTestGrid()
	g.Retype(0, components.Substance)
	g.Retype(1, components.PrimaryIon)
	g.Retype(2, components.SecondaryIon)
	g.Retype(3, components.SecondaryIon)
	g.Retype(50, components.Substance) // outside a 19-slot window

	got := Tally(g, 19)
	want := components.Counts{Substance: 1, Primary: 1, Secondary: 2}
	if got != want {
		t.Errorf("Tally = %+v, want %+v", got, want)
	}

	census := Census(g, 19)
	if census[components.Water] != 15 {
		t.Errorf("water = %d, want 15", census[components.Water])
	}
	if Tally(g, g.Len()).Substance != 2 {
		t.Error("full window should see both substance slots")
	}
}

func TestStepConvergesInTwoTicks(t *testing.T) {
	g := newTestGrid()
	active, _ := ApplyMask(g, 71.5)
	r := NewReconciler(rand.New(rand.NewSource(1)), 2)
	desired := components.Counts{Substance: 3}

	prevRemaining := desired.Sub(Tally(g, active)).AbsSum()
	ticks, mutations := 0, 0
	for ticks < 10 {
		res := r.Step(g, active, desired)
		if len(res.Mutations) == 0 {
			break
		}
		ticks++
		mutations += len(res.Mutations)

		remaining := desired.Sub(res.Observed).AbsSum()
		if remaining >= prevRemaining {
			t.Fatalf("tick %d: remaining diff %d did not decrease from %d", ticks, remaining, prevRemaining)
		}
		prevRemaining = remaining
		if res.Converged {
			break
		}
	}

	if ticks != 2 || mutations != 3 {
		t.Errorf("converged in %d ticks with %d mutations, want 2 and 3", ticks, mutations)
	}
	if got := Tally(g, active); got != desired {
		t.Errorf("observed %+v, want %+v", got, desired)
	}
}

func TestStepIonConsumesSubstance(t *testing.T) {
	g := newTestGrid()
	active, _ := ApplyMask(g, 14.3)
	g.Retype(4, components.Substance)

	r := NewReconciler(firstRand{}, 1)
	res := r.Step(g, active, components.Counts{Substance: 1, Primary: 1})

	if len(res.Mutations) != 1 {
		t.Fatalf("expected 1 mutation, got %d", len(res.Mutations))
	}
	m := res.Mutations[0]
	if m.Index != 4 || m.From != components.Substance || m.To != components.PrimaryIon {
		t.Errorf("mutation = %+v, want substance slot 4 -> primary", m)
	}

	// Substance is replenished from water on the next step.
	res = r.Step(g, active, components.Counts{Substance: 1, Primary: 1})
	if !res.Converged {
		t.Fatalf("expected convergence, observed %+v", res.Observed)
	}
	if g.Species(0) != components.Substance {
		t.Errorf("slot 0 = %v, want substance", g.Species(0))
	}
}

func TestStepIonFallsBackToWater(t *testing.T) {
	g := newTestGrid()
	active, _ := ApplyMask(g, 14.3)

	r := NewReconciler(firstRand{}, 2)
	res := r.Step(g, active, components.Counts{Secondary: 1})

	if len(res.Mutations) != 1 {
		t.Fatalf("expected 1 mutation, got %d", len(res.Mutations))
	}
	if m := res.Mutations[0]; m.From != components.Water || m.To != components.SecondaryIon {
		t.Errorf("mutation = %+v, want water -> secondary", m)
	}
	if !res.Converged {
		t.Error("expected convergence")
	}
}

func TestStepAttemptOrder(t *testing.T) {
	g := newTestGrid()
	active, _ := ApplyMask(g, 14.3)

	r := NewReconciler(firstRand{}, 1)
	desired := components.Counts{Substance: 1, Primary: 1, Secondary: 1}

	want := []components.Species{components.PrimaryIon, components.SecondaryIon, components.Substance}
	for i, s := range want {
		res := r.Step(g, active, desired)
		if len(res.Mutations) != 1 || res.Mutations[0].To != s {
			t.Fatalf("step %d: mutations %+v, want one to %v", i, res.Mutations, s)
		}
	}
}

func TestStepRemovesExcess(t *testing.T) {
	g := newTestGrid()
	active, _ := ApplyMask(g, 14.3)
	for i := 0; i < 5; i++ {
		g.Retype(i, components.PrimaryIon)
	}

	r := NewReconciler(rand.New(rand.NewSource(7)), 2)
	res := r.Step(g, active, components.Counts{Primary: 2})
	if len(res.Mutations) != 2 {
		t.Fatalf("expected 2 removals, got %d", len(res.Mutations))
	}
	for _, m := range res.Mutations {
		if m.From != components.PrimaryIon || m.To != components.Water {
			t.Errorf("unexpected mutation %+v", m)
		}
	}
	if res.Observed.Primary != 3 {
		t.Errorf("primary = %d, want 3", res.Observed.Primary)
	}

	res = r.Step(g, active, components.Counts{Primary: 2})
	if !res.Converged || res.Observed.Primary != 2 || len(res.Mutations) != 1 {
		t.Errorf("second step: %+v", res)
	}
}

func TestStepStallsWithoutCandidates(t *testing.T) {
	g := newTestGrid()
	before := g.Slots(0)

	r := NewReconciler(firstRand{}, 2)
	res := r.Step(g, 0, components.Counts{Primary: 2, Secondary: 1})
	if !res.Stalled || res.Converged || len(res.Mutations) != 0 {
		t.Fatalf("expected stall, got %+v", res)
	}

	after := g.Slots(0)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("slot %d changed during stall", i)
		}
	}
}

func TestStepSaturatesThenStalls(t *testing.T) {
	g := newTestGrid()
	active, _ := ApplyMask(g, 14.3) // 19 slots

	r := NewReconciler(rand.New(rand.NewSource(3)), 2)
	desired := components.Counts{Substance: 30}

	steps := 0
	for ; steps < 50; steps++ {
		res := r.Step(g, active, desired)
		if res.Stalled {
			break
		}
	}
	if steps >= 50 {
		t.Fatal("reconciler never stalled")
	}
	if got := Tally(g, active).Substance; got != active {
		t.Errorf("substance = %d, want the whole window (%d)", got, active)
	}
}

func TestDrain(t *testing.T) {
	g := newTestGrid()
	active, _ := ApplyMask(g, 71.5)
	r := NewReconciler(rand.New(rand.NewSource(11)), 50)
	r.Step(g, active, components.Counts{Substance: 10, Primary: 10, Secondary: 10})
	if Tally(g, active).Sum() == 0 {
		t.Fatal("setup produced an empty window")
	}

	muts := Drain(g, active)
	if len(muts) != 30 {
		t.Errorf("drain changed %d slots, want 30", len(muts))
	}
	if got := Tally(g, active); !got.IsZero() {
		t.Errorf("after drain observed %+v", got)
	}
}

func TestStepRandomInvariants(t *testing.T) {
	g := newTestGrid()
	rng := rand.New(rand.NewSource(99))
	r := NewReconciler(rng, 2)

	active := 0
	var desired components.Counts
	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			active, _ = ApplyMask(g, rng.Float64()*160)
		case 1:
			desired = components.Counts{
				Substance: rng.Intn(60) - 10,
				Primary:   rng.Intn(40) - 10,
				Secondary: rng.Intn(40) - 10,
			}
		}

		before := desired.Normalized().Sub(Tally(g, active)).AbsSum()
		res := r.Step(g, active, desired)
		after := desired.Normalized().Sub(res.Observed).AbsSum()
		if after > before {
			t.Fatalf("iteration %d: remaining diff grew from %d to %d", i, before, after)
		}

		census := Census(g, active)
		total := 0
		for s, n := range census {
			if n < 0 {
				t.Fatalf("iteration %d: negative count for %v", i, components.Species(s))
			}
			total += n
		}
		if total != active {
			t.Fatalf("iteration %d: census total %d != active %d", i, total, active)
		}
		if res.Observed.Sum() > active {
			t.Fatalf("iteration %d: observed %d exceeds active %d", i, res.Observed.Sum(), active)
		}
		for j := active; j < g.Len(); j++ {
			if g.Species(j) != components.Water {
				t.Fatalf("iteration %d: slot %d outside window is %v", i, j, g.Species(j))
			}
		}
	}
}
