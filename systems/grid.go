package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/beaker/components"
)

// Grid is a materialised Layout: one ECS entity per slot, addressed by slot index.
// A Grid never changes size; geometry changes build a new Grid.
type Grid struct {
	world   *ecs.World
	layout  Layout
	palette components.Palette

	// entities[i] is the entity for slot i
	entities []ecs.Entity

	slotMapper *ecs.Map3[
		components.Cell,
		components.Position,
		components.Particle,
	]
	particleMap    *ecs.Map1[components.Particle]
	posMap         *ecs.Map1[components.Position]
	particleFilter *ecs.Filter2[components.Cell, components.Particle]
}

// NewGrid spawns the slots of layout into a fresh ECS world, each coloured as Water.
func NewGrid(layout Layout, palette components.Palette) *Grid {
	world := ecs.NewWorld()

	g := &Grid{
		world:   world,
		layout:  layout,
		palette: palette,
		slotMapper: ecs.NewMap3[
			components.Cell,
			components.Position,
			components.Particle,
		](world),
		particleMap:    ecs.NewMap1[components.Particle](world),
		posMap:         ecs.NewMap1[components.Position](world),
		particleFilter: ecs.NewFilter2[components.Cell, components.Particle](world),
	}

	g.entities = make([]ecs.Entity, len(layout.Slots))
	for i, s := range layout.Slots {
		cell := components.Cell{Index: i}
		pos := components.Position{X: s.X, Y: s.Y}
		particle := components.Particle{
			Species: components.Water,
			Color:   palette.Color(components.Water),
		}
		g.entities[i] = g.slotMapper.NewEntity(&cell, &pos, &particle)
	}
	return g
}

// Len returns the number of slots.
func (g *Grid) Len() int {
	return len(g.entities)
}

// Cols returns the number of slots per row.
func (g *Grid) Cols() int {
	return g.layout.Cols
}

// Rows returns the number of rows.
func (g *Grid) Rows() int {
	return g.layout.Rows
}

// Layout returns the geometry the grid was built from.
func (g *Grid) Layout() Layout {
	return g.layout
}

// Species returns the species held by slot i.
func (g *Grid) Species(i int) components.Species {
	return g.particleMap.Get(g.entities[i]).Species
}

// Retype sets slot i to species s and its palette colour.
// Returns the previous species.
func (g *Grid) Retype(i int, s components.Species) components.Species {
	p := g.particleMap.Get(g.entities[i])
	from := p.Species
	p.Species = s
	p.Color = g.palette.Color(s)
	return from
}

// Indices appends to buf the indices below active that hold species s.
func (g *Grid) Indices(active int, s components.Species, buf []int) []int {
	active = min(active, len(g.entities))
	for i := 0; i < active; i++ {
		if g.particleMap.Get(g.entities[i]).Species == s {
			buf = append(buf, i)
		}
	}
	return buf
}

// Slots returns a renderer snapshot of every slot. Slots below active are flagged Active.
func (g *Grid) Slots(active int) []components.Slot {
	out := make([]components.Slot, len(g.entities))
	for i, e := range g.entities {
		pos := g.posMap.Get(e)
		p := g.particleMap.Get(e)
		out[i] = components.Slot{
			Index:   i,
			X:       pos.X,
			Y:       pos.Y,
			Species: p.Species,
			Color:   p.Color,
			Active:  i < active,
		}
	}
	return out
}
