// Package components defines the ECS components and value types shared by the grid engine.
package components

import "image/color"

// Species tags the content of a slot.
type Species uint8

const (
	Water Species = iota
	Substance
	PrimaryIon
	SecondaryIon
)

// NumSpecies is the number of species tags, Water included.
const NumSpecies = 4

// String returns the lower-case species name used in logs and CSV output.
func (s Species) String() string {
	switch s {
	case Water:
		return "water"
	case Substance:
		return "substance"
	case PrimaryIon:
		return "primary"
	case SecondaryIon:
		return "secondary"
	default:
		return "unknown"
	}
}

// Particle is the mutable part of a slot: what it holds and how it is drawn.
type Particle struct {
	Species Species
	Color   color.NRGBA
}

// Palette maps each species to its render colour.
type Palette [NumSpecies]color.NRGBA

// Color returns the colour for s, or transparent black for an unknown tag.
func (p Palette) Color(s Species) color.NRGBA {
	if int(s) >= len(p) {
		return color.NRGBA{}
	}
	return p[s]
}

// Slot is the renderer-facing snapshot of one grid cell.
type Slot struct {
	Index   int
	X, Y    float32
	Species Species
	Color   color.NRGBA
	Active  bool // inside the liquid
}
