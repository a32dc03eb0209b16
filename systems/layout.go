package systems

import (
	"math"

	"github.com/pthm-cable/beaker/components"
)

// DefaultParticleSize is the particle diameter in container units.
const DefaultParticleSize = 14.3

// geomEpsilon absorbs float error when dividing container sizes by the particle size,
// so 71.5/14.3 lands on 5 rows instead of 6.
const geomEpsilon = 1e-9

// Layout is the static geometry of a particle grid.
type Layout struct {
	Width     float64
	MaxHeight float64
	Size      float64
	Cols      int
	Rows      int
	OffsetX   float64
	Slots     []components.Slot
}

// Len returns the number of slots.
func (l Layout) Len() int {
	return l.Cols * l.Rows
}

// BuildLayout computes the slot grid for a container of the given width and maximum
// liquid height. Slots are produced in row-major order, centred horizontally, all Water.
// Identical inputs always yield identical layouts. Non-positive or non-finite inputs
// produce an empty layout.
func BuildLayout(width, maxHeight, size float64) Layout {
	l := Layout{Width: width, MaxHeight: maxHeight, Size: size}
	if !validDim(width) || !validDim(maxHeight) || !validDim(size) {
		return l
	}

	l.Cols = int(math.Floor(width/size + geomEpsilon))
	l.Rows = int(math.Ceil(maxHeight/size - geomEpsilon))
	if l.Cols <= 0 || l.Rows <= 0 {
		l.Cols, l.Rows = 0, 0
		return l
	}
	l.OffsetX = (width - float64(l.Cols)*size) / 2

	half := size / 2
	l.Slots = make([]components.Slot, l.Len())
	for i := range l.Slots {
		row := i / l.Cols
		col := i % l.Cols
		l.Slots[i] = components.Slot{
			Index:   i,
			X:       float32(l.OffsetX + float64(col)*size + half),
			Y:       float32(float64(row)*size + half),
			Species: components.Water,
		}
	}
	return l
}

// visibleRows returns how many grid rows a liquid column of height h covers.
func visibleRows(h, size float64) int {
	if !validDim(h) || !validDim(size) {
		return 0
	}
	return int(math.Ceil(h/size - geomEpsilon))
}

func validDim(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
