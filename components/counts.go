package components

import "math"

// Counts holds per-species quantities for the three non-water species.
// Used both for desired targets and for observed tallies.
type Counts struct {
	Substance int `yaml:"substance" csv:"substance"`
	Primary   int `yaml:"primary" csv:"primary"`
	Secondary int `yaml:"secondary" csv:"secondary"`
}

// Get returns the count for s. Water is not tracked and always reports 0.
func (c Counts) Get(s Species) int {
	switch s {
	case Substance:
		return c.Substance
	case PrimaryIon:
		return c.Primary
	case SecondaryIon:
		return c.Secondary
	}
	return 0
}

// Add adjusts the count for s by delta. Water is ignored.
func (c *Counts) Add(s Species, delta int) {
	switch s {
	case Substance:
		c.Substance += delta
	case PrimaryIon:
		c.Primary += delta
	case SecondaryIon:
		c.Secondary += delta
	}
}

// Sum returns the total of all three species.
func (c Counts) Sum() int {
	return c.Substance + c.Primary + c.Secondary
}

// Sub returns the per-species difference c - o.
func (c Counts) Sub(o Counts) Counts {
	return Counts{
		Substance: c.Substance - o.Substance,
		Primary:   c.Primary - o.Primary,
		Secondary: c.Secondary - o.Secondary,
	}
}

// AbsSum returns the sum of absolute per-species values.
func (c Counts) AbsSum() int {
	return absInt(c.Substance) + absInt(c.Primary) + absInt(c.Secondary)
}

// IsZero reports whether every species count is zero.
func (c Counts) IsZero() bool {
	return c.Substance == 0 && c.Primary == 0 && c.Secondary == 0
}

// Normalized clamps negative counts to zero.
func (c Counts) Normalized() Counts {
	return Counts{
		Substance: max(c.Substance, 0),
		Primary:   max(c.Primary, 0),
		Secondary: max(c.Secondary, 0),
	}
}

// CountsFromFloats converts host-supplied quantities into Counts.
// Negative, NaN and infinite values become 0; finite values are rounded.
func CountsFromFloats(substance, primary, secondary float64) Counts {
	return Counts{
		Substance: sanitizeCount(substance),
		Primary:   sanitizeCount(primary),
		Secondary: sanitizeCount(secondary),
	}
}

func sanitizeCount(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	r := math.Round(v)
	if r > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(r)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
