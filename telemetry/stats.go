package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/beaker/components"
)

// Trigger names the input change that opened a reconciliation cycle.
type Trigger string

const (
	TriggerGeometry Trigger = "geometry"
	TriggerLiquid   Trigger = "liquid"
	TriggerDesired  Trigger = "desired"
)

// Outcome names how a reconciliation cycle ended.
type Outcome string

const (
	OutcomeConverged Outcome = "converged"
	OutcomeStalled   Outcome = "stalled"
	OutcomeCancelled Outcome = "cancelled" // superseded by a new input before finishing
	OutcomeDrained   Outcome = "drained"
)

// CycleStats summarises one reconciliation cycle, from the input change that opened it
// to convergence, stall, drain or cancellation.
type CycleStats struct {
	Cycle       int     `csv:"cycle"`
	Trigger     Trigger `csv:"trigger"`
	Outcome     Outcome `csv:"outcome"`
	Ticks       int     `csv:"ticks"`
	Mutations   int     `csv:"mutations"`
	ActiveCount int     `csv:"active_count"`

	DesiredSubstance  int `csv:"desired_substance"`
	DesiredPrimary    int `csv:"desired_primary"`
	DesiredSecondary  int `csv:"desired_secondary"`
	ObservedSubstance int `csv:"observed_substance"`
	ObservedPrimary   int `csv:"observed_primary"`
	ObservedSecondary int `csv:"observed_secondary"`
}

// SetCounts fills the desired and observed columns.
func (s *CycleStats) SetCounts(desired, observed components.Counts) {
	s.DesiredSubstance = desired.Substance
	s.DesiredPrimary = desired.Primary
	s.DesiredSecondary = desired.Secondary
	s.ObservedSubstance = observed.Substance
	s.ObservedPrimary = observed.Primary
	s.ObservedSecondary = observed.Secondary
}

// Remaining returns the absolute distance left between desired and observed.
func (s CycleStats) Remaining() int {
	d := components.Counts{
		Substance: s.DesiredSubstance - s.ObservedSubstance,
		Primary:   s.DesiredPrimary - s.ObservedPrimary,
		Secondary: s.DesiredSecondary - s.ObservedSecondary,
	}
	return d.AbsSum()
}

// LogValue implements slog.LogValuer for structured logging.
func (s CycleStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("cycle", s.Cycle),
		slog.String("trigger", string(s.Trigger)),
		slog.String("outcome", string(s.Outcome)),
		slog.Int("ticks", s.Ticks),
		slog.Int("mutations", s.Mutations),
		slog.Int("active_count", s.ActiveCount),
		slog.Int("desired_substance", s.DesiredSubstance),
		slog.Int("desired_primary", s.DesiredPrimary),
		slog.Int("desired_secondary", s.DesiredSecondary),
		slog.Int("observed_substance", s.ObservedSubstance),
		slog.Int("observed_primary", s.ObservedPrimary),
		slog.Int("observed_secondary", s.ObservedSecondary),
	)
}

// MutationRecord is one slot change, as written to mutations.csv.
type MutationRecord struct {
	Cycle int    `csv:"cycle"`
	Tick  int    `csv:"tick"`
	Index int    `csv:"index"`
	From  string `csv:"from"`
	To    string `csv:"to"`
}

// Summary aggregates a run's cycles.
type Summary struct {
	Cycles    int
	Converged int
	Stalled   int
	Cancelled int
	Drained   int

	Ticks     int
	Mutations int

	// Ticks needed by converged cycles
	TicksMean float64
	TicksStd  float64
	TicksP50  float64
	TicksP90  float64

	MutationsPerTick float64
}

// Summarize computes run-level statistics over cycles.
func Summarize(cycles []CycleStats) Summary {
	var s Summary
	s.Cycles = len(cycles)

	converged := make([]float64, 0, len(cycles))
	for _, c := range cycles {
		s.Ticks += c.Ticks
		s.Mutations += c.Mutations
		switch c.Outcome {
		case OutcomeConverged:
			s.Converged++
			converged = append(converged, float64(c.Ticks))
		case OutcomeStalled:
			s.Stalled++
		case OutcomeCancelled:
			s.Cancelled++
		case OutcomeDrained:
			s.Drained++
		}
	}

	if s.Ticks > 0 {
		s.MutationsPerTick = float64(s.Mutations) / float64(s.Ticks)
	}

	if len(converged) == 0 {
		return s
	}
	sort.Float64s(converged)
	s.TicksMean, s.TicksStd = stat.MeanStdDev(converged, nil)
	if len(converged) < 2 || math.IsNaN(s.TicksStd) {
		s.TicksStd = 0
	}
	s.TicksP50 = stat.Quantile(0.5, stat.Empirical, converged, nil)
	s.TicksP90 = stat.Quantile(0.9, stat.Empirical, converged, nil)
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("cycles", s.Cycles),
		slog.Int("converged", s.Converged),
		slog.Int("stalled", s.Stalled),
		slog.Int("cancelled", s.Cancelled),
		slog.Int("drained", s.Drained),
		slog.Int("ticks", s.Ticks),
		slog.Int("mutations", s.Mutations),
		slog.Float64("ticks_mean", s.TicksMean),
		slog.Float64("ticks_std", s.TicksStd),
		slog.Float64("ticks_p50", s.TicksP50),
		slog.Float64("ticks_p90", s.TicksP90),
		slog.Float64("mutations_per_tick", s.MutationsPerTick),
	)
}
