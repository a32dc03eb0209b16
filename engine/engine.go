// Package engine owns a particle grid and reconciles it toward requested species counts
// on a fixed tick cadence.
package engine

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pthm-cable/beaker/components"
	"github.com/pthm-cable/beaker/config"
	"github.com/pthm-cable/beaker/systems"
	"github.com/pthm-cable/beaker/telemetry"
)

// DefaultTickInterval is the cadence of reconciliation ticks.
const DefaultTickInterval = 100 * time.Millisecond

// Options configures an Engine.
type Options struct {
	ParticleSize     float64
	TickInterval     time.Duration
	MutationsPerTick int
	Palette          components.Palette

	Rand   systems.Rand // tie-breaking among candidate slots
	Clock  Clock
	Logger *slog.Logger

	// Callbacks run after the engine lock is released.
	OnObserved  func(components.Counts)
	OnCycle     func(telemetry.CycleStats)
	OnMutations func([]telemetry.MutationRecord)
}

// DefaultOptions returns options with the standard particle size, a 100ms tick,
// two mutations per tick, a time-seeded random source and the real clock.
func DefaultOptions() Options {
	return Options{
		ParticleSize:     systems.DefaultParticleSize,
		TickInterval:     DefaultTickInterval,
		MutationsPerTick: systems.DefaultMutationsPerTick,
	}
}

// OptionsFromConfig builds options from loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.ParticleSize = cfg.Grid.ParticleSize
	opts.TickInterval = cfg.Derived.TickInterval
	opts.MutationsPerTick = cfg.Reconcile.MutationsPerTick
	opts.Palette = cfg.Derived.Palette
	return opts
}

// Engine holds one grid, its inputs and the single armed tick timer.
type Engine struct {
	mu sync.Mutex

	opts   Options
	clock  Clock
	logger *slog.Logger
	rec    *systems.Reconciler

	grid         *systems.Grid
	width        float64
	maxHeight    float64
	liquidHeight float64 // requestedHeight clamped to [0, maxHeight]
	active       int

	requestedHeight float64

	desired  components.Counts
	observed components.Counts

	timer Timer
	gen   uint64 // bumped on every cancel; stale timer callbacks compare against it

	cycle     *telemetry.CycleStats // open cycle, nil when idle
	cycleSeq  int
	tickCount int
	stopped   bool // set by Stop, cleared by the next schedule

	// Notifications are queued under mu in mutation order and delivered by a
	// single dispatcher at a time, so hosts never see an older snapshot last.
	queue       []events
	dispatching bool
}

// events collects host notifications produced while the lock is held.
type events struct {
	observed  []components.Counts
	cycles    []telemetry.CycleStats
	mutations []telemetry.MutationRecord
}

func (ev *events) empty() bool {
	return len(ev.observed) == 0 && len(ev.cycles) == 0 && len(ev.mutations) == 0
}

// New creates an engine with an empty grid. Call SetGeometry to build one.
func New(opts Options) *Engine {
	if opts.ParticleSize <= 0 {
		opts.ParticleSize = systems.DefaultParticleSize
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		opts:   opts,
		clock:  opts.Clock,
		logger: opts.Logger,
		rec:    systems.NewReconciler(opts.Rand, opts.MutationsPerTick),
	}
	e.grid = systems.NewGrid(systems.BuildLayout(0, 0, opts.ParticleSize), opts.Palette)
	return e
}

// SetGeometry rebuilds the grid for a new container. Any armed tick is cancelled first;
// the liquid height is re-clamped and the mask re-applied to the new grid.
func (e *Engine) SetGeometry(width, maxHeight float64) {
	width, maxHeight = sanitizeDim(width), sanitizeDim(maxHeight)

	e.mu.Lock()
	var ev events
	if e.grid.Len() > 0 && width == e.width && maxHeight == e.maxHeight {
		e.mu.Unlock()
		return
	}
	e.cancelLocked(&ev)

	e.width, e.maxHeight = width, maxHeight
	e.grid = systems.NewGrid(systems.BuildLayout(width, maxHeight, e.opts.ParticleSize), e.opts.Palette)
	e.liquidHeight = e.clampHeight(e.requestedHeight)
	e.active, _ = systems.ApplyMask(e.grid, e.liquidHeight)
	e.refreshLocked(&ev)

	e.logger.Debug("grid built",
		"cols", e.grid.Cols(),
		"rows", e.grid.Rows(),
		"slots", e.grid.Len(),
		"active", e.active,
	)
	e.scheduleLocked(&ev, telemetry.TriggerGeometry)
	e.unlockAndEmit(ev)
}

// SetLiquidHeight moves the liquid surface, clamped to [0, maxHeight]. Slots that leave
// the liquid are reset to Water before any further reconciliation; an unchanged height
// is a no-op unless the engine was stopped. The unclamped request, +Inf included, is
// kept so a later geometry change can honour it.
func (e *Engine) SetLiquidHeight(h float64) {
	e.mu.Lock()
	e.requestedHeight = sanitizeHeight(h)
	h = e.clampHeight(h)
	if h == e.liquidHeight && !e.stopped {
		e.mu.Unlock()
		return
	}
	var ev events
	e.cancelLocked(&ev)

	e.liquidHeight = h
	var resets []int
	e.active, resets = systems.ApplyMask(e.grid, h)
	if len(resets) > 0 {
		e.logger.Debug("mask reset", "active", e.active, "resets", len(resets))
	}
	e.refreshLocked(&ev)
	e.scheduleLocked(&ev, telemetry.TriggerLiquid)
	e.unlockAndEmit(ev)
}

// SetDesiredValues is SetDesired for host-supplied floating point quantities.
// Negative and non-finite values count as zero.
func (e *Engine) SetDesiredValues(substance, primary, secondary float64) {
	e.SetDesired(components.CountsFromFloats(substance, primary, secondary))
}

// SetDesired sets the target counts. Dropping from a non-empty target to an empty one
// drains the active window in a single operation; other changes start a new
// incremental cycle. An unchanged target is a no-op unless the engine was stopped.
func (e *Engine) SetDesired(c components.Counts) {
	c = c.Normalized()

	e.mu.Lock()
	if c == e.desired && !e.stopped {
		e.mu.Unlock()
		return
	}
	var ev events
	e.cancelLocked(&ev)

	prev := e.desired
	e.desired = c
	if c.Sum() == 0 && prev.Sum() > 0 {
		e.drainLocked(&ev)
	} else {
		e.scheduleLocked(&ev, telemetry.TriggerDesired)
	}
	e.unlockAndEmit(ev)
}

// Advance runs one bounded reconciliation step regardless of the timer and reports
// whether more steps are needed. Lets callers drive the engine from their own loop.
func (e *Engine) Advance() bool {
	e.mu.Lock()
	var ev events
	more := e.advanceLocked(&ev)
	if !more && e.timer != nil {
		e.timer.Stop()
		e.timer = nil
		e.gen++
	}
	e.unlockAndEmit(ev)
	return more
}

// Stop cancels any armed tick. The next SetDesired or SetLiquidHeight schedules again,
// even when it repeats the current value.
func (e *Engine) Stop() {
	e.mu.Lock()
	var ev events
	e.cancelLocked(&ev)
	e.stopped = true
	e.unlockAndEmit(ev)
}

// Observed returns the current counts over the active window.
func (e *Engine) Observed() components.Counts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observed
}

// Desired returns the current target counts.
func (e *Engine) Desired() components.Counts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.desired
}

// ActiveCount returns the size of the active window.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// LiquidHeight returns the clamped liquid height.
func (e *Engine) LiquidHeight() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liquidHeight
}

// Layout returns the current grid geometry.
func (e *Engine) Layout() systems.Layout {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.Layout()
}

// Slots returns a renderer snapshot of the grid.
func (e *Engine) Slots() []components.Slot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.Slots(e.active)
}

// Pending reports whether a tick is armed.
func (e *Engine) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timer != nil
}

// Ticks returns how many reconciliation steps have run.
func (e *Engine) Ticks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickCount
}

// fire is the timer callback. Callbacks from a cancelled generation do nothing.
func (e *Engine) fire(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.timer == nil {
		e.mu.Unlock()
		return
	}
	e.timer = nil

	var ev events
	if e.advanceLocked(&ev) {
		e.armLocked()
	}
	e.unlockAndEmit(ev)
}

// advanceLocked runs one step and closes the open cycle on convergence or stall.
func (e *Engine) advanceLocked(ev *events) bool {
	res := e.rec.Step(e.grid, e.active, e.desired)
	if len(res.Mutations) == 0 && res.Converged {
		e.finishLocked(ev, telemetry.OutcomeConverged)
		return false
	}

	e.tickCount++
	cycleID := 0
	if e.cycle != nil {
		e.cycle.Ticks++
		e.cycle.Mutations += len(res.Mutations)
		cycleID = e.cycle.Cycle
	}

	running := e.observed
	for _, m := range res.Mutations {
		running.Add(m.From, -1)
		running.Add(m.To, 1)
		ev.observed = append(ev.observed, running)
		ev.mutations = append(ev.mutations, telemetry.MutationRecord{
			Cycle: cycleID,
			Tick:  e.tickCount,
			Index: m.Index,
			From:  m.From.String(),
			To:    m.To.String(),
		})
	}
	e.observed = res.Observed

	e.logger.Debug("tick",
		"tick", e.tickCount,
		"mutations", len(res.Mutations),
		"remaining", e.desired.Sub(e.observed).AbsSum(),
	)

	switch {
	case res.Converged:
		e.finishLocked(ev, telemetry.OutcomeConverged)
		return false
	case res.Stalled:
		e.finishLocked(ev, telemetry.OutcomeStalled)
		return false
	}
	return true
}

// drainLocked empties the active window in one pass.
func (e *Engine) drainLocked(ev *events) {
	e.stopped = false
	muts := systems.Drain(e.grid, e.active)
	e.openCycleLocked(telemetry.TriggerDesired)
	e.cycle.Mutations = len(muts)
	for _, m := range muts {
		ev.mutations = append(ev.mutations, telemetry.MutationRecord{
			Cycle: e.cycle.Cycle,
			Tick:  e.tickCount,
			Index: m.Index,
			From:  m.From.String(),
			To:    m.To.String(),
		})
	}
	e.refreshLocked(ev)
	e.finishLocked(ev, telemetry.OutcomeDrained)
}

// scheduleLocked opens a cycle for trigger and arms a tick if any diff remains.
func (e *Engine) scheduleLocked(ev *events, trigger telemetry.Trigger) {
	e.stopped = false
	e.openCycleLocked(trigger)
	if e.desired.Sub(e.observed).IsZero() {
		e.finishLocked(ev, telemetry.OutcomeConverged)
		return
	}
	e.armLocked()
}

// armLocked arms the tick timer for the current generation.
func (e *Engine) armLocked() {
	gen := e.gen
	e.timer = e.clock.AfterFunc(e.opts.TickInterval, func() { e.fire(gen) })
}

// cancelLocked stops the armed timer and closes any open cycle as cancelled.
func (e *Engine) cancelLocked(ev *events) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	if e.cycle != nil {
		e.finishLocked(ev, telemetry.OutcomeCancelled)
	}
}

func (e *Engine) openCycleLocked(trigger telemetry.Trigger) {
	e.cycleSeq++
	e.cycle = &telemetry.CycleStats{Cycle: e.cycleSeq, Trigger: trigger}
}

func (e *Engine) finishLocked(ev *events, outcome telemetry.Outcome) {
	if e.cycle == nil {
		return
	}
	stats := *e.cycle
	e.cycle = nil

	stats.Outcome = outcome
	stats.ActiveCount = e.active
	stats.SetCounts(e.desired, e.observed)
	ev.cycles = append(ev.cycles, stats)

	if outcome == telemetry.OutcomeStalled {
		e.logger.Info("cycle stalled", "cycle", stats)
	} else {
		e.logger.Debug("cycle finished", "cycle", stats)
	}
}

// refreshLocked re-tallies the active window and queues a notification on change.
func (e *Engine) refreshLocked(ev *events) {
	obs := systems.Tally(e.grid, e.active)
	if obs != e.observed {
		e.observed = obs
		ev.observed = append(ev.observed, obs)
	}
}

// unlockAndEmit queues ev, releases the lock and delivers pending notifications in
// order. Whoever finds the queue idle drains it; re-entrant and concurrent callers
// only append, so a callback may safely call back into the engine.
func (e *Engine) unlockAndEmit(ev events) {
	if !ev.empty() {
		e.queue = append(e.queue, ev)
	}
	if e.dispatching {
		e.mu.Unlock()
		return
	}
	e.dispatching = true
	for len(e.queue) > 0 {
		next := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()
		e.emit(next)
		e.mu.Lock()
	}
	e.queue = nil
	e.dispatching = false
	e.mu.Unlock()
}

// emit delivers one batch of notifications. Must be called without the lock held.
func (e *Engine) emit(ev events) {
	if e.opts.OnMutations != nil && len(ev.mutations) > 0 {
		e.opts.OnMutations(ev.mutations)
	}
	if e.opts.OnObserved != nil {
		for _, c := range ev.observed {
			e.opts.OnObserved(c)
		}
	}
	if e.opts.OnCycle != nil {
		for _, c := range ev.cycles {
			e.opts.OnCycle(c)
		}
	}
}

func (e *Engine) clampHeight(h float64) float64 {
	return math.Min(sanitizeHeight(h), e.maxHeight)
}

// sanitizeHeight differs from sanitizeDim in keeping +Inf, which means "full".
func sanitizeHeight(h float64) float64 {
	if math.IsNaN(h) || h < 0 {
		return 0
	}
	return h
}

func sanitizeDim(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
