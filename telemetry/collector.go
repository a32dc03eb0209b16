package telemetry

import (
	"log/slog"
	"sync"
)

// Recorder accumulates cycle and mutation records for a run and forwards them to an
// optional OutputManager. Safe for use from engine callbacks on any goroutine.
type Recorder struct {
	mu           sync.Mutex
	out          *OutputManager
	logMutations bool

	cycles    []CycleStats
	mutations int
}

// NewRecorder creates a recorder. out may be nil to keep records in memory only.
func NewRecorder(out *OutputManager, logMutations bool) *Recorder {
	return &Recorder{out: out, logMutations: logMutations}
}

// RecordCycle stores a finished cycle and writes it out.
func (r *Recorder) RecordCycle(stats CycleStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cycles = append(r.cycles, stats)
	if err := r.out.WriteCycle(stats); err != nil {
		slog.Warn("telemetry write failed", "error", err)
	}
}

// RecordMutations counts a tick's slot changes and, when enabled, writes them out.
func (r *Recorder) RecordMutations(records []MutationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mutations += len(records)
	if !r.logMutations {
		return
	}
	if err := r.out.WriteMutations(records); err != nil {
		slog.Warn("telemetry write failed", "error", err)
	}
}

// Cycles returns a copy of the recorded cycles.
func (r *Recorder) Cycles() []CycleStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CycleStats, len(r.cycles))
	copy(out, r.cycles)
	return out
}

// Mutations returns the number of slot changes seen.
func (r *Recorder) Mutations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutations
}

// Summary summarises every recorded cycle.
func (r *Recorder) Summary() Summary {
	return Summarize(r.Cycles())
}
