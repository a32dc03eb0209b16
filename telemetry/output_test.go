package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/beaker/config"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("expected nil manager, got %v, %v", om, err)
	}
	// Nil manager methods are no-ops.
	if err := om.WriteCycle(CycleStats{}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
	if om.Dir() != "" {
		t.Error("nil manager should report an empty dir")
	}
}

func TestRecorderWritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	r := NewRecorder(om, true)
	r.RecordCycle(CycleStats{Cycle: 1, Trigger: TriggerDesired, Outcome: OutcomeConverged, Ticks: 2, Mutations: 3})
	r.RecordCycle(CycleStats{Cycle: 2, Trigger: TriggerLiquid, Outcome: OutcomeStalled, Ticks: 1})
	r.RecordMutations([]MutationRecord{
		{Cycle: 1, Tick: 1, Index: 4, From: "water", To: "substance"},
		{Cycle: 1, Tick: 1, Index: 9, From: "water", To: "substance"},
	})
	r.RecordMutations([]MutationRecord{{Cycle: 1, Tick: 2, Index: 12, From: "water", To: "substance"}})

	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if r.Mutations() != 3 || len(r.Cycles()) != 2 {
		t.Errorf("recorder holds %d mutations, %d cycles", r.Mutations(), len(r.Cycles()))
	}

	cycles := readLines(t, filepath.Join(dir, "cycles.csv"))
	if len(cycles) != 3 {
		t.Fatalf("cycles.csv has %d lines, want header + 2", len(cycles))
	}
	if !strings.HasPrefix(cycles[0], "cycle,trigger,outcome,ticks,mutations") {
		t.Errorf("unexpected header %q", cycles[0])
	}
	if !strings.HasPrefix(cycles[2], "2,liquid,stalled,1,0") {
		t.Errorf("unexpected row %q", cycles[2])
	}

	muts := readLines(t, filepath.Join(dir, "mutations.csv"))
	if len(muts) != 4 || muts[0] != "cycle,tick,index,from,to" {
		t.Errorf("mutations.csv = %q", muts)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config snapshot missing: %v", err)
	}
}

func TestRecorderWithoutMutationLog(t *testing.T) {
	r := NewRecorder(nil, false)
	r.RecordMutations([]MutationRecord{{Index: 1}, {Index: 2}})
	r.RecordCycle(CycleStats{Outcome: OutcomeConverged, Ticks: 1, Mutations: 2})
	if r.Mutations() != 2 {
		t.Errorf("mutations = %d, want 2", r.Mutations())
	}
	if s := r.Summary(); s.Converged != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}
