package main

import (
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/pthm-cable/beaker/components"
	"github.com/pthm-cable/beaker/config"
	"github.com/pthm-cable/beaker/engine"
	"github.com/pthm-cable/beaker/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	realtime := flag.Bool("realtime", false, "Tick on the wall clock instead of a manual clock")
	maxTicks := flag.Int("max-ticks", 10000, "Tick limit per scenario step in headless mode")
	verbose := flag.Bool("verbose", false, "Log every tick and observed count change")

	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	out, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
		os.Exit(1)
	}

	recorder := telemetry.NewRecorder(out, cfg.Telemetry.LogMutations)

	var clock engine.Clock = engine.RealClock{}
	manual := engine.NewManualClock()
	if !*realtime {
		clock = manual
	}

	opts := engine.OptionsFromConfig(cfg)
	opts.Rand = rand.New(rand.NewSource(rngSeed))
	opts.Clock = clock
	opts.Logger = logger
	opts.OnCycle = recorder.RecordCycle
	opts.OnMutations = recorder.RecordMutations
	opts.OnObserved = func(c components.Counts) {
		logger.Debug("observed",
			"substance", c.Substance,
			"primary", c.Primary,
			"secondary", c.Secondary,
		)
	}

	eng := engine.New(opts)
	defer eng.Stop()

	width, maxHeight := cfg.Grid.Width, cfg.Grid.MaxHeight
	eng.SetGeometry(width, maxHeight)
	layout := eng.Layout()

	slog.Info("starting scenario",
		"seed", rngSeed,
		"realtime", *realtime,
		"cols", layout.Cols,
		"rows", layout.Rows,
		"slots", layout.Len(),
		"steps", len(cfg.Scenario),
	)

	for i, step := range cfg.Scenario {
		if step.Width != nil {
			width = *step.Width
		}
		if step.MaxHeight != nil {
			maxHeight = *step.MaxHeight
		}
		if step.Width != nil || step.MaxHeight != nil {
			eng.SetGeometry(width, maxHeight)
		}
		if step.LiquidHeight != nil {
			eng.SetLiquidHeight(*step.LiquidHeight)
		}
		if step.Desired != nil {
			eng.SetDesired(*step.Desired)
		}

		if *realtime {
			hold(eng, step, cfg.Derived.TickInterval)
		} else {
			limit := *maxTicks
			if step.Ticks > 0 {
				limit = step.Ticks
			}
			manual.RunUntilIdle(limit)
		}

		obs := eng.Observed()
		slog.Info("step",
			"index", i,
			"name", step.Name,
			"active", eng.ActiveCount(),
			"substance", obs.Substance,
			"primary", obs.Primary,
			"secondary", obs.Secondary,
			"pending", eng.Pending(),
		)
	}

	slog.Info("summary", "summary", recorder.Summary())
}

// hold waits on the wall clock for step.Hold seconds, or until the engine goes idle.
func hold(eng *engine.Engine, step config.ScenarioStep, interval time.Duration) {
	if step.Hold > 0 {
		time.Sleep(time.Duration(step.Hold * float64(time.Second)))
		return
	}
	for eng.Pending() {
		time.Sleep(interval)
	}
}
