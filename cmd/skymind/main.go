// Command skymind runs a headless drone simulation over a map description.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/elektrokombinacija/skymind-sim/internal/core"
	"github.com/elektrokombinacija/skymind-sim/internal/logging"
	"github.com/elektrokombinacija/skymind-sim/internal/mapio"
	"github.com/elektrokombinacija/skymind-sim/internal/sim"
)

type options struct {
	mapPath     string
	configPath  string
	until       float64
	assign      bool
	snapshots   string
	metrics     string
	missionsCSV string
	logLevel    string
	logFormat   string
}

func main() {
	var opts options
	flag.StringVar(&opts.mapPath, "map", "", "Map description (.json, .txt or .map)")
	flag.StringVar(&opts.configPath, "config", "", "YAML simulation config (defaults when empty)")
	flag.Float64Var(&opts.until, "until", 0, "Stop at this simulated time (0 = run to max_time)")
	flag.BoolVar(&opts.assign, "assign", false, "Pool agent goals and match agents to them by path cost")
	flag.StringVar(&opts.snapshots, "snapshots", "", "Write one JSON snapshot per timestamp to this file")
	flag.StringVar(&opts.metrics, "metrics", "", "Write the metrics report (JSON) to this file")
	flag.StringVar(&opts.missionsCSV, "missions-csv", "", "Write per-agent mission records (CSV) to this file")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	flag.Parse()

	if opts.mapPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -map is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	log := logging.NewSlogLogger(level, opts.logFormat).With("run", runID)

	cfg := sim.DefaultConfig()
	if opts.configPath != "" {
		if cfg, err = sim.LoadConfig(opts.configPath); err != nil {
			return err
		}
	}

	desc, err := mapio.Load(opts.mapPath)
	if err != nil {
		return err
	}
	grid, agents, err := desc.Build()
	if err != nil {
		return err
	}

	engineOpts := []sim.Option{sim.WithLogger(log), sim.WithRunID(runID)}
	var snapshots *sim.JSONLObserver
	if opts.snapshots != "" {
		f, err := os.Create(opts.snapshots)
		if err != nil {
			return err
		}
		defer f.Close()
		snapshots = sim.NewJSONLObserver(f)
		engineOpts = append(engineOpts, sim.WithObserver(snapshots))
	}

	engine, err := sim.NewEngine(grid, cfg, engineOpts...)
	if err != nil {
		return err
	}
	log.Info("map loaded", "map", desc.Name,
		"size", fmt.Sprintf("%dx%dx%d", grid.Width(), grid.Height(), grid.Depth()),
		"obstacles", len(grid.ObstacleCells()), "agents", len(agents))

	var pooled []core.Cell
	for _, a := range agents {
		if opts.assign && a.Goal != nil {
			pooled = append(pooled, *a.Goal)
			a.Goal = nil
		}
		if err := engine.AddAgent(a); err != nil {
			return err
		}
	}
	if len(pooled) > 0 {
		matched, err := engine.AssignGoals(ctx, pooled)
		if err != nil {
			return fmt.Errorf("assign goals: %w", err)
		}
		log.Info("goals assigned", "goals", len(pooled), "matched", len(matched))
	}

	if err := engine.PlanPending(ctx); err != nil {
		return fmt.Errorf("initial planning: %w", err)
	}

	var m *sim.SimulationMetrics
	if opts.until > 0 {
		engine.RunUntil(opts.until)
		metrics := engine.Metrics()
		m = &metrics
	} else if m, err = engine.Run(ctx); err != nil {
		log.Warn("simulation interrupted", "err", err, "t", m.SimulatedTime)
	}

	if snapshots != nil {
		if err := snapshots.Err(); err != nil {
			return fmt.Errorf("write snapshots: %w", err)
		}
	}
	if opts.metrics != "" {
		if err := engine.ExportMetrics(opts.metrics); err != nil {
			return err
		}
	}
	if opts.missionsCSV != "" {
		if err := engine.ExportMissionsCSV(opts.missionsCSV); err != nil {
			return err
		}
	}

	fmt.Printf("t=%.2fs agents=%d finished=%d crashed=%d failed=%d distance=%.2f events=%d\n",
		m.SimulatedTime, m.Agents, m.AgentsFinished, m.AgentsCrashed, m.AgentsFailed,
		m.TotalDistance, m.EventsDispatched)
	return nil
}
