// Package main provides the benchmark runner for the simulator.
// Runs every map under each planner heuristic and collects metrics.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/elektrokombinacija/skymind-sim/internal/algo"
	"github.com/elektrokombinacija/skymind-sim/internal/logging"
	"github.com/elektrokombinacija/skymind-sim/internal/mapio"
	"github.com/elektrokombinacija/skymind-sim/internal/sim"
)

// BenchmarkResult stores results from a single simulation run.
type BenchmarkResult struct {
	Timestamp      string
	CommitHash     string
	GoVersion      string
	OS             string
	Arch           string
	Map            string
	NumAgents      int
	GridSize       string
	Heuristic      string
	RuntimeMs      float64
	Success        bool // every agent finished
	SimulatedTime  float64
	Finished       int
	Crashed        int
	Failed         int
	NodesExpanded  int
	PlanningMs     float64
	FallbackRoutes int
	Error          string
}

// HeuristicMetrics holds per-heuristic aggregated metrics.
type HeuristicMetrics struct {
	Name           string
	TotalRuns      int
	Successes      int
	TotalRuntimeMs float64
	TotalExpanded  int
	TotalFinished  int
	TotalAgents    int
}

var heuristics = []string{"auto", "octile", "euclidean", "chebyshev"}

func getGitCommit() string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(output))
}

func runMap(ctx context.Context, desc *mapio.Description, cfg sim.SimulationConfig, heuristic string, timeout time.Duration) *BenchmarkResult {
	result := &BenchmarkResult{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		CommitHash: getGitCommit(),
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		Map:        desc.Name,
		NumAgents:  len(desc.Agents),
		GridSize:   fmt.Sprintf("%dx%dx%d", desc.Grid.Width, desc.Grid.Height, desc.Grid.Depth),
		Heuristic:  heuristic,
	}

	fail := func(err error) *BenchmarkResult {
		result.Error = err.Error()
		return result
	}

	kind, err := algo.ParseHeuristic(heuristic)
	if err != nil {
		return fail(err)
	}
	cfg.Planner.Heuristic = kind

	// Each run gets a fresh grid; the engine mutates it on AddObstacle
	grid, agents, err := desc.Build()
	if err != nil {
		return fail(err)
	}
	engine, err := sim.NewEngine(grid, cfg, sim.WithLogger(logging.NoOpLogger{}))
	if err != nil {
		return fail(err)
	}
	for _, a := range agents {
		if err := engine.AddAgent(a); err != nil {
			return fail(err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startTime := time.Now()
	if err := engine.PlanPending(ctx); err != nil {
		return fail(err)
	}
	m, err := engine.Run(ctx)
	result.RuntimeMs = float64(time.Since(startTime).Microseconds()) / 1000.0
	if err != nil {
		return fail(err)
	}

	result.SimulatedTime = m.SimulatedTime
	result.Finished = m.AgentsFinished
	result.Crashed = m.AgentsCrashed
	result.Failed = m.AgentsFailed
	result.NodesExpanded = m.NodesExpanded
	result.PlanningMs = m.TotalPlanningTimeMs
	result.FallbackRoutes = m.FallbackNearest + m.FallbackAdjacent + m.FallbackHold
	result.Success = m.AgentsFinished == m.Agents
	return result
}

func writeCSV(results []*BenchmarkResult, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Header
	header := []string{
		"timestamp", "commit_hash", "go_version", "os", "arch",
		"map", "num_agents", "grid_size", "heuristic",
		"runtime_ms", "success", "simulated_time", "finished", "crashed", "failed",
		"nodes_expanded", "planning_ms", "fallback_routes", "error",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	// Data rows
	for _, r := range results {
		row := []string{
			r.Timestamp, r.CommitHash, r.GoVersion, r.OS, r.Arch,
			r.Map, fmt.Sprintf("%d", r.NumAgents), r.GridSize, r.Heuristic,
			fmt.Sprintf("%.3f", r.RuntimeMs), fmt.Sprintf("%t", r.Success),
			fmt.Sprintf("%.3f", r.SimulatedTime), fmt.Sprintf("%d", r.Finished),
			fmt.Sprintf("%d", r.Crashed), fmt.Sprintf("%d", r.Failed),
			fmt.Sprintf("%d", r.NodesExpanded), fmt.Sprintf("%.3f", r.PlanningMs),
			fmt.Sprintf("%d", r.FallbackRoutes), r.Error,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func printSummary(results []*BenchmarkResult) {
	// Aggregate by heuristic
	metrics := make(map[string]*HeuristicMetrics)
	for _, r := range results {
		m, ok := metrics[r.Heuristic]
		if !ok {
			m = &HeuristicMetrics{Name: r.Heuristic}
			metrics[r.Heuristic] = m
		}
		m.TotalRuns++
		m.TotalAgents += r.NumAgents
		m.TotalFinished += r.Finished
		m.TotalExpanded += r.NodesExpanded
		m.TotalRuntimeMs += r.RuntimeMs
		if r.Success {
			m.Successes++
		}
	}

	// Print summary table
	fmt.Println("\n=== BENCHMARK SUMMARY ===")
	fmt.Printf("%-12s %8s %8s %12s %14s %10s\n",
		"Heuristic", "Runs", "Success", "Avg Time(ms)", "Avg Expanded", "Finished%")
	fmt.Println(strings.Repeat("-", 70))

	var names []string
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := metrics[name]
		avgTime := m.TotalRuntimeMs / float64(m.TotalRuns)
		avgExpanded := float64(m.TotalExpanded) / float64(m.TotalRuns)
		finishedPct := 0.0
		if m.TotalAgents > 0 {
			finishedPct = float64(m.TotalFinished) / float64(m.TotalAgents) * 100
		}
		fmt.Printf("%-12s %8d %8d %12.2f %14.1f %9.1f%%\n",
			m.Name, m.TotalRuns, m.Successes, avgTime, avgExpanded, finishedPct)
	}
}

func main() {
	inputDir := flag.String("input", "testdata", "Directory containing map JSON files")
	outputFile := flag.String("output", "evidence/benchmark_results.csv", "Output CSV file")
	configPath := flag.String("config", "", "YAML simulation config (defaults when empty)")
	timeout := flag.Duration("timeout", 5*time.Minute, "Timeout per simulation run")
	heuristicFilter := flag.String("heuristic", "", "Run only specific heuristics (comma-separated)")
	agentFilter := flag.Int("agents", 0, "Run only maps with this many agents (0 = all)")
	verbose := flag.Bool("verbose", false, "Verbose output")

	flag.Parse()

	cfg := sim.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = sim.LoadConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// Create output directory
	outputDir := filepath.Dir(*outputFile)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	// Find map files
	pattern := filepath.Join(*inputDir, "*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding map files: %v\n", err)
		os.Exit(1)
	}

	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "No map files found in %s\n", *inputDir)
		fmt.Fprintf(os.Stderr, "Run gen_maps first: go run ./tools/gen_maps -scaling -output testdata\n")
		os.Exit(1)
	}

	activeHeuristics := heuristics
	if *heuristicFilter != "" {
		activeHeuristics = strings.Split(*heuristicFilter, ",")
	}

	var results []*BenchmarkResult
	totalRuns := len(files) * len(activeHeuristics)
	currentRun := 0

	fmt.Printf("Running benchmarks: %d maps x %d heuristics = %d runs\n",
		len(files), len(activeHeuristics), totalRuns)
	fmt.Printf("Timeout per run: %v\n", *timeout)
	fmt.Println()

	ctx := context.Background()
	for _, file := range files {
		desc, err := mapio.Load(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", file, err)
			continue
		}

		// Filter by agent count
		if *agentFilter > 0 && len(desc.Agents) != *agentFilter {
			continue
		}

		for _, h := range activeHeuristics {
			currentRun++
			if *verbose {
				fmt.Printf("[%d/%d] %s / %s ... ", currentRun, totalRuns, desc.Name, h)
			} else {
				fmt.Printf("\r[%d/%d] Running...", currentRun, totalRuns)
			}

			result := runMap(ctx, desc, cfg, h, *timeout)
			results = append(results, result)

			if *verbose {
				if result.Error != "" {
					fmt.Printf("ERROR (%s)\n", result.Error)
				} else {
					fmt.Printf("%d/%d finished (%.2fms, expanded=%d)\n",
						result.Finished, result.NumAgents, result.RuntimeMs, result.NodesExpanded)
				}
			}
		}
	}

	fmt.Println()

	// Write results
	if err := writeCSV(results, *outputFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing results: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Results written to: %s\n", *outputFile)

	printSummary(results)
}
