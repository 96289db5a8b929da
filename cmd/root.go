package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chainsim/chainsim/sim"
	"github.com/chainsim/chainsim/sim/chain"
	"github.com/chainsim/chainsim/sim/trace"
)

var (
	// CLI flags shared by run and sweep
	seed             int64   // Seed for outcome and leg draws
	logLevel         string  // Log verbosity level
	pathFilePath     string  // Chain definition (YAML)
	engineConfigPath string  // Optional engine config (YAML)
	distanceScale    float64 // Override for distance_scale
	defaultRisk      float64 // Override for default_risk

	// run-only flags
	realtime        bool    // Pace events against the wall clock
	speed           float64 // Wall-clock speed-up in realtime mode
	traceLevel      string  // Trace verbosity: none, steps, full
	traceOutputPath string  // Write the run trace as YAML to this file

	// sweep-only flags
	sweepRuns int // Number of seeded runs
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "chainsim",
	Short: "Stochastic simulator for chip-manufacturing supply chains",
}

// runCmd simulates one traversal of the chain using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate one traversal of a supply chain",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s (valid: none, steps, full)", traceLevel)
		}
		nodes, cfg := loadInputs(cmd)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		level := trace.TraceLevel(traceLevel)
		if traceOutputPath != "" && !cmd.Flags().Changed("trace-level") {
			level = trace.TraceLevelFull
		}
		opts := runOptions{
			Seed:       seed,
			Realtime:   realtime,
			Speed:      speed,
			TraceLevel: level,
		}
		snap, rt, err := runSimulation(ctx, cmd.OutOrStdout(), nodes, cfg, opts)
		if err != nil {
			logrus.Fatalf("Simulation aborted: %v", err)
		}
		snap.Print(cmd.OutOrStdout())

		if traceOutputPath != "" && rt != nil {
			if err := writeTrace(traceOutputPath, rt); err != nil {
				logrus.Fatalf("Failed to write trace: %v", err)
			}
			logrus.Infof("Trace written to %s", traceOutputPath)
		}
		logrus.Info("Simulation complete.")
	},
}

// runOptions groups the per-invocation settings of runSimulation.
type runOptions struct {
	Seed       int64
	Realtime   bool
	Speed      float64
	TraceLevel trace.TraceLevel
}

// runSimulation drives one run to its end, streaming the narrative to out.
// The returned trace is nil when tracing is disabled.
func runSimulation(ctx context.Context, out io.Writer, nodes []sim.ChainNode, cfg sim.EngineConfig, opts runOptions) (sim.RunSnapshot, *trace.RunTrace, error) {
	engineOpts := []sim.Option{
		sim.WithSeed(sim.NewSimulationKey(opts.Seed)),
		sim.WithObserver(newConsoleObserver(out)),
	}
	var tracer *sim.TraceObserver
	if opts.TraceLevel != trace.TraceLevelNone && opts.TraceLevel != "" {
		tracer = sim.NewTraceObserver(trace.TraceConfig{Level: opts.TraceLevel})
		engineOpts = append(engineOpts, sim.WithObserver(tracer))
	}

	engine, err := sim.NewEngine(cfg, engineOpts...)
	if err != nil {
		return sim.RunSnapshot{}, nil, err
	}
	logrus.Infof("Starting simulation over %d stages, seed=%d, delays=%+v", len(nodes), opts.Seed, cfg.Delays)
	if err := engine.Start(nodes); err != nil {
		return sim.RunSnapshot{}, nil, err
	}

	if opts.Realtime {
		if err := engine.RunRealtime(ctx, opts.Speed); err != nil {
			return engine.Snapshot(), nil, fmt.Errorf("realtime run interrupted: %w", err)
		}
	} else {
		engine.RunUntilIdle()
	}

	if tracer == nil {
		return engine.Snapshot(), nil, nil
	}
	return engine.Snapshot(), tracer.Trace, nil
}

func writeTrace(path string, rt *trace.RunTrace) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := rt.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// setupLogging applies the --log flag.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadInputs reads the chain and engine configuration named by the flags.
func loadInputs(cmd *cobra.Command) ([]sim.ChainNode, sim.EngineConfig) {
	spec, err := chain.LoadPathSpec(pathFilePath)
	if err != nil {
		logrus.Fatalf("Failed to load chain: %v", err)
	}
	if err := spec.Validate(); err != nil {
		logrus.Fatalf("Invalid chain %s: %v", pathFilePath, err)
	}

	cfg, err := resolveEngineConfig(cmd, engineConfigPath)
	if err != nil {
		logrus.Fatalf("Invalid engine config: %v", err)
	}
	return spec.ChainNodes(), cfg
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerCommonFlags adds the chain, config and seed flags to c.
func registerCommonFlags(c *cobra.Command) {
	c.Flags().Int64Var(&seed, "seed", sim.DefaultSeed, "Seed for outcome and leg draws")
	c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	c.Flags().StringVar(&pathFilePath, "path", "chains/leading_edge.yaml", "Path to the chain definition (YAML)")
	c.Flags().StringVar(&engineConfigPath, "config", "", "Path to an engine config file (YAML); defaults apply when empty")
	c.Flags().Float64Var(&distanceScale, "distance-scale", sim.DefaultDistanceScale, "Multiplier applied to unit-sphere chord distances")
	c.Flags().Float64Var(&defaultRisk, "default-risk", sim.DefaultRisk, "Risk score applied to stages without one")
}

// init sets up CLI flags and subcommands
func init() {
	registerCommonFlags(runCmd)
	runCmd.Flags().BoolVar(&realtime, "realtime", false, "Pace the run against the wall clock instead of virtual time")
	runCmd.Flags().Float64Var(&speed, "speed", 1.0, "Wall-clock speed-up factor in realtime mode")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Trace verbosity: none, steps, full")
	runCmd.Flags().StringVar(&traceOutputPath, "trace-output", "", "Write the run trace as YAML to this file")

	registerCommonFlags(sweepCmd)
	sweepCmd.Flags().IntVar(&sweepRuns, "runs", 1000, "Number of seeded runs")

	validateCmd.Flags().StringVar(&pathFilePath, "path", "chains/leading_edge.yaml", "Path to the chain definition (YAML)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(validateCmd)
}
