package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
	testclock "k8s.io/utils/clock/testing"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/engine"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/optimizer"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/workload"
)

var (
	runOpts configFlags

	rulesPath   string // YAML rule file replacing the default rules
	scenarioRef string // built-in scenario name or scenario YAML path
	maxTicks    int    // Stop after this many ticks (0 = whole scenario)
	realtime    bool   // Sleep on the wall clock instead of a simulated one
	metricsAddr string // Serve Prometheus metrics on this address
)

// runOptions is everything runGovernor needs once flags are resolved.
type runOptions struct {
	Config      governor.Config
	Rules       []optimizer.Rule // nil means the default rules
	Scenario    *workload.ScenarioSpec
	MaxTicks    int
	Realtime    bool
	MetricsAddr string
}

// runCmd drives the governor with a simulated game loop
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the governor against a simulated game workload",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd, &runOpts)
		if err != nil {
			return err
		}
		spec, err := workload.ResolveScenario(scenarioRef)
		if err != nil {
			return err
		}
		// The scenario seed applies unless --seed was given explicitly.
		if spec.Seed != 0 && !cmd.Flags().Changed("seed") {
			cfg.Seed = spec.Seed
		}
		opts := runOptions{
			Config:      cfg,
			Scenario:    spec,
			MaxTicks:    maxTicks,
			Realtime:    realtime,
			MetricsAddr: metricsAddr,
		}
		if rulesPath != "" {
			if opts.Rules, err = optimizer.LoadRules(rulesPath); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		startTime := time.Now()
		sum, err := runGovernor(ctx, opts)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logrus.Infof("Run finished in %s wall time", time.Since(startTime).Round(time.Millisecond))
		return printSummary(cmd.OutOrStdout(), sum)
	},
}

// runGovernor builds a governor from opts and plays the scenario through it.
// With a metrics address, /metrics is served until the run ends.
func runGovernor(ctx context.Context, opts runOptions) (engine.RunSummary, error) {
	var clk clock.Clock = testclock.NewFakeClock(time.Now())
	if opts.Realtime {
		clk = clock.RealClock{}
	}
	govOpts := []engine.Option{engine.WithClock(clk)}
	if opts.Rules != nil {
		govOpts = append(govOpts, engine.WithRules(opts.Rules))
	}
	var reg *prometheus.Registry
	if opts.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		govOpts = append(govOpts, engine.WithRegistry(reg))
	}

	gov, err := engine.New(opts.Config, govOpts...)
	if err != nil {
		return engine.RunSummary{}, err
	}
	gen, err := workload.NewGenerator(opts.Scenario, gov.RNG().ForSubsystem(governor.SubsystemWorkload))
	if err != nil {
		return engine.RunSummary{}, err
	}
	logrus.Infof("Running scenario %q: %d ticks, target %d fps, seed %d",
		gen.Name(), gen.TotalTicks(), opts.Config.TargetFPS, opts.Config.Seed)

	g, ctx := errgroup.WithContext(ctx)
	var srv *http.Server
	if reg != nil {
		srv = &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logrus.Infof("Serving metrics on %s/metrics", opts.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	var sum engine.RunSummary
	g.Go(func() error {
		var runErr error
		sum, runErr = gov.RunScenario(ctx, gen, clk, opts.MaxTicks)
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logrus.Warnf("metrics server shutdown: %v", err)
			}
		}
		return runErr
	})
	err = g.Wait()
	return sum, err
}

// printSummary writes the run summary as indented JSON under a header.
func printSummary(w io.Writer, sum engine.RunSummary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run summary: %w", err)
	}
	if _, err := fmt.Fprintln(w, "=== Governor Run Summary ==="); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func init() {
	registerConfigFlags(runCmd, &runOpts)

	runCmd.Flags().StringVar(&rulesPath, "rules", "", "YAML rule file replacing the default optimizer rules")
	runCmd.Flags().StringVar(&scenarioRef, "scenario", "spike", fmt.Sprintf("Scenario name %v or path to a scenario YAML file", workload.BuiltinScenarioNames()))
	runCmd.Flags().IntVar(&maxTicks, "ticks", 0, "Stop after this many ticks (0 = whole scenario)")
	runCmd.Flags().BoolVar(&realtime, "realtime", false, "Pace frames on the wall clock instead of a simulated clock")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}
