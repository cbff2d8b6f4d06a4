package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonike/transwarp"
	"github.com/jonike/transwarp/eventbus"
	"github.com/jonike/transwarp/examples/stats"
)

// newStatsCmd creates the stats command, which runs the bundled gamma
// statistics example graph.
func newStatsCmd(cfg *Config) *cobra.Command {
	var (
		parallel int
		size     int
		seed     int64
		alpha    float64
		beta     float64
		compare  bool
		events   bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute statistical key facts of a gamma distribution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := cfg.Stats
			if size > 0 {
				sc.Size = size
			}
			if seed != 0 {
				sc.Seed = seed
			}
			if alpha > 0 {
				sc.Alpha = alpha
			}
			if beta > 0 {
				sc.Beta = beta
			}
			workers := cfg.Workers
			if parallel >= 0 {
				workers = parallel
			}

			if compare {
				return runStatsCompare(cmd.Context(), sc, workers)
			}
			return runStats(cmd.Context(), sc, workers, events)
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "p", -1, "worker count; 0 runs sequentially (default from config)")
	cmd.Flags().IntVar(&size, "size", 0, "number of gamma samples (default from config)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default from config)")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "gamma shape parameter (default from config)")
	cmd.Flags().Float64Var(&beta, "beta", 0, "gamma scale parameter (default from config)")
	cmd.Flags().BoolVar(&compare, "compare", false, "run sequentially and in parallel, reporting both timings")
	cmd.Flags().BoolVar(&events, "events", false, "log node lifecycle events")

	return cmd
}

func runStats(ctx context.Context, sc StatsConfig, workers int, events bool) error {
	logger := loggerFromContext(ctx)
	logger.Debug("building statistics graph", "size", sc.Size, "alpha", sc.Alpha, "beta", sc.Beta)

	g := stats.BuildGraph(sc.Seed, sc.Size, stats.NewInputs(sc.Alpha, sc.Beta))

	ex, closeExec, err := newExecutor(workers)
	if err != nil {
		return err
	}
	defer closeExec()

	opts := []transwarp.PassOption{transwarp.WithLogger(logger)}
	if events {
		opts = append(opts, transwarp.WithObserver(func(ev eventbus.Event) {
			logger.Info("event", "type", ev.Type, "node", ev.NodeLabel)
		}))
	}

	start := time.Now()
	if err := g.Final.ScheduleAll(ctx, ex, opts...); err != nil {
		return err
	}
	res, err := g.Final.Future().Get(ctx)
	if err != nil {
		return err
	}
	logger.Info("pass complete", "workers", workers, "elapsed", time.Since(start).Round(time.Millisecond))

	fmt.Println(res.String())
	return nil
}

// runStatsCompare runs the same computation on the sequential executor and on
// a worker pool concurrently, over independent graphs, and reports timings.
func runStatsCompare(ctx context.Context, sc StatsConfig, workers int) error {
	logger := loggerFromContext(ctx)
	if workers <= 0 {
		workers = defaultConfig().Workers
	}

	type outcome struct {
		name    string
		result  stats.Result
		elapsed time.Duration
	}
	outcomes := make([]outcome, 2)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		graph := stats.BuildGraph(sc.Seed, sc.Size, stats.NewInputs(sc.Alpha, sc.Beta))
		start := time.Now()
		if err := graph.Final.ScheduleAll(gctx, transwarp.NewSequential()); err != nil {
			return err
		}
		res, err := graph.Final.Future().Get(gctx)
		if err != nil {
			return err
		}
		outcomes[0] = outcome{name: "sequential", result: res, elapsed: time.Since(start)}
		return nil
	})

	g.Go(func() error {
		ex, err := transwarp.NewParallel(workers)
		if err != nil {
			return err
		}
		defer ex.Close()

		graph := stats.BuildGraph(sc.Seed, sc.Size, stats.NewInputs(sc.Alpha, sc.Beta))
		start := time.Now()
		if err := graph.Final.ScheduleAll(gctx, ex); err != nil {
			return err
		}
		res, err := graph.Final.Future().Get(gctx)
		if err != nil {
			return err
		}
		outcomes[1] = outcome{name: fmt.Sprintf("parallel(%d)", workers), result: res, elapsed: time.Since(start)}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	for _, o := range outcomes {
		logger.Info("executor timing", "executor", o.name, "elapsed", o.elapsed.Round(time.Millisecond))
		fmt.Printf("%-14s %s\n", o.name, o.result)
	}
	return nil
}
