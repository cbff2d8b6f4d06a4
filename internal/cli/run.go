package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonike/transwarp"
	"github.com/jonike/transwarp/eventbus"
	"github.com/jonike/transwarp/graphfile"
)

// newRunCmd creates the run command, which executes a declarative YAML
// graph file and prints every node's result.
func newRunCmd(cfg *Config) *cobra.Command {
	var (
		parallel int
		params   []string
		events   bool
	)

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a YAML graph file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			f, err := graphfile.Load(args[0])
			if err != nil {
				return err
			}
			built, err := f.Build()
			if err != nil {
				return err
			}
			if err := setParams(built.Params, params); err != nil {
				return err
			}

			workers := cfg.Workers
			if parallel >= 0 {
				workers = parallel
			}
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
			if err := built.Final.ScheduleAll(ctx, ex, opts...); err != nil {
				return err
			}
			logger.Info("pass complete", "elapsed", time.Since(start).Round(time.Millisecond))

			ids := make([]string, 0, len(built.Tasks))
			for id := range built.Tasks {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				v, err := built.Tasks[id].Future().Get(ctx)
				if err != nil {
					fmt.Printf("%s: error: %v\n", id, err)
					continue
				}
				fmt.Printf("%s: %v\n", id, v)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "p", -1, "worker count; 0 runs sequentially (default from config)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "graph parameter as name=value (repeatable)")
	cmd.Flags().BoolVar(&events, "events", false, "log node lifecycle events")

	return cmd
}

// setParams parses name=value pairs into the graph's parameter bundle.
// Values parse as numbers or booleans where possible, otherwise strings.
func setParams(p *graphfile.Params, pairs []string) error {
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid parameter '%s', expected name=value", pair)
		}
		p.Set(name, parseValue(raw))
	}
	return nil
}

func parseValue(raw string) any {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
