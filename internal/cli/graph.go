package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonike/transwarp"
	"github.com/jonike/transwarp/examples/stats"
	"github.com/jonike/transwarp/graphfile"
	"github.com/jonike/transwarp/render"
)

// newGraphCmd creates the graph command, which serializes a task graph as
// DOT or renders it to SVG. Without a file argument it visualizes the
// bundled statistics example.
func newGraphCmd(cfg *Config) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "graph [file]",
		Short: "Serialize a task graph as DOT or SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := snapshotGraph(cfg, args)
			if err != nil {
				return err
			}

			var data []byte
			switch format {
			case "dot":
				data = []byte(g.DOT())
			case "svg":
				var opts []render.Option
				if cfg.Render.CacheDir != "" {
					opts = append(opts, render.WithFileCache(
						cfg.Render.CacheTTL.Duration, cfg.Render.CacheDir, loggerFromContext(cmd.Context())))
				} else {
					opts = append(opts, render.WithMemoryCache(cfg.Render.CacheTTL.Duration))
				}
				data, err = render.New(opts...).SVG(cmd.Context(), g)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format '%s', expected dot or svg", format)
			}

			if output == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			loggerFromContext(cmd.Context()).Info("graph written", "path", output, "format", format)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot or svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}

// snapshotGraph builds the graph to visualize: a YAML graph file when given,
// otherwise the statistics example.
func snapshotGraph(cfg *Config, args []string) (*transwarp.Graph, error) {
	if len(args) == 0 {
		sc := cfg.Stats
		g := stats.BuildGraph(sc.Seed, sc.Size, stats.NewInputs(sc.Alpha, sc.Beta))
		return g.Final.Graph(), nil
	}

	f, err := graphfile.Load(args[0])
	if err != nil {
		return nil, err
	}
	built, err := f.Build()
	if err != nil {
		return nil, err
	}
	return built.Final.Graph(), nil
}
