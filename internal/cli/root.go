package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version string // semantic version (e.g., "v1.2.3")
	commit  string // git commit SHA
	date    string // build timestamp
)

// SetVersion sets the version information displayed by --version. It is
// typically called by the main package with values injected via ldflags.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the transwarp CLI and returns an error if any command fails.
//
// Logging defaults to info level on stderr; --verbose (-v) enables debug
// level. The logger is attached to the context and accessible to all
// commands via loggerFromContext. A TOML config file may be supplied with
// --config; flags override config values.
func Execute(ctx context.Context) error {
	var (
		verbose    bool
		configPath string
		cfg        Config
	)

	root := &cobra.Command{
		Use:          "transwarp",
		Short:        "Transwarp schedules dependency graphs of tasks",
		Long:         `Transwarp builds directed acyclic graphs of tasks and executes them with dependency-aware scheduling, sequentially or on a worker pool.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))

			var err error
			cfg, err = loadConfig(configPath)
			return err
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("transwarp %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")

	root.AddCommand(newStatsCmd(&cfg))
	root.AddCommand(newGraphCmd(&cfg))
	root.AddCommand(newRunCmd(&cfg))

	return root.ExecuteContext(ctx)
}
