// Package cli wires the ftfcut command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/coffersTech/ftfcut/internal/config"
	"github.com/coffersTech/ftfcut/internal/logging"
	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

// NewRoot constructs the ftfcut root command. Output goes to stdout, logs to
// stderr, and FTFCUT_* overrides are read through getenv.
func NewRoot(stdout, stderr io.Writer, getenv func(string) string) *cobra.Command {
	o := &rootOptions{stdout: stdout, stderr: stderr, getenv: getenv}
	root := &cobra.Command{
		Use:           "ftfcut",
		Short:         "Cut time windows out of Fuchsia trace files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "config file (.toml, .yaml or .json)")
	pf.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&o.logFormat, "log-format", "", "auto, text or json")

	root.AddCommand(newCutCommand(o))
	root.AddCommand(newInspectCommand(o))
	return root
}

// setup resolves the configuration in order defaults, file, environment,
// flags, then installs the logger. override applies command-specific flags.
func (o *rootOptions) setup(cmd *cobra.Command, override func(*config.Config)) (*config.Config, *slog.Logger, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, nil, err
		}
	}
	if err := cfg.ApplyEnv(o.getenv); err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	format, _ := logging.ParseFormat(cfg.Log.Format)
	logger := logging.Init(o.stderr, logging.ParseLevel(cfg.Log.Level), format)
	return cfg, logger, nil
}
