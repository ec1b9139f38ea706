package cli

import (
	"fmt"
	"math"

	"github.com/coffersTech/ftfcut/internal/config"
	"github.com/coffersTech/ftfcut/internal/engine"
	"github.com/coffersTech/ftfcut/internal/storage"
	"github.com/spf13/cobra"
)

type cutOptions struct {
	start, end    uint64
	input, output string
	report        string
	unknown       string
	compress      string
}

func newCutCommand(root *rootOptions) *cobra.Command {
	o := &cutOptions{}
	cmd := &cobra.Command{
		Use:   "cut",
		Short: "Write the events inside a timestamp window to a new trace",
		Long: "Copies every event whose timestamp lies in [start, end] to the output,\n" +
			"preceded by the string records it references. All records other than\n" +
			"events and strings are copied unchanged.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCut(cmd, root, o)
		},
	}

	f := cmd.Flags()
	f.Uint64VarP(&o.start, "start-ts", "s", 0, "first timestamp to keep, in trace ticks")
	f.Uint64VarP(&o.end, "end-ts", "e", math.MaxUint64, "last timestamp to keep, in trace ticks")
	f.StringVarP(&o.input, "input-path", "i", "", "trace to read")
	f.StringVarP(&o.output, "output-path", "o", "", "trace to write (.zst suffix compresses with auto)")
	f.StringVar(&o.report, "report", "", "write a JSON run report to this path")
	f.StringVar(&o.unknown, "unknown-events", "", "async and flow events: include, drop or fail")
	f.StringVar(&o.compress, "compress", "", "output compression: none, zstd or auto")
	_ = cmd.MarkFlagRequired("input-path")
	_ = cmd.MarkFlagRequired("output-path")
	return cmd
}

func runCut(cmd *cobra.Command, root *rootOptions, o *cutOptions) error {
	flags := cmd.Flags()
	cfg, logger, err := root.setup(cmd, func(cfg *config.Config) {
		if flags.Changed("unknown-events") {
			cfg.Cut.UnknownEvents = o.unknown
		}
		if flags.Changed("compress") {
			cfg.Output.Compression = o.compress
		}
		if flags.Changed("report") {
			cfg.Output.Report = o.report
		}
	})
	if err != nil {
		return err
	}

	window := engine.Window{Start: o.start, End: o.end}
	if err := window.Validate(); err != nil {
		return err
	}

	r, err := storage.Open(o.input, cfg.Cut.ReadBuffer)
	if err != nil {
		return err
	}
	defer r.Close()
	if !r.Seekable() {
		return fmt.Errorf("%s: %w; decompress it before cutting", o.input, storage.ErrNotSeekable)
	}

	w, err := storage.Create(o.output, cfg.WriterOptions())
	if err != nil {
		return err
	}

	logger.Info("Cutting", "input", o.input, "output", o.output)
	stats, cutErr := engine.NewCutter(r, w, engine.Options{
		Filter:        engine.Filter{Window: window, Unknown: cfg.Policy()},
		Logger:        logger,
		ProgressEvery: cfg.Cut.ProgressEvery,
	}).Cut()
	closeErr := w.Close()
	if cutErr != nil {
		return cutErr
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", o.output, closeErr)
	}

	if cfg.Output.Report != "" {
		if err := stats.SaveReport(cfg.Output.Report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Debug("report written", "path", cfg.Output.Report)
	}

	fmt.Fprintf(root.stdout, "kept %d of %d events, backfilled %d strings, wrote %d bytes to %s\n",
		stats.EventsKept, stats.EventsSeen, stats.StringsBackfilled, stats.BytesWritten, o.output)
	return nil
}
