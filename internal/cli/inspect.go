package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/coffersTech/ftfcut/internal/engine"
	"github.com/coffersTech/ftfcut/internal/storage"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type inspectOptions struct {
	buckets  uint64
	interval uint64
	json     bool
	noColor  bool
}

func newInspectCommand(root *rootOptions) *cobra.Command {
	o := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarise the records of a trace",
		Long: "Scans a trace once and prints record counts by type, event counts by\n" +
			"kind, string table usage and the timestamp range. Compressed (.zst)\n" +
			"traces are decoded on the fly.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, root, o, args[0])
		},
	}
	f := cmd.Flags()
	f.Uint64Var(&o.buckets, "buckets", 0, "print an event histogram with about this many buckets")
	f.Uint64Var(&o.interval, "interval", 0, "histogram bucket width in ticks (overrides --buckets)")
	f.BoolVar(&o.json, "json", false, "print the summary as JSON")
	f.BoolVar(&o.noColor, "no-color", false, "disable colour output")
	return cmd
}

func runInspect(cmd *cobra.Command, root *rootOptions, o *inspectOptions, path string) error {
	cfg, logger, err := root.setup(cmd, nil)
	if err != nil {
		return err
	}

	r, err := storage.Open(path, cfg.Cut.ReadBuffer)
	if err != nil {
		return err
	}
	defer r.Close()

	sum, err := engine.Inspect(r, o.interval)
	if err != nil {
		return err
	}

	// Bucket width depends on the timestamp range, so --buckets needs a
	// second pass over the file.
	if o.interval == 0 && o.buckets > 0 && sum.HasEvents {
		interval := (sum.MaxTimestamp-sum.MinTimestamp)/o.buckets + 1
		logger.Debug("computing histogram", "interval", interval)
		r2, err := storage.Open(path, cfg.Cut.ReadBuffer)
		if err != nil {
			return err
		}
		defer r2.Close()
		points, err := engine.ComputeHistogram(r2, interval, engine.Window{Start: sum.MinTimestamp, End: sum.MaxTimestamp})
		if err != nil {
			return err
		}
		sum.Histogram = points
	}

	if o.json {
		_, err := root.stdout.Write(append(sum.AppendJSON(nil), '\n'))
		return err
	}
	if o.noColor {
		color.NoColor = true
	}
	printSummary(root.stdout, path, sum)
	return nil
}

func printSummary(w io.Writer, path string, s *engine.Summary) {
	bold := color.New(color.Bold)
	label := color.New(color.FgCyan)

	bold.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  %d records, %d bytes\n", s.Records, s.Bytes)
	label.Fprint(w, "  magic       ")
	if s.Magic {
		color.New(color.FgGreen).Fprintln(w, "present")
	} else {
		color.New(color.FgRed).Fprintln(w, "missing")
	}
	if s.TicksPerSecond > 0 {
		label.Fprint(w, "  ticks/s     ")
		fmt.Fprintln(w, s.TicksPerSecond)
	}
	label.Fprint(w, "  strings     ")
	fmt.Fprintf(w, "%d indices, %d redefinitions\n", s.Strings, s.StringRedefines)
	if s.HasEvents {
		label.Fprint(w, "  timestamps  ")
		fmt.Fprintf(w, "%d .. %d", s.MinTimestamp, s.MaxTimestamp)
		if span := s.Span(); span > 0 {
			fmt.Fprintf(w, " (%.6fs)", span)
		}
		fmt.Fprintln(w)
	}

	printCounts(w, bold, "records", s.ByRecordType)
	printCounts(w, bold, "events", s.ByEventType)

	if len(s.Histogram) > 0 {
		bold.Fprintln(w, "histogram")
		peak := 0
		for _, p := range s.Histogram {
			peak = max(peak, p.Count)
		}
		for _, p := range s.Histogram {
			bar := strings.Repeat("#", (p.Count*40+peak-1)/peak)
			fmt.Fprintf(w, "  %20d %10d %s\n", p.Time, p.Count, bar)
		}
	}
}

func printCounts(w io.Writer, bold *color.Color, title string, counts map[string]uint64) {
	if len(counts) == 0 {
		return
	}
	bold.Fprintln(w, title)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-20s %d\n", k, counts[k])
	}
}
