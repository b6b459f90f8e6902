package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roach88/mlcg/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - show one run

	// Resolution filters. Without --run they search every run.
	Opcode    string
	Processor string
	Target    string
	Scenario  string
}

// filter returns the resolution filter of the options.
func (o *TraceOptions) filter() store.ResolutionFilter {
	return store.ResolutionFilter{
		RunID:     o.RunID,
		Opcode:    o.Opcode,
		Processor: o.Processor,
		Run:       store.RunFilter{Target: o.Target, Scenario: o.Scenario},
	}
}

// searching reports whether a filter applies without --run.
func (o *TraceOptions) searching() bool {
	return o.RunID == "" && (o.Opcode != "" || o.Processor != "" || o.Target != "" || o.Scenario != "")
}

// RunSummary is one line of the run listing.
type RunSummary struct {
	Seq         int64  `json:"seq"`
	ID          string `json:"id"`
	Scenario    string `json:"scenario"`
	Target      string `json:"target"`
	Language    string `json:"language"`
	Status      string `json:"status"`
	ErrorCode   string `json:"error_code,omitempty"`
	Resolutions int    `json:"resolutions"`
}

// RunListing holds every recorded run and the processor usage.
type RunListing struct {
	Runs  []RunSummary           `json:"runs"`
	Usage []store.ProcessorCount `json:"usage"`
}

// RunTrace holds one run with its resolutions.
type RunTrace struct {
	Run         store.Run          `json:"run"`
	Resolutions []store.Resolution `json:"resolutions"`
	Stats       TraceStats         `json:"stats"`
}

// ResolutionSearch holds the resolutions matching a filter across runs.
type ResolutionSearch struct {
	Resolutions []store.Resolution `json:"resolutions"`
	Stats       TraceStats         `json:"stats"`
}

// TraceStats holds summary statistics for a run trace.
type TraceStats struct {
	Resolutions int            `json:"resolutions"`
	ByProcessor map[string]int `json:"by_processor"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded lowering runs",
		Long: `Inspect the runs recorded by 'mlcg lower --db'.

Without --run, lists every run with its status and the number of
resolutions each processor supplied. With --run, shows the generated code
and the dispatch resolutions of that run in order: which processor
supplied the operator of each operation.

The --opcode and --processor filters narrow the resolutions shown. Without
--run, any filter (including --target and --scenario, which select runs)
searches the resolutions of every matching run instead.

Examples:
  mlcg trace --db ./runs.db
  mlcg trace --db ./runs.db --run 0190f3c4-...
  mlcg trace --db ./runs.db --run 0190f3c4-... --opcode Addition --format json
  mlcg trace --db ./runs.db --target x86_avx2 --processor generic`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show")
	cmd.Flags().StringVar(&opts.Opcode, "opcode", "", "filter resolutions to one opcode")
	cmd.Flags().StringVar(&opts.Processor, "processor", "", "filter resolutions to one resolving processor")
	cmd.Flags().StringVar(&opts.Target, "target", "", "search runs of one target")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "search runs of one scenario")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := context.Background()

	db, err := openExistingRunLog(opts.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	st := db.Store

	if opts.searching() {
		search, err := searchResolutions(ctx, st, opts.filter())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to search resolutions", err)
		}
		if formatter.IsJSON() {
			return formatter.Success(search)
		}
		outputResolutionSearch(formatter.Writer, search, opts.Verbose)
		return nil
	}

	if opts.RunID == "" {
		listing, err := listRuns(ctx, st)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if formatter.IsJSON() {
			return formatter.Success(listing)
		}
		outputRunListing(formatter.Writer, listing)
		return nil
	}

	trace, err := readRunTrace(ctx, st, opts.filter())
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if formatter.IsJSON() {
		return formatter.Response(CLIResponse{Status: "ok", Data: trace, RunID: trace.Run.ID})
	}
	outputRunTrace(formatter.Writer, trace, opts.Verbose)
	return nil
}

func listRuns(ctx context.Context, st *store.Store) (RunListing, error) {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return RunListing{}, err
	}

	listing := RunListing{Runs: make([]RunSummary, 0, len(runs))}
	for _, run := range runs {
		resolutions, err := st.ReadResolutions(ctx, run.ID)
		if err != nil {
			return RunListing{}, err
		}
		listing.Runs = append(listing.Runs, RunSummary{
			Seq:         run.Seq,
			ID:          run.ID,
			Scenario:    run.Scenario,
			Target:      run.Target,
			Language:    run.Language,
			Status:      run.Status,
			ErrorCode:   run.ErrorCode,
			Resolutions: len(resolutions),
		})
	}

	listing.Usage, err = st.ProcessorUsage(ctx)
	if err != nil {
		return RunListing{}, err
	}
	return listing, nil
}

func readRunTrace(ctx context.Context, st *store.Store, filter store.ResolutionFilter) (RunTrace, error) {
	run, err := st.ReadRun(ctx, filter.RunID)
	if err != nil {
		return RunTrace{}, err
	}
	resolutions, err := st.FindResolutions(ctx, filter)
	if err != nil {
		return RunTrace{}, err
	}
	return RunTrace{Run: run, Resolutions: resolutions, Stats: statsOf(resolutions)}, nil
}

func searchResolutions(ctx context.Context, st *store.Store, filter store.ResolutionFilter) (ResolutionSearch, error) {
	resolutions, err := st.FindResolutions(ctx, filter)
	if err != nil {
		return ResolutionSearch{}, err
	}
	return ResolutionSearch{Resolutions: resolutions, Stats: statsOf(resolutions)}, nil
}

func statsOf(resolutions []store.Resolution) TraceStats {
	return TraceStats{
		Resolutions: len(resolutions),
		ByProcessor: lo.CountValuesBy(resolutions, func(r store.Resolution) string { return r.Processor }),
	}
}

func outputRunListing(w io.Writer, listing RunListing) {
	if len(listing.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	fmt.Fprintln(w, "=== Runs ===")
	for _, run := range listing.Runs {
		status := run.Status
		if run.ErrorCode != "" {
			status += " (" + run.ErrorCode + ")"
		}
		fmt.Fprintf(w, "  [%d] %s %s %s/%s %s, %d resolution(s)\n",
			run.Seq, truncateID(run.ID), run.Scenario, run.Target, run.Language, status, run.Resolutions)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Processor usage ===")
	for _, pc := range listing.Usage {
		fmt.Fprintf(w, "  %-12s %d\n", pc.Processor, pc.Count)
	}
}

func outputRunTrace(w io.Writer, trace RunTrace, verbose bool) {
	run := trace.Run
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "Scenario: %s (%s/%s)\n", run.Scenario, run.Target, run.Language)
	fmt.Fprintf(w, "Status: %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Resolutions ===")
	if len(trace.Resolutions) == 0 {
		fmt.Fprintln(w, "  (no resolutions)")
	}
	for _, r := range trace.Resolutions {
		outputResolution(w, "", r, verbose)
	}
	fmt.Fprintln(w)

	if run.Output != "" {
		fmt.Fprintln(w, "=== Output ===")
		fmt.Fprint(w, run.Output)
		fmt.Fprintln(w)
	}
}

func outputResolutionSearch(w io.Writer, search ResolutionSearch, verbose bool) {
	if len(search.Resolutions) == 0 {
		fmt.Fprintln(w, "No matching resolutions.")
		return
	}

	fmt.Fprintf(w, "=== Matching resolutions (%d) ===\n", search.Stats.Resolutions)
	for _, r := range search.Resolutions {
		outputResolution(w, truncateID(r.RunID)+" ", r, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== By processor ===")
	names := lo.Keys(search.Stats.ByProcessor)
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %d\n", name, search.Stats.ByProcessor[name])
	}
}

// outputResolution prints one resolution line, prefixed by prefix.
func outputResolution(w io.Writer, prefix string, r store.Resolution, verbose bool) {
	key := r.Opcode
	if r.Specifier != "" {
		key += "." + r.Specifier
	}
	fmt.Fprintf(w, "  %s[%d] %s %s by %s\n", prefix, r.Seq, r.Step, key, r.Processor)
	if verbose {
		fmt.Fprintf(w, "       signature: %s\n", r.Signature)
		fmt.Fprintf(w, "       operator:  %s\n", r.Operator)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
