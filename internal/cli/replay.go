package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mlcg/internal/harness"
	"github.com/roach88/mlcg/internal/ir"
	"github.com/roach88/mlcg/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single recorded run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	Target        string `json:"target"`
	Language      string `json:"language"`
	Resolutions   int    `json:"resolutions"`
	Deterministic bool   `json:"deterministic"`
	Mismatch      string `json:"mismatch,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Scenario         string            `json:"scenario"`
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Re-lower a scenario and compare with recorded runs",
		Long: `Re-lower a scenario and verify it reproduces its recorded runs.

Every run of the scenario in the database (or only --run) is lowered again
through the recorded target and language. The generated code, its hash,
the error code and the ordered dispatch resolutions must all match.

Exit codes:
  0 - All runs reproduced
  1 - A run did not reproduce (differences detected)
  2 - Command error (database not found, unknown run, etc.)

Examples:
  mlcg replay --db ./runs.db testdata/scenarios/fma_negate.yaml
  mlcg replay --db ./runs.db --run 0190f3c4-... testdata/scenarios/fma_negate.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, scenarioPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := context.Background()

	scenario, err := harness.LoadScenario(scenarioPath)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load %s", scenarioPath), err)
	}

	db, err := openExistingRunLog(opts.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	st := db.Store

	runs, err := recordedRuns(ctx, st, scenario.Name, opts.RunID)
	if err != nil {
		return err
	}

	result := ReplayResult{
		Scenario:         scenario.Name,
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}
	for _, run := range runs {
		runResult, err := replayRun(ctx, st, scenario, run)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}
		formatter.VerboseLog("Replayed %s: deterministic=%t", run.ID, runResult.Deterministic)

		result.Runs = append(result.Runs, runResult)
		if !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if formatter.IsJSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// recordedRuns returns the runs of scenario, or the single run runID.
func recordedRuns(ctx context.Context, st *store.Store, scenario, runID string) ([]store.Run, error) {
	if runID != "" {
		run, err := st.ReadRun(ctx, runID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read run", err)
		}
		if run.Scenario != scenario {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("run %s recorded scenario %q, not %q", runID, run.Scenario, scenario))
		}
		return []store.Run{run}, nil
	}

	all, err := st.ListRuns(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	var runs []store.Run
	for _, run := range all {
		if run.Scenario == scenario {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

// replayRun lowers scenario again through the recorded target and
// language, in a scratch run log, and compares with the recorded run.
func replayRun(ctx context.Context, st *store.Store, scenario *harness.Scenario, run store.Run) (ReplayRunResult, error) {
	recorded, err := st.ReadResolutions(ctx, run.ID)
	if err != nil {
		return ReplayRunResult{}, err
	}

	again := *scenario
	again.Target = run.Target
	again.Language = run.Language
	again.RunID = run.ID
	replayed, err := harness.Run(&again)
	if err != nil {
		return ReplayRunResult{}, err
	}

	out := ReplayRunResult{
		RunID:       run.ID,
		Target:      run.Target,
		Language:    run.Language,
		Resolutions: len(recorded),
	}
	out.Mismatch = compareReplay(run, recorded, replayed)
	out.Deterministic = out.Mismatch == ""
	return out, nil
}

// compareReplay describes the first difference between a recorded run and
// its replay, or returns "".
func compareReplay(run store.Run, recorded []store.Resolution, replayed *harness.Result) string {
	if run.IRVersion != ir.IRVersion {
		return fmt.Sprintf("recorded with IR version %s, current is %s", run.IRVersion, ir.IRVersion)
	}
	if run.ErrorCode != replayed.ErrorCode {
		return fmt.Sprintf("error code %q, replay gave %q", run.ErrorCode, replayed.ErrorCode)
	}
	if run.Output != replayed.Output {
		return "generated code differs"
	}
	if run.OutputHash != "" && run.OutputHash != ir.OutputHash(run.Language, replayed.Output) {
		return "output hash differs"
	}
	if len(recorded) != len(replayed.Trace) {
		return fmt.Sprintf("%d resolution(s), replay gave %d", len(recorded), len(replayed.Trace))
	}
	for i, r := range recorded {
		e := replayed.Trace[i]
		if r.Seq != e.Seq || r.Step != e.Step || r.Opcode != e.Opcode || r.Specifier != e.Specifier ||
			r.Signature != e.Signature || r.Processor != e.Processor || r.Operator != e.Operator {
			return fmt.Sprintf("resolution %d: %s by %s, replay gave %s by %s",
				r.Seq, r.Opcode, r.Processor, e.Opcode, e.Processor)
		}
	}
	return ""
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "replay verification failed",
		}
	}

	if err := formatter.Response(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Replay Summary: %s, %d run(s)\n", result.Scenario, result.TotalRuns)
	fmt.Fprintln(w)

	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No recorded runs for this scenario.")
		return nil
	}

	for _, run := range result.Runs {
		status := "✓"
		if !run.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Run: %s (%s/%s, %d resolution(s))\n",
			status, truncateID(run.RunID), run.Target, run.Language, run.Resolutions)
		if !run.Deterministic {
			fmt.Fprintf(w, "  Mismatch: %s\n", run.Mismatch)
		}
	}
	fmt.Fprintln(w)

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs reproduced")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay verification failed")
	return NewExitError(ExitFailure, "replay verification failed")
}
