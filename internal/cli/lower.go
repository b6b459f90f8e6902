package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mlcg/internal/harness"
	"github.com/roach88/mlcg/internal/store"
)

// LowerOptions holds flags for the lower command.
type LowerOptions struct {
	*RootOptions
	Database string
	Target   string // overrides the scenario's target
	Language string // overrides the scenario's language

	// IDs allows overriding the run id generator (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	IDs store.IDGenerator
}

// LoweredScenario is the outcome of lowering one scenario.
type LoweredScenario struct {
	Scenario  string   `json:"scenario"`
	Target    string   `json:"target"`
	Language  string   `json:"language"`
	RunID     string   `json:"run_id"`
	Pass      bool     `json:"pass"`
	Output    string   `json:"output,omitempty"`
	ErrorCode string   `json:"error_code,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// NewLowerCommand creates the lower command.
func NewLowerCommand(rootOpts *RootOptions) *cobra.Command {
	return newLowerCommand(&LowerOptions{RootOptions: rootOpts})
}

func newLowerCommand(opts *LowerOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lower <scenario.yaml>...",
		Short: "Lower scenarios and print the generated code",
		Long: `Lower each scenario through its target and print the generated code.

With --db, every run and its dispatch resolutions are recorded in a SQLite
database (created if missing) under a fresh run id; use 'mlcg trace' to
inspect them. Without --db, runs are kept in memory.

Exit codes:
  0 - Every scenario lowered as expected
  1 - A scenario failed or did not meet its expectations
  2 - Command error (unreadable scenario, unknown target, database error)

Examples:
  mlcg lower testdata/scenarios/fma_negate.yaml
  mlcg lower --db ./runs.db testdata/scenarios/*.yaml
  mlcg lower --target x86_avx2 testdata/scenarios/int_addition.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs in this SQLite database")
	cmd.Flags().StringVar(&opts.Target, "target", "", "lower through this target instead of the scenario's")
	cmd.Flags().StringVar(&opts.Language, "language", "", "generate this language instead of the scenario's")

	return cmd
}

func runLower(opts *LowerOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var h *harness.Harness
	if opts.Database != "" {
		db, err := openRunLog(opts.Database)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		ids := opts.IDs
		if ids == nil {
			ids = store.UUIDv7Generator{}
		}
		h = harness.New(db.Store, ids, logger)
	}

	var lowered []LoweredScenario
	failed := 0
	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load %s", path), err)
		}
		if opts.Target != "" {
			scenario.Target = opts.Target
		}
		if opts.Language != "" {
			scenario.Language = opts.Language
		}
		formatter.VerboseLog("Lowering %s through %s (%s)", scenario.Name, scenario.Target, scenario.Language)

		var result *harness.Result
		if h != nil {
			result, err = h.Run(ctx, scenario)
		} else {
			result, err = harness.Run(scenario)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to lower %s", scenario.Name), err)
		}

		out := LoweredScenario{
			Scenario:  scenario.Name,
			Target:    scenario.Target,
			Language:  scenario.Language,
			RunID:     result.RunID,
			Pass:      result.Pass,
			Output:    result.Output,
			ErrorCode: result.ErrorCode,
			Errors:    result.Errors,
		}
		if !out.Pass {
			failed++
		}
		lowered = append(lowered, out)

		if !formatter.IsJSON() {
			printLowered(formatter, out)
		}
	}

	if formatter.IsJSON() {
		resp := CLIResponse{Status: "ok", Data: lowered}
		if failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_LOWER_FAILED", Message: fmt.Sprintf("%d scenario(s) failed", failed)}
		}
		if err := formatter.Response(resp); err != nil {
			return err
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}

func printLowered(formatter *OutputFormatter, out LoweredScenario) {
	w := formatter.Writer
	mark := "✓"
	if !out.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s [%s/%s] run %s\n", mark, out.Scenario, out.Target, out.Language, out.RunID)
	if out.Output != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, out.Output)
		fmt.Fprintln(w)
	}
	if out.ErrorCode != "" {
		fmt.Fprintf(w, "  lowering failed: %s\n", out.ErrorCode)
	}
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
