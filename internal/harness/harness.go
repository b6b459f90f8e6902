package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/compiler"
	"github.com/roach88/mlcg/internal/ir"
	"github.com/roach88/mlcg/internal/store"
	"github.com/roach88/mlcg/internal/target"
	"github.com/roach88/mlcg/internal/testutil"
)

// Harness runs lowering scenarios against a fresh target registry and
// records every run in a run log.
type Harness struct {
	store  *store.Store
	ids    store.IDGenerator
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory run log with a fixed run id, so
// repeated runs produce identical results.
//
// Execution flow:
// 1. Create fresh in-memory run log
// 2. Compile and register the scenario's target descriptions
// 3. Lower the steps in order, stopping at the first failure
// 4. Record the run and its resolutions, read the trace back
// 5. Check step expectations and evaluate assertions
//
// The returned error reports a broken scenario (bad expression, unknown
// target, unreadable spec). Lowering failures are part of the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		ids:    testutil.NewFixedRunID(scenario.RunID),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	return h.Run(context.Background(), scenario)
}

// New creates a harness recording into st. Run ids come from ids.
func New(st *store.Store, ids store.IDGenerator, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{store: st, ids: ids, logger: logger}
}

// Run executes scenario and records it in the harness's run log.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	lang, err := cg.ParseLanguage(scenario.Language)
	if err != nil {
		return nil, err
	}

	registry := target.NewRegistry(h.logger)
	if len(scenario.Specs) > 0 {
		specs, err := LoadTargetSpecs(scenario.Specs)
		if err != nil {
			return nil, err
		}
		if _, err := registry.Register(specs); err != nil {
			return nil, fmt.Errorf("failed to register targets: %w", err)
		}
	}

	proc, err := registry.Lookup(scenario.Target)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	builder := newGraphBuilder(scenario)
	code := cg.NewCodeObject(lang)
	gen := cg.NewGenerator(proc, code)

	var (
		resolutions []store.Resolution
		stepHashes  []string
		lowerErr    error
		failed      = -1
	)
	for i, step := range scenario.Steps {
		node, err := builder.build(step.Expr)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		hash, err := ir.NodeHash(node)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: failed to hash expression: %w", i, err)
		}
		stepHashes = append(stepHashes, hash)

		before := len(gen.Resolutions())
		lowerErr = gen.Lower(node, step.Result)
		for _, r := range gen.Resolutions()[before:] {
			resolutions = append(resolutions, store.Resolution{
				Step:      stepName(i, step),
				Opcode:    string(r.Opcode),
				Specifier: string(r.Specifier),
				Signature: r.Signature,
				Language:  string(r.Language),
				Processor: r.Processor,
				Operator:  r.Operator,
			})
		}

		if lowerErr != nil {
			failed = i
			h.logger.Error("step failed",
				"step", stepName(i, step),
				"target", proc.Name(),
				"error", lowerErr,
			)
			break
		}

		h.logger.Info("step lowered",
			"step", stepName(i, step),
			"target", proc.Name(),
			"resolutions", len(gen.Resolutions())-before,
		)
	}

	run := store.Run{
		ID:         h.ids.Generate(),
		Scenario:   scenario.Name,
		Target:     proc.Name(),
		Language:   string(lang),
		IRVersion:  ir.IRVersion,
		Status:     store.StatusOK,
		StepHashes: stepHashes,
	}
	if lowerErr != nil {
		run.Status = store.StatusFailed
		run.ErrorCode = string(cg.CodeOf(lowerErr))
		run.Error = lowerErr.Error()
	} else {
		run.Output = code.String()
		run.OutputHash = ir.OutputHash(run.Language, run.Output)
	}

	if _, err := h.store.WriteRun(ctx, run, resolutions); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	if err := h.readBack(ctx, run.ID, result); err != nil {
		return nil, err
	}

	checkExpectations(scenario.Steps, failed, lowerErr, result)

	actx := &AssertionContext{
		Processor: proc,
		Language:  lang,
		build:     builder.build,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// readBack fills the result from the run log, so the trace reflects what
// was recorded.
func (h *Harness) readBack(ctx context.Context, runID string, result *Result) error {
	stored, err := h.store.ReadRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to read run %s: %w", runID, err)
	}
	result.RunID = stored.ID
	result.Output = stored.Output
	result.ErrorCode = stored.ErrorCode

	resolutions, err := h.store.ReadResolutions(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to read resolutions of %s: %w", runID, err)
	}
	for _, r := range resolutions {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:       r.Seq,
			Step:      r.Step,
			Opcode:    r.Opcode,
			Specifier: r.Specifier,
			Signature: r.Signature,
			Processor: r.Processor,
			Operator:  r.Operator,
		})
	}
	return nil
}

// checkExpectations compares the lowering outcome with the steps'
// expect_error clauses. failed is the index of the failing step, or -1.
func checkExpectations(steps []Step, failed int, lowerErr error, result *Result) {
	if failed < 0 {
		last := steps[len(steps)-1]
		if last.ExpectError != "" {
			result.AddError(fmt.Sprintf("step %s: expected %s, lowering succeeded",
				stepName(len(steps)-1, last), last.ExpectError))
		}
		return
	}

	step := steps[failed]
	code := string(cg.CodeOf(lowerErr))
	switch {
	case step.ExpectError == "":
		result.AddError(fmt.Sprintf("step %s: unexpected lowering error: %v", stepName(failed, step), lowerErr))
	case step.ExpectError != code:
		result.AddError(fmt.Sprintf("step %s: expected %s, got %s: %v",
			stepName(failed, step), step.ExpectError, code, lowerErr))
	}
}

func stepName(i int, step Step) string {
	if step.Result != "" {
		return step.Result
	}
	return fmt.Sprintf("steps[%d]", i)
}

// LoadTargetSpecs compiles the target descriptions of CUE files, in file
// order. Descriptions failing validation, or forming parent cycles, are
// rejected with every problem found.
func LoadTargetSpecs(paths []string) ([]ir.TargetSpec, error) {
	cueCtx := cuecontext.New()

	var specs []ir.TargetSpec
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read spec file: %w", err)
		}
		v := cueCtx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		compiled, err := compiler.CompileTargets(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		specs = append(specs, compiled...)
	}

	var errs []error
	for _, spec := range specs {
		for _, verr := range compiler.Validate(spec) {
			errs = append(errs, fmt.Errorf("target %s: %w", spec.Name, verr))
		}
	}
	for _, w := range compiler.AnalyzeCycles(specs) {
		if w.Level == "error" {
			errs = append(errs, errors.New(w.Message))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return specs, nil
}
