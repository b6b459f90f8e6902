package cli

import (
	"errors"
	"fmt"
	"io"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/mlcg/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Targets  int                        `json:"targets"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <targets-dir>",
		Short: "Validate target descriptions without building them",
		Long: `Validate CUE target descriptions against the description schema.

Checks names, languages, opcodes, conditions, signatures, operator arity,
operand sources, approximation tables and the parent hierarchy. Every
problem is reported with its E12x code.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, targetsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result, err := ValidateTargetsDir(targetsDir, formatter)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidateTargetsDir validates every description in a directory. The error
// is set only when the directory cannot be loaded at all. A nil formatter
// discards progress logs.
func ValidateTargetsDir(targetsDir string, formatter *OutputFormatter) (*ValidationResult, error) {
	if formatter == nil {
		formatter = &OutputFormatter{Format: "text", Writer: io.Discard}
	}

	loadResult, loadErrors := LoadTargets(targetsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, targetsDir)

	result := &ValidationResult{Targets: len(loadResult.Targets)}
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, loadErrorToValidation(err))
	}

	for _, spec := range loadResult.Targets {
		formatter.VerboseLog("Validating target: %s", spec.Name)
		for _, verr := range compiler.Validate(spec) {
			verr.Field = "target." + spec.Name + "." + verr.Field
			result.Errors = append(result.Errors, verr)
		}
	}

	for _, w := range compiler.AnalyzeCycles(loadResult.Targets) {
		if w.Level == "error" {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "parents",
				Message: w.Message,
				Code:    compiler.ErrInvalidParent,
			})
			continue
		}
		formatter.VerboseLog("Note: %s", w.Message)
		result.Warnings = append(result.Warnings, w)
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

func loadErrorToValidation(err error) compiler.ValidationError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return compiler.ValidationError{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    lineOf(loadErr.Pos),
		}
	}
	return compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
}

// lineOf extracts the line number of a CUE position, or 0.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result *ValidationResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d target(s) valid\n", result.Targets)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result *ValidationResult) error {
	errs := result.Errors
	if formatter.IsJSON() {
		if err := formatter.Response(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(w, "line %d\n", err.Line)
		}
		fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
