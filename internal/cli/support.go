package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/ir"
)

// SupportOptions holds flags for the support command.
type SupportOptions struct {
	*RootOptions
	TargetsDir string
	Target     string
	Language   string
	Opcode     string
	Specifier  string
	Formats    []string // output first, then one per input
	Silent     bool
}

// SupportResult is the answer to one support query.
type SupportResult struct {
	Target     string `json:"target"`
	Language   string `json:"language"`
	Node       string `json:"node"`
	Supported  bool   `json:"supported"`
	ResolvedBy string `json:"resolved_by,omitempty"`
	Operator   string `json:"operator,omitempty"`
}

// NewSupportCommand creates the support command.
func NewSupportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SupportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "support",
		Short: "Ask whether a target supports an operation",
		Long: `Ask the supported-operation summary of a target whether it can
lower one operation. The operation is described by its opcode, specifier
and signature (output format first, then one format per input).

When supported, the processor supplying the operator is reported too.

Exit codes:
  0 - The operation is supported
  1 - The operation is not supported
  2 - Command error (unknown target, opcode or format)

Examples:
  mlcg support --target x86_avx2 --language c --op Addition --formats int32,int32,int32
  mlcg support --target generic --language c --op FusedMultiplyAdd --specifier Negate \
      --formats binary64,binary64,binary64,binary64`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TargetsDir, "targets-dir", "", "directory of CUE target descriptions to register")
	cmd.Flags().StringVar(&opts.Target, "target", "", "target to query (required)")
	cmd.Flags().StringVar(&opts.Language, "language", "c", "output language (c|gappa|vhdl)")
	cmd.Flags().StringVar(&opts.Opcode, "op", "", "opcode, e.g. Addition (required)")
	cmd.Flags().StringVar(&opts.Specifier, "specifier", "", "opcode specifier, e.g. Negate")
	cmd.Flags().StringSliceVar(&opts.Formats, "formats", nil, "signature formats, output first (required)")
	cmd.Flags().BoolVar(&opts.Silent, "silent", false, "query the silent variant of the operation")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("op")
	_ = cmd.MarkFlagRequired("formats")

	return cmd
}

func runSupport(opts *SupportOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	lang, err := cg.ParseLanguage(opts.Language)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --language", err)
	}
	node, err := queryNode(opts.Opcode, opts.Specifier, opts.Formats, opts.Silent)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid operation", err)
	}

	registry, err := buildRegistry(opts.TargetsDir, newLogger(opts.RootOptions, formatter.GetErrWriter()))
	if err != nil {
		return err
	}
	proc, err := registry.Lookup(opts.Target)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --target", err)
	}

	result := SupportResult{
		Target:    proc.Name(),
		Language:  lang.String(),
		Node:      ir.DescribeNode(node),
		Supported: proc.IsSupported(node, lang),
	}
	if result.Supported {
		op, by, err := proc.Resolve(node, lang)
		if err != nil {
			return WrapExitError(ExitCommandError, "summary and dispatch disagree", err)
		}
		result.ResolvedBy = by.Name()
		result.Operator = cg.DescribeOperator(op)
	}

	if formatter.IsJSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		if result.Supported {
			fmt.Fprintf(w, "✓ %s supports %s in %s\n", result.Target, result.Node, result.Language)
			fmt.Fprintf(w, "  resolved by %s: %s\n", result.ResolvedBy, result.Operator)
		} else {
			fmt.Fprintf(w, "✗ %s does not support %s in %s\n", result.Target, result.Node, result.Language)
		}
	}

	if !result.Supported {
		return NewExitError(ExitFailure, "operation not supported")
	}
	return nil
}

// queryNode builds an operation over fresh variables x0, x1, ... whose
// signature is formats.
func queryNode(opcode, specifier string, formats []string, silent bool) (ir.Node, error) {
	op, err := ir.ParseOpcode(opcode)
	if err != nil {
		return nil, err
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("at least the output format is required")
	}

	parsed := make([]ir.Format, len(formats))
	for i, name := range formats {
		f, err := ir.ParseFormat(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("formats[%d]: %w", i, err)
		}
		parsed[i] = f
	}

	inputs := make([]ir.Node, len(parsed)-1)
	for i, f := range parsed[1:] {
		inputs[i] = ir.NewVariable(fmt.Sprintf("x%d", i), f)
	}
	return ir.NewOp(op, parsed[0], inputs...).
		WithSpecifier(ir.Specifier(specifier)).
		WithSilent(silent), nil
}
