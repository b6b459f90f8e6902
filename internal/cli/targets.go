package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/target"
)

// TargetsOptions holds flags for the targets command.
type TargetsOptions struct {
	*RootOptions
	TargetsDir string // optional CUE descriptions registered on top of the built-ins
	All        bool   // include abstract markers
}

// TargetInfo describes one registered processor.
type TargetInfo struct {
	Name      string         `json:"name"`
	Abstract  bool           `json:"abstract,omitempty"`
	Parents   []string       `json:"parents"`
	Ancestors []string       `json:"ancestors"`
	Languages []string       `json:"languages"`
	Patterns  map[string]int `json:"patterns"` // summary size per language
}

// NewTargetsCommand creates the targets command.
func NewTargetsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TargetsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List targets and their flattened ancestor chains",
		Long: `List the registered targets with their declared parents, the
flattened ancestor chain used for dispatch, the languages they can
generate and the number of supported patterns per language.

Examples:
  mlcg targets
  mlcg targets --targets-dir ./targets
  mlcg targets --all --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTargets(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TargetsDir, "targets-dir", "", "directory of CUE target descriptions to register")
	cmd.Flags().BoolVar(&opts.All, "all", false, "include abstract markers")

	return cmd
}

func runTargets(opts *TargetsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())

	registry, err := buildRegistry(opts.TargetsDir, logger)
	if err != nil {
		return err
	}

	procs := registry.Concrete()
	if opts.All {
		procs = registry.Processors()
	}
	infos := lo.Map(procs, func(p *cg.Processor, _ int) TargetInfo { return describeTarget(p) })

	if formatter.IsJSON() {
		return formatter.Success(infos)
	}

	w := formatter.Writer
	for _, info := range infos {
		name := info.Name
		if info.Abstract {
			name += " (abstract)"
		}
		fmt.Fprintln(w, name)
		fmt.Fprintf(w, "  parents:   %s\n", joinOrDash(info.Parents))
		fmt.Fprintf(w, "  ancestors: %s\n", joinOrDash(info.Ancestors))
		langs := lo.Map(info.Languages, func(l string, _ int) string {
			return fmt.Sprintf("%s (%d patterns)", l, info.Patterns[l])
		})
		fmt.Fprintf(w, "  languages: %s\n", joinOrDash(langs))
	}
	return nil
}

// describeTarget summarizes a processor. Abstract markers are left out of
// the parent list as they are of the ancestor list.
func describeTarget(p *cg.Processor) TargetInfo {
	parents := lo.FilterMap(p.Parents(), func(a *cg.Processor, _ int) (string, bool) {
		return a.Name(), !a.IsAbstract()
	})
	langs := lo.Map(p.Languages(), func(l cg.Language, _ int) string { return l.String() })
	patterns := lo.CountValuesBy(p.Summary().Patterns(), func(pat cg.Pattern) string { return pat.Language.String() })
	return TargetInfo{
		Name:      p.Name(),
		Abstract:  p.IsAbstract(),
		Parents:   parents,
		Ancestors: p.AncestorNames(),
		Languages: langs,
		Patterns:  patterns,
	}
}

// buildRegistry returns the built-in registry, extended with the
// descriptions of targetsDir when set.
func buildRegistry(targetsDir string, logger *slog.Logger) (*target.Registry, error) {
	registry := target.NewRegistry(logger)
	if targetsDir == "" {
		return registry, nil
	}

	loadResult, loadErrors := LoadTargets(targetsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, WrapExitError(ExitCommandError, "failed to load targets", errors.Join(loadErrors...))
	}
	if _, err := registry.Register(loadResult.Targets); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to register targets", err)
	}
	return registry, nil
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
