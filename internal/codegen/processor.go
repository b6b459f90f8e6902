package codegen

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/samber/lo"

	"github.com/roach88/mlcg/internal/ir"
)

// DumpDepth bounds the structural dump attached to unsupported-operation
// errors.
const DumpDepth = 2

// Processor is a named code-generation target: one code-generation table per
// language, one approximation-table map per language, and an ordered list of
// declared parent processors.
//
// INVARIANTS:
//   - Tables, parents and the flattened ancestor list never change after
//     NewProcessor returns.
//   - The summary is computed exactly once, inside NewProcessor.
//   - Ancestors never contain the processor itself or abstract markers.
type Processor struct {
	name      string
	abstract  bool
	parents   []*Processor
	tables    map[Language]*Table[Operator]
	approx    map[Language]*Table[*ApproxTable]
	ancestors []*Processor
	summary   *Summary
	logger    *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithParents declares direct parents, highest precedence first.
func WithParents(parents ...*Processor) Option {
	return func(p *Processor) {
		p.parents = append(p.parents, parents...)
	}
}

// WithTable installs the code-generation table for lang.
func WithTable(lang Language, t *Table[Operator]) Option {
	return func(p *Processor) {
		p.tables[lang] = t
	}
}

// WithApproxTable installs the approximation-table map for lang.
// LanguageAny installs a map consulted for every language.
func WithApproxTable(lang Language, t *Table[*ApproxTable]) Option {
	return func(p *Processor) {
		p.approx[lang] = t
	}
}

// WithAbstract marks the processor as an abstract marker: descendants
// traverse its parents but never consult its tables.
func WithAbstract() Option {
	return func(p *Processor) {
		p.abstract = true
	}
}

// WithLogger sets the diagnostics logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// NewProcessor creates a processor, flattens its hierarchy and builds its
// supported-operation summary.
func NewProcessor(name string, opts ...Option) *Processor {
	p := &Processor{
		name:   name,
		tables: make(map[Language]*Table[Operator]),
		approx: make(map[Language]*Table[*ApproxTable]),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ancestors = flattenHierarchy(p)
	p.summary = newSummary(p.chain())
	return p
}

// flattenHierarchy expands the declared parents of self breadth-first into
// one ordered ancestor list.
//
// Each level is the concatenation of the parents of the previous level.
// A processor already seen (including self) is skipped, so a parent shared
// by several branches appears exactly once, at its first discovery. Abstract
// markers are traversed but not listed.
func flattenHierarchy(self *Processor) []*Processor {
	seen := map[*Processor]bool{self: true}
	var ancestors []*Processor

	frontier := self.parents
	for len(frontier) > 0 {
		fresh := lo.Filter(lo.Uniq(frontier), func(p *Processor, _ int) bool {
			return !seen[p]
		})
		for _, p := range fresh {
			seen[p] = true
			if !p.abstract {
				ancestors = append(ancestors, p)
			}
		}
		frontier = lo.FlatMap(fresh, func(p *Processor, _ int) []*Processor {
			return p.parents
		})
	}
	return ancestors
}

// chain returns the dispatch order: the processor itself, then its ancestors.
// An abstract marker never consults its own tables, even when resolving
// directly.
func (p *Processor) chain() []*Processor {
	if p.abstract {
		return slices.Clone(p.ancestors)
	}
	return append([]*Processor{p}, p.ancestors...)
}

// tableLanguages returns the languages p has a code-generation table for:
// the canonical languages first, then any other language sorted.
func (p *Processor) tableLanguages() []Language {
	extra := lo.Without(lo.Keys(p.tables), Languages...)
	slices.Sort(extra)
	known := lo.Filter(Languages, func(l Language, _ int) bool { return p.tables[l] != nil })
	return append(known, extra...)
}

// Name returns the processor identity.
func (p *Processor) Name() string { return p.name }

// IsAbstract reports whether p is an abstract marker.
func (p *Processor) IsAbstract() bool { return p.abstract }

// Parents returns the declared direct parents.
func (p *Processor) Parents() []*Processor { return slices.Clone(p.parents) }

// Ancestors returns the flattened ancestor list in precedence order.
func (p *Processor) Ancestors() []*Processor { return slices.Clone(p.ancestors) }

// AncestorNames returns the names of Ancestors.
func (p *Processor) AncestorNames() []string {
	return lo.Map(p.ancestors, func(a *Processor, _ int) string { return a.name })
}

// Table returns the local code-generation table for lang, or nil.
func (p *Processor) Table(lang Language) *Table[Operator] { return p.tables[lang] }

// ApproxTableMap returns the local approximation-table map for lang, or nil.
func (p *Processor) ApproxTableMap(lang Language) *Table[*ApproxTable] { return p.approx[lang] }

// Languages returns the languages for which p or an ancestor has a table.
// Canonical languages come first, then any other language sorted.
func (p *Processor) Languages() []Language {
	all := lo.Uniq(lo.FlatMap(p.chain(), func(c *Processor, _ int) []Language {
		return c.tableLanguages()
	}))
	extra := lo.Without(all, Languages...)
	slices.Sort(extra)
	known := lo.Filter(Languages, func(l Language, _ int) bool { return lo.Contains(all, l) })
	return append(known, extra...)
}

// Summary returns the supported-operation summary of the whole hierarchy.
func (p *Processor) Summary() *Summary { return p.summary }

// IsSupported answers from the summary whether any processor of the
// hierarchy can lower n in lang.
func (p *Processor) IsSupported(n ir.Node, lang Language) bool {
	return p.summary.IsSupported(n, lang)
}

// LocalOperator resolves n against p's own table for lang. A miss is not an
// error at this level.
func (p *Processor) LocalOperator(n ir.Node, lang Language) (Operator, bool) {
	return p.tables[lang].Lookup(n)
}

// Resolve resolves n across the hierarchy: p itself first, then each
// ancestor in flattened order. It returns the operator and the processor
// that supplied it.
//
// When no processor matches, Resolve logs and returns an
// UNSUPPORTED_OPERATION error naming p and carrying a bounded dump of n.
func (p *Processor) Resolve(n ir.Node, lang Language) (Operator, *Processor, error) {
	for _, c := range p.chain() {
		if op, ok := c.LocalOperator(n, lang); ok {
			p.logger.Debug("operation resolved",
				"processor", p.name,
				"resolved_by", c.name,
				"language", lang.String(),
				"key", KeyOf(n).String(),
				"operator", DescribeOperator(op))
			return op, c, nil
		}
	}
	return nil, nil, p.unsupported(n, lang)
}

// ResolveApproxTable resolves n to an approximation table with the same
// protocol as Resolve. At each processor the map for lang is consulted
// before the LanguageAny map.
func (p *Processor) ResolveApproxTable(n ir.Node, lang Language) (*ApproxTable, *Processor, error) {
	for _, c := range p.chain() {
		for _, l := range lo.Uniq([]Language{lang, LanguageAny}) {
			if t, ok := c.approx[l].Lookup(n); ok {
				p.logger.Debug("approximation table resolved",
					"processor", p.name,
					"resolved_by", c.name,
					"language", lang.String(),
					"table", t.Name)
				return t, c, nil
			}
		}
	}
	return nil, nil, p.unsupported(n, lang)
}

// Generate resolves n and renders it over the rendered operands args.
// Any failure is returned as an *Error annotated with p, lang and a dump
// of n.
func (p *Processor) Generate(ctx *RenderContext, n ir.Node, args []Expr) (Expr, error) {
	op, _, err := p.Resolve(n, ctx.Language)
	if err != nil {
		return Expr{}, err
	}
	out, err := op.Render(ctx, n, args)
	if err != nil {
		return Expr{}, p.annotate(err, n, ctx.Language)
	}
	return out, nil
}

func (p *Processor) unsupported(n ir.Node, lang Language) error {
	dump := ir.Dump(n, DumpDepth)
	p.logger.Error("operation not supported",
		"processor", p.name,
		"language", lang.String(),
		"node", dump)
	return &Error{
		Code:      ErrCodeUnsupported,
		Message:   "no processor in the hierarchy supports " + KeyOf(n).String(),
		Processor: p.name,
		Language:  lang,
		Node:      dump,
	}
}

// annotate attaches processor context to a render failure.
func (p *Processor) annotate(err error, n ir.Node, lang Language) error {
	var e *Error
	if errors.As(err, &e) && e.Processor == "" {
		e.Processor = p.name
		e.Language = lang
		e.Node = ir.Dump(n, DumpDepth)
	}
	p.logger.Error("operator rendering failed",
		"processor", p.name,
		"language", lang.String(),
		"key", KeyOf(n).String(),
		"error", err)
	return err
}
