package codegen

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/mlcg/internal/ir"
)

// Key identifies a table entry.
type Key struct {
	Opcode    ir.Opcode
	Specifier ir.Specifier
}

func (k Key) String() string {
	if k.Specifier == ir.SpecifierNone {
		return string(k.Opcode)
	}
	return string(k.Opcode) + "." + string(k.Specifier)
}

// KeyOf returns the table key of n.
func KeyOf(n ir.Node) Key {
	return Key{Opcode: n.Opcode(), Specifier: n.Specifier()}
}

// Rule pairs a type-signature predicate with the value it selects.
type Rule[T any] struct {
	Signature *TypeMatch
	Value     T
}

// Branch is the ordered rule list guarded by one condition predicate.
type Branch[T any] struct {
	Condition *Condition
	Rules     []Rule[T]
}

// Table is a code-generation table (T = Operator) or an approximation-table
// map (T = *ApproxTable). Both share one dispatch grammar:
//
//	(opcode, specifier) -> [Branch{Condition, [Rule{TypeMatch, T}]}]
//
// Tables are built with a TableBuilder and immutable afterwards.
// A nil *Table is an empty table.
type Table[T any] struct {
	entries map[Key][]Branch[T]
	keys    []Key // declaration order
}

// Lookup resolves n against the table. The key is (opcode, specifier) and
// the signature is computed from n and its direct inputs.
//
// Branches are walked in declared order. In a branch whose condition holds,
// rules are tried in declared order and the first matching type predicate
// wins. When none matches, the walk continues with the next branch.
//
// Lookup is pure: it never mutates the table or the node.
func (t *Table[T]) Lookup(n ir.Node) (T, bool) {
	rule, ok := t.match(n)
	if !ok {
		var zero T
		return zero, false
	}
	return rule.Value, true
}

// Match is like Lookup but also returns the branch condition and the
// matching type predicate.
func (t *Table[T]) Match(n ir.Node) (*Condition, Rule[T], bool) {
	if t == nil {
		return nil, Rule[T]{}, false
	}
	sig := ir.SignatureOf(n)
	for _, branch := range t.entries[KeyOf(n)] {
		if !branch.Condition.Holds(n) {
			continue
		}
		for _, rule := range branch.Rules {
			if rule.Signature.Matches(n, sig) {
				return branch.Condition, rule, true
			}
		}
	}
	return nil, Rule[T]{}, false
}

func (t *Table[T]) match(n ir.Node) (Rule[T], bool) {
	_, rule, ok := t.Match(n)
	return rule, ok
}

// Keys returns the entry keys in declaration order.
func (t *Table[T]) Keys() []Key {
	if t == nil {
		return nil
	}
	out := make([]Key, len(t.keys))
	copy(out, t.keys)
	return out
}

// Branches returns the branches of one entry in declared order.
func (t *Table[T]) Branches(k Key) []Branch[T] {
	if t == nil {
		return nil
	}
	return t.entries[k]
}

// Len returns the number of rules in the table.
func (t *Table[T]) Len() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, branches := range t.entries {
		for _, b := range branches {
			n += len(b.Rules)
		}
	}
	return n
}

// TableBuilder appends rules in declaration order and validates the result.
//
// Rules added under a condition already present in the entry join that
// condition's branch; the branch keeps the position of its first rule.
type TableBuilder[T any] struct {
	table *Table[T]
	arity func(T) int
	errs  []error
}

// NewTableBuilder creates a builder. arity reports the operand count a value
// expects, for arity validation; nil disables the check.
func NewTableBuilder[T any](arity func(T) int) *TableBuilder[T] {
	return &TableBuilder[T]{
		table: &Table[T]{entries: make(map[Key][]Branch[T])},
		arity: arity,
	}
}

// NewOperatorTable creates a builder for a code-generation table.
func NewOperatorTable() *TableBuilder[Operator] {
	return NewTableBuilder(Operator.Arity)
}

// NewApproxTableMap creates a builder for an approximation-table map.
func NewApproxTableMap() *TableBuilder[*ApproxTable] {
	return NewTableBuilder[*ApproxTable](nil)
}

// Add appends one rule.
func (b *TableBuilder[T]) Add(opcode ir.Opcode, spec ir.Specifier, cond *Condition, sig *TypeMatch, value T) *TableBuilder[T] {
	if cond == nil || sig == nil {
		b.errs = append(b.errs, newTableError("%s: nil predicate", Key{opcode, spec}))
		return b
	}
	if any(value) == nil {
		b.errs = append(b.errs, newTableError("%s: nil value for %s", Key{opcode, spec}, sig))
		return b
	}
	k := Key{Opcode: opcode, Specifier: spec}
	branches, seen := b.table.entries[k]
	if !seen {
		b.table.keys = append(b.table.keys, k)
	}
	for i := range branches {
		if branches[i].Condition == cond {
			branches[i].Rules = append(branches[i].Rules, Rule[T]{Signature: sig, Value: value})
			b.table.entries[k] = branches
			return b
		}
	}
	b.table.entries[k] = append(branches, Branch[T]{
		Condition: cond,
		Rules:     []Rule[T]{{Signature: sig, Value: value}},
	})
	return b
}

// Simplified adds one rule per format f with signature (f, f, ..., f) of
// the given input arity, all mapped to op under cond. See SimplifiedOption
// for variants.
func (b *TableBuilder[T]) Simplified(opcode ir.Opcode, spec ir.Specifier, cond *Condition, formats []ir.Format, arity int, value T, opts ...SimplifiedOption[T]) *TableBuilder[T] {
	cfg := simplifiedConfig[T]{match: Exact}
	for _, opt := range opts {
		opt(&cfg)
	}
	for _, f := range formats {
		sig := make([]ir.Format, arity+1)
		sig[0] = f
		for i := 1; i <= arity; i++ {
			sig[i] = f
		}
		if cfg.result != nil {
			sig[0] = *cfg.result
		}
		v := value
		if cfg.wrap != nil {
			v = cfg.wrap(f, value)
		}
		b.Add(opcode, spec, cond, cfg.match(sig...), v)
	}
	if cfg.extendExact {
		b.Add(opcode, spec, cond, ResultOnly(ir.Exact), value)
	}
	return b
}

type simplifiedConfig[T any] struct {
	match       func(...ir.Format) *TypeMatch
	result      *ir.Format
	wrap        func(ir.Format, T) T
	extendExact bool
}

// SimplifiedOption customizes TableBuilder.Simplified.
type SimplifiedOption[T any] func(*simplifiedConfig[T])

// RelaxedMatch uses relaxed instead of exact type predicates.
func RelaxedMatch[T any]() SimplifiedOption[T] {
	return func(c *simplifiedConfig[T]) { c.match = Relaxed }
}

// ResultFormat fixes the output format, e.g. int32 for comparisons.
func ResultFormat[T any](f ir.Format) SimplifiedOption[T] {
	return func(c *simplifiedConfig[T]) { c.result = &f }
}

// WrapEach transforms the value per format, e.g. to add explicit rounding.
func WrapEach[T any](wrap func(ir.Format, T) T) SimplifiedOption[T] {
	return func(c *simplifiedConfig[T]) { c.wrap = wrap }
}

// ExtendExact adds a final rule mapping results of the abstract exact format
// to the unwrapped value.
func ExtendExact[T any]() SimplifiedOption[T] {
	return func(c *simplifiedConfig[T]) { c.extendExact = true }
}

// ExplicitRounding wraps each per-format operator in a rounding operator to
// that format.
func ExplicitRounding() SimplifiedOption[Operator] {
	return WrapEach(func(f ir.Format, op Operator) Operator {
		return Compose(Round(f), Nested(op))
	})
}

// Build validates the table and returns a snapshot of it.
//
// Validation rejects:
//   - values whose arity disagrees with the input count fixed by their type
//     predicate;
//   - rules that can never be reached because an Always branch with an
//     AnySignature rule precedes them in the same entry.
//
// Overlapping predicates are not an error: the first declared one wins.
func (b *TableBuilder[T]) Build() (*Table[T], error) {
	errs := append([]error(nil), b.errs...)
	for _, k := range b.table.keys {
		catchAll := false
		for _, branch := range b.table.entries[k] {
			for _, rule := range branch.Rules {
				if catchAll {
					errs = append(errs, newTableError("%s: rule %s under %s is unreachable after an unconditional catch-all",
						k, rule.Signature, branch.Condition))
					continue
				}
				if b.arity != nil {
					want := rule.Signature.InputArity()
					got := b.arity(rule.Value)
					if want != Variadic && got != Variadic && want != got {
						errs = append(errs, newTableError("%s: %s fixes %d input(s) but operator expects %d",
							k, rule.Signature, want, got))
					}
				}
				if branch.Condition == Always && rule.Signature.Kind() == MatchAny {
					catchAll = true
				}
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return b.table.clone(), nil
}

// clone copies the entries down to the rule slices, so later Add calls on
// the builder never reach a built table.
func (t *Table[T]) clone() *Table[T] {
	out := &Table[T]{
		entries: make(map[Key][]Branch[T], len(t.entries)),
		keys:    slices.Clone(t.keys),
	}
	for k, branches := range t.entries {
		copied := make([]Branch[T], len(branches))
		for i, branch := range branches {
			copied[i] = Branch[T]{Condition: branch.Condition, Rules: slices.Clone(branch.Rules)}
		}
		out.entries[k] = copied
	}
	return out
}

// MustBuild is like Build but panics on error.
// Use only for tables declared in source.
func (b *TableBuilder[T]) MustBuild() *Table[T] {
	t, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("codegen: invalid table: %v", err))
	}
	return t
}
