package codegen

import (
	"fmt"

	"github.com/roach88/mlcg/internal/ir"
)

// Condition is a named predicate over node attributes selecting a table
// branch. Conditions are compared by identity: two conditions with the same
// logic are distinct keys.
type Condition struct {
	name string
	eval func(n ir.Node) bool
}

// NewCondition creates a condition predicate.
func NewCondition(name string, eval func(n ir.Node) bool) *Condition {
	return &Condition{name: name, eval: eval}
}

// Holds evaluates the condition on n.
func (c *Condition) Holds(n ir.Node) bool {
	return c.eval(n)
}

// Name returns the condition name.
func (c *Condition) Name() string { return c.name }

func (c *Condition) String() string { return c.name }

// Built-in conditions.
var (
	// Always holds for every node.
	Always = NewCondition("always", func(ir.Node) bool { return true })

	// StdCond holds for operations that may raise flags and follow the
	// global rounding mode: the standard validity condition of a direct
	// language mapping.
	StdCond = NewCondition("std", func(n ir.Node) bool {
		a := n.Attributes()
		return !a.Silent && (a.RoundingMode == ir.RoundGlobal || a.RoundingMode == ir.RoundUnset)
	})

	NotSilent = NewCondition("not_silent", func(n ir.Node) bool { return !n.Attributes().Silent })
	Silent    = NewCondition("silent", func(n ir.Node) bool { return n.Attributes().Silent })

	Commutated    = NewCondition("commutated", func(n ir.Node) bool { return n.Attributes().Commutated })
	NotCommutated = NewCondition("not_commutated", func(n ir.Node) bool { return !n.Attributes().Commutated })
)

var namedConditions = map[string]*Condition{
	Always.name:        Always,
	StdCond.name:       StdCond,
	NotSilent.name:     NotSilent,
	Silent.name:        Silent,
	Commutated.name:    Commutated,
	NotCommutated.name: NotCommutated,
}

// ConditionByName returns the built-in condition with the given name.
func ConditionByName(name string) (*Condition, error) {
	if c, ok := namedConditions[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("unknown condition %q", name)
}

// MatchKind is the matching discipline of a TypeMatch.
type MatchKind uint8

const (
	// MatchExact requires every position to equal the pattern format.
	MatchExact MatchKind = iota
	// MatchRelaxed requires every position to be compatible within a
	// numeric-format equivalence class.
	MatchRelaxed
	// MatchResult constrains only the output format.
	MatchResult
	// MatchFunction accepts call nodes whose argument count matches their
	// function object.
	MatchFunction
	// MatchAny accepts every signature.
	MatchAny
	// MatchCustom evaluates a caller-supplied signature predicate.
	MatchCustom
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchRelaxed:
		return "relaxed"
	case MatchResult:
		return "result"
	case MatchFunction:
		return "function"
	case MatchAny:
		return "any"
	case MatchCustom:
		return "custom"
	}
	return fmt.Sprintf("MatchKind(%d)", uint8(k))
}

// TypeMatch is a named predicate over a type signature. Like Condition it
// is compared by identity; every constructor call returns a new predicate.
type TypeMatch struct {
	kind    MatchKind
	pattern ir.Signature
	name    string
	inputs  int
	custom  func(ir.Signature) bool
}

// Exact matches signatures equal to formats, output first.
func Exact(formats ...ir.Format) *TypeMatch {
	return &TypeMatch{kind: MatchExact, pattern: formats}
}

// Relaxed matches signatures of the same length whose positions are
// relaxed-compatible with formats.
func Relaxed(formats ...ir.Format) *TypeMatch {
	return &TypeMatch{kind: MatchRelaxed, pattern: formats}
}

// ResultOnly matches any signature whose output format is f.
func ResultOnly(f ir.Format) *TypeMatch {
	return &TypeMatch{kind: MatchResult, pattern: ir.Signature{f}}
}

// FunctionSignature matches call nodes invoked with as many inputs as their
// function object declares.
func FunctionSignature() *TypeMatch {
	return &TypeMatch{kind: MatchFunction}
}

// AnySignature matches every signature.
func AnySignature() *TypeMatch {
	return &TypeMatch{kind: MatchAny}
}

// SignatureMatching creates a named predicate evaluating fn on the
// signature. inputs is the input count the predicate fixes, or Variadic.
func SignatureMatching(name string, inputs int, fn func(sig ir.Signature) bool) *TypeMatch {
	return &TypeMatch{kind: MatchCustom, name: name, inputs: inputs, custom: fn}
}

// Kind returns the matching discipline.
func (m *TypeMatch) Kind() MatchKind { return m.kind }

// Pattern returns the pattern formats, output first.
func (m *TypeMatch) Pattern() ir.Signature { return m.pattern }

// InputArity returns the number of inputs the predicate fixes, or Variadic
// when it does not constrain the input count.
func (m *TypeMatch) InputArity() int {
	switch m.kind {
	case MatchExact, MatchRelaxed:
		return m.pattern.Arity()
	case MatchCustom:
		return m.inputs
	}
	return Variadic
}

// Matches evaluates the predicate on node n with signature sig.
func (m *TypeMatch) Matches(n ir.Node, sig ir.Signature) bool {
	switch m.kind {
	case MatchExact:
		return m.pattern.Equal(sig)
	case MatchRelaxed:
		if len(sig) != len(m.pattern) {
			return false
		}
		for i := range sig {
			if !ir.RelaxedCompatible(m.pattern[i], sig[i]) {
				return false
			}
		}
		return true
	case MatchResult:
		return len(sig) > 0 && sig[0] == m.pattern[0]
	case MatchFunction:
		call, ok := n.(*ir.Call)
		return ok && len(call.Inputs()) == len(call.Fn.Args)
	case MatchAny:
		return true
	case MatchCustom:
		return (m.inputs == Variadic || sig.Arity() == m.inputs) && m.custom(sig)
	}
	return false
}

func (m *TypeMatch) String() string {
	switch m.kind {
	case MatchExact, MatchRelaxed:
		return fmt.Sprintf("%s(%s)", m.kind, m.pattern)
	case MatchResult:
		return fmt.Sprintf("result(%s)", m.pattern[0])
	case MatchCustom:
		return m.name
	}
	return m.kind.String()
}
