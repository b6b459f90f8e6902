package codegen

import (
	"fmt"
	"strings"

	"github.com/roach88/mlcg/internal/ir"
)

// Variadic is the arity of operators accepting any operand count.
const Variadic = -1

// Operator is a renderable rule mapping a matched node and its rendered
// operands to target text.
//
// Render must check the operand count against Arity before anything else.
// Required external declarations are added to ctx.Headers.
type Operator interface {
	Arity() int
	Render(ctx *RenderContext, n ir.Node, args []Expr) (Expr, error)
}

// DescribeOperator returns a short description of op for traces.
func DescribeOperator(op Operator) string {
	if s, ok := op.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", op)
}

// CheckArity reports an arity error when args does not fit arity.
func CheckArity(what string, arity int, args []Expr) error {
	if arity == Variadic || len(args) == arity {
		return nil
	}
	return newArityError(what, arity, len(args))
}

// SymbolOperator renders a prefix (arity 1) or infix (arity >= 2) symbol.
type SymbolOperator struct {
	symbol string
	arity  int
}

// Symbol creates a symbol operator. Non-atomic operands are parenthesized.
func Symbol(symbol string, arity int) *SymbolOperator {
	return &SymbolOperator{symbol: symbol, arity: arity}
}

func (s *SymbolOperator) Arity() int { return s.arity }

func (s *SymbolOperator) Render(ctx *RenderContext, n ir.Node, args []Expr) (Expr, error) {
	if err := CheckArity(s.String(), s.arity, args); err != nil {
		return Expr{}, err
	}
	switch len(args) {
	case 0:
		return Expr{}, NewMalformedError("%s needs at least one operand", s)
	case 1:
		return Compound(s.symbol + args[0].Wrapped()), nil
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Wrapped()
	}
	return Compound(strings.Join(parts, " "+s.symbol+" ")), nil
}

func (s *SymbolOperator) String() string {
	return fmt.Sprintf("symbol(%s)", s.symbol)
}

// FunctionOperator renders a call of a named routine.
type FunctionOperator struct {
	name    string
	arity   int
	headers []string
	slots   []Operand
}

// Function creates a call operator. Operands map positionally to call
// arguments unless WithSlots installs an explicit slot map.
func Function(name string, arity int, headers ...string) *FunctionOperator {
	return &FunctionOperator{name: name, arity: arity, headers: headers}
}

// LibmFunction creates a call operator requiring math.h.
func LibmFunction(name string, arity int) *FunctionOperator {
	return Function(name, arity, "math.h")
}

// StdFunction creates a call operator requiring stdlib.h.
func StdFunction(name string, arity int) *FunctionOperator {
	return Function(name, arity, "stdlib.h")
}

// FenvFunction creates a call operator requiring fenv.h.
func FenvFunction(name string, arity int) *FunctionOperator {
	return Function(name, arity, "fenv.h")
}

// UtilsFunction creates a call operator requiring the support utilities header.
func UtilsFunction(name string, arity int) *FunctionOperator {
	return Function(name, arity, "support_lib/ml_utils.h")
}

// MultiPrecFunction creates a call operator requiring the multi-precision
// support header.
func MultiPrecFunction(name string, arity int) *FunctionOperator {
	return Function(name, arity, "support_lib/ml_multi_prec_lib.h")
}

// WithSlots returns a copy of f whose call arguments are taken from slots:
// Arg(i) may be duplicated, dropped or reordered, and Literal or Result
// operands may fill a slot.
func (f *FunctionOperator) WithSlots(slots ...Operand) *FunctionOperator {
	cp := *f
	cp.slots = slots
	return &cp
}

// Name returns the routine name.
func (f *FunctionOperator) Name() string { return f.name }

// Headers returns the required headers.
func (f *FunctionOperator) Headers() []string { return f.headers }

func (f *FunctionOperator) Arity() int { return f.arity }

func (f *FunctionOperator) Render(ctx *RenderContext, n ir.Node, args []Expr) (Expr, error) {
	if err := CheckArity(f.String(), f.arity, args); err != nil {
		return Expr{}, err
	}
	callArgs := args
	if f.slots != nil {
		resolved, err := resolveOperands(ctx, n, f.slots, args)
		if err != nil {
			return Expr{}, fmt.Errorf("%s: %w", f, err)
		}
		callArgs = resolved
	}
	ctx.Headers.Add(f.headers...)
	return Atom(callText(f.name, callArgs)), nil
}

func (f *FunctionOperator) String() string {
	return fmt.Sprintf("function(%s/%d)", f.name, f.arity)
}

func callText(name string, args []Expr) string {
	texts := make([]string, len(args))
	for i, a := range args {
		texts[i] = a.Text
	}
	return name + "(" + strings.Join(texts, ", ") + ")"
}

// TemplateOperator renders a format string whose %s placeholders receive
// the operands in order.
type TemplateOperator struct {
	template string
	arity    int
	headers  []string
	atomic   bool
}

// Template creates a template operator.
func Template(template string, arity int, headers ...string) *TemplateOperator {
	return &TemplateOperator{template: template, arity: arity, headers: headers}
}

// AsAtom returns a copy of t whose rendering is treated as atomic.
func (t *TemplateOperator) AsAtom() *TemplateOperator {
	cp := *t
	cp.atomic = true
	return &cp
}

func (t *TemplateOperator) Arity() int { return t.arity }

func (t *TemplateOperator) Render(ctx *RenderContext, n ir.Node, args []Expr) (Expr, error) {
	if err := CheckArity(t.String(), t.arity, args); err != nil {
		return Expr{}, err
	}
	pieces := strings.Split(t.template, "%s")
	if len(pieces)-1 != len(args) {
		return Expr{}, NewMalformedError("template %q has %d placeholder(s) for %d operand(s)",
			t.template, len(pieces)-1, len(args))
	}
	var b strings.Builder
	for i, p := range pieces {
		b.WriteString(p)
		if i < len(args) {
			b.WriteString(args[i].Wrapped())
		}
	}
	ctx.Headers.Add(t.headers...)
	return Expr{Text: b.String(), Atomic: t.atomic}, nil
}

func (t *TemplateOperator) String() string {
	return fmt.Sprintf("template(%q)", t.template)
}

// IdentityOperator forwards its single operand unchanged. Used for
// representation-compatible reinterpretations.
type IdentityOperator struct{}

// Identity returns the identity operator.
func Identity() *IdentityOperator {
	return &IdentityOperator{}
}

func (*IdentityOperator) Arity() int { return 1 }

func (i *IdentityOperator) Render(ctx *RenderContext, n ir.Node, args []Expr) (Expr, error) {
	if err := CheckArity(i.String(), 1, args); err != nil {
		return Expr{}, err
	}
	return args[0], nil
}

func (*IdentityOperator) String() string {
	return "identity"
}
