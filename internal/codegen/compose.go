package codegen

import (
	"fmt"
	"strings"

	"github.com/roach88/mlcg/internal/ir"
)

// Operand is one argument source of a slot map or a composition.
// Implemented by Arg, Literal, Result and Nested.
type Operand interface {
	resolve(ctx *RenderContext, n ir.Node, args []Expr) (Expr, error)

	// arity is the number of node arguments the operand consumes, or
	// Variadic when it forwards all of them to a variadic operator.
	arity() int

	String() string
}

type argOperand int

// Arg selects the i-th rendered argument of the node.
func Arg(i int) Operand {
	return argOperand(i)
}

func (a argOperand) resolve(_ *RenderContext, _ ir.Node, args []Expr) (Expr, error) {
	i := int(a)
	if i < 0 || i >= len(args) {
		return Expr{}, &Error{
			Code:    ErrCodeArity,
			Message: fmt.Sprintf("operand references argument %d, only %d available", i, len(args)),
		}
	}
	return args[i], nil
}

func (a argOperand) arity() int     { return int(a) + 1 }
func (a argOperand) String() string { return fmt.Sprintf("arg(%d)", int(a)) }

type literalOperand string

// Literal fills a slot with fixed text.
func Literal(text string) Operand {
	return literalOperand(text)
}

func (l literalOperand) resolve(*RenderContext, ir.Node, []Expr) (Expr, error) {
	return Atom(string(l)), nil
}

func (l literalOperand) arity() int     { return 0 }
func (l literalOperand) String() string { return fmt.Sprintf("literal(%q)", string(l)) }

type resultOperand struct{}

// Result fills a slot with the caller-provided output binding.
func Result() Operand {
	return resultOperand{}
}

func (resultOperand) resolve(ctx *RenderContext, _ ir.Node, _ []Expr) (Expr, error) {
	if ctx.Result == nil {
		return Expr{}, &Error{
			Code:    ErrCodeUnboundResult,
			Message: "operand references the output binding but none was provided",
		}
	}
	return *ctx.Result, nil
}

func (resultOperand) arity() int     { return 0 }
func (resultOperand) String() string { return "result" }

type nestedOperand struct {
	op       Operator
	operands []Operand
}

// Nested renders op over operands and uses its output as one operand of the
// enclosing operator. With no operands, op receives all node arguments.
func Nested(op Operator, operands ...Operand) Operand {
	return nestedOperand{op: op, operands: operands}
}

func (o nestedOperand) resolve(ctx *RenderContext, n ir.Node, args []Expr) (Expr, error) {
	if len(o.operands) == 0 {
		return o.op.Render(ctx, n, args)
	}
	resolved, err := resolveOperands(ctx, n, o.operands, args)
	if err != nil {
		return Expr{}, err
	}
	return o.op.Render(ctx, n, resolved)
}

func (o nestedOperand) arity() int {
	if len(o.operands) == 0 {
		return o.op.Arity()
	}
	return operandsArity(o.operands)
}

func (o nestedOperand) String() string {
	return describeApplication(o.op, o.operands)
}

func resolveOperands(ctx *RenderContext, n ir.Node, operands []Operand, args []Expr) ([]Expr, error) {
	out := make([]Expr, len(operands))
	for i, operand := range operands {
		e, err := operand.resolve(ctx, n, args)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func operandsArity(operands []Operand) int {
	arity := 0
	for _, operand := range operands {
		a := operand.arity()
		if a == Variadic {
			return Variadic
		}
		arity = max(arity, a)
	}
	return arity
}

func describeApplication(op Operator, operands []Operand) string {
	if len(operands) == 0 {
		return DescribeOperator(op)
	}
	parts := make([]string, len(operands))
	for i, operand := range operands {
		parts[i] = operand.String()
	}
	return DescribeOperator(op) + "[" + strings.Join(parts, ", ") + "]"
}

// CompositeOperator feeds the outputs of its operands into an outer operator,
// building expression trees such as negate(fma(a, b, c)). Composition is
// resolved on every render call.
type CompositeOperator struct {
	outer    Operator
	operands []Operand
	arity    int
}

// Compose creates a composite operator. The arity is derived from the
// operands: the highest Arg index referenced plus one, or the arity of a
// nested operator receiving all arguments. WithArity overrides it when some
// arguments are deliberately dropped.
func Compose(outer Operator, operands ...Operand) *CompositeOperator {
	arity := outer.Arity()
	if len(operands) > 0 {
		arity = operandsArity(operands)
	}
	return &CompositeOperator{outer: outer, operands: operands, arity: arity}
}

// WithArity returns a copy of c with an explicit arity.
func (c *CompositeOperator) WithArity(arity int) *CompositeOperator {
	cp := *c
	cp.arity = arity
	return &cp
}

func (c *CompositeOperator) Arity() int { return c.arity }

func (c *CompositeOperator) Render(ctx *RenderContext, n ir.Node, args []Expr) (Expr, error) {
	if err := CheckArity(c.String(), c.arity, args); err != nil {
		return Expr{}, err
	}
	if len(c.operands) == 0 {
		return c.outer.Render(ctx, n, args)
	}
	resolved, err := resolveOperands(ctx, n, c.operands, args)
	if err != nil {
		return Expr{}, err
	}
	return c.outer.Render(ctx, n, resolved)
}

func (c *CompositeOperator) String() string {
	return "compose(" + describeApplication(c.outer, c.operands) + ")"
}

// Translator rewrites rendered arguments before they reach the enclosing
// operator. It may inspect the node; it reports unexpected shapes with
// NewMalformedError.
type Translator func(n ir.Node, args []Expr) ([]Expr, error)

// CustomOperator escapes the declarative grammar: a Translator maps the
// arguments, then the inner operator renders the result.
type CustomOperator struct {
	name      string
	inner     Operator
	translate Translator
}

// Custom creates a custom-callback operator delegating to inner.
func Custom(name string, inner Operator, translate Translator) *CustomOperator {
	return &CustomOperator{name: name, inner: inner, translate: translate}
}

func (c *CustomOperator) Arity() int { return c.inner.Arity() }

func (c *CustomOperator) Render(ctx *RenderContext, n ir.Node, args []Expr) (Expr, error) {
	if err := CheckArity(c.String(), c.inner.Arity(), args); err != nil {
		return Expr{}, err
	}
	translated, err := c.translate(n, args)
	if err != nil {
		return Expr{}, fmt.Errorf("%s: %w", c, err)
	}
	return c.inner.Render(ctx, n, translated)
}

func (c *CustomOperator) String() string {
	return fmt.Sprintf("custom(%s, %s)", c.name, DescribeOperator(c.inner))
}
