package codegen

import (
	"fmt"
	"strings"

	"github.com/roach88/mlcg/internal/ir"
)

// RoundOperator wraps its operand in a proof-script rounding operator,
// e.g. float<ieee_64,ne>(x). The rounding direction follows the node's
// rounding mode; unset and global round to nearest.
type RoundOperator struct {
	format ir.Format
}

// Round creates a rounding operator to format f.
func Round(f ir.Format) *RoundOperator {
	return &RoundOperator{format: f}
}

func (r *RoundOperator) Arity() int { return 1 }

func (r *RoundOperator) Render(ctx *RenderContext, n ir.Node, args []Expr) (Expr, error) {
	if err := CheckArity(r.String(), 1, args); err != nil {
		return Expr{}, err
	}
	dir := roundingDirection(n.Attributes().RoundingMode)
	switch r.format.Kind {
	case ir.KindFloat:
		return Atom(fmt.Sprintf("float<ieee_%d,%s>(%s)", r.format.Bits, dir, args[0].Text)), nil
	case ir.KindInteger:
		return Atom(fmt.Sprintf("int<%s>(%s)", dir, args[0].Text)), nil
	}
	return Expr{}, NewMalformedError("no rounding operator for format %s", r.format)
}

func (r *RoundOperator) String() string {
	return fmt.Sprintf("round(%s)", r.format)
}

func roundingDirection(m ir.RoundingMode) string {
	switch m {
	case ir.RoundUp:
		return "up"
	case ir.RoundDown:
		return "dn"
	case ir.RoundZero:
		return "zr"
	}
	return "ne"
}

// IndexedOperator renders a table load: the first operand is the table,
// the remaining operands are indices.
type IndexedOperator struct{}

// Indexed returns the table-load operator.
func Indexed() *IndexedOperator {
	return &IndexedOperator{}
}

func (*IndexedOperator) Arity() int { return Variadic }

func (*IndexedOperator) Render(ctx *RenderContext, n ir.Node, args []Expr) (Expr, error) {
	if len(args) < 2 {
		return Expr{}, newArityError("indexed", 2, len(args))
	}
	var b strings.Builder
	b.WriteString(args[0].Wrapped())
	for _, idx := range args[1:] {
		b.WriteString("[")
		b.WriteString(idx.Text)
		b.WriteString("]")
	}
	return Atom(b.String()), nil
}

func (*IndexedOperator) String() string {
	return "indexed"
}

// CallObjectOperator renders an *ir.Call through its function object.
type CallObjectOperator struct{}

// CallObject returns the function-object call operator.
func CallObject() *CallObjectOperator {
	return &CallObjectOperator{}
}

func (*CallObjectOperator) Arity() int { return Variadic }

func (*CallObjectOperator) Render(ctx *RenderContext, n ir.Node, args []Expr) (Expr, error) {
	call, ok := n.(*ir.Call)
	if !ok {
		return Expr{}, NewMalformedError("function-object operator applied to %s node", n.Opcode())
	}
	if len(args) != len(call.Fn.Args) {
		return Expr{}, newArityError("function "+call.Fn.Name, len(call.Fn.Args), len(args))
	}
	ctx.Headers.Add(call.Fn.Headers...)
	return Atom(callText(call.Fn.Name, args)), nil
}

func (*CallObjectOperator) String() string {
	return "call-object"
}
