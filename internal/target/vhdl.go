package target

import (
	"fmt"

	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/ir"
)

// VHDL is the name of the hardware-description target.
const VHDL = "vhdl"

const (
	stdLogicPackage = "ieee.std_logic_1164.all"
	numericPackage  = "ieee.numeric_std.all"
)

// headerOperator adds packages to the context before delegating.
type headerOperator struct {
	inner   cg.Operator
	headers []string
}

func requires(op cg.Operator, headers ...string) *headerOperator {
	return &headerOperator{inner: op, headers: headers}
}

func (h *headerOperator) Arity() int { return h.inner.Arity() }

func (h *headerOperator) Render(ctx *cg.RenderContext, n ir.Node, args []cg.Expr) (cg.Expr, error) {
	out, err := h.inner.Render(ctx, n, args)
	if err != nil {
		return cg.Expr{}, err
	}
	ctx.Headers.Add(h.headers...)
	return out, nil
}

func (h *headerOperator) String() string { return cg.DescribeOperator(h.inner) }

// resizeOperator widens or narrows its operand to the width of the node's
// format. Vectors are resized as unsigned numbers.
type resizeOperator struct{}

func (resizeOperator) Arity() int { return 1 }

func (r resizeOperator) Render(ctx *cg.RenderContext, n ir.Node, args []cg.Expr) (cg.Expr, error) {
	if err := cg.CheckArity(r.String(), 1, args); err != nil {
		return cg.Expr{}, err
	}
	f := n.Format()
	ctx.Headers.Add(stdLogicPackage, numericPackage)
	if f.Kind == ir.KindLogicVector {
		return cg.Atom(fmt.Sprintf("std_logic_vector(resize(unsigned(%s), %d))", args[0].Text, f.Bits)), nil
	}
	return cg.Atom(fmt.Sprintf("resize(%s, %d)", args[0].Text, f.Bits)), nil
}

func (resizeOperator) String() string { return "resize" }

// sliceOperator keeps the low bits of its operand that fit the node's
// format.
type sliceOperator struct{}

func (sliceOperator) Arity() int { return 1 }

func (s sliceOperator) Render(ctx *cg.RenderContext, n ir.Node, args []cg.Expr) (cg.Expr, error) {
	if err := cg.CheckArity(s.String(), 1, args); err != nil {
		return cg.Expr{}, err
	}
	ctx.Headers.Add(stdLogicPackage)
	return cg.Atom(fmt.Sprintf("%s(%d downto 0)", args[0].Wrapped(), n.Format().Bits-1)), nil
}

func (sliceOperator) String() string { return "slice" }

func isVector(f ir.Format) bool { return f.Kind == ir.KindLogicVector }
func isFixed(f ir.Format) bool  { return f.Kind == ir.KindFixedPoint }

// uniformVectors accepts signatures whose positions are all vectors of one
// width.
func uniformVectors(inputs int) *cg.TypeMatch {
	return cg.SignatureMatching(fmt.Sprintf("uniform_vectors/%d", inputs), inputs, func(sig ir.Signature) bool {
		for _, f := range sig {
			if !isVector(f) || f.Bits != sig[0].Bits {
				return false
			}
		}
		return true
	})
}

// uniformFixed accepts signatures whose positions are all fixed-point of
// one signedness and fractional size.
func uniformFixed(inputs int) *cg.TypeMatch {
	return cg.SignatureMatching(fmt.Sprintf("uniform_fixed/%d", inputs), inputs, func(sig ir.Signature) bool {
		for _, f := range sig {
			if !isFixed(f) || f.Signed != sig[0].Signed || f.Frac != sig[0].Frac {
				return false
			}
		}
		return true
	})
}

// fixedProduct accepts a fixed-point product whose result carries the sum
// of the operand widths.
var fixedProduct = cg.SignatureMatching("fixed_product", 2, func(sig ir.Signature) bool {
	out, a, b := sig[0], sig[1], sig[2]
	return isFixed(out) && isFixed(a) && isFixed(b) &&
		a.Signed == b.Signed && out.Signed == a.Signed &&
		out.Bits == a.Bits+b.Bits && out.Frac == a.Frac+b.Frac
})

var logicConcat = cg.SignatureMatching("logic_concat", 2, func(sig ir.Signature) bool {
	bits := 0
	for _, f := range sig[1:] {
		if !isVector(f) && f.Kind != ir.KindLogic {
			return false
		}
		bits += f.Bits
	}
	return isVector(sig[0]) && sig[0].Bits == bits
})

var subSignal = cg.SignatureMatching("sub_signal", 3, func(sig ir.Signature) bool {
	return (isVector(sig[0]) || sig[0].Kind == ir.KindLogic) && isVector(sig[1]) &&
		sig[2].Kind == ir.KindInteger && sig[3].Kind == ir.KindInteger
})

func resizes(widen bool) *cg.TypeMatch {
	name := "narrowing"
	if widen {
		name = "widening"
	}
	return cg.SignatureMatching(name, 1, func(sig ir.Signature) bool {
		out, in := sig[0], sig[1]
		sameKind := (isVector(out) && isVector(in)) ||
			(isFixed(out) && isFixed(in) && out.Signed == in.Signed && out.Frac == in.Frac)
		if !sameKind {
			return false
		}
		if widen {
			return out.Bits >= in.Bits
		}
		return out.Bits <= in.Bits
	})
}

// fixedBits reports whether sig reinterprets between a vector and a
// fixed-point format of the same width.
func fixedBits(sig ir.Signature, toFixed bool) bool {
	out, in := sig[0], sig[1]
	if !toFixed {
		out, in = in, out
	}
	return isFixed(out) && isVector(in) && out.Bits == in.Bits
}

func vhdlTable() *cg.Table[cg.Operator] {
	b := cg.NewOperatorTable()
	always := cg.Always
	none := ir.SpecifierNone

	numeric := func(op cg.Operator) cg.Operator { return requires(op, stdLogicPackage, numericPackage) }
	logic := func(op cg.Operator) cg.Operator { return requires(op, stdLogicPackage) }

	// Vectors go through unsigned arithmetic.
	unsignedArith := func(sym string) cg.Operator {
		return numeric(cg.Compose(cg.Function("std_logic_vector", 1),
			cg.Nested(cg.Symbol(sym, 2),
				cg.Nested(cg.Function("unsigned", 1), cg.Arg(0)),
				cg.Nested(cg.Function("unsigned", 1), cg.Arg(1)))))
	}
	b.Add(ir.OpAddition, none, always, uniformFixed(2), numeric(cg.Symbol("+", 2))).
		Add(ir.OpAddition, none, always, uniformVectors(2), unsignedArith("+")).
		Add(ir.OpSubtraction, none, always, uniformFixed(2), numeric(cg.Symbol("-", 2))).
		Add(ir.OpSubtraction, none, always, uniformVectors(2), unsignedArith("-")).
		Add(ir.OpMultiplication, none, always, fixedProduct, numeric(cg.Symbol("*", 2)))

	b.Add(ir.OpNegation, none, always, cg.SignatureMatching("signed_fixed", 1, func(sig ir.Signature) bool {
		return isFixed(sig[0]) && sig[0] == sig[1] && sig[0].Signed
	}), numeric(cg.Symbol("-", 1)))

	for _, bl := range []struct {
		opcode ir.Opcode
		word   string
	}{
		{ir.OpBitLogicAnd, "and"},
		{ir.OpBitLogicOr, "or"},
		{ir.OpBitLogicXor, "xor"},
	} {
		b.Add(bl.opcode, none, always, uniformVectors(2), logic(cg.Symbol(bl.word, 2)))
	}
	b.Add(ir.OpBitLogicNegate, none, always, uniformVectors(1), logic(cg.Symbol("not ", 1)))

	b.Add(ir.OpLogicalAnd, none, always, cg.Exact(ir.StdLogic, ir.StdLogic, ir.StdLogic), logic(cg.Symbol("and", 2))).
		Add(ir.OpLogicalOr, none, always, cg.Exact(ir.StdLogic, ir.StdLogic, ir.StdLogic), logic(cg.Symbol("or", 2))).
		Add(ir.OpLogicalNot, none, always, cg.Exact(ir.StdLogic, ir.StdLogic), logic(cg.Symbol("not ", 1)))

	// Comparisons yield a bit.
	for _, cmp := range []struct {
		spec   ir.Specifier
		symbol string
	}{
		{ir.CompEqual, "="},
		{ir.CompNotEqual, "/="},
		{ir.CompGreater, ">"},
		{ir.CompGreaterOrEqual, ">="},
		{ir.CompLess, "<"},
		{ir.CompLessOrEqual, "<="},
	} {
		cond := cg.Template("'1' when %s "+cmp.symbol+" %s else '0'", 2)
		operands := cg.SignatureMatching("bit_of_fixed", 2, func(sig ir.Signature) bool {
			return sig[0] == ir.StdLogic && isFixed(sig[1]) && sig[1] == sig[2]
		})
		b.Add(ir.OpComparison, cmp.spec, always, operands, numeric(cond))
	}

	// Operands arrive as (condition, if true, if false).
	choose := cg.Compose(cg.Template("%s when %s = '1' else %s", 3), cg.Arg(1), cg.Arg(0), cg.Arg(2))
	b.Add(ir.OpSelect, none, always, cg.SignatureMatching("select", 3, func(sig ir.Signature) bool {
		return sig[1] == ir.StdLogic && sig[0] == sig[2] && sig[0] == sig[3]
	}), logic(choose))

	b.Add(ir.OpConcatenation, none, always, logicConcat, logic(cg.Symbol("&", 2))).
		Add(ir.OpSubSignalSelection, none, always, subSignal, logic(cg.Template("%s(%s downto %s)", 3).AsAtom()))

	b.Add(ir.OpZeroExtend, none, always, resizes(true), resizeOperator{}).
		Add(ir.OpConversion, none, always, resizes(true), resizeOperator{}).
		Add(ir.OpConversion, none, always, resizes(false), resizeOperator{}).
		Add(ir.OpTruncate, none, always, resizes(false), sliceOperator{})

	b.Add(ir.OpTypeCast, none, always, cg.SignatureMatching("fixed_to_bits", 1, func(sig ir.Signature) bool {
		return fixedBits(sig, false)
	}), numeric(cg.Function("std_logic_vector", 1))).
		Add(ir.OpTypeCast, none, always, cg.SignatureMatching("bits_to_signed", 1, func(sig ir.Signature) bool {
			return fixedBits(sig, true) && sig[0].Signed
		}), numeric(cg.Function("signed", 1))).
		Add(ir.OpTypeCast, none, always, cg.SignatureMatching("bits_to_unsigned", 1, func(sig ir.Signature) bool {
			return fixedBits(sig, true) && !sig[0].Signed
		}), numeric(cg.Function("unsigned", 1)))

	return b.MustBuild()
}

// NewVHDL creates the hardware-description processor.
func NewVHDL(opts ...cg.Option) *cg.Processor {
	base := []cg.Option{cg.WithTable(cg.LanguageVHDL, vhdlTable())}
	return cg.NewProcessor(VHDL, append(base, opts...)...)
}
