package target

import (
	"math"

	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/ir"
)

// Generic is the name of the portable C target.
const Generic = "generic"

var (
	fpFormats    = []ir.Format{ir.Binary32, ir.Binary64}
	arithFormats = []ir.Format{ir.Int32, ir.UInt32, ir.Binary32, ir.Binary64}
	intFormats   = []ir.Format{ir.Int32, ir.UInt32, ir.Int64, ir.UInt64}
	cmpFormats   = []ir.Format{ir.Int32, ir.Int64, ir.UInt64, ir.UInt32, ir.Binary32, ir.Binary64}
)

var exceptionFlags = map[ir.Exception]string{
	ir.ExceptionUnderflow: "FE_UNDERFLOW",
	ir.ExceptionOverflow:  "FE_OVERFLOW",
	ir.ExceptionInvalid:   "FE_INVALID",
	ir.ExceptionInexact:   "FE_INEXACT",
	ir.ExceptionDivByZero: "FE_DIVBYZERO",
}

// translateExceptions replaces every operand of an exception operation with
// the fenv flag of its exception-kind constant.
func translateExceptions(n ir.Node, args []cg.Expr) ([]cg.Expr, error) {
	inputs := n.Inputs()
	out := make([]cg.Expr, len(inputs))
	for i, in := range inputs {
		c, ok := in.(*ir.Constant)
		if !ok {
			return nil, cg.NewMalformedError("exception operand %d is a %s node, not a constant", i, in.Opcode())
		}
		v, ok := c.Value.(ir.ExceptionValue)
		if !ok {
			return nil, cg.NewMalformedError("exception operand %d holds %s, not an exception kind", i, c.Value)
		}
		flag, ok := exceptionFlags[v.Kind]
		if !ok {
			return nil, cg.NewMalformedError("exception operand %d has unknown kind %d", i, uint8(v.Kind))
		}
		out[i] = cg.Atom(flag)
	}
	return out, nil
}

func raiseOne() cg.Operator {
	return cg.Custom("fenv_flags", cg.FenvFunction("feraiseexcept", 1), translateExceptions)
}

func raiseTwo() cg.Operator {
	return cg.Custom("fenv_flags",
		cg.Compose(cg.FenvFunction("feraiseexcept", 1), cg.Nested(cg.Symbol("|", 2))),
		translateExceptions)
}

func genericCTable() *cg.Table[cg.Operator] {
	b := cg.NewOperatorTable()
	always := cg.Always
	none := ir.SpecifierNone

	selectOp := cg.Template("%s ? %s : %s", 3)
	b.Add(ir.OpSelect, none, always, cg.Exact(ir.Int32, ir.Int32, ir.Int32, ir.Int32), selectOp).
		Add(ir.OpSelect, none, always, cg.Exact(ir.UInt32, ir.Int32, ir.UInt32, ir.UInt32), selectOp).
		Add(ir.OpSelect, none, always, cg.Exact(ir.Binary32, ir.Int32, ir.Binary32, ir.Binary32), selectOp).
		Add(ir.OpSelect, none, always, cg.Exact(ir.Binary64, ir.Int32, ir.Binary64, ir.Binary64), selectOp)

	b.Add(ir.OpAbs, none, always, cg.Exact(ir.Binary32, ir.Binary32), cg.LibmFunction("fabsf", 1)).
		Add(ir.OpAbs, none, always, cg.Exact(ir.Binary64, ir.Binary64), cg.LibmFunction("fabs", 1)).
		Add(ir.OpAbs, none, always, cg.Exact(ir.Int32, ir.Int32), cg.StdFunction("abs", 1)).
		Add(ir.OpAbs, none, always, cg.Exact(ir.Int64, ir.Int64), cg.StdFunction("llabs", 1))

	load := cg.Indexed()
	for _, f := range fpFormats {
		for _, idx := range []ir.Format{ir.Int32, ir.Int64} {
			b.Add(ir.OpTableLoad, none, always, cg.Exact(f, f, idx), load)
			b.Add(ir.OpTableLoad, none, always, cg.Exact(f, f, idx, ir.Int32), load)
		}
	}

	b.Simplified(ir.OpBitLogicAnd, none, always, intFormats, 2, cg.Symbol("&", 2)).
		Simplified(ir.OpBitLogicOr, none, always, intFormats, 2, cg.Symbol("|", 2)).
		Simplified(ir.OpBitLogicXor, none, always, intFormats, 2, cg.Symbol("^", 2)).
		Simplified(ir.OpBitLogicNegate, none, always, intFormats, 1, cg.Symbol("~", 1))

	for _, shift := range []struct {
		opcode ir.Opcode
		symbol string
	}{{ir.OpBitLogicLeftShift, "<<"}, {ir.OpBitLogicRightShift, ">>"}} {
		op := cg.Symbol(shift.symbol, 2)
		for _, amount := range intFormats {
			b.Add(shift.opcode, none, always, cg.Exact(ir.Int64, ir.Int64, amount), op)
		}
		b.Add(shift.opcode, none, always, cg.Exact(ir.Int32, ir.Int32, ir.Int32), op).
			Add(shift.opcode, none, always, cg.Exact(ir.Int32, ir.Int32, ir.UInt32), op)
	}

	logical := []ir.Format{ir.Int32, ir.UInt32}
	b.Simplified(ir.OpLogicalOr, none, always, logical, 2, cg.Symbol("||", 2)).
		Simplified(ir.OpLogicalAnd, none, always, logical, 2, cg.Symbol("&&", 2)).
		Simplified(ir.OpLogicalNot, none, always, logical, 1, cg.Symbol("!", 1))

	b.Simplified(ir.OpNegation, none, always, arithFormats, 1, cg.Symbol("-", 1)).
		Simplified(ir.OpAddition, none, always, arithFormats, 2, cg.Symbol("+", 2)).
		Simplified(ir.OpSubtraction, none, always, arithFormats, 2, cg.Symbol("-", 2)).
		Simplified(ir.OpMultiplication, none, always, arithFormats, 2, cg.Symbol("*", 2)).
		Simplified(ir.OpDivision, none, always, arithFormats, 2, cg.Symbol("/", 2)).
		Simplified(ir.OpModulo, none, always, []ir.Format{ir.Int32, ir.UInt32, ir.Int64}, 2, cg.Symbol("%", 2))

	addFMA(b)

	for _, cmp := range []struct {
		spec   ir.Specifier
		symbol string
	}{
		{ir.CompEqual, "=="},
		{ir.CompNotEqual, "!="},
		{ir.CompGreater, ">"},
		{ir.CompGreaterOrEqual, ">="},
		{ir.CompLess, "<"},
		{ir.CompLessOrEqual, "<="},
	} {
		b.Simplified(ir.OpComparison, cmp.spec, always, cmpFormats, 2, cg.Symbol(cmp.symbol, 2),
			cg.ResultFormat[cg.Operator](ir.Int32))
	}

	for _, test := range []struct {
		spec ir.Specifier
		fn   string
	}{
		{ir.TestIsInfOrNaN, "ml_is_nan_or_inf"},
		{ir.TestIsNaN, "ml_is_nan"},
		{ir.TestIsSignalingNaN, "ml_is_signaling_nan"},
		{ir.TestIsQuietNaN, "ml_is_quiet_nan"},
		{ir.TestIsSubnormal, "ml_is_subnormal"},
		{ir.TestIsInfty, "ml_is_inf"},
		{ir.TestIsPositiveInfty, "ml_is_plus_inf"},
		{ir.TestIsNegativeInfty, "ml_is_minus_inf"},
		{ir.TestIsZero, "ml_is_zero"},
		{ir.TestIsPositiveZero, "ml_is_positivezero"},
		{ir.TestIsNegativeZero, "ml_is_negativezero"},
	} {
		b.Add(ir.OpTest, test.spec, always, cg.Exact(ir.Int32, ir.Binary32), cg.UtilsFunction(test.fn+"f", 1)).
			Add(ir.OpTest, test.spec, always, cg.Exact(ir.Int32, ir.Binary64), cg.UtilsFunction(test.fn, 1))
	}
	b.Add(ir.OpTest, ir.TestCompSign, always, cg.Exact(ir.Int32, ir.Binary32, ir.Binary32), cg.UtilsFunction("ml_comp_signf", 2)).
		Add(ir.OpTest, ir.TestCompSign, always, cg.Exact(ir.Int32, ir.Binary64, ir.Binary64), cg.UtilsFunction("ml_comp_sign", 2))

	b.Add(ir.OpNearestInteger, none, always, cg.Exact(ir.Int32, ir.Binary32), cg.LibmFunction("nearbyintf", 1)).
		Add(ir.OpNearestInteger, none, always, cg.Exact(ir.Binary32, ir.Binary32), cg.LibmFunction("rintf", 1)).
		Add(ir.OpNearestInteger, none, always, cg.Exact(ir.Int64, ir.Binary64), cg.LibmFunction("nearbyint", 1)).
		Add(ir.OpNearestInteger, none, always, cg.Exact(ir.Int32, ir.Binary64), cg.LibmFunction("nearbyint", 1)).
		Add(ir.OpNearestInteger, none, always, cg.Exact(ir.Binary64, ir.Binary64), cg.LibmFunction("rint", 1))

	b.Add(ir.OpExponentInsertion, ir.ExpInsertionDefault, always, cg.Exact(ir.Binary32, ir.Int32), cg.UtilsFunction("ml_exp_insertion_fp32", 1)).
		Add(ir.OpExponentInsertion, ir.ExpInsertionDefault, always, cg.Exact(ir.Binary64, ir.Int32), cg.UtilsFunction("ml_exp_insertion_fp64", 1)).
		Add(ir.OpExponentInsertion, ir.ExpInsertionNoOffset, always, cg.Exact(ir.Binary32, ir.Int32), cg.UtilsFunction("ml_exp_insertion_no_offset_fp32", 1)).
		Add(ir.OpExponentInsertion, ir.ExpInsertionNoOffset, always, cg.Exact(ir.Binary64, ir.Int32), cg.UtilsFunction("ml_exp_insertion_no_offset_fp64", 1))

	b.Add(ir.OpExponentExtraction, none, always, cg.Exact(ir.Int32, ir.Binary32), cg.UtilsFunction("ml_exp_extraction_dirty_fp32", 1)).
		Add(ir.OpExponentExtraction, none, always, cg.Exact(ir.Int32, ir.Binary64), cg.UtilsFunction("ml_exp_extraction_dirty_fp64", 1)).
		Add(ir.OpMantissaExtraction, none, always, cg.Exact(ir.Binary32, ir.Binary32), cg.UtilsFunction("ml_mantissa_extraction_fp32", 1)).
		Add(ir.OpMantissaExtraction, none, always, cg.Exact(ir.Binary64, ir.Binary64), cg.UtilsFunction("ml_mantissa_extraction_fp64", 1)).
		Add(ir.OpRawSignExpExtraction, none, always, cg.Exact(ir.Int32, ir.Binary32), cg.UtilsFunction("ml_raw_sign_exp_extraction_fp32", 1)).
		Add(ir.OpRawSignExpExtraction, none, always, cg.Exact(ir.Int32, ir.Binary64), cg.UtilsFunction("ml_raw_sign_exp_extraction_fp64", 1)).
		Add(ir.OpRawMantissaExtraction, none, always, cg.Exact(ir.UInt32, ir.Binary32), cg.UtilsFunction("ml_raw_mantissa_extraction_fp32", 1)).
		Add(ir.OpRawMantissaExtraction, none, always, cg.Exact(ir.UInt64, ir.Binary64), cg.UtilsFunction("ml_raw_mantissa_extraction_fp64", 1)).
		Add(ir.OpCountLeadingZeros, none, always, cg.Exact(ir.UInt32, ir.UInt32), cg.UtilsFunction("ml_count_leading_zeros_32b", 1)).
		Add(ir.OpCountLeadingZeros, none, always, cg.Exact(ir.UInt64, ir.UInt64), cg.UtilsFunction("ml_count_leading_zeros_64b", 1))

	identity := cg.Identity()
	for _, pair := range [][2]ir.Format{
		{ir.Binary32, ir.Binary64},
		{ir.Binary64, ir.Binary32},
		{ir.Binary32, ir.Int32},
		{ir.Int32, ir.Binary32},
		{ir.Binary64, ir.Int32},
		{ir.Binary64, ir.Int64},
		{ir.Int64, ir.Binary64},
		{ir.Int32, ir.Int64},
		{ir.Int64, ir.Int32},
		{ir.Int64, ir.UInt64},
		{ir.UInt64, ir.Int64},
		{ir.UInt32, ir.Int32},
		{ir.Int32, ir.UInt32},
	} {
		b.Add(ir.OpConversion, none, always, cg.Exact(pair[0], pair[1]), identity)
	}

	fromBits64 := cg.UtilsFunction("double_from_64b_encoding", 1)
	toBits64 := cg.UtilsFunction("double_to_64b_encoding", 1)
	fromBits32 := cg.UtilsFunction("float_from_32b_encoding", 1)
	toBits32 := cg.UtilsFunction("float_to_32b_encoding", 1)
	b.Add(ir.OpTypeCast, none, always, cg.Exact(ir.Binary64, ir.Int64), fromBits64).
		Add(ir.OpTypeCast, none, always, cg.Exact(ir.Binary64, ir.UInt64), fromBits64).
		Add(ir.OpTypeCast, none, always, cg.Exact(ir.Int64, ir.Binary64), toBits64).
		Add(ir.OpTypeCast, none, always, cg.Exact(ir.UInt64, ir.Binary64), toBits64).
		Add(ir.OpTypeCast, none, always, cg.Exact(ir.Binary32, ir.Int32), fromBits32).
		Add(ir.OpTypeCast, none, always, cg.Exact(ir.Binary32, ir.UInt32), fromBits32).
		Add(ir.OpTypeCast, none, always, cg.Exact(ir.Int32, ir.Binary32), toBits32).
		Add(ir.OpTypeCast, none, always, cg.Exact(ir.UInt32, ir.Binary32), toBits32).
		Add(ir.OpTypeCast, none, always, cg.Exact(ir.UInt64, ir.Binary32),
			cg.Compose(cg.Template("(uint64_t) %s", 1), cg.Nested(toBits32))).
		Add(ir.OpTypeCast, none, always, cg.Exact(ir.Binary32, ir.UInt64), fromBits32)

	b.Add(ir.OpExceptionOperation, ir.ClearException, always, cg.Exact(ir.Void),
		cg.FenvFunction("feclearexcept", 0).WithSlots(cg.Literal("FE_ALL_EXCEPT")))
	for _, spec := range []ir.Specifier{ir.RaiseException, ir.RaiseReturn} {
		b.Add(ir.OpExceptionOperation, spec, always, cg.Exact(ir.Void, ir.FPEType), raiseOne()).
			Add(ir.OpExceptionOperation, spec, always, cg.Exact(ir.Void, ir.FPEType, ir.FPEType), raiseTwo())
	}

	b.Add(ir.OpSpecificOperation, ir.Subnormalize, always, cg.Exact(ir.Binary64, ir.DoubleDouble, ir.Int32),
		cg.MultiPrecFunction("ml_subnormalize_d_dd_i", 2)).
		Add(ir.OpSpecificOperation, ir.CopySign, always, cg.Exact(ir.Binary32, ir.Binary32, ir.Binary32), cg.UtilsFunction("ml_copy_signf", 2)).
		Add(ir.OpSpecificOperation, ir.CopySign, always, cg.Exact(ir.Binary64, ir.Binary64, ir.Binary64), cg.UtilsFunction("ml_copy_sign", 2))

	b.Add(ir.OpSplit, none, always, cg.Exact(ir.DoubleDouble, ir.Binary64), cg.MultiPrecFunction("ml_split_dd_d", 1)).
		Add(ir.OpComponentSelection, ir.ComponentHi, always, cg.Exact(ir.Binary64, ir.DoubleDouble), cg.Template("%s.hi", 1).AsAtom()).
		Add(ir.OpComponentSelection, ir.ComponentLo, always, cg.Exact(ir.Binary64, ir.DoubleDouble), cg.Template("%s.lo", 1).AsAtom())

	b.Add(ir.OpFunctionCall, none, always, cg.FunctionSignature(), cg.CallObject())

	return b.MustBuild()
}

// addFMA registers the C fused multiply-add variants. They are only valid
// for operations that may raise flags and follow the global rounding mode.
func addFMA(b *cg.TableBuilder[cg.Operator]) {
	fma := map[ir.Format]*cg.FunctionOperator{
		ir.Binary32: cg.LibmFunction("fmaf", 3),
		ir.Binary64: cg.LibmFunction("fma", 3),
	}
	for _, f := range fpFormats {
		sig := func() *cg.TypeMatch { return cg.Exact(f, f, f, f) }
		fn := fma[f]
		neg := cg.Symbol("-", 1)

		b.Add(ir.OpFusedMultiplyAdd, ir.FMAStandard, cg.StdCond, sig(), fn)
		b.Add(ir.OpFusedMultiplyAdd, ir.FMANegate, cg.StdCond, sig(),
			cg.Compose(neg, cg.Nested(fn)))
		b.Add(ir.OpFusedMultiplyAdd, ir.FMASubtractNegate, cg.StdCond, sig(),
			cg.Compose(fn, cg.Nested(neg, cg.Arg(0)), cg.Arg(1), cg.Arg(2)))
		b.Add(ir.OpFusedMultiplyAdd, ir.FMASubtract, cg.StdCond, sig(),
			cg.Compose(fn, cg.Arg(0), cg.Arg(1), cg.Nested(neg, cg.Arg(2))))
	}
	b.Add(ir.OpFusedMultiplyAdd, ir.FMAStandard, cg.StdCond,
		cg.Exact(ir.DoubleDouble, ir.Binary64, ir.Binary64, ir.Binary64),
		cg.MultiPrecFunction("ml_fma_dd_d3", 3))
}

func genericGappaTable() *cg.Table[cg.Operator] {
	b := cg.NewOperatorTable()
	always := cg.Always
	none := ir.SpecifierNone
	gappaArith := []cg.SimplifiedOption[cg.Operator]{
		cg.RelaxedMatch[cg.Operator](), cg.ExplicitRounding(), cg.ExtendExact[cg.Operator](),
	}

	b.Simplified(ir.OpNegation, none, always, arithFormats, 1, cg.Symbol("-", 1), gappaArith...).
		Simplified(ir.OpAddition, none, always, arithFormats, 2, cg.Symbol("+", 2), gappaArith...).
		Simplified(ir.OpSubtraction, none, always, arithFormats, 2, cg.Symbol("-", 2), gappaArith...).
		Simplified(ir.OpMultiplication, none, always, arithFormats, 2, cg.Symbol("*", 2), gappaArith...)

	b.Add(ir.OpDivision, none, always, cg.AnySignature(), cg.Symbol("/", 2))

	// x*y, computed exactly inside the rounded expression.
	product := cg.Nested(cg.Symbol("*", 2), cg.Arg(0), cg.Arg(1))
	fmaForms := []struct {
		spec ir.Specifier
		cond *cg.Condition
		expr func() *cg.CompositeOperator
	}{
		{ir.FMAStandard, cg.NotCommutated, func() *cg.CompositeOperator {
			return cg.Compose(cg.Symbol("+", 2), product, cg.Arg(2))
		}},
		{ir.FMAStandard, cg.Commutated, func() *cg.CompositeOperator {
			return cg.Compose(cg.Symbol("+", 2), cg.Arg(2), product)
		}},
		{ir.FMANegate, cg.NotCommutated, func() *cg.CompositeOperator {
			return cg.Compose(cg.Symbol("-", 1), cg.Nested(cg.Symbol("+", 2), product, cg.Arg(2)))
		}},
		{ir.FMASubtract, cg.NotCommutated, func() *cg.CompositeOperator {
			return cg.Compose(cg.Symbol("-", 2), product, cg.Arg(2))
		}},
		{ir.FMASubtractNegate, cg.NotCommutated, func() *cg.CompositeOperator {
			return cg.Compose(cg.Symbol("+", 2), cg.Nested(cg.Symbol("-", 1), product), cg.Arg(2))
		}},
		{ir.FMASubtractNegate, cg.Commutated, func() *cg.CompositeOperator {
			return cg.Compose(cg.Symbol("-", 2), cg.Arg(2), product)
		}},
	}
	for _, form := range fmaForms {
		for _, f := range fpFormats {
			b.Add(ir.OpFusedMultiplyAdd, form.spec, form.cond, cg.Relaxed(f, f, f, f),
				cg.Compose(cg.Round(f), cg.Nested(form.expr())))
		}
		b.Add(ir.OpFusedMultiplyAdd, form.spec, form.cond, cg.ResultOnly(ir.Exact), form.expr())
	}

	b.Add(ir.OpNearestInteger, none, always, cg.Relaxed(ir.Binary32, ir.Binary32), cg.Round(ir.Int32)).
		Add(ir.OpNearestInteger, none, always, cg.Relaxed(ir.Binary64, ir.Binary64), cg.Round(ir.Int64)).
		Add(ir.OpConversion, none, always, cg.Relaxed(ir.Binary32, ir.Binary64), cg.Round(ir.Binary32)).
		Add(ir.OpConversion, none, always, cg.Relaxed(ir.Binary64, ir.Binary32), cg.Round(ir.Binary64))

	return b.MustBuild()
}

// inverseSeedSteps are the 9-bit mantissa offsets of the reciprocal seeds,
// one per 7-bit input mantissa prefix.
var inverseSeedSteps = [128]int{
	508, 500, 492, 485, 477, 470, 463, 455, 448, 441, 434, 428, 421, 414, 408, 401,
	395, 389, 383, 377, 371, 365, 359, 353, 347, 342, 336, 331, 326, 320, 315, 310,
	305, 300, 295, 290, 285, 280, 275, 271, 266, 261, 257, 252, 248, 243, 239, 235,
	231, 226, 222, 218, 214, 210, 206, 202, 198, 195, 191, 187, 183, 180, 176, 172,
	169, 165, 162, 158, 155, 152, 148, 145, 142, 138, 135, 132, 129, 126, 123, 120,
	117, 114, 111, 108, 105, 102, 99, 96, 93, 91, 88, 85, 82, 80, 77, 74,
	72, 69, 67, 64, 62, 59, 57, 54, 52, 49, 47, 45, 42, 40, 38, 35,
	33, 31, 29, 26, 24, 22, 20, 18, 15, 13, 11, 9, 7, 5, 3, 0,
}

// InverseSeedTable returns the 128-entry reciprocal seed table: entry i is
// (1 + t_i/2^9) / 2, stored in binary32.
func InverseSeedTable() *cg.ApproxTable {
	data := make([]float64, len(inverseSeedSteps))
	for i, t := range inverseSeedSteps {
		data[i] = math.Ldexp(1+math.Ldexp(float64(t), -9), -1)
	}
	return &cg.ApproxTable{
		Name:       "inv_seed_table",
		Dimensions: []int{len(inverseSeedSteps), 1},
		Format:     ir.Binary32,
		Data:       data,
	}
}

func genericApproxMap() *cg.Table[*cg.ApproxTable] {
	seed := InverseSeedTable()
	b := cg.NewApproxTableMap()
	for _, f := range fpFormats {
		b.Add(ir.OpSpecificOperation, ir.DivisionSeed, cg.Always, cg.Exact(f, f, f), seed)
	}
	for _, cond := range []*cg.Condition{cg.NotSilent, cg.Silent} {
		for _, f := range fpFormats {
			b.Add(ir.OpSpecificOperation, ir.DivisionSeed, cond, cg.Exact(f, f), seed)
		}
	}
	return b.MustBuild()
}

// NewGeneric creates the portable C processor with its proof-script table
// and the shared reciprocal seed table.
func NewGeneric(opts ...cg.Option) *cg.Processor {
	base := []cg.Option{
		cg.WithTable(cg.LanguageC, genericCTable()),
		cg.WithTable(cg.LanguageGappa, genericGappaTable()),
		cg.WithApproxTable(cg.LanguageAny, genericApproxMap()),
	}
	return cg.NewProcessor(Generic, append(base, opts...)...)
}
