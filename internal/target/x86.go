package target

import (
	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/ir"
)

// x86 target names.
const (
	X86SSE2 = "x86_sse2"
	X86AVX2 = "x86_avx2"
)

const (
	sseHeader  = "xmmintrin.h"
	sse2Header = "emmintrin.h"
	avxHeader  = "immintrin.h"
)

// scalarVector describes how a scalar of one format moves in and out of the
// low lane of a vector register.
type scalarVector struct {
	set    *cg.FunctionOperator
	get    *cg.FunctionOperator
	suffix string
}

var lanes = map[ir.Format]scalarVector{
	ir.Binary32: {
		set:    cg.Function("_mm_set_ss", 1, sseHeader),
		get:    cg.Function("_mm_cvtss_f32", 1, sseHeader),
		suffix: "ss",
	},
	ir.Binary64: {
		set:    cg.Function("_mm_set_sd", 1, sse2Header),
		get:    cg.Function("_mm_cvtsd_f64", 1, sse2Header),
		suffix: "sd",
	},
}

// lifted renders get(intrinsic(set(a0), ..., set(an))) so a scalar
// operation runs on the low vector lane.
func lifted(f ir.Format, intrinsic *cg.FunctionOperator) *cg.CompositeOperator {
	lane := lanes[f]
	operands := make([]cg.Operand, intrinsic.Arity())
	for i := range operands {
		operands[i] = cg.Nested(lane.set, cg.Arg(i))
	}
	return cg.Compose(lane.get, cg.Nested(intrinsic, operands...))
}

func sse2CTable() *cg.Table[cg.Operator] {
	b := cg.NewOperatorTable()
	none := ir.SpecifierNone

	// Round to nearest in the current mode, without libm.
	b.Add(ir.OpNearestInteger, none, cg.StdCond, cg.Exact(ir.Int32, ir.Binary32),
		cg.Compose(cg.Function("_mm_cvt_ss2si", 1, sseHeader), cg.Nested(lanes[ir.Binary32].set))).
		Add(ir.OpNearestInteger, none, cg.StdCond, cg.Exact(ir.Int32, ir.Binary64),
			cg.Compose(cg.Function("_mm_cvtsd_si32", 1, sse2Header), cg.Nested(lanes[ir.Binary64].set))).
		Add(ir.OpNearestInteger, none, cg.StdCond, cg.Exact(ir.Int64, ir.Binary64),
			cg.Compose(cg.Function("_mm_cvtsd_si64", 1, sse2Header), cg.Nested(lanes[ir.Binary64].set)))

	// Bit reinterpretation through the vector register file.
	b.Add(ir.OpTypeCast, none, cg.Always, cg.Exact(ir.Binary64, ir.Int64),
		cg.Compose(lanes[ir.Binary64].get, cg.Nested(cg.Function("_mm_castsi128_pd", 1, sse2Header),
			cg.Nested(cg.Function("_mm_cvtsi64_si128", 1, sse2Header), cg.Arg(0))))).
		Add(ir.OpTypeCast, none, cg.Always, cg.Exact(ir.Int64, ir.Binary64),
			cg.Compose(cg.Function("_mm_cvtsi128_si64", 1, sse2Header), cg.Nested(cg.Function("_mm_castpd_si128", 1, sse2Header),
				cg.Nested(lanes[ir.Binary64].set, cg.Arg(0)))))

	for _, f := range fpFormats {
		suffix := lanes[f].suffix
		header := sseHeader
		if f == ir.Binary64 {
			header = sse2Header
		}
		b.Add(ir.OpAddition, none, cg.StdCond, cg.Exact(f, f, f), lifted(f, cg.Function("_mm_add_"+suffix, 2, header))).
			Add(ir.OpMultiplication, none, cg.StdCond, cg.Exact(f, f, f), lifted(f, cg.Function("_mm_mul_"+suffix, 2, header)))
	}

	return b.MustBuild()
}

// NewX86SSE2 creates the SSE2 processor. It refines generic and delegates
// everything it does not map to it.
func NewX86SSE2(generic *cg.Processor, opts ...cg.Option) *cg.Processor {
	base := []cg.Option{
		cg.WithParents(generic),
		cg.WithTable(cg.LanguageC, sse2CTable()),
	}
	return cg.NewProcessor(X86SSE2, append(base, opts...)...)
}

func avx2CTable() *cg.Table[cg.Operator] {
	b := cg.NewOperatorTable()

	variants := []struct {
		spec ir.Specifier
		stem string
	}{
		{ir.FMAStandard, "fmadd"},
		{ir.FMASubtract, "fmsub"},
		{ir.FMANegate, "fnmsub"},
		{ir.FMASubtractNegate, "fnmadd"},
	}
	for _, v := range variants {
		for _, f := range fpFormats {
			fn := cg.Function("_mm_"+v.stem+"_"+lanes[f].suffix, 3, avxHeader)
			b.Add(ir.OpFusedMultiplyAdd, v.spec, cg.StdCond, cg.Exact(f, f, f, f), lifted(f, fn))
		}
	}

	b.Add(ir.OpCountLeadingZeros, ir.SpecifierNone, cg.Always, cg.Exact(ir.UInt32, ir.UInt32), cg.Function("_lzcnt_u32", 1, avxHeader)).
		Add(ir.OpCountLeadingZeros, ir.SpecifierNone, cg.Always, cg.Exact(ir.UInt64, ir.UInt64), cg.Function("_lzcnt_u64", 1, avxHeader))

	return b.MustBuild()
}

// NewX86AVX2 creates the AVX2 processor: native scalar fused multiply-add
// and leading-zero count on top of SSE2.
func NewX86AVX2(sse2 *cg.Processor, opts ...cg.Option) *cg.Processor {
	base := []cg.Option{
		cg.WithParents(sse2),
		cg.WithTable(cg.LanguageC, avx2CTable()),
	}
	return cg.NewProcessor(X86AVX2, append(base, opts...)...)
}
