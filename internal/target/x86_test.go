package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/ir"
)

func TestX86Hierarchy(t *testing.T) {
	r := NewRegistry(quietLogger())

	sse2, err := r.Lookup(X86SSE2)
	require.NoError(t, err)
	avx2, err := r.Lookup(X86AVX2)
	require.NoError(t, err)

	assert.Equal(t, []string{Generic}, sse2.AncestorNames())
	assert.Equal(t, []string{X86SSE2, Generic}, avx2.AncestorNames())
}

func TestSSE2NearestInteger(t *testing.T) {
	sse2 := lookup(t, X86SSE2)
	x := ir.NewVariable("x", ir.Binary32)

	got := lower(t, sse2, cg.LanguageC, ir.NewOp(ir.OpNearestInteger, ir.Int32, x))
	assert.Equal(t, "#include <xmmintrin.h>\n\nint32_t r = _mm_cvt_ss2si(_mm_set_ss(x));\n", got)

	// Silent rounding leaves the intrinsic's condition and falls back to libm.
	code := cg.NewCodeObject(cg.LanguageC)
	g := cg.NewGenerator(sse2, code)
	require.NoError(t, g.Lower(ir.NewOp(ir.OpNearestInteger, ir.Int32, x).WithSilent(true), "r"))
	assert.Equal(t, "#include <math.h>\n\nint32_t r = nearbyintf(x);\n", code.String())
	require.Len(t, g.Resolutions(), 1)
	assert.Equal(t, Generic, g.Resolutions()[0].Processor)
}

func TestSSE2TypeCast(t *testing.T) {
	sse2 := lookup(t, X86SSE2)

	got := lower(t, sse2, cg.LanguageC, ir.NewOp(ir.OpTypeCast, ir.Binary64, ir.NewVariable("n", ir.Int64)))
	assert.Equal(t, "#include <emmintrin.h>\n\ndouble r = _mm_cvtsd_f64(_mm_castsi128_pd(_mm_cvtsi64_si128(n)));\n", got)

	// Binary32 casts are not remapped.
	got = lower(t, sse2, cg.LanguageC, ir.NewOp(ir.OpTypeCast, ir.Int32, ir.NewVariable("x", ir.Binary32)))
	assert.Equal(t, "#include <support_lib/ml_utils.h>\n\nint32_t r = float_to_32b_encoding(x);\n", got)
}

func TestAVX2FusedMultiplyAdd(t *testing.T) {
	avx2 := lookup(t, X86AVX2)

	tests := []struct {
		spec ir.Specifier
		want string
	}{
		{ir.FMAStandard, "_mm_fmadd_sd"},
		{ir.FMASubtract, "_mm_fmsub_sd"},
		{ir.FMANegate, "_mm_fnmsub_sd"},
		{ir.FMASubtractNegate, "_mm_fnmadd_sd"},
	}

	for _, tt := range tests {
		t.Run(string(tt.spec), func(t *testing.T) {
			want := "#include <emmintrin.h>\n#include <immintrin.h>\n\n" +
				"double r = _mm_cvtsd_f64(" + tt.want + "(_mm_set_sd(x), _mm_set_sd(y), _mm_set_sd(z)));\n"
			assert.Equal(t, want, lower(t, avx2, cg.LanguageC, fma(ir.Binary64, tt.spec)))
		})
	}

	// Global rounding satisfies the standard condition; silent operations do not.
	got := lower(t, avx2, cg.LanguageC, fma(ir.Binary64, ir.FMAStandard).WithRounding(ir.RoundGlobal))
	assert.Contains(t, got, "_mm_fmadd_sd")
	assert.True(t, cg.IsUnsupported(lowerErr(avx2, cg.LanguageC, fma(ir.Binary64, ir.FMAStandard).WithSilent(true))))
}

func TestAVX2DelegatesToAncestors(t *testing.T) {
	avx2 := lookup(t, X86AVX2)
	code := cg.NewCodeObject(cg.LanguageC)
	g := cg.NewGenerator(avx2, code)

	sum := binary(ir.OpAddition, ir.Binary32, ir.Binary32)
	root := ir.NewOp(ir.OpAddition, ir.Int32, ir.NewVariable("i", ir.Int32), ir.NewVariable("j", ir.Int32))
	require.NoError(t, g.Lower(sum, "s"))
	require.NoError(t, g.Lower(root, "r"))

	want := "#include <xmmintrin.h>\n\n" +
		"float s = _mm_cvtss_f32(_mm_add_ss(_mm_set_ss(a), _mm_set_ss(b)));\n" +
		"int32_t r = i + j;\n"
	assert.Equal(t, want, code.String())

	res := g.Resolutions()
	require.Len(t, res, 2)
	assert.Equal(t, X86SSE2, res[0].Processor)
	assert.Equal(t, Generic, res[1].Processor)

	clz := ir.NewOp(ir.OpCountLeadingZeros, ir.UInt64, ir.NewVariable("u", ir.UInt64))
	assert.Equal(t, "#include <immintrin.h>\n\nuint64_t r = _lzcnt_u64(u);\n", lower(t, avx2, cg.LanguageC, clz))

	// The parents' proof-script tables stay reachable.
	assert.Equal(t, "r = float<ieee_64,ne>((x * y) + z);\n", lower(t, avx2, cg.LanguageGappa, fma(ir.Binary64, ir.FMAStandard)))
}
