package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/ir"
)

func intPtr(i int) *int           { return &i }
func strPtr(s string) *string     { return &s }
func arg(i int) ir.OperandSpec    { return ir.OperandSpec{Arg: intPtr(i)} }
func lit(s string) ir.OperandSpec { return ir.OperandSpec{Literal: strPtr(s)} }

func exactSig(formats ...string) ir.SignatureSpec {
	return ir.SignatureSpec{Match: "exact", Formats: formats}
}

func builtinFMASpec() ir.TargetSpec {
	return ir.TargetSpec{
		Name:    "kv_fma",
		Parents: []string{Generic},
		Rules: []ir.RuleSpec{
			{
				Language:  "c",
				Opcode:    "FusedMultiplyAdd",
				Specifier: "Standard",
				Condition: "std",
				Signature: exactSig("binary32", "binary32", "binary32", "binary32"),
				Operator:  ir.OperatorSpec{Kind: "function", Name: "__builtin_fmaf", Arity: 3},
			},
			{
				Language:  "c",
				Opcode:    "FusedMultiplyAdd",
				Specifier: "Subtract",
				Condition: "std",
				Signature: exactSig("binary32", "binary32", "binary32", "binary32"),
				Operator: ir.OperatorSpec{
					Kind:  "compose",
					Outer: &ir.OperatorSpec{Kind: "function", Name: "__builtin_fmaf", Arity: 3},
					Operands: []ir.OperandSpec{
						arg(0),
						arg(1),
						{Operator: &ir.OperatorSpec{Kind: "symbol", Symbol: "-", Arity: 1}, Operands: []ir.OperandSpec{arg(2)}},
					},
				},
			},
			{
				Language:  "c",
				Opcode:    "ExceptionOperation",
				Specifier: "ClearException",
				Condition: "always",
				Signature: exactSig("void"),
				Operator: ir.OperatorSpec{
					Kind:    "function",
					Name:    "feclearexcept",
					Headers: []string{"fenv.h"},
					Slots:   []ir.OperandSpec{lit("FE_DIVBYZERO")},
				},
			},
			{
				Language:  "gappa",
				Opcode:    "Addition",
				Condition: "always",
				Signature: ir.SignatureSpec{Match: "result", Formats: []string{"exact"}},
				Operator:  ir.OperatorSpec{Kind: "template", Template: "%s +++ %s", Arity: 2},
			},
		},
		Approx: []ir.ApproxRuleSpec{{
			Opcode:    "SpecificOperation",
			Specifier: "DivisionSeed",
			Condition: "always",
			Signature: exactSig("binary32", "binary32"),
			Table: ir.TableSpec{
				Name:       "coarse_seed",
				Dimensions: []int{2, 1},
				Format:     "binary32",
				Data:       []float64{1, 0.5},
			},
		}},
	}
}

func TestBuildFromDescription(t *testing.T) {
	generic := lookup(t, Generic)
	p, err := Build(builtinFMASpec(), []*cg.Processor{generic}, cg.WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.Equal(t, "kv_fma", p.Name())
	assert.Equal(t, []string{Generic}, p.AncestorNames())
	assert.Equal(t, []cg.Language{cg.LanguageC, cg.LanguageGappa}, p.Languages())

	tests := []struct {
		name string
		lang cg.Language
		root ir.Node
		want string
	}{
		{"local function", cg.LanguageC, fma(ir.Binary32, ir.FMAStandard), "float r = __builtin_fmaf(x, y, z);\n"},
		{"local composition", cg.LanguageC, fma(ir.Binary32, ir.FMASubtract), "float r = __builtin_fmaf(x, y, -z);\n"},
		{"delegated", cg.LanguageC, fma(ir.Binary64, ir.FMAStandard), "#include <math.h>\n\ndouble r = fma(x, y, z);\n"},
		{"literal slot", cg.LanguageC, ir.NewOp(ir.OpExceptionOperation, ir.Void).WithSpecifier(ir.ClearException),
			"#include <fenv.h>\n\nfeclearexcept(FE_DIVBYZERO);\n"},
		{"proof script", cg.LanguageGappa, binary(ir.OpAddition, ir.Exact, ir.Int64), "r = a +++ b;\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lower(t, p, tt.lang, tt.root))
		})
	}

	seed := ir.NewOp(ir.OpSpecificOperation, ir.Binary32, ir.NewVariable("x", ir.Binary32)).WithSpecifier(ir.DivisionSeed)
	tbl, by, err := p.ResolveApproxTable(seed, cg.LanguageC)
	require.NoError(t, err)
	assert.Equal(t, "coarse_seed", tbl.Name)
	assert.Equal(t, "kv_fma", by.Name())

	seed64 := ir.NewOp(ir.OpSpecificOperation, ir.Binary64, ir.NewVariable("x", ir.Binary64)).WithSpecifier(ir.DivisionSeed)
	tbl, by, err = p.ResolveApproxTable(seed64, cg.LanguageC)
	require.NoError(t, err)
	assert.Equal(t, "inv_seed_table", tbl.Name)
	assert.Equal(t, Generic, by.Name())
}

func TestBuildAbstract(t *testing.T) {
	spec := ir.TargetSpec{Name: "family", Abstract: true}
	p, err := Build(spec, nil)
	require.NoError(t, err)
	assert.True(t, p.IsAbstract())
}

func TestBuildCollectsRuleErrors(t *testing.T) {
	good := builtinFMASpec().Rules[0]

	tests := []struct {
		name   string
		mutate func(r *ir.RuleSpec)
		want   string
	}{
		{"unknown language", func(r *ir.RuleSpec) { r.Language = "cobol" }, `unknown language "cobol"`},
		{"unknown opcode", func(r *ir.RuleSpec) { r.Opcode = "Frobnicate" }, `unknown opcode "Frobnicate"`},
		{"unknown condition", func(r *ir.RuleSpec) { r.Condition = "sometimes" }, `unknown condition "sometimes"`},
		{"unknown format", func(r *ir.RuleSpec) { r.Signature.Formats[1] = "binary16" }, "signature position 1"},
		{"unknown match", func(r *ir.RuleSpec) { r.Signature.Match = "fuzzy" }, `unknown signature match "fuzzy"`},
		{"unknown operator", func(r *ir.RuleSpec) { r.Operator.Kind = "macro" }, `unknown operator kind "macro"`},
		{"arity disagreement", func(r *ir.RuleSpec) { r.Operator.Arity = 2 }, "fixes 3 input(s) but operator expects 2"},
		{"ambiguous operand", func(r *ir.RuleSpec) {
			r.Operator.Slots = []ir.OperandSpec{{Arg: intPtr(0), Result: true}}
		}, "exactly one of arg, literal, result or operator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := good
			rule.Signature.Formats = append([]string(nil), good.Signature.Formats...)
			tt.mutate(&rule)

			spec := ir.TargetSpec{Name: "broken", Rules: []ir.RuleSpec{good, rule}}
			_, err := Build(spec, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "target broken")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildRejectsBadTables(t *testing.T) {
	spec := builtinFMASpec()
	spec.Approx[0].Table.Data = []float64{1}

	_, err := Build(spec, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "approx rule 0")
	assert.Contains(t, err.Error(), "1 value(s) for dimensions [2 1]")
}

func TestBuildTypeMatch(t *testing.T) {
	tests := []struct {
		name    string
		spec    ir.SignatureSpec
		kind    cg.MatchKind
		wantErr bool
	}{
		{"exact", exactSig("int32", "int32"), cg.MatchExact, false},
		{"relaxed", ir.SignatureSpec{Match: "relaxed", Formats: []string{"binary64", "binary64"}}, cg.MatchRelaxed, false},
		{"result", ir.SignatureSpec{Match: "result", Formats: []string{"exact"}}, cg.MatchResult, false},
		{"function", ir.SignatureSpec{Match: "function"}, cg.MatchFunction, false},
		{"any", ir.SignatureSpec{Match: "any"}, cg.MatchAny, false},
		{"exact without formats", ir.SignatureSpec{Match: "exact"}, 0, true},
		{"result with two formats", ir.SignatureSpec{Match: "result", Formats: []string{"int32", "int32"}}, 0, true},
		{"any with formats", ir.SignatureSpec{Match: "any", Formats: []string{"int32"}}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := BuildTypeMatch(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, m.Kind())
		})
	}
}
