package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/target"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Step: "r", Opcode: "Multiplication", Signature: "binary64 <- (binary64, binary64)", Processor: "x86_sse2", Operator: "symbol(*)"},
		{Seq: 2, Step: "r", Opcode: "FusedMultiplyAdd", Specifier: "Negate", Signature: "binary64 <- (binary64, binary64, binary64)", Processor: "generic", Operator: "compose(symbol(-)(function(fma/3)))"},
		{Seq: 3, Step: "s", Opcode: "Addition", Signature: "binary64 <- (binary64, binary64)", Processor: "generic", Operator: "symbol(+)"},
		{Seq: 4, Step: "s", Opcode: "Multiplication", Signature: "binary64 <- (binary64, binary64)", Processor: "generic", Operator: "symbol(*)"},
	}
}

func TestAssertOutputContains(t *testing.T) {
	result := &Result{Output: "double r = -fma(x, y, z);\n"}

	assert.NoError(t, assertOutputContains(result, Assertion{Type: AssertOutputContains, Text: "-fma(x, y, z)"}))

	err := assertOutputContains(result, Assertion{Type: AssertOutputContains, Text: "fmaf"})
	require.Error(t, err)
	var assertErr *AssertionError
	require.True(t, errors.As(err, &assertErr))
	assert.Equal(t, AssertOutputContains, assertErr.Type)
	assert.Contains(t, assertErr.Actual, "-fma(x, y, z)")
}

func TestAssertOutputContains_NoOutput(t *testing.T) {
	err := assertOutputContains(&Result{}, Assertion{Type: AssertOutputContains, Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: no output")
}

func TestAssertResolvedBy(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"found", Assertion{Opcode: "FusedMultiplyAdd", Processor: "generic"}, ""},
		{"found with specifier", Assertion{Opcode: "FusedMultiplyAdd", Specifier: "Negate", Processor: "generic"}, ""},
		{"any of several resolutions", Assertion{Opcode: "Multiplication", Processor: "generic"}, ""},
		{"wrong processor", Assertion{Opcode: "Addition", Processor: "x86_sse2"}, "resolved by generic"},
		{"wrong specifier", Assertion{Opcode: "FusedMultiplyAdd", Specifier: "Subtract", Processor: "generic"}, "opcode not found in trace"},
		{"missing opcode", Assertion{Opcode: "Division", Processor: "generic"}, "opcode not found in trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assertion.Type = AssertResolvedBy
			err := assertResolvedBy(trace, tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertResolutionOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertResolutionOrder(trace, Assertion{Opcodes: []string{"Multiplication", "FusedMultiplyAdd", "Addition"}}))
	assert.NoError(t, assertResolutionOrder(trace, Assertion{Opcodes: []string{"Multiplication", "Addition"}}), "gaps are allowed")

	err := assertResolutionOrder(trace, Assertion{Opcodes: []string{"Addition", "FusedMultiplyAdd"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Addition (pos 3) should be before FusedMultiplyAdd (pos 2)")

	err = assertResolutionOrder(trace, Assertion{Opcodes: []string{"Addition", "Division"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing opcode: Division")
}

func TestAssertResolutionCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertResolutionCount(trace, Assertion{Opcode: "Multiplication", Count: 2}))
	assert.NoError(t, assertResolutionCount(trace, Assertion{Opcode: "Division", Count: 0}))
	assert.NoError(t, assertResolutionCount(trace, Assertion{Opcode: "FusedMultiplyAdd", Specifier: "Negate", Count: 1}))

	err := assertResolutionCount(trace, Assertion{Opcode: "Addition", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 2 resolutions of Addition")
	assert.Contains(t, err.Error(), "Actual: 1 resolutions")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := assertResolutionCount(sampleTrace(), Assertion{Opcode: "Addition", Count: 5})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: resolution_count")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[2] r FusedMultiplyAdd.Negate by generic")
	assert.Contains(t, msg, "[3] s Addition.* by generic")
}

func supportedContext(t *testing.T, name string, lang cg.Language, inputs map[string]string) *AssertionContext {
	t.Helper()
	proc, err := target.NewRegistry(nil).Lookup(name)
	require.NoError(t, err)
	b := newGraphBuilder(&Scenario{Inputs: inputs})
	return &AssertionContext{Processor: proc, Language: lang, build: b.build}
}

func TestAssertSupported(t *testing.T) {
	actx := supportedContext(t, "x86_avx2", cg.LanguageC, map[string]string{"a": "binary64", "b": "binary64", "i": "int64"})

	tests := []struct {
		name    string
		expr    ExprSpec
		expect  bool
		wantErr bool
	}{
		{"inherited from generic", binop("Addition", "binary64", v("a"), v("b")), true, false},
		{"not supported anywhere", binop("Addition", "int64", v("i"), v("i")), false, false},
		{"wrong expectation", binop("Addition", "int64", v("i"), v("i")), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := tt.expr
			err := assertSupported(actx, Assertion{Type: AssertSupported, Expr: &expr, Expect: boolPtr(tt.expect)})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "supported=false on x86_avx2/c")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAssertSupported_BadExpression(t *testing.T) {
	actx := supportedContext(t, "generic", cg.LanguageC, nil)

	err := assertSupported(actx, Assertion{Expr: &ExprSpec{Var: "ghost"}, Expect: boolPtr(true)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not declared")
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{Output: "double r = a * b;\n", Trace: sampleTrace()}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertOutputContains, Text: "a * b"},
		{Type: AssertResolutionCount, Opcode: "Multiplication", Count: 2},
		{Type: AssertResolvedBy, Opcode: "Addition", Processor: "vhdl"},
		{Type: "final_state"},
		{Type: AssertSupported, Expr: &ExprSpec{Var: "a"}, Expect: boolPtr(true)},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "resolved_by")
	assert.Contains(t, errs[1], `unknown assertion type "final_state"`)
	assert.Contains(t, errs[2], "supported requires a processor context")
}
