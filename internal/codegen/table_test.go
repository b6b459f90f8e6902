package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mlcg/internal/ir"
)

func binop(opcode ir.Opcode, f ir.Format) *ir.Op {
	return ir.NewOp(opcode, f, ir.NewVariable("a", f), ir.NewVariable("b", f))
}

func TestLookupReturnsRegisteredOperator(t *testing.T) {
	add := Symbol("+", 2)
	sub := Symbol("-", 2)
	table := NewOperatorTable().
		Add(ir.OpAddition, ir.SpecifierNone, Always, Exact(ir.Int32, ir.Int32, ir.Int32), add).
		Add(ir.OpSubtraction, ir.SpecifierNone, Always, Exact(ir.Int32, ir.Int32, ir.Int32), sub).
		MustBuild()

	got, ok := table.Lookup(binop(ir.OpAddition, ir.Int32))
	require.True(t, ok)
	assert.Same(t, add, got)

	got, ok = table.Lookup(binop(ir.OpSubtraction, ir.Int32))
	require.True(t, ok)
	assert.Same(t, sub, got)

	_, ok = table.Lookup(binop(ir.OpAddition, ir.Binary64))
	assert.False(t, ok, "signature miss")

	_, ok = table.Lookup(binop(ir.OpMultiplication, ir.Int32))
	assert.False(t, ok, "key miss")
}

func TestLookupIsOrderSensitive(t *testing.T) {
	first := Function("first", 2)
	second := Function("second", 2)

	table := NewOperatorTable().
		Add(ir.OpAddition, ir.SpecifierNone, Always, Relaxed(ir.Int32, ir.Int32, ir.Int32), first).
		Add(ir.OpAddition, ir.SpecifierNone, Always, Exact(ir.UInt32, ir.UInt32, ir.UInt32), second).
		MustBuild()

	got, ok := table.Lookup(binop(ir.OpAddition, ir.UInt32))
	require.True(t, ok)
	assert.Same(t, first, got, "the earlier overlapping rule wins")

	swapped := NewOperatorTable().
		Add(ir.OpAddition, ir.SpecifierNone, Always, Exact(ir.UInt32, ir.UInt32, ir.UInt32), second).
		Add(ir.OpAddition, ir.SpecifierNone, Always, Relaxed(ir.Int32, ir.Int32, ir.Int32), first).
		MustBuild()

	got, ok = swapped.Lookup(binop(ir.OpAddition, ir.UInt32))
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestLookupFallsThroughBranches(t *testing.T) {
	silentOp := Function("silent_add", 2)
	fallback := Function("add", 2)

	table := NewOperatorTable().
		Add(ir.OpAddition, ir.SpecifierNone, Silent, Exact(ir.Binary32, ir.Binary32, ir.Binary32), silentOp).
		Add(ir.OpAddition, ir.SpecifierNone, Always, Exact(ir.Binary64, ir.Binary64, ir.Binary64), fallback).
		MustBuild()

	// Silent holds but its only rule does not match: the walk continues.
	n := binop(ir.OpAddition, ir.Binary64).WithSilent(true)
	got, ok := table.Lookup(n)
	require.True(t, ok)
	assert.Same(t, fallback, got)

	cond, rule, ok := table.Match(n)
	require.True(t, ok)
	assert.Same(t, Always, cond)
	assert.Equal(t, MatchExact, rule.Signature.Kind())

	got, ok = table.Lookup(binop(ir.OpAddition, ir.Binary32).WithSilent(true))
	require.True(t, ok)
	assert.Same(t, silentOp, got)

	_, ok = table.Lookup(binop(ir.OpAddition, ir.Binary32))
	assert.False(t, ok, "condition fails and no later branch matches")
}

func TestLookupConditions(t *testing.T) {
	x := ir.NewVariable("x", ir.Binary64)
	base := func() *ir.Op { return ir.NewOp(ir.OpNegation, ir.Binary64, x) }

	tests := []struct {
		name string
		cond *Condition
		node *ir.Op
		want bool
	}{
		{"always", Always, base(), true},
		{"std default", StdCond, base(), true},
		{"std global", StdCond, base().WithRounding(ir.RoundGlobal), true},
		{"std explicit rounding", StdCond, base().WithRounding(ir.RoundUp), false},
		{"std silent", StdCond, base().WithSilent(true), false},
		{"not silent", NotSilent, base(), true},
		{"silent", Silent, base().WithSilent(true), true},
		{"commutated", Commutated, base().WithCommutated(true), true},
		{"not commutated", NotCommutated, base().WithCommutated(true), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Holds(tt.node))
		})
	}
}

func TestTypeMatchKinds(t *testing.T) {
	x64 := ir.NewVariable("x", ir.Binary64)
	add := ir.NewOp(ir.OpAddition, ir.Binary64, x64, x64)
	sig := ir.SignatureOf(add)

	fn := &ir.Function{Name: "f", Args: []ir.Format{ir.Binary64}, Result: ir.Binary64}
	call := ir.NewCall(fn, x64)
	badCall := ir.NewCall(fn, x64, x64)

	assert.True(t, Exact(ir.Binary64, ir.Binary64, ir.Binary64).Matches(add, sig))
	assert.False(t, Exact(ir.Binary64, ir.Binary64).Matches(add, sig))
	assert.True(t, Relaxed(ir.Exact, ir.Binary64, ir.Binary64).Matches(add, sig))
	assert.True(t, ResultOnly(ir.Binary64).Matches(add, sig))
	assert.False(t, ResultOnly(ir.Binary32).Matches(add, sig))
	assert.True(t, AnySignature().Matches(add, sig))
	assert.False(t, FunctionSignature().Matches(add, sig))
	assert.True(t, FunctionSignature().Matches(call, ir.SignatureOf(call)))
	assert.False(t, FunctionSignature().Matches(badCall, ir.SignatureOf(badCall)))

	assert.Equal(t, 2, Exact(ir.Binary64, ir.Binary64, ir.Binary64).InputArity())
	assert.Equal(t, Variadic, ResultOnly(ir.Binary64).InputArity())
	assert.Equal(t, "exact(binary64 <- (binary64, binary64))", Exact(ir.Binary64, ir.Binary64, ir.Binary64).String())
	assert.Equal(t, "result(exact)", ResultOnly(ir.Exact).String())
}

func TestPredicatesAreComparedByIdentity(t *testing.T) {
	a := Function("a", 1)
	b := Function("b", 1)
	twin := NewCondition("always", func(ir.Node) bool { return true })

	table := NewOperatorTable().
		Add(ir.OpAbs, ir.SpecifierNone, Always, Exact(ir.Int32, ir.Int32), a).
		Add(ir.OpAbs, ir.SpecifierNone, twin, Exact(ir.Int64, ir.Int64), b).
		MustBuild()

	branches := table.Branches(Key{Opcode: ir.OpAbs})
	require.Len(t, branches, 2, "same logic, distinct predicates")
	assert.Same(t, Always, branches[0].Condition)
	assert.Same(t, twin, branches[1].Condition)
}

func TestAddMergesIntoExistingBranch(t *testing.T) {
	table := NewOperatorTable().
		Add(ir.OpAbs, ir.SpecifierNone, NotSilent, Exact(ir.Int32, ir.Int32), Function("a", 1)).
		Add(ir.OpAbs, ir.SpecifierNone, Silent, Exact(ir.Int32, ir.Int32), Function("b", 1)).
		Add(ir.OpAbs, ir.SpecifierNone, NotSilent, Exact(ir.Int64, ir.Int64), Function("c", 1)).
		MustBuild()

	branches := table.Branches(Key{Opcode: ir.OpAbs})
	require.Len(t, branches, 2)
	assert.Same(t, NotSilent, branches[0].Condition)
	assert.Len(t, branches[0].Rules, 2)
	assert.Same(t, Silent, branches[1].Condition)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []Key{{Opcode: ir.OpAbs}}, table.Keys())
}

func TestSimplified(t *testing.T) {
	table := NewOperatorTable().
		Simplified(ir.OpMultiplication, ir.SpecifierNone, StdCond,
			[]ir.Format{ir.Int32, ir.Binary64}, 2, Symbol("*", 2)).
		Simplified(ir.OpComparison, ir.CompLess, StdCond,
			[]ir.Format{ir.Binary64}, 2, Symbol("<", 2), ResultFormat[Operator](ir.Int32)).
		MustBuild()

	for _, f := range []ir.Format{ir.Int32, ir.Binary64} {
		_, ok := table.Lookup(binop(ir.OpMultiplication, f))
		assert.True(t, ok, f.String())
	}
	_, ok := table.Lookup(binop(ir.OpMultiplication, ir.Binary32))
	assert.False(t, ok)

	x := ir.NewVariable("x", ir.Binary64)
	cmp := ir.NewOp(ir.OpComparison, ir.Int32, x, x).WithSpecifier(ir.CompLess)
	_, ok = table.Lookup(cmp)
	assert.True(t, ok)
}

func TestSimplifiedExplicitRounding(t *testing.T) {
	table := NewOperatorTable().
		Simplified(ir.OpAddition, ir.SpecifierNone, Always,
			[]ir.Format{ir.Binary32, ir.Binary64}, 2, Symbol("+", 2),
			RelaxedMatch[Operator](), ExplicitRounding(), ExtendExact[Operator]()).
		MustBuild()

	n := binop(ir.OpAddition, ir.Binary32)
	op, ok := table.Lookup(n)
	require.True(t, ok)
	got, err := op.Render(NewRenderContext(LanguageGappa, nil), n, atoms("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "float<ieee_32,ne>(a + b)", got.Text)

	exact := ir.NewOp(ir.OpAddition, ir.Exact, ir.NewVariable("a", ir.Binary64), ir.NewVariable("b", ir.Binary32))
	op, ok = table.Lookup(exact)
	require.True(t, ok)
	got, err = op.Render(NewRenderContext(LanguageGappa, nil), exact, atoms("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "a + b", got.Text, "exact results are not rounded")
}

func TestBuildRejectsArityMismatch(t *testing.T) {
	_, err := NewOperatorTable().
		Add(ir.OpAddition, ir.SpecifierNone, Always, Exact(ir.Int32, ir.Int32, ir.Int32), Symbol("+", 3)).
		Build()
	require.Error(t, err)
	assert.Equal(t, ErrCodeTable, CodeOf(err))
	assert.Contains(t, err.Error(), "fixes 2 input(s) but operator expects 3")
}

func TestBuildRejectsUnreachableRules(t *testing.T) {
	_, err := NewOperatorTable().
		Add(ir.OpAbs, ir.SpecifierNone, Always, AnySignature(), Function("any_abs", 1)).
		Add(ir.OpAbs, ir.SpecifierNone, Silent, Exact(ir.Int32, ir.Int32), Function("abs", 1)).
		Build()
	require.Error(t, err)
	assert.Equal(t, ErrCodeTable, CodeOf(err))
	assert.Contains(t, err.Error(), "unreachable")
}

func TestBuildAllowsOverlapAndVariadic(t *testing.T) {
	_, err := NewOperatorTable().
		Add(ir.OpAbs, ir.SpecifierNone, Always, Relaxed(ir.Int32, ir.Int32), Function("a", 1)).
		Add(ir.OpAbs, ir.SpecifierNone, Always, Exact(ir.Int32, ir.Int32), Function("b", 1)).
		Add(ir.OpFunctionCall, ir.SpecifierNone, Always, FunctionSignature(), CallObject()).
		Add(ir.OpTableLoad, ir.SpecifierNone, Always, Exact(ir.Binary32, ir.Binary32, ir.Int32, ir.Int32), Indexed()).
		Build()
	assert.NoError(t, err)
}

func TestBuildRejectsNilEntries(t *testing.T) {
	_, err := NewOperatorTable().
		Add(ir.OpAbs, ir.SpecifierNone, nil, Exact(ir.Int32, ir.Int32), Function("a", 1)).
		Add(ir.OpAbs, ir.SpecifierNone, Always, Exact(ir.Int32, ir.Int32), nil).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil predicate")
	assert.Contains(t, err.Error(), "nil value")
}

func TestBuiltTableIgnoresLaterAdds(t *testing.T) {
	sig := Exact(ir.Int32, ir.Int32, ir.Int32)
	b := NewOperatorTable().
		Add(ir.OpAddition, ir.SpecifierNone, Always, sig, Symbol("+", 2))
	table := b.MustBuild()
	p := newTestProcessor("p", WithTable(LanguageC, table))

	b.Add(ir.OpSubtraction, ir.SpecifierNone, Always, sig, Symbol("-", 2)).
		Add(ir.OpAddition, ir.SpecifierNone, Always, Exact(ir.Binary64, ir.Binary64, ir.Binary64), Symbol("+", 2))

	sub := binop(ir.OpSubtraction, ir.Int32)
	_, ok := table.Lookup(sub)
	assert.False(t, ok)
	_, _, err := p.Resolve(sub, LanguageC)
	assert.True(t, IsUnsupported(err))
	assert.False(t, p.IsSupported(sub, LanguageC))

	_, ok = table.Lookup(binop(ir.OpAddition, ir.Binary64))
	assert.False(t, ok, "rule appended to an existing branch")
	assert.Equal(t, 1, table.Len())

	rebuilt := b.MustBuild()
	_, ok = rebuilt.Lookup(sub)
	assert.True(t, ok)
}

func TestMustBuildPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewOperatorTable().
			Add(ir.OpAbs, ir.SpecifierNone, Always, Exact(ir.Int32, ir.Int32), Symbol("+", 2)).
			MustBuild()
	})
}

func TestNilTableIsEmpty(t *testing.T) {
	var table *Table[Operator]

	_, ok := table.Lookup(binop(ir.OpAddition, ir.Int32))
	assert.False(t, ok)
	assert.Empty(t, table.Keys())
	assert.Zero(t, table.Len())
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "Addition", Key{Opcode: ir.OpAddition}.String())
	assert.Equal(t, "FusedMultiplyAdd.Negate", Key{Opcode: ir.OpFusedMultiplyAdd, Specifier: ir.FMANegate}.String())
}
