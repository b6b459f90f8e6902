package target

import (
	"testing"

	"github.com/stretchr/testify/assert"

	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/ir"
)

const (
	logicHeader   = "library ieee;\nuse ieee.std_logic_1164.all;\n\n"
	numericHeader = "library ieee;\nuse ieee.std_logic_1164.all;\nuse ieee.numeric_std.all;\n\n"
)

func TestVHDLOperations(t *testing.T) {
	vhdl := lookup(t, VHDL)

	v4, v8 := ir.StdLogicVector(4), ir.StdLogicVector(8)
	sfix := ir.FixedPoint(4, 4, true)
	ufix := ir.FixedPoint(4, 4, false)

	a8, b8 := ir.NewVariable("a", v8), ir.NewVariable("b", v8)
	a4, b4 := ir.NewVariable("a", v4), ir.NewVariable("b", v4)
	sa, sb := ir.NewVariable("a", sfix), ir.NewVariable("b", sfix)
	ua, ub := ir.NewVariable("a", ufix), ir.NewVariable("b", ufix)

	tests := []struct {
		name string
		root ir.Node
		want string
	}{
		{
			"fixed-point addition",
			ir.NewOp(ir.OpAddition, sfix, sa, sb),
			numericHeader + "signal r : signed(7 downto 0);\n\nr <= a + b;\n",
		},
		{
			"vector addition",
			ir.NewOp(ir.OpAddition, v8, a8, b8),
			numericHeader + "signal r : std_logic_vector(7 downto 0);\n\nr <= std_logic_vector(unsigned(a) + unsigned(b));\n",
		},
		{
			"vector subtraction",
			ir.NewOp(ir.OpSubtraction, v8, a8, b8),
			numericHeader + "signal r : std_logic_vector(7 downto 0);\n\nr <= std_logic_vector(unsigned(a) - unsigned(b));\n",
		},
		{
			"full-width product",
			ir.NewOp(ir.OpMultiplication, ir.FixedPoint(8, 8, false), ua, ub),
			numericHeader + "signal r : unsigned(15 downto 0);\n\nr <= a * b;\n",
		},
		{
			"bitwise and",
			ir.NewOp(ir.OpBitLogicAnd, v8, a8, b8),
			logicHeader + "signal r : std_logic_vector(7 downto 0);\n\nr <= a and b;\n",
		},
		{
			"concatenation",
			ir.NewOp(ir.OpConcatenation, v8, a4, b4),
			logicHeader + "signal r : std_logic_vector(7 downto 0);\n\nr <= a & b;\n",
		},
		{
			"sub-signal selection",
			ir.NewOp(ir.OpSubSignalSelection, v4, a8, ir.NewInt(5, ir.Int32), ir.NewInt(2, ir.Int32)),
			logicHeader + "signal r : std_logic_vector(3 downto 0);\n\nr <= a(5 downto 2);\n",
		},
		{
			"zero extension",
			ir.NewOp(ir.OpZeroExtend, v8, a4),
			numericHeader + "signal r : std_logic_vector(7 downto 0);\n\nr <= std_logic_vector(resize(unsigned(a), 8));\n",
		},
		{
			"truncation",
			ir.NewOp(ir.OpTruncate, v4, a8),
			logicHeader + "signal r : std_logic_vector(3 downto 0);\n\nr <= a(3 downto 0);\n",
		},
		{
			"fixed-point narrowing",
			ir.NewOp(ir.OpConversion, ir.FixedPoint(2, 4, true), sa),
			numericHeader + "signal r : signed(5 downto 0);\n\nr <= resize(a, 6);\n",
		},
		{
			"comparison",
			ir.NewOp(ir.OpComparison, ir.StdLogic, sa, sb).WithSpecifier(ir.CompLess),
			numericHeader + "signal r : std_logic;\n\nr <= '1' when a < b else '0';\n",
		},
		{
			"select",
			ir.NewOp(ir.OpSelect, v8, ir.NewVariable("c", ir.StdLogic), a8, b8),
			logicHeader + "signal r : std_logic_vector(7 downto 0);\n\nr <= a when c = '1' else b;\n",
		},
		{
			"bits to signed",
			ir.NewOp(ir.OpTypeCast, sfix, a8),
			numericHeader + "signal r : signed(7 downto 0);\n\nr <= signed(a);\n",
		},
		{
			"unsigned to bits",
			ir.NewOp(ir.OpTypeCast, v8, ua),
			numericHeader + "signal r : std_logic_vector(7 downto 0);\n\nr <= std_logic_vector(a);\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lower(t, vhdl, cg.LanguageVHDL, tt.root))
		})
	}
}

func TestVHDLRejectsMismatchedShapes(t *testing.T) {
	vhdl := lookup(t, VHDL)
	v4, v8 := ir.StdLogicVector(4), ir.StdLogicVector(8)

	tests := []struct {
		name string
		root ir.Node
	}{
		{"widths differ", ir.NewOp(ir.OpAddition, v8, ir.NewVariable("a", v8), ir.NewVariable("b", v4))},
		{"concatenation too narrow", ir.NewOp(ir.OpConcatenation, v4, ir.NewVariable("a", v4), ir.NewVariable("b", v4))},
		{"extension narrows", ir.NewOp(ir.OpZeroExtend, v4, ir.NewVariable("a", v8))},
		{"unsigned negation", ir.NewOp(ir.OpNegation, ir.FixedPoint(4, 4, false), ir.NewVariable("a", ir.FixedPoint(4, 4, false)))},
		{"mixed signedness", ir.NewOp(ir.OpAddition, ir.FixedPoint(4, 4, true),
			ir.NewVariable("a", ir.FixedPoint(4, 4, true)), ir.NewVariable("b", ir.FixedPoint(4, 4, false)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, cg.IsUnsupported(lowerErr(vhdl, cg.LanguageVHDL, tt.root)))
		})
	}

	// The hardware target has no C table.
	assert.True(t, cg.IsUnsupported(lowerErr(vhdl, cg.LanguageC, ir.NewOp(ir.OpAddition, ir.Int32,
		ir.NewVariable("a", ir.Int32), ir.NewVariable("b", ir.Int32)))))
}
