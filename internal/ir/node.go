package ir

import "fmt"

// Node is the contract every IR node satisfies. The lowering engine reads
// nothing else.
type Node interface {
	Opcode() Opcode
	Specifier() Specifier
	Format() Format
	Inputs() []Node
	Attributes() Attributes
}

// RoundingMode is the rounding attribute of an operation.
type RoundingMode uint8

const (
	// RoundUnset means the node carries no explicit rounding mode.
	RoundUnset RoundingMode = iota
	// RoundGlobal means the node follows the dynamic (global) rounding mode.
	RoundGlobal
	RoundNearest
	RoundUp
	RoundDown
	RoundZero
)

var roundingModeNames = map[RoundingMode]string{
	RoundUnset:   "unset",
	RoundGlobal:  "global",
	RoundNearest: "nearest",
	RoundUp:      "up",
	RoundDown:    "down",
	RoundZero:    "zero",
}

func (m RoundingMode) String() string {
	if name, ok := roundingModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("RoundingMode(%d)", uint8(m))
}

// ParseRoundingMode resolves a rounding mode name.
func ParseRoundingMode(name string) (RoundingMode, error) {
	for m, n := range roundingModeNames {
		if n == name {
			return m, nil
		}
	}
	return RoundUnset, fmt.Errorf("unknown rounding mode %q", name)
}

// Likelihood is a branch-likelihood hint.
type Likelihood int8

const (
	LikelyUnknown Likelihood = iota
	Likely
	Unlikely
)

func (l Likelihood) String() string {
	switch l {
	case Likely:
		return "likely"
	case Unlikely:
		return "unlikely"
	}
	return "unknown"
}

// Attributes are the per-node flags consulted by condition predicates.
type Attributes struct {
	Silent       bool
	RoundingMode RoundingMode
	Commutated   bool
	Likely       Likelihood
	Tag          string
}

// Op is a generic operation node.
type Op struct {
	opcode    Opcode
	specifier Specifier
	format    Format
	inputs    []Node
	attrs     Attributes
}

// NewOp creates an operation node.
func NewOp(opcode Opcode, format Format, inputs ...Node) *Op {
	return &Op{opcode: opcode, format: format, inputs: inputs}
}

func (o *Op) Opcode() Opcode         { return o.opcode }
func (o *Op) Specifier() Specifier   { return o.specifier }
func (o *Op) Format() Format         { return o.format }
func (o *Op) Inputs() []Node         { return o.inputs }
func (o *Op) Attributes() Attributes { return o.attrs }

// WithSpecifier sets the variant specifier.
func (o *Op) WithSpecifier(s Specifier) *Op {
	o.specifier = s
	return o
}

// WithTag names the node. Tagged nodes are bound to a named temporary.
func (o *Op) WithTag(tag string) *Op {
	o.attrs.Tag = tag
	return o
}

// WithSilent marks the operation as not raising floating-point flags.
func (o *Op) WithSilent(silent bool) *Op {
	o.attrs.Silent = silent
	return o
}

// WithRounding sets an explicit rounding mode.
func (o *Op) WithRounding(m RoundingMode) *Op {
	o.attrs.RoundingMode = m
	return o
}

// WithCommutated records that inputs were swapped by a rewrite.
func (o *Op) WithCommutated(c bool) *Op {
	o.attrs.Commutated = c
	return o
}

// WithLikely sets the branch-likelihood hint.
func (o *Op) WithLikely(l Likelihood) *Op {
	o.attrs.Likely = l
	return o
}

// Variable is a named input of the generated code.
type Variable struct {
	Name string
	Fmt  Format
}

// NewVariable creates a variable leaf.
func NewVariable(name string, format Format) *Variable {
	return &Variable{Name: name, Fmt: format}
}

func (v *Variable) Opcode() Opcode         { return OpVariable }
func (v *Variable) Specifier() Specifier   { return SpecifierNone }
func (v *Variable) Format() Format         { return v.Fmt }
func (v *Variable) Inputs() []Node         { return nil }
func (v *Variable) Attributes() Attributes { return Attributes{} }

// Constant is a literal leaf.
type Constant struct {
	Value Value
	Fmt   Format
}

// NewConstant creates a constant leaf.
func NewConstant(value Value, format Format) *Constant {
	return &Constant{Value: value, Fmt: format}
}

func (c *Constant) Opcode() Opcode         { return OpConstant }
func (c *Constant) Specifier() Specifier   { return SpecifierNone }
func (c *Constant) Format() Format         { return c.Fmt }
func (c *Constant) Inputs() []Node         { return nil }
func (c *Constant) Attributes() Attributes { return Attributes{} }

// Table is a numeric lookup-table leaf. Data is row-major.
type Table struct {
	Name       string
	Dimensions []int
	Fmt        Format
	Data       []float64
}

// NewTable creates a table leaf.
func NewTable(name string, dims []int, format Format, data []float64) *Table {
	return &Table{Name: name, Dimensions: dims, Fmt: format, Data: data}
}

func (t *Table) Opcode() Opcode         { return OpTable }
func (t *Table) Specifier() Specifier   { return SpecifierNone }
func (t *Table) Format() Format         { return t.Fmt }
func (t *Table) Inputs() []Node         { return nil }
func (t *Table) Attributes() Attributes { return Attributes{} }

// Function describes an external routine invoked by Call nodes.
type Function struct {
	Name    string
	Args    []Format
	Result  Format
	Headers []string
}

// Call invokes a Function object on its inputs.
type Call struct {
	Fn     *Function
	inputs []Node
	attrs  Attributes
}

// NewCall creates a call node. It does not check inputs against Fn.Args;
// dispatch rejects mismatches through function-signature predicates.
func NewCall(fn *Function, inputs ...Node) *Call {
	return &Call{Fn: fn, inputs: inputs}
}

func (c *Call) Opcode() Opcode         { return OpFunctionCall }
func (c *Call) Specifier() Specifier   { return SpecifierNone }
func (c *Call) Format() Format         { return c.Fn.Result }
func (c *Call) Inputs() []Node         { return c.inputs }
func (c *Call) Attributes() Attributes { return c.attrs }

// WithTag names the call result.
func (c *Call) WithTag(tag string) *Call {
	c.attrs.Tag = tag
	return c
}

// IsLeaf reports whether n has no inputs and is rendered directly by the
// generator rather than dispatched through a table.
func IsLeaf(n Node) bool {
	switch n.Opcode() {
	case OpVariable, OpConstant, OpTable:
		return true
	}
	return false
}
