package harness

import (
	"fmt"
	"math"

	"github.com/roach88/mlcg/internal/ir"
)

// graphBuilder turns scenario expressions into IR nodes. Variables and lets
// are built once, so every reference to a name denotes the same node.
type graphBuilder struct {
	inputs   map[string]string
	lets     map[string]ExprSpec
	vars     map[string]*ir.Variable
	built    map[string]ir.Node
	building map[string]bool
}

func newGraphBuilder(s *Scenario) *graphBuilder {
	return &graphBuilder{
		inputs:   s.Inputs,
		lets:     s.Lets,
		vars:     make(map[string]*ir.Variable),
		built:    make(map[string]ir.Node),
		building: make(map[string]bool),
	}
}

func (b *graphBuilder) build(e ExprSpec) (ir.Node, error) {
	switch {
	case e.Var != "":
		return b.variable(e.Var)
	case e.Ref != "":
		return b.ref(e.Ref)
	case e.Const != nil:
		return constant(*e.Const, e.Format)
	case e.Exception != "":
		kind, err := ir.ParseException(e.Exception)
		if err != nil {
			return nil, err
		}
		return ir.NewException(kind), nil
	case e.Op != "":
		return b.op(e)
	}
	return nil, fmt.Errorf("empty expression")
}

func (b *graphBuilder) variable(name string) (ir.Node, error) {
	if v, ok := b.vars[name]; ok {
		return v, nil
	}
	formatName, ok := b.inputs[name]
	if !ok {
		return nil, fmt.Errorf("variable %q is not declared in inputs", name)
	}
	f, err := ir.ParseFormat(formatName)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	v := ir.NewVariable(name, f)
	b.vars[name] = v
	return v, nil
}

func (b *graphBuilder) ref(name string) (ir.Node, error) {
	if n, ok := b.built[name]; ok {
		return n, nil
	}
	let, ok := b.lets[name]
	if !ok {
		return nil, fmt.Errorf("reference to undefined let %q", name)
	}
	if b.building[name] {
		return nil, fmt.Errorf("let %q refers to itself", name)
	}
	b.building[name] = true
	defer delete(b.building, name)

	n, err := b.build(let)
	if err != nil {
		return nil, fmt.Errorf("let %q: %w", name, err)
	}
	b.built[name] = n
	return n, nil
}

func (b *graphBuilder) op(e ExprSpec) (ir.Node, error) {
	opcode, err := ir.ParseOpcode(e.Op)
	if err != nil {
		return nil, err
	}
	f, err := ir.ParseFormat(e.Format)
	if err != nil {
		return nil, fmt.Errorf("op %s: %w", e.Op, err)
	}

	inputs := make([]ir.Node, len(e.Args))
	for i, arg := range e.Args {
		n, err := b.build(arg)
		if err != nil {
			return nil, fmt.Errorf("op %s args[%d]: %w", e.Op, i, err)
		}
		inputs[i] = n
	}

	node := ir.NewOp(opcode, f, inputs...).
		WithSpecifier(ir.Specifier(e.Specifier)).
		WithSilent(e.Silent).
		WithCommutated(e.Commutated).
		WithTag(e.Tag)
	if e.Rounding != "" {
		mode, err := ir.ParseRoundingMode(e.Rounding)
		if err != nil {
			return nil, fmt.Errorf("op %s: %w", e.Op, err)
		}
		node = node.WithRounding(mode)
	}
	return node, nil
}

// constant builds an integer constant for integral values of non-float
// formats and a floating-point constant otherwise.
func constant(x float64, formatName string) (ir.Node, error) {
	f, err := ir.ParseFormat(formatName)
	if err != nil {
		return nil, fmt.Errorf("const: %w", err)
	}
	switch f.Kind {
	case ir.KindFloat, ir.KindMultiPrecision, ir.KindAbstract:
		return ir.NewFloat(x, f), nil
	}
	if x != math.Trunc(x) {
		return nil, fmt.Errorf("const %v is not integral for format %s", x, f)
	}
	return ir.NewInt(int64(x), f), nil
}
