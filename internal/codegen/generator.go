package codegen

import (
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/mlcg/internal/ir"
)

// Resolution records how one operation node was lowered.
type Resolution struct {
	Opcode    ir.Opcode
	Specifier ir.Specifier
	Signature string
	Language  Language
	Processor string // processor whose table supplied the operator
	Operator  string
}

// Generator lowers node graphs into a CodeObject through a processor.
//
// Leaves are rendered directly: variables by name, constants as literals of
// the output language, tables declared once. Operations are dispatched
// through the processor. A node used by several parents, or carrying a tag,
// is bound once to a temporary and referenced by name afterwards.
//
// A Generator is caller-owned and not safe for concurrent use.
type Generator struct {
	proc        *Processor
	code        *CodeObject
	ctx         *RenderContext
	exprs       map[ir.Node]Expr
	uses        map[ir.Node]int
	tables      map[string]bool
	resolutions []Resolution
}

// NewGenerator creates a generator writing into code.
func NewGenerator(p *Processor, code *CodeObject) *Generator {
	return &Generator{
		proc:   p,
		code:   code,
		ctx:    NewRenderContext(code.Language(), code.Headers()),
		exprs:  make(map[ir.Node]Expr),
		uses:   make(map[ir.Node]int),
		tables: make(map[string]bool),
	}
}

// Resolutions returns the dispatch decisions made so far, in lowering order.
func (g *Generator) Resolutions() []Resolution {
	out := make([]Resolution, len(g.resolutions))
	copy(out, g.resolutions)
	return out
}

// Generate lowers the graph rooted at root and returns the expression
// denoting its value. Shared subexpressions and tagged nodes are emitted as
// bindings in the code object.
//
// On failure nothing of the call remains: the code object, the recorded
// resolutions and the binding caches are restored to their state before it.
func (g *Generator) Generate(root ir.Node) (Expr, error) {
	m := g.mark()
	e, err := g.generate(root)
	if err != nil {
		g.rollback(m)
		return Expr{}, err
	}
	return e, nil
}

// Lower generates root and binds its value to result. Void roots, such as
// exception operations, are emitted as plain statements. Lower is
// all-or-nothing like Generate.
func (g *Generator) Lower(root ir.Node, result string) error {
	m := g.mark()
	e, err := g.generate(root)
	if err == nil {
		if root.Format() == ir.Void {
			g.code.Statement(e.Text + ";")
			return nil
		}
		err = g.code.Bind(result, root.Format(), e)
	}
	if err != nil {
		g.rollback(m)
	}
	return err
}

func (g *Generator) generate(root ir.Node) (Expr, error) {
	g.countUses(root, make(map[ir.Node]bool))
	return g.render(root)
}

type generatorMark struct {
	code        codeMark
	exprs       map[ir.Node]Expr
	uses        map[ir.Node]int
	tables      map[string]bool
	resolutions int
}

func (g *Generator) mark() generatorMark {
	return generatorMark{
		code:        g.code.mark(),
		exprs:       maps.Clone(g.exprs),
		uses:        maps.Clone(g.uses),
		tables:      maps.Clone(g.tables),
		resolutions: len(g.resolutions),
	}
}

func (g *Generator) rollback(m generatorMark) {
	g.code.rollback(m.code)
	g.exprs = m.exprs
	g.uses = m.uses
	g.tables = m.tables
	g.resolutions = g.resolutions[:m.resolutions]
}

func (g *Generator) countUses(n ir.Node, visited map[ir.Node]bool) {
	if visited[n] {
		return
	}
	visited[n] = true
	for _, in := range n.Inputs() {
		g.uses[in]++
		g.countUses(in, visited)
	}
}

func (g *Generator) render(n ir.Node) (Expr, error) {
	if e, ok := g.exprs[n]; ok {
		return e, nil
	}

	var (
		e   Expr
		err error
	)
	switch v := n.(type) {
	case *ir.Variable:
		g.code.Reserve(v.Name)
		e = Atom(v.Name)
	case *ir.Constant:
		e, err = g.constant(v)
	case *ir.Table:
		e, err = g.table(v)
	default:
		e, err = g.operation(n)
	}
	if err != nil {
		return Expr{}, err
	}
	g.exprs[n] = e
	return e, nil
}

func (g *Generator) operation(n ir.Node) (Expr, error) {
	inputs := n.Inputs()
	args := make([]Expr, len(inputs))
	for i, in := range inputs {
		a, err := g.render(in)
		if err != nil {
			return Expr{}, err
		}
		args[i] = a
	}

	op, by, err := g.proc.Resolve(n, g.ctx.Language)
	if err != nil {
		return Expr{}, err
	}

	name := g.bindingName(n)
	ctx := g.ctx
	if name != "" {
		ctx = ctx.WithResult(Atom(name))
	}
	e, err := op.Render(ctx, n, args)
	if err != nil {
		return Expr{}, g.proc.annotate(err, n, g.ctx.Language)
	}

	g.resolutions = append(g.resolutions, Resolution{
		Opcode:    n.Opcode(),
		Specifier: n.Specifier(),
		Signature: ir.SignatureOf(n).String(),
		Language:  g.ctx.Language,
		Processor: by.Name(),
		Operator:  DescribeOperator(op),
	})

	if name == "" {
		return e, nil
	}
	if err := g.code.Bind(name, n.Format(), e); err != nil {
		return Expr{}, err
	}
	return Atom(name), nil
}

// bindingName returns the temporary n is bound to, or "" when n is inlined.
func (g *Generator) bindingName(n ir.Node) string {
	if n.Format() == ir.Void {
		return ""
	}
	tag := n.Attributes().Tag
	switch {
	case tag != "":
		if g.code.names[tag] {
			return g.code.FreshName(tag + "_")
		}
		g.code.Reserve(tag)
		return tag
	case g.uses[n] > 1:
		return g.code.FreshName("t")
	}
	return ""
}

func (g *Generator) constant(c *ir.Constant) (Expr, error) {
	switch g.ctx.Language {
	case LanguageC:
		return cLiteral(c.Value, c.Fmt, g.ctx.Headers)
	case LanguageGappa:
		return gappaLiteral(c.Value)
	case LanguageVHDL:
		return vhdlLiteral(c.Value, c.Fmt)
	}
	return Expr{}, fmt.Errorf("no literal syntax for language %s", g.ctx.Language)
}

func (g *Generator) table(t *ir.Table) (Expr, error) {
	if g.ctx.Language != LanguageC {
		return Expr{}, &Error{
			Code:     ErrCodeUnsupported,
			Message:  "table leaves are only emitted for C",
			Language: g.ctx.Language,
			Node:     ir.Dump(t, 0),
		}
	}
	if g.tables[t.Name] {
		return Atom(t.Name), nil
	}
	typ, err := TypeName(LanguageC, t.Fmt)
	if err != nil {
		return Expr{}, err
	}
	values := make([]string, len(t.Data))
	for i, x := range t.Data {
		lit, err := cLiteral(ir.FloatValue(x), t.Fmt, g.ctx.Headers)
		if err != nil {
			return Expr{}, err
		}
		values[i] = lit.Text
	}
	var dims strings.Builder
	for _, d := range t.Dimensions {
		fmt.Fprintf(&dims, "[%d]", d)
	}
	var body strings.Builder
	for i := 0; i < len(values); i += 8 {
		end := min(i+8, len(values))
		body.WriteString("    ")
		body.WriteString(strings.Join(values[i:end], ", "))
		if end < len(values) {
			body.WriteString(",")
		}
		body.WriteString("\n")
	}
	g.code.Reserve(t.Name)
	g.code.Declare(fmt.Sprintf("static const %s %s%s = {\n%s};", typ, t.Name, dims.String(), body.String()))
	g.tables[t.Name] = true
	return Atom(t.Name), nil
}

func cLiteral(v ir.Value, f ir.Format, headers *HeaderSet) (Expr, error) {
	switch val := v.(type) {
	case ir.FloatValue:
		return cFloatLiteral(float64(val), f, headers)
	case ir.IntValue:
		if f.Kind == ir.KindFloat {
			return cFloatLiteral(float64(val), f, headers)
		}
		text := val.String()
		if f.Kind == ir.KindInteger && !f.Signed {
			text += "u"
		}
		return signedLiteral(text), nil
	case ir.ExceptionValue:
		return Atom("ML_FPE_" + strings.ToUpper(val.Kind.String())), nil
	}
	return Expr{}, fmt.Errorf("no C literal for %T", v)
}

func cFloatLiteral(x float64, f ir.Format, headers *HeaderSet) (Expr, error) {
	if f.Kind != ir.KindFloat {
		return Expr{}, fmt.Errorf("float constant in non-float format %s", f)
	}
	switch {
	case math.IsNaN(x):
		headers.Add("math.h")
		return Atom("NAN"), nil
	case math.IsInf(x, 1):
		headers.Add("math.h")
		return Atom("INFINITY"), nil
	case math.IsInf(x, -1):
		headers.Add("math.h")
		return Compound("-INFINITY"), nil
	}
	text := strconv.FormatFloat(x, 'g', -1, f.Bits)
	if !strings.ContainsAny(text, ".e") {
		text += ".0"
	}
	if f.Bits == 32 {
		text += "f"
	}
	return signedLiteral(text), nil
}

func gappaLiteral(v ir.Value) (Expr, error) {
	switch val := v.(type) {
	case ir.FloatValue:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return Expr{}, NewMalformedError("proof scripts have no literal for %s", val)
		}
		return signedLiteral(val.String()), nil
	case ir.IntValue:
		return signedLiteral(val.String()), nil
	}
	return Expr{}, NewMalformedError("no proof-script literal for %T", v)
}

func vhdlLiteral(v ir.Value, f ir.Format) (Expr, error) {
	var n int64
	switch val := v.(type) {
	case ir.IntValue:
		n = int64(val)
	case ir.FloatValue:
		if f.Kind != ir.KindFixedPoint {
			return Expr{}, NewMalformedError("float constant in %s", f)
		}
		n = int64(math.Round(math.Ldexp(float64(val), f.Frac)))
	default:
		return Expr{}, NewMalformedError("no VHDL literal for %T", v)
	}

	switch f.Kind {
	case ir.KindLogic:
		if n != 0 && n != 1 {
			return Expr{}, NewMalformedError("std_logic constant %d", n)
		}
		return Atom(fmt.Sprintf("'%d'", n)), nil
	case ir.KindInteger:
		return signedLiteral(strconv.FormatInt(n, 10)), nil
	case ir.KindLogicVector, ir.KindFixedPoint:
		if f.Bits <= 0 || f.Bits > 64 {
			return Expr{}, NewMalformedError("cannot emit %d-bit literal", f.Bits)
		}
		bits := make([]byte, f.Bits)
		u := uint64(n)
		for i := f.Bits - 1; i >= 0; i-- {
			bits[i] = '0' + byte(u&1)
			u >>= 1
		}
		return Atom(`"` + string(bits) + `"`), nil
	}
	return Expr{}, NewMalformedError("no VHDL literal for format %s", f)
}

func signedLiteral(text string) Expr {
	if strings.HasPrefix(text, "-") {
		return Compound(text)
	}
	return Atom(text)
}
