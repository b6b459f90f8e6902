package target

import (
	"errors"
	"fmt"

	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/ir"
)

// Build turns a compiled target description into a processor whose direct
// parents are parents, in declaration order.
//
// Rules keep their declaration order within each language table. All rule
// errors are collected and returned together.
func Build(spec ir.TargetSpec, parents []*cg.Processor, opts ...cg.Option) (*cg.Processor, error) {
	if spec.Name == "" {
		return nil, errors.New("target has no name")
	}

	var errs []error
	tables := make(map[cg.Language]*cg.TableBuilder[cg.Operator])
	var langs []cg.Language
	for i, rule := range spec.Rules {
		lang, err := cg.ParseLanguage(rule.Language)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
			continue
		}
		key, cond, match, err := buildPattern(rule.Opcode, rule.Specifier, rule.Condition, rule.Signature)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
			continue
		}
		op, err := BuildOperator(rule.Operator)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
			continue
		}
		b, ok := tables[lang]
		if !ok {
			b = cg.NewOperatorTable()
			tables[lang] = b
			langs = append(langs, lang)
		}
		b.Add(key.Opcode, key.Specifier, cond, match, op)
	}

	approx := make(map[cg.Language]*cg.TableBuilder[*cg.ApproxTable])
	var approxLangs []cg.Language
	for i, rule := range spec.Approx {
		lang := cg.LanguageAny
		if rule.Language != "" {
			l, err := cg.ParseLanguage(rule.Language)
			if err != nil {
				errs = append(errs, fmt.Errorf("approx rule %d: %w", i, err))
				continue
			}
			lang = l
		}
		key, cond, match, err := buildPattern(rule.Opcode, rule.Specifier, rule.Condition, rule.Signature)
		if err != nil {
			errs = append(errs, fmt.Errorf("approx rule %d: %w", i, err))
			continue
		}
		tbl, err := BuildApproxTable(rule.Table)
		if err != nil {
			errs = append(errs, fmt.Errorf("approx rule %d: %w", i, err))
			continue
		}
		b, ok := approx[lang]
		if !ok {
			b = cg.NewApproxTableMap()
			approx[lang] = b
			approxLangs = append(approxLangs, lang)
		}
		b.Add(key.Opcode, key.Specifier, cond, match, tbl)
	}

	base := []cg.Option{cg.WithParents(parents...)}
	if spec.Abstract {
		base = append(base, cg.WithAbstract())
	}
	for _, lang := range langs {
		t, err := tables[lang].Build()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s table: %w", lang, err))
			continue
		}
		base = append(base, cg.WithTable(lang, t))
	}
	for _, lang := range approxLangs {
		t, err := approx[lang].Build()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s approximation map: %w", lang, err))
			continue
		}
		base = append(base, cg.WithApproxTable(lang, t))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("target %s: %w", spec.Name, errors.Join(errs...))
	}
	return cg.NewProcessor(spec.Name, append(base, opts...)...), nil
}

func buildPattern(opcode, spec, condition string, sig ir.SignatureSpec) (cg.Key, *cg.Condition, *cg.TypeMatch, error) {
	op, err := ir.ParseOpcode(opcode)
	if err != nil {
		return cg.Key{}, nil, nil, err
	}
	cond, err := cg.ConditionByName(condition)
	if err != nil {
		return cg.Key{}, nil, nil, err
	}
	match, err := BuildTypeMatch(sig)
	if err != nil {
		return cg.Key{}, nil, nil, err
	}
	return cg.Key{Opcode: op, Specifier: ir.Specifier(spec)}, cond, match, nil
}

// BuildTypeMatch turns a signature description into a type predicate.
func BuildTypeMatch(spec ir.SignatureSpec) (*cg.TypeMatch, error) {
	formats := make([]ir.Format, len(spec.Formats))
	for i, name := range spec.Formats {
		f, err := ir.ParseFormat(name)
		if err != nil {
			return nil, fmt.Errorf("signature position %d: %w", i, err)
		}
		formats[i] = f
	}

	switch spec.Match {
	case "exact", "relaxed":
		if len(formats) == 0 {
			return nil, fmt.Errorf("%s signature needs at least the output format", spec.Match)
		}
		if spec.Match == "exact" {
			return cg.Exact(formats...), nil
		}
		return cg.Relaxed(formats...), nil
	case "result":
		if len(formats) != 1 {
			return nil, fmt.Errorf("result signature takes exactly one format, got %d", len(formats))
		}
		return cg.ResultOnly(formats[0]), nil
	case "function", "any":
		if len(formats) != 0 {
			return nil, fmt.Errorf("%s signature takes no formats", spec.Match)
		}
		if spec.Match == "function" {
			return cg.FunctionSignature(), nil
		}
		return cg.AnySignature(), nil
	}
	return nil, fmt.Errorf("unknown signature match %q", spec.Match)
}

// BuildOperator turns an operator description into an operator.
func BuildOperator(spec ir.OperatorSpec) (cg.Operator, error) {
	switch spec.Kind {
	case "symbol":
		if spec.Symbol == "" {
			return nil, errors.New("symbol operator needs a symbol")
		}
		if spec.Arity < 1 {
			return nil, fmt.Errorf("symbol %q needs arity >= 1, got %d", spec.Symbol, spec.Arity)
		}
		return cg.Symbol(spec.Symbol, spec.Arity), nil

	case "function":
		if spec.Name == "" {
			return nil, errors.New("function operator needs a name")
		}
		fn := cg.Function(spec.Name, spec.Arity, spec.Headers...)
		if len(spec.Slots) == 0 {
			return fn, nil
		}
		slots, err := buildOperands(spec.Slots)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", spec.Name, err)
		}
		return fn.WithSlots(slots...), nil

	case "template":
		if spec.Template == "" {
			return nil, errors.New("template operator needs a template")
		}
		return cg.Template(spec.Template, spec.Arity, spec.Headers...), nil

	case "identity":
		return cg.Identity(), nil

	case "compose":
		if spec.Outer == nil {
			return nil, errors.New("compose operator needs an outer operator")
		}
		outer, err := BuildOperator(*spec.Outer)
		if err != nil {
			return nil, fmt.Errorf("compose outer: %w", err)
		}
		operands, err := buildOperands(spec.Operands)
		if err != nil {
			return nil, fmt.Errorf("compose: %w", err)
		}
		c := cg.Compose(outer, operands...)
		if spec.Arity > 0 && spec.Arity != c.Arity() {
			c = c.WithArity(spec.Arity)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown operator kind %q", spec.Kind)
}

func buildOperands(specs []ir.OperandSpec) ([]cg.Operand, error) {
	out := make([]cg.Operand, len(specs))
	for i, s := range specs {
		o, err := buildOperand(s)
		if err != nil {
			return nil, fmt.Errorf("operand %d: %w", i, err)
		}
		out[i] = o
	}
	return out, nil
}

func buildOperand(spec ir.OperandSpec) (cg.Operand, error) {
	set := 0
	for _, present := range []bool{spec.Arg != nil, spec.Literal != nil, spec.Result, spec.Operator != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of arg, literal, result or operator must be set, got %d", set)
	}

	switch {
	case spec.Arg != nil:
		if *spec.Arg < 0 {
			return nil, fmt.Errorf("negative argument index %d", *spec.Arg)
		}
		return cg.Arg(*spec.Arg), nil
	case spec.Literal != nil:
		return cg.Literal(*spec.Literal), nil
	case spec.Result:
		return cg.Result(), nil
	}
	op, err := BuildOperator(*spec.Operator)
	if err != nil {
		return nil, err
	}
	operands, err := buildOperands(spec.Operands)
	if err != nil {
		return nil, err
	}
	return cg.Nested(op, operands...), nil
}

// BuildApproxTable turns a table description into a validated table.
func BuildApproxTable(spec ir.TableSpec) (*cg.ApproxTable, error) {
	f, err := ir.ParseFormat(spec.Format)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", spec.Name, err)
	}
	t := &cg.ApproxTable{
		Name:       spec.Name,
		Dimensions: append([]int(nil), spec.Dimensions...),
		Format:     f,
		Data:       append([]float64(nil), spec.Data...),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
