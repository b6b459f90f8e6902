package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/mlcg/internal/ir"
)

// DefaultCondition is used for rules that do not name a condition.
const DefaultCondition = "always"

// CompileTarget parses a CUE value into a TargetSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the target struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`target: kv_fma: { ... }`)
//	spec, err := CompileTarget(v.LookupPath(cue.ParsePath("target.kv_fma")))
func CompileTarget(v cue.Value) (*ir.TargetSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.TargetSpec{}

	// Target name comes from the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].Unquoted()
	}
	if spec.Name == "" {
		return nil, &CompileError{
			Field:   "target",
			Message: "target name is required",
			Pos:     v.Pos(),
		}
	}

	var err error
	if spec.Doc, err = optionalString(v, "doc"); err != nil {
		return nil, err
	}

	abstractVal := v.LookupPath(cue.ParsePath("abstract"))
	if abstractVal.Exists() {
		if spec.Abstract, err = abstractVal.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if spec.Parents, err = stringList(v, "parents"); err != nil {
		return nil, err
	}

	spec.Rules, err = parseRules(v)
	if err != nil {
		return nil, err
	}

	spec.Approx, err = parseApproxRules(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// CompileTargets compiles every field of a `target` struct in source order.
func CompileTargets(v cue.Value) ([]ir.TargetSpec, error) {
	targetsVal := v.LookupPath(cue.ParsePath("target"))
	if !targetsVal.Exists() {
		return nil, nil
	}

	iter, err := targetsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ir.TargetSpec
	for iter.Next() {
		spec, err := CompileTarget(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

// parseRules extracts code-generation table entries.
func parseRules(v cue.Value) ([]ir.RuleSpec, error) {
	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil, nil // rules are optional (abstract targets)
	}

	iter, err := rulesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []ir.RuleSpec
	for i := 0; iter.Next(); i++ {
		rv := iter.Value()
		field := fmt.Sprintf("rules[%d]", i)

		rule := ir.RuleSpec{}
		if rule.Language, err = requiredString(rv, "language", field); err != nil {
			return nil, err
		}
		if rule.Opcode, err = requiredString(rv, "opcode", field); err != nil {
			return nil, err
		}
		if rule.Specifier, err = optionalString(rv, "specifier"); err != nil {
			return nil, err
		}
		if rule.Condition, err = conditionName(rv); err != nil {
			return nil, err
		}
		if rule.Signature, err = parseSignature(rv, field); err != nil {
			return nil, err
		}

		opVal := rv.LookupPath(cue.ParsePath("operator"))
		if !opVal.Exists() {
			return nil, &CompileError{
				Field:   field + ".operator",
				Message: "operator is required",
				Pos:     rv.Pos(),
			}
		}
		op, err := parseOperator(opVal, field+".operator")
		if err != nil {
			return nil, err
		}
		rule.Operator = *op

		rules = append(rules, rule)
	}

	return rules, nil
}

// parseApproxRules extracts approximation-table map entries.
func parseApproxRules(v cue.Value) ([]ir.ApproxRuleSpec, error) {
	approxVal := v.LookupPath(cue.ParsePath("approx"))
	if !approxVal.Exists() {
		return nil, nil
	}

	iter, err := approxVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []ir.ApproxRuleSpec
	for i := 0; iter.Next(); i++ {
		rv := iter.Value()
		field := fmt.Sprintf("approx[%d]", i)

		rule := ir.ApproxRuleSpec{}
		if rule.Language, err = optionalString(rv, "language"); err != nil {
			return nil, err
		}
		if rule.Opcode, err = requiredString(rv, "opcode", field); err != nil {
			return nil, err
		}
		if rule.Specifier, err = optionalString(rv, "specifier"); err != nil {
			return nil, err
		}
		if rule.Condition, err = conditionName(rv); err != nil {
			return nil, err
		}
		if rule.Signature, err = parseSignature(rv, field); err != nil {
			return nil, err
		}
		if rule.Table, err = parseTable(rv, field); err != nil {
			return nil, err
		}

		rules = append(rules, rule)
	}

	return rules, nil
}

// parseSignature extracts the type-signature predicate of a rule.
func parseSignature(v cue.Value, field string) (ir.SignatureSpec, error) {
	var sig ir.SignatureSpec

	sigVal := v.LookupPath(cue.ParsePath("signature"))
	if !sigVal.Exists() {
		return sig, &CompileError{
			Field:   field + ".signature",
			Message: "signature is required",
			Pos:     v.Pos(),
		}
	}

	var err error
	if sig.Match, err = requiredString(sigVal, "match", field+".signature"); err != nil {
		return sig, err
	}
	if sig.Formats, err = stringList(sigVal, "formats"); err != nil {
		return sig, err
	}
	return sig, nil
}

// parseOperator extracts a (possibly nested) operator descriptor.
func parseOperator(v cue.Value, field string) (*ir.OperatorSpec, error) {
	op := &ir.OperatorSpec{}

	var err error
	if op.Kind, err = requiredString(v, "kind", field); err != nil {
		return nil, err
	}
	if op.Symbol, err = optionalString(v, "symbol"); err != nil {
		return nil, err
	}
	if op.Name, err = optionalString(v, "name"); err != nil {
		return nil, err
	}
	if op.Template, err = optionalString(v, "template"); err != nil {
		return nil, err
	}
	if op.Headers, err = stringList(v, "headers"); err != nil {
		return nil, err
	}

	arityVal := v.LookupPath(cue.ParsePath("arity"))
	if arityVal.Exists() {
		n, err := arityVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		op.Arity = int(n)
	}

	if op.Slots, err = parseOperands(v, "slots", field); err != nil {
		return nil, err
	}
	if op.Operands, err = parseOperands(v, "operands", field); err != nil {
		return nil, err
	}

	outerVal := v.LookupPath(cue.ParsePath("outer"))
	if outerVal.Exists() {
		if op.Outer, err = parseOperator(outerVal, field+".outer"); err != nil {
			return nil, err
		}
	}

	return op, nil
}

// parseOperands extracts an operand list: {arg: n}, {literal: s},
// {result: true} or {operator: {...}, operands: [...]}.
func parseOperands(v cue.Value, label, field string) ([]ir.OperandSpec, error) {
	listVal := v.LookupPath(cue.ParsePath(label))
	if !listVal.Exists() {
		return nil, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var operands []ir.OperandSpec
	for i := 0; iter.Next(); i++ {
		ov := iter.Value()
		path := fmt.Sprintf("%s.%s[%d]", field, label, i)

		var operand ir.OperandSpec

		if argVal := ov.LookupPath(cue.ParsePath("arg")); argVal.Exists() {
			n, err := argVal.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			idx := int(n)
			operand.Arg = &idx
		}

		if litVal := ov.LookupPath(cue.ParsePath("literal")); litVal.Exists() {
			s, err := litVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			operand.Literal = &s
		}

		if resVal := ov.LookupPath(cue.ParsePath("result")); resVal.Exists() {
			if operand.Result, err = resVal.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		if opVal := ov.LookupPath(cue.ParsePath("operator")); opVal.Exists() {
			if operand.Operator, err = parseOperator(opVal, path+".operator"); err != nil {
				return nil, err
			}
			if operand.Operands, err = parseOperands(ov, "operands", path); err != nil {
				return nil, err
			}
		}

		operands = append(operands, operand)
	}

	return operands, nil
}

// parseTable extracts the precomputed table of an approximation rule.
func parseTable(v cue.Value, field string) (ir.TableSpec, error) {
	var table ir.TableSpec

	tableVal := v.LookupPath(cue.ParsePath("table"))
	if !tableVal.Exists() {
		return table, &CompileError{
			Field:   field + ".table",
			Message: "table is required",
			Pos:     v.Pos(),
		}
	}
	field += ".table"

	var err error
	if table.Name, err = requiredString(tableVal, "name", field); err != nil {
		return table, err
	}
	if table.Format, err = requiredString(tableVal, "format", field); err != nil {
		return table, err
	}

	dimsVal := tableVal.LookupPath(cue.ParsePath("dimensions"))
	if dimsVal.Exists() {
		iter, err := dimsVal.List()
		if err != nil {
			return table, formatCUEError(err)
		}
		for iter.Next() {
			n, err := iter.Value().Int64()
			if err != nil {
				return table, formatCUEError(err)
			}
			table.Dimensions = append(table.Dimensions, int(n))
		}
	}

	dataVal := tableVal.LookupPath(cue.ParsePath("data"))
	if dataVal.Exists() {
		iter, err := dataVal.List()
		if err != nil {
			return table, formatCUEError(err)
		}
		for iter.Next() {
			f, err := iter.Value().Float64()
			if err != nil {
				return table, formatCUEError(err)
			}
			table.Data = append(table.Data, f)
		}
	}

	return table, nil
}

func conditionName(v cue.Value) (string, error) {
	cond, err := optionalString(v, "condition")
	if err != nil {
		return "", err
	}
	if cond == "" {
		return DefaultCondition, nil
	}
	return cond, nil
}

func requiredString(v cue.Value, label, field string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(label))
	if !sv.Exists() {
		return "", &CompileError{
			Field:   field + "." + label,
			Message: label + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, label string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(label))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value, label string) ([]string, error) {
	listVal := v.LookupPath(cue.ParsePath(label))
	if !listVal.Exists() {
		return nil, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
