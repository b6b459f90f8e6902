package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/mlcg/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// TargetSpec errors (E120-E129)
	ErrInvalidTargetName = "E120" // missing or malformed target name
	ErrUnknownLanguage   = "E121" // language token not recognized
	ErrUnknownOpcode     = "E122" // opcode not recognized
	ErrUnknownCondition  = "E123" // condition predicate not recognized
	ErrInvalidSignature  = "E124" // bad match kind, format or format count
	ErrInvalidOperator   = "E125" // bad operator kind or missing operator field
	ErrArityMismatch     = "E126" // operator arity disagrees with signature
	ErrInvalidOperand    = "E127" // operand sets zero or several sources
	ErrInvalidTable      = "E128" // approximation table shape or format
	ErrInvalidParent     = "E129" // empty, self or duplicate parent
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.TargetSpec:
		return validateTargetSpec(spec)
	case ir.TargetSpec:
		return validateTargetSpec(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

var targetNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// validateTargetSpec validates a target description.
func validateTargetSpec(spec *ir.TargetSpec) []ValidationError {
	var errs []ValidationError

	// E120: name must be a lower-case identifier
	if !targetNamePattern.MatchString(spec.Name) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("target name %q must match %s", spec.Name, targetNamePattern),
			Code:    ErrInvalidTargetName,
		})
	}

	// E129: parents
	seen := make(map[string]bool)
	for i, parent := range spec.Parents {
		field := fmt.Sprintf("parents[%d]", i)
		switch {
		case strings.TrimSpace(parent) == "":
			errs = append(errs, ValidationError{Field: field, Message: "parent name is empty", Code: ErrInvalidParent})
		case parent == spec.Name:
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("target %q lists itself as parent", parent), Code: ErrInvalidParent})
		case seen[parent]:
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate parent %q", parent), Code: ErrInvalidParent})
		}
		seen[parent] = true
	}

	for i, rule := range spec.Rules {
		field := fmt.Sprintf("rules[%d]", i)

		// E121: rules always name a language
		if !ir.ValidLanguages[rule.Language] {
			errs = append(errs, ValidationError{
				Field:   field + ".language",
				Message: fmt.Sprintf("unknown language %q", rule.Language),
				Code:    ErrUnknownLanguage,
			})
		}

		errs = append(errs, validatePattern(field, rule.Opcode, rule.Condition, rule.Signature)...)
		errs = append(errs, validateOperator(field+".operator", rule.Operator, signatureInputs(rule.Signature))...)
	}

	for i, rule := range spec.Approx {
		field := fmt.Sprintf("approx[%d]", i)

		// E121: empty language applies to every language
		if rule.Language != "" && !ir.ValidLanguages[rule.Language] {
			errs = append(errs, ValidationError{
				Field:   field + ".language",
				Message: fmt.Sprintf("unknown language %q", rule.Language),
				Code:    ErrUnknownLanguage,
			})
		}

		errs = append(errs, validatePattern(field, rule.Opcode, rule.Condition, rule.Signature)...)
		errs = append(errs, validateTable(field+".table", rule.Table)...)
	}

	return errs
}

// validatePattern checks the opcode, condition and signature of an entry.
func validatePattern(field, opcode, condition string, sig ir.SignatureSpec) []ValidationError {
	var errs []ValidationError

	// E122: opcode
	if _, err := ir.ParseOpcode(opcode); err != nil {
		errs = append(errs, ValidationError{
			Field:   field + ".opcode",
			Message: err.Error(),
			Code:    ErrUnknownOpcode,
		})
	}

	// E123: condition
	if !ir.ValidConditions[condition] {
		errs = append(errs, ValidationError{
			Field:   field + ".condition",
			Message: fmt.Sprintf("unknown condition %q", condition),
			Code:    ErrUnknownCondition,
		})
	}

	return append(errs, validateSignature(field+".signature", sig)...)
}

// validateSignature checks the match kind and formats (E124).
func validateSignature(field string, sig ir.SignatureSpec) []ValidationError {
	var errs []ValidationError

	if !ir.ValidMatchKinds[sig.Match] {
		return append(errs, ValidationError{
			Field:   field + ".match",
			Message: fmt.Sprintf("unknown signature match %q", sig.Match),
			Code:    ErrInvalidSignature,
		})
	}

	for i, name := range sig.Formats {
		if _, err := ir.ParseFormat(name); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.formats[%d]", field, i),
				Message: err.Error(),
				Code:    ErrInvalidSignature,
			})
		}
	}

	var countErr string
	switch sig.Match {
	case "exact", "relaxed":
		if len(sig.Formats) == 0 {
			countErr = fmt.Sprintf("%s signature needs at least the output format", sig.Match)
		}
	case "result":
		if len(sig.Formats) != 1 {
			countErr = fmt.Sprintf("result signature takes exactly one format, got %d", len(sig.Formats))
		}
	case "function", "any":
		if len(sig.Formats) != 0 {
			countErr = fmt.Sprintf("%s signature takes no formats", sig.Match)
		}
	}
	if countErr != "" {
		errs = append(errs, ValidationError{
			Field:   field + ".formats",
			Message: countErr,
			Code:    ErrInvalidSignature,
		})
	}

	return errs
}

// signatureInputs returns the input count a signature fixes, or -1.
func signatureInputs(sig ir.SignatureSpec) int {
	if (sig.Match == "exact" || sig.Match == "relaxed") && len(sig.Formats) > 0 {
		return len(sig.Formats) - 1
	}
	return -1
}

// validateOperator checks an operator descriptor recursively.
// inputs is the operand count of the matched node, or -1 when unknown.
func validateOperator(field string, op ir.OperatorSpec, inputs int) []ValidationError {
	var errs []ValidationError

	missing := func(what string) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s operator needs a %s", op.Kind, what),
			Code:    ErrInvalidOperator,
		})
	}

	// E126: declared arity against the signature
	checkArity := func() {
		if inputs >= 0 && op.Arity >= 0 && op.Arity != inputs {
			errs = append(errs, ValidationError{
				Field:   field + ".arity",
				Message: fmt.Sprintf("signature fixes %d input(s) but operator expects %d", inputs, op.Arity),
				Code:    ErrArityMismatch,
			})
		}
	}

	switch op.Kind {
	case "symbol":
		if op.Symbol == "" {
			missing("symbol")
		}
		if op.Arity < 1 {
			errs = append(errs, ValidationError{
				Field:   field + ".arity",
				Message: fmt.Sprintf("symbol operator needs arity >= 1, got %d", op.Arity),
				Code:    ErrArityMismatch,
			})
		} else {
			checkArity()
		}
	case "function":
		if op.Name == "" {
			missing("name")
		}
		if len(op.Slots) == 0 {
			checkArity()
		}
		errs = append(errs, validateOperands(field+".slots", op.Slots, inputs)...)
	case "template":
		if op.Template == "" {
			missing("template")
		}
		checkArity()
	case "identity":
	case "compose":
		if op.Outer == nil {
			missing("outer operator")
		} else {
			errs = append(errs, validateOperator(field+".outer", *op.Outer, len(op.Operands))...)
		}
		errs = append(errs, validateOperands(field+".operands", op.Operands, inputs)...)
	default:
		errs = append(errs, ValidationError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("unknown operator kind %q", op.Kind),
			Code:    ErrInvalidOperator,
		})
	}

	return errs
}

// validateOperands checks that each operand sets exactly one source (E127).
func validateOperands(field string, operands []ir.OperandSpec, inputs int) []ValidationError {
	var errs []ValidationError

	for i, o := range operands {
		path := fmt.Sprintf("%s[%d]", field, i)

		set := 0
		for _, present := range []bool{o.Arg != nil, o.Literal != nil, o.Result, o.Operator != nil} {
			if present {
				set++
			}
		}
		if set != 1 {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: "operand must set exactly one of arg, literal, result or operator",
				Code:    ErrInvalidOperand,
			})
			continue
		}

		switch {
		case o.Arg != nil && *o.Arg < 0:
			errs = append(errs, ValidationError{
				Field:   path + ".arg",
				Message: fmt.Sprintf("negative argument index %d", *o.Arg),
				Code:    ErrInvalidOperand,
			})
		case o.Arg != nil && inputs >= 0 && *o.Arg >= inputs:
			errs = append(errs, ValidationError{
				Field:   path + ".arg",
				Message: fmt.Sprintf("argument index %d out of range for %d input(s)", *o.Arg, inputs),
				Code:    ErrInvalidOperand,
			})
		case o.Operator != nil:
			errs = append(errs, validateOperator(path+".operator", *o.Operator, len(o.Operands))...)
			errs = append(errs, validateOperands(path+".operands", o.Operands, inputs)...)
		}
	}

	return errs
}

// validateTable checks the shape and format of an approximation table (E128).
func validateTable(field string, t ir.TableSpec) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, ValidationError{Field: field + ".name", Message: "table name is required", Code: ErrInvalidTable})
	}
	if _, err := ir.ParseFormat(t.Format); err != nil {
		errs = append(errs, ValidationError{Field: field + ".format", Message: err.Error(), Code: ErrInvalidTable})
	}

	if len(t.Dimensions) == 0 {
		return append(errs, ValidationError{Field: field + ".dimensions", Message: "table needs at least one dimension", Code: ErrInvalidTable})
	}
	size := 1
	for i, d := range t.Dimensions {
		if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.dimensions[%d]", field, i),
				Message: fmt.Sprintf("dimension must be positive, got %d", d),
				Code:    ErrInvalidTable,
			})
			return errs
		}
		size *= d
	}
	if len(t.Data) != size {
		errs = append(errs, ValidationError{
			Field:   field + ".data",
			Message: fmt.Sprintf("%d value(s) for dimensions %v", len(t.Data), t.Dimensions),
			Code:    ErrInvalidTable,
		})
	}

	return errs
}
