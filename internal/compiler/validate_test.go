package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mlcg/internal/ir"
)

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func validSpec() *ir.TargetSpec {
	return &ir.TargetSpec{
		Name:    "kv_fma",
		Parents: []string{"generic"},
		Rules: []ir.RuleSpec{
			{
				Language:  "c",
				Opcode:    "FusedMultiplyAdd",
				Specifier: "Standard",
				Condition: "std",
				Signature: ir.SignatureSpec{Match: "exact", Formats: []string{"binary32", "binary32", "binary32", "binary32"}},
				Operator:  ir.OperatorSpec{Kind: "function", Name: "__builtin_fmaf", Arity: 3},
			},
			{
				Language:  "c",
				Opcode:    "FusedMultiplyAdd",
				Specifier: "Subtract",
				Condition: "std",
				Signature: ir.SignatureSpec{Match: "exact", Formats: []string{"binary32", "binary32", "binary32", "binary32"}},
				Operator: ir.OperatorSpec{
					Kind:  "compose",
					Outer: &ir.OperatorSpec{Kind: "function", Name: "__builtin_fmaf", Arity: 3},
					Operands: []ir.OperandSpec{
						{Arg: intPtr(0)},
						{Arg: intPtr(1)},
						{
							Operator: &ir.OperatorSpec{Kind: "symbol", Symbol: "-", Arity: 1},
							Operands: []ir.OperandSpec{{Arg: intPtr(2)}},
						},
					},
				},
			},
		},
		Approx: []ir.ApproxRuleSpec{{
			Opcode:    "SpecificOperation",
			Specifier: "DivisionSeed",
			Condition: "always",
			Signature: ir.SignatureSpec{Match: "exact", Formats: []string{"binary32", "binary32"}},
			Table:     ir.TableSpec{Name: "coarse_seed", Dimensions: []int{2, 1}, Format: "binary32", Data: []float64{1, 0.5}},
		}},
	}
}

func TestValidateTargetSpecValid(t *testing.T) {
	errs := Validate(validSpec())
	assert.Empty(t, errs, "valid spec should have no errors")

	errs = Validate(*validSpec())
	assert.Empty(t, errs, "value spec should validate the same")
}

func TestValidateAbstractTarget(t *testing.T) {
	errs := Validate(&ir.TargetSpec{Name: "family", Abstract: true})
	assert.Empty(t, errs)
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not a spec")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidateTargetSpecErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *ir.TargetSpec)
		code   string
		field  string
	}{
		{"empty name", func(s *ir.TargetSpec) { s.Name = "" }, ErrInvalidTargetName, "name"},
		{"upper-case name", func(s *ir.TargetSpec) { s.Name = "KvFMA" }, ErrInvalidTargetName, "name"},
		{"unknown language", func(s *ir.TargetSpec) { s.Rules[0].Language = "cobol" }, ErrUnknownLanguage, "rules[0].language"},
		{"empty rule language", func(s *ir.TargetSpec) { s.Rules[0].Language = "" }, ErrUnknownLanguage, "rules[0].language"},
		{"unknown approx language", func(s *ir.TargetSpec) { s.Approx[0].Language = "rust" }, ErrUnknownLanguage, "approx[0].language"},
		{"unknown opcode", func(s *ir.TargetSpec) { s.Rules[1].Opcode = "Frobnicate" }, ErrUnknownOpcode, "rules[1].opcode"},
		{"unknown condition", func(s *ir.TargetSpec) { s.Rules[0].Condition = "sometimes" }, ErrUnknownCondition, "rules[0].condition"},
		{"unknown match", func(s *ir.TargetSpec) { s.Rules[0].Signature.Match = "fuzzy" }, ErrInvalidSignature, "rules[0].signature.match"},
		{"unknown format", func(s *ir.TargetSpec) { s.Rules[0].Signature.Formats[2] = "binary16" }, ErrInvalidSignature, "rules[0].signature.formats[2]"},
		{"result with two formats", func(s *ir.TargetSpec) {
			s.Rules[0].Signature = ir.SignatureSpec{Match: "result", Formats: []string{"int32", "int32"}}
		}, ErrInvalidSignature, "rules[0].signature.formats"},
		{"unknown operator kind", func(s *ir.TargetSpec) { s.Rules[0].Operator.Kind = "macro" }, ErrInvalidOperator, "rules[0].operator.kind"},
		{"function without name", func(s *ir.TargetSpec) { s.Rules[0].Operator.Name = "" }, ErrInvalidOperator, "rules[0].operator"},
		{"compose without outer", func(s *ir.TargetSpec) { s.Rules[1].Operator.Outer = nil }, ErrInvalidOperator, "rules[1].operator"},
		{"arity mismatch", func(s *ir.TargetSpec) { s.Rules[0].Operator.Arity = 2 }, ErrArityMismatch, "rules[0].operator.arity"},
		{"symbol without arity", func(s *ir.TargetSpec) {
			s.Rules[0].Operator = ir.OperatorSpec{Kind: "symbol", Symbol: "+"}
		}, ErrArityMismatch, "rules[0].operator.arity"},
		{"outer arity mismatch", func(s *ir.TargetSpec) { s.Rules[1].Operator.Outer.Arity = 2 }, ErrArityMismatch, "rules[1].operator.outer.arity"},
		{"ambiguous operand", func(s *ir.TargetSpec) {
			s.Rules[1].Operator.Operands[0] = ir.OperandSpec{Arg: intPtr(0), Literal: strPtr("0")}
		}, ErrInvalidOperand, "rules[1].operator.operands[0]"},
		{"empty operand", func(s *ir.TargetSpec) {
			s.Rules[1].Operator.Operands[1] = ir.OperandSpec{}
		}, ErrInvalidOperand, "rules[1].operator.operands[1]"},
		{"argument out of range", func(s *ir.TargetSpec) {
			s.Rules[1].Operator.Operands[2].Operands[0].Arg = intPtr(3)
		}, ErrInvalidOperand, "rules[1].operator.operands[2].operands[0].arg"},
		{"negative argument", func(s *ir.TargetSpec) {
			s.Rules[1].Operator.Operands[0].Arg = intPtr(-1)
		}, ErrInvalidOperand, "rules[1].operator.operands[0].arg"},
		{"table size", func(s *ir.TargetSpec) { s.Approx[0].Table.Data = []float64{1} }, ErrInvalidTable, "approx[0].table.data"},
		{"table format", func(s *ir.TargetSpec) { s.Approx[0].Table.Format = "half" }, ErrInvalidTable, "approx[0].table.format"},
		{"table name", func(s *ir.TargetSpec) { s.Approx[0].Table.Name = " " }, ErrInvalidTable, "approx[0].table.name"},
		{"table without dimensions", func(s *ir.TargetSpec) { s.Approx[0].Table.Dimensions = nil }, ErrInvalidTable, "approx[0].table.dimensions"},
		{"zero dimension", func(s *ir.TargetSpec) { s.Approx[0].Table.Dimensions = []int{2, 0} }, ErrInvalidTable, "approx[0].table.dimensions[1]"},
		{"empty parent", func(s *ir.TargetSpec) { s.Parents = append(s.Parents, "") }, ErrInvalidParent, "parents[1]"},
		{"self parent", func(s *ir.TargetSpec) { s.Parents = append(s.Parents, "kv_fma") }, ErrInvalidParent, "parents[1]"},
		{"duplicate parent", func(s *ir.TargetSpec) { s.Parents = append(s.Parents, "generic") }, ErrInvalidParent, "parents[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(spec)

			errs := Validate(spec)
			require.NotEmpty(t, errs)

			var found bool
			for _, e := range errs {
				if e.Code == tt.code && e.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected %s at %s, got %v", tt.code, tt.field, errs)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	spec := validSpec()
	spec.Name = ""
	spec.Rules[0].Language = "cobol"
	spec.Rules[1].Condition = "maybe"
	spec.Approx[0].Table.Format = "half"

	errs := Validate(spec)
	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	assert.Equal(t, []string{ErrInvalidTargetName, ErrUnknownLanguage, ErrUnknownCondition, ErrInvalidTable}, codes)
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "rules[0].opcode", Message: "bad", Code: ErrUnknownOpcode}
	assert.Equal(t, "[E122] rules[0].opcode: bad", e.Error())

	e.Line = 12
	assert.Equal(t, "[E122] line 12: rules[0].opcode: bad", e.Error())
}
