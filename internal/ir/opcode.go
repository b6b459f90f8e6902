package ir

import "fmt"

// Opcode identifies the operation performed by a node.
type Opcode string

// Leaf opcodes.
const (
	OpVariable     Opcode = "Variable"
	OpConstant     Opcode = "Constant"
	OpTable        Opcode = "Table"
	OpFunctionCall Opcode = "FunctionCall"
)

// Arithmetic and logic opcodes.
const (
	OpAddition              Opcode = "Addition"
	OpSubtraction           Opcode = "Subtraction"
	OpMultiplication        Opcode = "Multiplication"
	OpDivision              Opcode = "Division"
	OpModulo                Opcode = "Modulo"
	OpNegation              Opcode = "Negation"
	OpFusedMultiplyAdd      Opcode = "FusedMultiplyAdd"
	OpAbs                   Opcode = "Abs"
	OpSelect                Opcode = "Select"
	OpTableLoad             Opcode = "TableLoad"
	OpBitLogicAnd           Opcode = "BitLogicAnd"
	OpBitLogicOr            Opcode = "BitLogicOr"
	OpBitLogicXor           Opcode = "BitLogicXor"
	OpBitLogicNegate        Opcode = "BitLogicNegate"
	OpBitLogicLeftShift     Opcode = "BitLogicLeftShift"
	OpBitLogicRightShift    Opcode = "BitLogicRightShift"
	OpLogicalAnd            Opcode = "LogicalAnd"
	OpLogicalOr             Opcode = "LogicalOr"
	OpLogicalNot            Opcode = "LogicalNot"
	OpComparison            Opcode = "Comparison"
	OpTest                  Opcode = "Test"
	OpNearestInteger        Opcode = "NearestInteger"
	OpExponentInsertion     Opcode = "ExponentInsertion"
	OpExponentExtraction    Opcode = "ExponentExtraction"
	OpMantissaExtraction    Opcode = "MantissaExtraction"
	OpRawSignExpExtraction  Opcode = "RawSignExpExtraction"
	OpRawMantissaExtraction Opcode = "RawMantissaExtraction"
	OpCountLeadingZeros     Opcode = "CountLeadingZeros"
	OpConversion            Opcode = "Conversion"
	OpTypeCast              Opcode = "TypeCast"
	OpExceptionOperation    Opcode = "ExceptionOperation"
	OpSpecificOperation     Opcode = "SpecificOperation"
	OpSplit                 Opcode = "Split"
	OpComponentSelection    Opcode = "ComponentSelection"
)

// Hardware-description opcodes.
const (
	OpConcatenation      Opcode = "Concatenation"
	OpSubSignalSelection Opcode = "SubSignalSelection"
	OpZeroExtend         Opcode = "ZeroExtend"
	OpTruncate           Opcode = "Truncate"
)

var knownOpcodes = map[Opcode]bool{
	OpVariable:             true, OpConstant: true, OpTable: true, OpFunctionCall: true,
	OpAddition:             true, OpSubtraction: true, OpMultiplication: true, OpDivision: true,
	OpModulo:               true, OpNegation: true, OpFusedMultiplyAdd: true, OpAbs: true,
	OpSelect:               true, OpTableLoad: true, OpBitLogicAnd: true, OpBitLogicOr: true,
	OpBitLogicXor:          true, OpBitLogicNegate: true, OpBitLogicLeftShift: true,
	OpBitLogicRightShift:   true, OpLogicalAnd: true, OpLogicalOr: true,
	OpLogicalNot:           true, OpComparison: true, OpTest: true, OpNearestInteger: true,
	OpExponentInsertion:    true, OpExponentExtraction: true, OpMantissaExtraction: true,
	OpRawSignExpExtraction: true, OpRawMantissaExtraction: true,
	OpCountLeadingZeros:    true, OpConversion: true, OpTypeCast: true,
	OpExceptionOperation:   true, OpSpecificOperation: true, OpSplit: true,
	OpComponentSelection:   true, OpConcatenation: true, OpSubSignalSelection: true,
	OpZeroExtend:           true, OpTruncate: true,
}

// ParseOpcode validates an opcode name.
func ParseOpcode(name string) (Opcode, error) {
	op := Opcode(name)
	if !knownOpcodes[op] {
		return "", fmt.Errorf("unknown opcode %q", name)
	}
	return op, nil
}

// Specifier distinguishes variants of one opcode.
type Specifier string

// SpecifierNone stands in for opcodes without variants.
const SpecifierNone Specifier = ""

// FusedMultiplyAdd variants.
const (
	FMAStandard       Specifier = "Standard"
	FMANegate         Specifier = "Negate"
	FMASubtract       Specifier = "Subtract"
	FMASubtractNegate Specifier = "SubtractNegate"
)

// Comparison variants.
const (
	CompEqual          Specifier = "Equal"
	CompNotEqual       Specifier = "NotEqual"
	CompGreater        Specifier = "Greater"
	CompGreaterOrEqual Specifier = "GreaterOrEqual"
	CompLess           Specifier = "Less"
	CompLessOrEqual    Specifier = "LessOrEqual"
)

// Test variants.
const (
	TestIsNaN           Specifier = "IsNaN"
	TestIsInfOrNaN      Specifier = "IsInfOrNaN"
	TestIsSignalingNaN  Specifier = "IsSignalingNaN"
	TestIsQuietNaN      Specifier = "IsQuietNaN"
	TestIsSubnormal     Specifier = "IsSubnormal"
	TestIsInfty         Specifier = "IsInfty"
	TestIsPositiveInfty Specifier = "IsPositiveInfty"
	TestIsNegativeInfty Specifier = "IsNegativeInfty"
	TestIsZero          Specifier = "IsZero"
	TestIsPositiveZero  Specifier = "IsPositiveZero"
	TestIsNegativeZero  Specifier = "IsNegativeZero"
	TestCompSign        Specifier = "CompSign"
)

// ExponentInsertion variants.
const (
	ExpInsertionDefault  Specifier = "Default"
	ExpInsertionNoOffset Specifier = "NoOffset"
)

// ExceptionOperation variants.
const (
	ClearException Specifier = "ClearException"
	RaiseException Specifier = "RaiseException"
	RaiseReturn    Specifier = "RaiseReturn"
)

// SpecificOperation variants.
const (
	Subnormalize Specifier = "Subnormalize"
	CopySign     Specifier = "CopySign"
	DivisionSeed Specifier = "DivisionSeed"
)

// ComponentSelection variants.
const (
	ComponentHi Specifier = "Hi"
	ComponentLo Specifier = "Lo"
)

func (s Specifier) String() string {
	if s == SpecifierNone {
		return "*"
	}
	return string(s)
}
