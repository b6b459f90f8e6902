package codegen

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a fatal lowering failure.
//
// Lowering errors include:
//   - Unsupported operation: no processor in the hierarchy matches the node
//   - Arity mismatch: an operator was invoked with the wrong operand count
//   - Malformed argument: a custom operator received an unexpected shape
//   - Invalid table: a table failed construction-time validation
//   - Unbound result: an operator referenced the output binding but the
//     caller provided none
//
// None of them is recoverable: the generation unit is abandoned and no
// partial text is produced.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Processor names the rejecting processor, when known.
	Processor string

	// Language is the target language, when known.
	Language Language

	// Node is a bounded structural dump of the offending node.
	Node string
}

// ErrorCode categorizes lowering errors.
type ErrorCode string

const (
	// ErrCodeUnsupported indicates no table in the hierarchy matched the node.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED_OPERATION"

	// ErrCodeArity indicates an operator was invoked with a mismatched operand count.
	ErrCodeArity ErrorCode = "ARITY_MISMATCH"

	// ErrCodeMalformed indicates a custom operator received arguments it cannot translate.
	ErrCodeMalformed ErrorCode = "MALFORMED_ARGUMENT"

	// ErrCodeTable indicates a table failed construction-time validation.
	ErrCodeTable ErrorCode = "INVALID_TABLE"

	// ErrCodeUnboundResult indicates an operator needs an output binding that was not provided.
	ErrCodeUnboundResult ErrorCode = "UNBOUND_RESULT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Processor != "" && e.Language != LanguageAny {
		fmt.Fprintf(&b, " (processor=%s, language=%s)", e.Processor, e.Language)
	} else if e.Processor != "" {
		fmt.Fprintf(&b, " (processor=%s)", e.Processor)
	}
	if e.Node != "" {
		b.WriteString("\n")
		b.WriteString(e.Node)
	}
	return b.String()
}

// IsUnsupported returns true if the error is an unsupported-operation error.
// Uses errors.As to handle wrapped errors.
func IsUnsupported(err error) bool {
	return CodeOf(err) == ErrCodeUnsupported
}

// IsMalformed returns true if the error reports a malformed operator
// invocation: wrong arity, unexpected argument shape or missing output
// binding.
func IsMalformed(err error) bool {
	switch CodeOf(err) {
	case ErrCodeArity, ErrCodeMalformed, ErrCodeUnboundResult:
		return true
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// NewMalformedError creates an Error for an unexpected argument shape.
// Custom operators use it to reject arguments they cannot translate.
func NewMalformedError(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeMalformed,
		Message: fmt.Sprintf(format, args...),
	}
}

func newArityError(what string, want, got int) *Error {
	return &Error{
		Code:    ErrCodeArity,
		Message: fmt.Sprintf("%s expects %d operand(s), got %d", what, want, got),
	}
}

func newTableError(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeTable,
		Message: fmt.Sprintf(format, args...),
	}
}
