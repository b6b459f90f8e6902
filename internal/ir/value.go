package ir

import (
	"fmt"
	"strconv"
)

// Value is a sealed interface for constant payloads.
// Only IntValue, FloatValue and ExceptionValue implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
	String() string
}

// IntValue is an integer constant.
type IntValue int64

func (IntValue) irValue() {}

func (v IntValue) String() string {
	return strconv.FormatInt(int64(v), 10)
}

// FloatValue is a floating-point constant.
type FloatValue float64

func (FloatValue) irValue() {}

// String renders the shortest decimal that round-trips.
func (v FloatValue) String() string {
	return strconv.FormatFloat(float64(v), 'g', -1, 64)
}

// Hex renders the exact C99 hexadecimal literal.
func (v FloatValue) Hex() string {
	return strconv.FormatFloat(float64(v), 'x', -1, 64)
}

// Exception enumerates the IEEE-754 floating-point exceptions.
type Exception uint8

const (
	ExceptionInvalid Exception = iota + 1
	ExceptionDivByZero
	ExceptionOverflow
	ExceptionUnderflow
	ExceptionInexact
)

var exceptionNames = map[Exception]string{
	ExceptionInvalid:   "invalid",
	ExceptionDivByZero: "div_by_zero",
	ExceptionOverflow:  "overflow",
	ExceptionUnderflow: "underflow",
	ExceptionInexact:   "inexact",
}

func (e Exception) String() string {
	if name, ok := exceptionNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Exception(%d)", uint8(e))
}

// ParseException resolves an exception kind name.
func ParseException(name string) (Exception, error) {
	for e, n := range exceptionNames {
		if n == name {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown exception %q", name)
}

// ExceptionValue is a constant of format FPEType.
type ExceptionValue struct {
	Kind Exception
}

func (ExceptionValue) irValue() {}

func (v ExceptionValue) String() string {
	return v.Kind.String()
}

// NewInt creates an integer constant of the given format.
func NewInt(n int64, format Format) *Constant {
	return NewConstant(IntValue(n), format)
}

// NewFloat creates a floating-point constant of the given format.
func NewFloat(x float64, format Format) *Constant {
	return NewConstant(FloatValue(x), format)
}

// NewException creates an exception-kind constant.
func NewException(kind Exception) *Constant {
	return NewConstant(ExceptionValue{Kind: kind}, FPEType)
}
