package ir

import (
	"fmt"
	"strings"
)

// FormatKind classifies formats into numeric-format equivalence families.
type FormatKind uint8

const (
	KindVoid FormatKind = iota
	KindInteger
	KindFloat
	KindMultiPrecision
	KindAbstract
	KindException
	KindLogic
	KindLogicVector
	KindFixedPoint
)

var formatKindNames = map[FormatKind]string{
	KindVoid:           "void",
	KindInteger:        "integer",
	KindFloat:          "float",
	KindMultiPrecision: "multi_precision",
	KindAbstract:       "abstract",
	KindException:      "exception",
	KindLogic:          "logic",
	KindLogicVector:    "logic_vector",
	KindFixedPoint:     "fixed_point",
}

func (k FormatKind) String() string {
	if name, ok := formatKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FormatKind(%d)", uint8(k))
}

// Format is the precision (type) carried by every node.
//
// Format is a comparable value: two formats are exactly equal iff == holds.
// For fixed-point formats Bits is the total width and Frac the number of
// fractional bits.
type Format struct {
	Kind   FormatKind
	Name   string
	Bits   int
	Frac   int
	Signed bool
}

// Predefined formats.
var (
	Void         = Format{Kind: KindVoid, Name: "void"}
	Int32        = Format{Kind: KindInteger, Name: "int32", Bits: 32, Signed: true}
	UInt32       = Format{Kind: KindInteger, Name: "uint32", Bits: 32}
	Int64        = Format{Kind: KindInteger, Name: "int64", Bits: 64, Signed: true}
	UInt64       = Format{Kind: KindInteger, Name: "uint64", Bits: 64}
	Binary32     = Format{Kind: KindFloat, Name: "binary32", Bits: 32, Signed: true}
	Binary64     = Format{Kind: KindFloat, Name: "binary64", Bits: 64, Signed: true}
	DoubleDouble = Format{Kind: KindMultiPrecision, Name: "double_double", Bits: 128, Signed: true}
	Exact        = Format{Kind: KindAbstract, Name: "exact"}
	FPEType      = Format{Kind: KindException, Name: "fpe"}
	StdLogic     = Format{Kind: KindLogic, Name: "std_logic", Bits: 1}
)

// StdLogicVector returns the HDL bit-vector format of the given width.
func StdLogicVector(width int) Format {
	return Format{Kind: KindLogicVector, Name: fmt.Sprintf("std_logic_vector(%d)", width), Bits: width}
}

// FixedPoint returns a fixed-point format with intSize integer bits and
// fracSize fractional bits.
func FixedPoint(intSize, fracSize int, signed bool) Format {
	sign := "u"
	if signed {
		sign = "s"
	}
	return Format{
		Kind:   KindFixedPoint,
		Name:   fmt.Sprintf("fixed(%d,%d,%s)", intSize, fracSize, sign),
		Bits:   intSize + fracSize,
		Frac:   fracSize,
		Signed: signed,
	}
}

// IntSize returns the number of integer bits of a fixed-point format.
func (f Format) IntSize() int {
	return f.Bits - f.Frac
}

// IsNumeric reports whether values of f take part in arithmetic.
func (f Format) IsNumeric() bool {
	switch f.Kind {
	case KindInteger, KindFloat, KindMultiPrecision, KindAbstract, KindFixedPoint:
		return true
	}
	return false
}

func (f Format) String() string {
	if f.Name == "" {
		return "<none>"
	}
	return f.Name
}

var namedFormats = map[string]Format{
	Void.Name:         Void,
	Int32.Name:        Int32,
	UInt32.Name:       UInt32,
	Int64.Name:        Int64,
	UInt64.Name:       UInt64,
	Binary32.Name:     Binary32,
	Binary64.Name:     Binary64,
	DoubleDouble.Name: DoubleDouble,
	Exact.Name:        Exact,
	FPEType.Name:      FPEType,
	StdLogic.Name:     StdLogic,
}

// ParseFormat resolves a format name as written in target descriptions and
// scenarios: a predefined name, "std_logic_vector(N)" or "fixed(I,F,s|u)".
func ParseFormat(name string) (Format, error) {
	name = strings.TrimSpace(name)
	if f, ok := namedFormats[name]; ok {
		return f, nil
	}

	var width int
	if _, err := fmt.Sscanf(name, "std_logic_vector(%d)", &width); err == nil {
		if width <= 0 {
			return Format{}, fmt.Errorf("invalid vector width in %q", name)
		}
		return StdLogicVector(width), nil
	}

	if strings.HasPrefix(name, "fixed(") && strings.HasSuffix(name, ")") {
		parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(name, "fixed("), ")"), ",")
		if len(parts) == 3 {
			var intSize, fracSize int
			if _, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%d", &intSize); err != nil {
				return Format{}, fmt.Errorf("invalid integer size in %q", name)
			}
			if _, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &fracSize); err != nil {
				return Format{}, fmt.Errorf("invalid fraction size in %q", name)
			}
			switch strings.TrimSpace(parts[2]) {
			case "s":
				return FixedPoint(intSize, fracSize, true), nil
			case "u":
				return FixedPoint(intSize, fracSize, false), nil
			}
		}
		return Format{}, fmt.Errorf("malformed fixed-point format %q", name)
	}

	return Format{}, fmt.Errorf("unknown format %q", name)
}

// RelaxedCompatible reports whether actual is compatible with pattern within
// a numeric-format equivalence class:
//   - identical formats;
//   - the abstract Exact format against any numeric format (either side);
//   - two integers of the same width, signedness ignored;
//   - two fixed-point formats with identical integer and fraction sizes.
func RelaxedCompatible(pattern, actual Format) bool {
	if pattern == actual {
		return true
	}
	if pattern.Kind == KindAbstract && actual.IsNumeric() {
		return true
	}
	if actual.Kind == KindAbstract && pattern.IsNumeric() {
		return true
	}
	if pattern.Kind != actual.Kind {
		return false
	}
	switch pattern.Kind {
	case KindInteger, KindLogicVector:
		return pattern.Bits == actual.Bits
	case KindFixedPoint:
		return pattern.IntSize() == actual.IntSize() && pattern.Frac == actual.Frac
	}
	return false
}
