package codegen

import (
	"fmt"

	"github.com/roach88/mlcg/internal/ir"
)

// Language selects which table of a processor applies. The engine assigns
// it no other semantics.
type Language string

const (
	// LanguageAny keys approximation-table maps shared by every language.
	LanguageAny Language = ""

	// LanguageC is portable procedural code.
	LanguageC Language = "c"

	// LanguageGappa is a formal rounding-proof script.
	LanguageGappa Language = "gappa"

	// LanguageVHDL is hardware-description code.
	LanguageVHDL Language = "vhdl"
)

// Languages lists the concrete output languages in canonical order.
var Languages = []Language{LanguageC, LanguageGappa, LanguageVHDL}

// ParseLanguage resolves a language token.
func ParseLanguage(name string) (Language, error) {
	for _, l := range Languages {
		if string(l) == name {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown language %q", name)
}

func (l Language) String() string {
	if l == LanguageAny {
		return "any"
	}
	return string(l)
}

// TypeName returns the declaration type of format f in language l.
func TypeName(l Language, f ir.Format) (string, error) {
	switch l {
	case LanguageC:
		return cTypeName(f)
	case LanguageVHDL:
		return vhdlTypeName(f)
	case LanguageGappa:
		return "", nil
	}
	return "", fmt.Errorf("no type names for language %s", l)
}

func cTypeName(f ir.Format) (string, error) {
	switch f.Kind {
	case ir.KindFloat:
		switch f.Bits {
		case 32:
			return "float", nil
		case 64:
			return "double", nil
		}
	case ir.KindInteger:
		if f.Signed {
			return fmt.Sprintf("int%d_t", f.Bits), nil
		}
		return fmt.Sprintf("uint%d_t", f.Bits), nil
	case ir.KindMultiPrecision:
		return "ml_dd_t", nil
	case ir.KindException:
		return "int", nil
	case ir.KindVoid:
		return "void", nil
	case ir.KindFixedPoint:
		width := 8
		for width < f.Bits {
			width *= 2
		}
		if width > 64 {
			break
		}
		if f.Signed {
			return fmt.Sprintf("int%d_t", width), nil
		}
		return fmt.Sprintf("uint%d_t", width), nil
	}
	return "", fmt.Errorf("format %s has no C type", f)
}

func vhdlTypeName(f ir.Format) (string, error) {
	switch f.Kind {
	case ir.KindLogic:
		return "std_logic", nil
	case ir.KindLogicVector:
		return fmt.Sprintf("std_logic_vector(%d downto 0)", f.Bits-1), nil
	case ir.KindFixedPoint:
		if f.Signed {
			return fmt.Sprintf("signed(%d downto 0)", f.Bits-1), nil
		}
		return fmt.Sprintf("unsigned(%d downto 0)", f.Bits-1), nil
	case ir.KindInteger:
		return "integer", nil
	}
	return "", fmt.Errorf("format %s has no VHDL type", f)
}
