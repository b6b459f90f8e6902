package ir

// TargetSpec represents a compiled target (processor) description.
type TargetSpec struct {
	Name     string           `json:"name"`
	Doc      string           `json:"doc,omitempty"`
	Abstract bool             `json:"abstract,omitempty"`
	Parents  []string         `json:"parents"`
	Rules    []RuleSpec       `json:"rules"`
	Approx   []ApproxRuleSpec `json:"approx,omitempty"`
}

// RuleSpec represents one code-generation table entry.
type RuleSpec struct {
	Language  string        `json:"language"`
	Opcode    string        `json:"opcode"`
	Specifier string        `json:"specifier,omitempty"` // empty for opcodes without variants
	Condition string        `json:"condition"`           // named condition predicate
	Signature SignatureSpec `json:"signature"`
	Operator  OperatorSpec  `json:"operator"`
}

// SignatureSpec represents a type-signature predicate.
type SignatureSpec struct {
	Match   string   `json:"match"`             // "exact", "relaxed", "result", "function" or "any"
	Formats []string `json:"formats,omitempty"` // output first
}

// OperatorSpec represents a declarative operator descriptor.
type OperatorSpec struct {
	Kind     string        `json:"kind"`               // "symbol", "function", "template", "identity" or "compose"
	Symbol   string        `json:"symbol,omitempty"`   // symbol kind
	Name     string        `json:"name,omitempty"`     // function kind
	Template string        `json:"template,omitempty"` // template kind
	Arity    int           `json:"arity"`
	Headers  []string      `json:"headers,omitempty"`
	Slots    []OperandSpec `json:"slots,omitempty"`    // function kind, explicit argument remapping
	Outer    *OperatorSpec `json:"outer,omitempty"`    // compose kind
	Operands []OperandSpec `json:"operands,omitempty"` // compose kind
}

// OperandSpec represents one operand source of a function slot map or a
// composition. Exactly one of Arg, Literal, Result or Operator is set.
type OperandSpec struct {
	Arg      *int          `json:"arg,omitempty"`
	Literal  *string       `json:"literal,omitempty"`
	Result   bool          `json:"result,omitempty"`
	Operator *OperatorSpec `json:"operator,omitempty"`
	Operands []OperandSpec `json:"operands,omitempty"`
}

// ApproxRuleSpec represents one approximation-table map entry.
type ApproxRuleSpec struct {
	Language  string        `json:"language,omitempty"` // empty for any language
	Opcode    string        `json:"opcode"`
	Specifier string        `json:"specifier,omitempty"`
	Condition string        `json:"condition"`
	Signature SignatureSpec `json:"signature"`
	Table     TableSpec     `json:"table"`
}

// TableSpec represents a precomputed numeric lookup table.
type TableSpec struct {
	Name       string    `json:"name"`
	Dimensions []int     `json:"dimensions"`
	Format     string    `json:"format"`
	Data       []float64 `json:"data"`
}

// ValidMatchKinds defines allowed signature match disciplines.
var ValidMatchKinds = map[string]bool{
	"exact":    true,
	"relaxed":  true,
	"result":   true,
	"function": true,
	"any":      true,
}

// ValidOperatorKinds defines allowed declarative operator kinds.
var ValidOperatorKinds = map[string]bool{
	"symbol":   true,
	"function": true,
	"template": true,
	"identity": true,
	"compose":  true,
}

// ValidConditions defines the condition predicate names a description may use.
var ValidConditions = map[string]bool{
	"always":         true,
	"std":            true,
	"not_silent":     true,
	"silent":         true,
	"commutated":     true,
	"not_commutated": true,
}

// ValidLanguages defines the language tokens a description may use.
var ValidLanguages = map[string]bool{
	"c":     true,
	"gappa": true,
	"vhdl":  true,
}
