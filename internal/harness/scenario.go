package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/ir"
)

// Scenario defines a lowering scenario: a small node graph lowered through
// one target for one language, with expectations on the generated text and
// on how each node was dispatched.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Target names the processor lowering the steps.
	Target string `yaml:"target"`

	// Language is the output language token: c, gappa or vhdl.
	Language string `yaml:"language"`

	// Specs lists CUE target descriptions registered before lowering, on
	// top of the built-in targets. Paths are relative to the scenario file.
	Specs []string `yaml:"specs,omitempty"`

	// Inputs declares the free variables and their formats.
	Inputs map[string]string `yaml:"inputs,omitempty"`

	// Lets declares named subexpressions. Every reference to a let denotes
	// the same node, so a let used twice is a shared subexpression.
	Lets map[string]ExprSpec `yaml:"lets,omitempty"`

	// Steps are lowered in order into one code unit.
	Steps []Step `yaml:"steps"`

	// Assertions validate the output and the dispatch trace.
	// Supported types: output_contains, resolved_by, resolution_order,
	// resolution_count, supported
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RunID is an optional fixed run id for deterministic snapshots.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Step lowers one expression and binds its value to Result.
type Step struct {
	// Result is the variable the value is bound to. Void expressions are
	// emitted as statements and need no result.
	Result string `yaml:"result,omitempty"`

	// Expr is the expression to lower.
	Expr ExprSpec `yaml:"expr"`

	// ExpectError is the lowering error code this step must fail with,
	// e.g. UNSUPPORTED_OPERATION. Only the last step may expect an error.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// ExprSpec describes one node. Exactly one of Op, Var, Ref, Const and
// Exception is set.
type ExprSpec struct {
	Op         string     `yaml:"op,omitempty"`
	Specifier  string     `yaml:"specifier,omitempty"`
	Format     string     `yaml:"format,omitempty"`
	Var        string     `yaml:"var,omitempty"`
	Ref        string     `yaml:"ref,omitempty"`
	Const      *float64   `yaml:"const,omitempty"`
	Exception  string     `yaml:"exception,omitempty"`
	Silent     bool       `yaml:"silent,omitempty"`
	Rounding   string     `yaml:"rounding,omitempty"`
	Commutated bool       `yaml:"commutated,omitempty"`
	Tag        string     `yaml:"tag,omitempty"`
	Args       []ExprSpec `yaml:"args,omitempty"`
}

// Assertion validates the output or the dispatch trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "output_contains": Check the generated text contains Text
	// - "resolved_by": Check an Opcode (and Specifier) was resolved by Processor
	// - "resolution_order": Check Opcodes were resolved in order
	// - "resolution_count": Check Opcode was resolved exactly Count times
	// - "supported": Check the summary answer for Expr equals Expect
	Type string `yaml:"type"`

	// Text is the expected fragment (used by output_contains).
	Text string `yaml:"text,omitempty"`

	// Opcode and Specifier select trace events (used by resolved_by and
	// resolution_count). An empty Specifier matches any specifier.
	Opcode    string `yaml:"opcode,omitempty"`
	Specifier string `yaml:"specifier,omitempty"`

	// Processor is the expected resolving processor (used by resolved_by).
	Processor string `yaml:"processor,omitempty"`

	// Opcodes is the expected resolution order (used by resolution_order).
	Opcodes []string `yaml:"opcodes,omitempty"`

	// Count is the expected number of resolutions (used by resolution_count).
	Count int `yaml:"count,omitempty"`

	// Expr is the node queried against the summary (used by supported).
	Expr *ExprSpec `yaml:"expr,omitempty"`

	// Expect is the expected summary answer (used by supported).
	Expect *bool `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertOutputContains  = "output_contains"
	AssertResolvedBy      = "resolved_by"
	AssertResolutionOrder = "resolution_order"
	AssertResolutionCount = "resolution_count"
	AssertSupported       = "supported"
)

// LoadScenario reads and parses a scenario YAML file. Spec paths are
// resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Target == "" {
		return fmt.Errorf("target is required")
	}

	if _, err := cg.ParseLanguage(s.Language); err != nil {
		return fmt.Errorf("language: %w", err)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for name, format := range s.Inputs {
		if _, err := ir.ParseFormat(format); err != nil {
			return fmt.Errorf("inputs.%s: %w", name, err)
		}
	}

	for name, let := range s.Lets {
		if _, ok := s.Inputs[name]; ok {
			return fmt.Errorf("lets.%s: name is already an input", name)
		}
		if err := validateExpr("lets."+name, let); err != nil {
			return err
		}
	}

	results := make(map[string]bool)
	for i, step := range s.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if err := validateExpr(field+".expr", step.Expr); err != nil {
			return err
		}
		if step.Result == "" && step.Expr.Format != ir.Void.Name {
			return fmt.Errorf("%s: result is required for non-void expressions", field)
		}
		if step.Result != "" {
			if results[step.Result] {
				return fmt.Errorf("%s: result %q is bound twice", field, step.Result)
			}
			results[step.Result] = true
		}
		if step.ExpectError != "" && i != len(s.Steps)-1 {
			return fmt.Errorf("%s: only the last step may expect an error", field)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateExpr checks that each node sets exactly one source.
func validateExpr(field string, e ExprSpec) error {
	set := 0
	for _, present := range []bool{e.Op != "", e.Var != "", e.Ref != "", e.Const != nil, e.Exception != ""} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%s: exactly one of op, var, ref, const or exception is required", field)
	}

	switch {
	case e.Op != "":
		if e.Format == "" {
			return fmt.Errorf("%s: format is required for op %s", field, e.Op)
		}
	case e.Const != nil:
		if e.Format == "" {
			return fmt.Errorf("%s: format is required for const", field)
		}
	}
	if e.Op == "" && len(e.Args) > 0 {
		return fmt.Errorf("%s: args are only allowed on op nodes", field)
	}

	for i, arg := range e.Args {
		if err := validateExpr(fmt.Sprintf("%s.args[%d]", field, i), arg); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutputContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output_contains", index)
		}
	case AssertResolvedBy:
		if a.Opcode == "" || a.Processor == "" {
			return fmt.Errorf("assertions[%d]: opcode and processor are required for resolved_by", index)
		}
	case AssertResolutionOrder:
		if len(a.Opcodes) == 0 {
			return fmt.Errorf("assertions[%d]: opcodes list is required for resolution_order", index)
		}
	case AssertResolutionCount:
		if a.Opcode == "" {
			return fmt.Errorf("assertions[%d]: opcode is required for resolution_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for resolution_count", index)
		}
	case AssertSupported:
		if a.Expr == nil {
			return fmt.Errorf("assertions[%d]: expr is required for supported", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for supported", index)
		}
		if err := validateExpr(fmt.Sprintf("assertions[%d].expr", index), *a.Expr); err != nil {
			return err
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
