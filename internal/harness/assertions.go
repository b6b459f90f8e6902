package harness

import (
	"fmt"
	"strings"

	cg "github.com/roach88/mlcg/internal/codegen"
	"github.com/roach88/mlcg/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s.%s by %s\n",
				event.Seq, event.Step, event.Opcode, specifierText(event.Specifier), event.Processor)
		}
	}

	return buf.String()
}

func specifierText(s string) string {
	return ir.Specifier(s).String()
}

// matchesEvent reports whether event resolved opcode with the given
// specifier. An empty specifier matches any.
func matchesEvent(event TraceEvent, opcode, specifier string) bool {
	return event.Opcode == opcode && (specifier == "" || event.Specifier == specifier)
}

// assertOutputContains checks the generated text contains the fragment.
func assertOutputContains(result *Result, assertion Assertion) error {
	if strings.Contains(result.Output, assertion.Text) {
		return nil
	}
	actual := fmt.Sprintf("output %q", result.Output)
	if result.Output == "" {
		actual = "no output"
	}
	return &AssertionError{
		Type:     AssertOutputContains,
		Expected: fmt.Sprintf("output containing %q", assertion.Text),
		Actual:   actual,
	}
}

// assertResolvedBy checks some resolution of the opcode came from the
// named processor.
func assertResolvedBy(trace []TraceEvent, assertion Assertion) error {
	var seen []string
	for _, event := range trace {
		if !matchesEvent(event, assertion.Opcode, assertion.Specifier) {
			continue
		}
		if event.Processor == assertion.Processor {
			return nil
		}
		seen = append(seen, event.Processor)
	}

	actual := "opcode not found in trace"
	if len(seen) > 0 {
		actual = fmt.Sprintf("resolved by %s", strings.Join(seen, ", "))
	}
	return &AssertionError{
		Type:     AssertResolvedBy,
		Expected: fmt.Sprintf("%s.%s resolved by %s", assertion.Opcode, specifierText(assertion.Specifier), assertion.Processor),
		Actual:   actual,
		Trace:    trace,
	}
}

// assertResolutionOrder checks opcodes first appear in the given order.
// Opcodes don't need to be consecutive (intervening resolutions are allowed).
func assertResolutionOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if positions[event.Opcode] == 0 {
			positions[event.Opcode] = i + 1 // 1-indexed for readability
		}
	}

	for _, opcode := range assertion.Opcodes {
		if positions[opcode] == 0 {
			return &AssertionError{
				Type:     AssertResolutionOrder,
				Expected: fmt.Sprintf("all opcodes present: %v", assertion.Opcodes),
				Actual:   fmt.Sprintf("missing opcode: %s", opcode),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Opcodes); i++ {
		prev := assertion.Opcodes[i-1]
		curr := assertion.Opcodes[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertResolutionOrder,
				Expected: fmt.Sprintf("opcodes in order: %v", assertion.Opcodes),
				Actual:   fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertResolutionCount checks the opcode was resolved exactly Count times.
func assertResolutionCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchesEvent(event, assertion.Opcode, assertion.Specifier) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertResolutionCount,
			Expected: fmt.Sprintf("%d resolutions of %s", assertion.Count, assertion.Opcode),
			Actual:   fmt.Sprintf("%d resolutions", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertSupported checks the processor's summary answer for the node.
func assertSupported(actx *AssertionContext, assertion Assertion) error {
	n, err := actx.build(*assertion.Expr)
	if err != nil {
		return fmt.Errorf("supported: %w", err)
	}

	got := actx.Processor.IsSupported(n, actx.Language)
	if got == *assertion.Expect {
		return nil
	}
	return &AssertionError{
		Type:     AssertSupported,
		Expected: fmt.Sprintf("supported=%t for %s", *assertion.Expect, ir.DescribeNode(n)),
		Actual:   fmt.Sprintf("supported=%t on %s/%s", got, actx.Processor.Name(), actx.Language),
	}
}

// AssertionContext provides the lowering context for summary assertions.
type AssertionContext struct {
	Processor *cg.Processor
	Language  cg.Language

	build func(ExprSpec) (ir.Node, error)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides the processor for supported assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOutputContains:
			err = assertOutputContains(result, assertion)
		case AssertResolvedBy:
			err = assertResolvedBy(result.Trace, assertion)
		case AssertResolutionOrder:
			err = assertResolutionOrder(result.Trace, assertion)
		case AssertResolutionCount:
			err = assertResolutionCount(result.Trace, assertion)
		case AssertSupported:
			if actx == nil || actx.Processor == nil || actx.build == nil {
				err = fmt.Errorf("assertion[%d]: supported requires a processor context", i)
			} else {
				err = assertSupported(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
