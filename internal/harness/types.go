package harness

// TraceEvent is one dispatch decision of a lowering run, as read back from
// the run log.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Step      string `json:"step"`
	Opcode    string `json:"opcode"`
	Specifier string `json:"specifier,omitempty"`
	Signature string `json:"signature"`
	Processor string `json:"processor"`
	Operator  string `json:"operator"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step lowered as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	// RunID identifies the run in the run log.
	RunID string `json:"run_id"`

	// Output is the generated unit. It is empty when lowering failed: no
	// partial text is ever kept.
	Output string `json:"output"`

	// ErrorCode is the lowering error code when a step failed.
	ErrorCode string `json:"error_code,omitempty"`

	// Trace lists the dispatch decisions in lowering order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
