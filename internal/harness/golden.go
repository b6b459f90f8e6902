package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/mlcg/internal/ir"
)

// Snapshot captures the observable outcome of a scenario: the generated
// text and the dispatch trace. Content hashes are left out so snapshots
// stay readable and reviewable.
type Snapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunID        string       `json:"run_id"`
	Output       string       `json:"output"`
	ErrorCode    string       `json:"error_code,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization. ir.MarshalCanonical only handles primitives, slices and
// maps.
func (s *Snapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":       event.Seq,
			"step":      event.Step,
			"opcode":    event.Opcode,
			"signature": event.Signature,
			"processor": event.Processor,
			"operator":  event.Operator,
		}
		if event.Specifier != "" {
			eventMap["specifier"] = event.Specifier
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"run_id":        s.RunID,
		"output":        s.Output,
		"trace":         traceList,
	}
	if s.ErrorCode != "" {
		result["error_code"] = s.ErrorCode
	}
	return result
}

// MarshalSnapshot returns the canonical JSON snapshot of a result.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := Snapshot{
		ScenarioName: scenarioName,
		RunID:        result.RunID,
		Output:       result.Output,
		ErrorCode:    result.ErrorCode,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshotJSON, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshotJSON)

	return nil
}
