package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/mlcg/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a successful run with minimal required fields.
func createTestRun(id, scenario string) Run {
	output := "double r = fma(x, y, z);\n"
	return Run{
		ID:         id,
		Scenario:   scenario,
		Target:     "generic",
		Language:   "c",
		IRVersion:  ir.IRVersion,
		Status:     StatusOK,
		Output:     output,
		OutputHash: ir.OutputHash("c", output),
		StepHashes: []string{"hash-r"},
	}
}

// createTestResolution creates a resolution with minimal required fields.
func createTestResolution(step, opcode, processor string) Resolution {
	return Resolution{
		Step:      step,
		Opcode:    opcode,
		Signature: "binary64 <- (binary64, binary64, binary64)",
		Language:  "c",
		Processor: processor,
		Operator:  "fma",
	}
}
