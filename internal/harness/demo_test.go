package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// projectRoot returns the project root directory.
// Tests run from the package directory, but the demo scenarios live in the
// repository's testdata.
func projectRoot() string {
	root, _ := filepath.Abs("../..")
	return root
}

func demoPath(name string) string {
	return filepath.Join(projectRoot(), "testdata", "scenarios", name)
}

// TestDemoScenarios runs the canonical scenarios shipped with the
// repository. They double as usage examples for `mlcg test`.
func TestDemoScenarios(t *testing.T) {
	tests := []struct {
		file       string
		name       string
		errorCode  string
		traceLen   int
		wantOutput bool
	}{
		{file: "int_addition.yaml", name: "int_addition", traceLen: 1, wantOutput: true},
		{file: "fma_negate.yaml", name: "fma_negate", traceLen: 1, wantOutput: true},
		{file: "identity_conversion.yaml", name: "identity_conversion", traceLen: 1, wantOutput: true},
		{file: "unsupported_vhdl_c.yaml", name: "unsupported_vhdl_c", errorCode: "UNSUPPORTED_OPERATION"},
		{file: "avx2_delegation.yaml", name: "avx2_delegation", traceLen: 2, wantOutput: true},
		{file: "kv_fma_override.yaml", name: "kv_fma_override", traceLen: 2, wantOutput: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario, err := LoadScenario(demoPath(tt.file))
			require.NoError(t, err, "failed to load scenario from %s", tt.file)

			assert.Equal(t, tt.name, scenario.Name)
			assert.NotEmpty(t, scenario.Description)

			result, err := Run(scenario)
			require.NoError(t, err)
			require.NotNil(t, result)

			assert.True(t, result.Pass, "scenario should pass, errors: %v", result.Errors)
			assert.Equal(t, tt.errorCode, result.ErrorCode)
			assert.Len(t, result.Trace, tt.traceLen)
			if tt.wantOutput {
				assert.NotEmpty(t, result.Output)
			} else {
				assert.Empty(t, result.Output)
			}
		})
	}
}

func TestDemoScenarioDeterminism(t *testing.T) {
	scenario, err := LoadScenario(demoPath("avx2_delegation.yaml"))
	require.NoError(t, err)

	result1, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result1.Pass)

	result2, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result2.Pass)

	assert.Equal(t, result1.Output, result2.Output)
	assert.Equal(t, result1.Trace, result2.Trace)
	assert.Equal(t, "avx2-delegation-0001", result1.RunID)
}

func TestDemoTraceSeqIncreasing(t *testing.T) {
	scenario, err := LoadScenario(demoPath("kv_fma_override.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	for i := 1; i < len(result.Trace); i++ {
		assert.Greater(t, result.Trace[i].Seq, result.Trace[i-1].Seq,
			"trace[%d].Seq=%d <= trace[%d].Seq=%d",
			i, result.Trace[i].Seq, i-1, result.Trace[i-1].Seq)
	}
}

func TestDemoSpecPathsResolvedFromScenario(t *testing.T) {
	scenario, err := LoadScenario(demoPath("kv_fma_override.yaml"))
	require.NoError(t, err)

	require.Len(t, scenario.Specs, 1)
	want := filepath.Join(projectRoot(), "testdata", "targets", "kv_fma.cue")
	assert.Equal(t, want, scenario.Specs[0])
}

func TestDemoSuite(t *testing.T) {
	result, err := RunSuite([]string{filepath.Join(projectRoot(), "testdata", "scenarios")})
	require.NoError(t, err)

	assert.Equal(t, 6, result.TotalScenarios)
	assert.Equal(t, 6, result.Passed)
	assert.Empty(t, result.Failures)
}
