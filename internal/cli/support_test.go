package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupportDelegatedOperation(t *testing.T) {
	out, err := execute(t, NewSupportCommand(&RootOptions{Format: "text"}),
		"--target", "x86_avx2", "--op", "Addition", "--formats", "int32,int32,int32")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ x86_avx2 supports Addition int32 <- (int32, int32) in c")
	assert.Contains(t, out, "resolved by generic: symbol(+)")
}

func TestSupportUnsupportedOperation(t *testing.T) {
	out, err := execute(t, NewSupportCommand(&RootOptions{Format: "text"}),
		"--target", "vhdl", "--op", "Addition", "--formats", "int32,int32,int32")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ vhdl does not support")
}

func TestSupportJSON(t *testing.T) {
	out, err := execute(t, NewSupportCommand(&RootOptions{Format: "json"}),
		"--target", "generic", "--op", "FusedMultiplyAdd", "--specifier", "Negate",
		"--formats", "binary64,binary64,binary64,binary64")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   SupportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Supported)
	assert.Equal(t, "generic", resp.Data.ResolvedBy)
	assert.Equal(t, "c", resp.Data.Language)
}

func TestSupportWithDescriptions(t *testing.T) {
	out, err := execute(t, NewSupportCommand(&RootOptions{Format: "text"}),
		"--targets-dir", repoTestdata("targets"),
		"--target", "kv_fma", "--op", "FusedMultiplyAdd", "--specifier", "Standard",
		"--formats", "binary32,binary32,binary32,binary32")
	require.NoError(t, err)
	assert.Contains(t, out, "resolved by kv_fma: function(__builtin_fmaf/3)")
}

func TestSupportWithoutSpecifierMissesVariantRules(t *testing.T) {
	_, err := execute(t, NewSupportCommand(&RootOptions{Format: "text"}),
		"--targets-dir", repoTestdata("targets"),
		"--target", "kv_fma", "--op", "FusedMultiplyAdd",
		"--formats", "binary32,binary32,binary32,binary32")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestSupportCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "unknown target",
			args: []string{"--target", "z80", "--op", "Addition", "--formats", "int32,int32,int32"},
			want: "invalid --target",
		},
		{
			name: "unknown opcode",
			args: []string{"--target", "generic", "--op", "Frobnicate", "--formats", "int32"},
			want: "invalid operation",
		},
		{
			name: "unknown format",
			args: []string{"--target", "generic", "--op", "Addition", "--formats", "int33,int32,int32"},
			want: "invalid operation",
		},
		{
			name: "unknown language",
			args: []string{"--target", "generic", "--language", "cobol", "--op", "Addition", "--formats", "int32,int32,int32"},
			want: "invalid --language",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewSupportCommand(&RootOptions{Format: "text"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestQueryNode(t *testing.T) {
	node, err := queryNode("Addition", "", []string{"int32", " int32", "int32"}, false)
	require.NoError(t, err)
	assert.Len(t, node.Inputs(), 2)
	assert.Equal(t, "int32", node.Format().String())

	_, err = queryNode("Addition", "", nil, false)
	assert.Error(t, err)
}
