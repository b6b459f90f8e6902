package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// kvFMATarget overrides single-precision FMA on top of generic.
const kvFMATarget = `
package test

target: kv_fma: {
	doc: "GCC builtin FMA"
	parents: ["generic"]
	rules: [{
		language:  "c"
		opcode:    "FusedMultiplyAdd"
		specifier: "Standard"
		condition: "std"
		signature: {match: "exact", formats: ["binary32", "binary32", "binary32", "binary32"]}
		operator: {kind: "function", name: "__builtin_fmaf", arity: 3}
	}]
}
`

// badArityTarget declares a binary symbol for a unary signature.
const badArityTarget = `
package test

target: bad_arity: {
	parents: ["generic"]
	rules: [{
		language: "c"
		opcode:   "Negation"
		signature: {match: "exact", formats: ["int32", "int32"]}
		operator: {kind: "symbol", symbol: "-", arity: 2}
	}]
}
`

// writeTargetsDir writes CUE files into a fresh directory.
func writeTargetsDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeWithStderr(t, cmd, args...)
	return out, err
}

// executeWithStderr runs cmd with args and returns stdout and stderr.
func executeWithStderr(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), errBuf.String(), err
}

// repoTestdata returns a path under the repository's testdata directory.
func repoTestdata(parts ...string) string {
	return filepath.Join(append([]string{"..", "..", "testdata"}, parts...)...)
}
