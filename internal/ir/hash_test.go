package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSum(name string) Node {
	x := NewVariable(name, Binary64)
	return NewOp(OpAddition, Binary64, x, NewFloat(1, Binary64))
}

func TestNodeHashDeterminism(t *testing.T) {
	id1, err := NodeHash(buildSum("x"))
	require.NoError(t, err)

	id2, err := NodeHash(buildSum("x"))
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "NodeHash must depend on structure, not node identity")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestNodeHashChangesWithContent(t *testing.T) {
	base := MustNodeHash(buildSum("x"))

	x := NewVariable("x", Binary64)
	silent := NewOp(OpAddition, Binary64, x, NewFloat(1, Binary64)).WithSilent(true)
	narrow := NewOp(OpAddition, Binary32, NewVariable("x", Binary32), NewFloat(1, Binary32))
	other := NewOp(OpAddition, Binary64, x, NewFloat(2, Binary64))

	assert.NotEqual(t, base, MustNodeHash(buildSum("y")), "variable names are part of the hash")
	assert.NotEqual(t, base, MustNodeHash(silent), "attributes are part of the hash")
	assert.NotEqual(t, base, MustNodeHash(narrow), "formats are part of the hash")
	assert.NotEqual(t, base, MustNodeHash(other), "constant values are part of the hash")
}

func TestNodeHashSharedSubexpression(t *testing.T) {
	x := NewVariable("x", Binary64)
	sq := NewOp(OpMultiplication, Binary64, x, x)
	shared := NewOp(OpAddition, Binary64, sq, sq)

	dup := NewOp(OpAddition, Binary64,
		NewOp(OpMultiplication, Binary64, x, x),
		NewOp(OpMultiplication, Binary64, x, x))

	assert.Equal(t, MustNodeHash(shared), MustNodeHash(dup))
}

func TestOutputHashDomainSeparation(t *testing.T) {
	assert.NotEqual(t, OutputHash("c", "x"), OutputHash("gappa", "x"))
	assert.Equal(t, OutputHash("c", "x"), OutputHash("c", "x"))
}

func TestMarshalCanonical(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"b":    int64(2),
		"a":    []any{"x<y", true},
		"name": "é",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x<y",true],"b":2,"name":"é"}`, string(got))

	_, err = MarshalCanonical(map[string]any{"f": 1.5})
	assert.Error(t, err, "floats must be encoded by the caller")
}
