package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Dump renders a bounded structural dump of n: one line per node with opcode,
// specifier, type signature, leaf payload and non-default attributes. Inputs
// are expanded up to depth levels; deeper inputs are elided as "...".
//
// The text is NFC-normalized so dumps compare byte-for-byte.
func Dump(n Node, depth int) string {
	var b strings.Builder
	dumpNode(&b, n, depth, 0)
	return norm.NFC.String(strings.TrimSuffix(b.String(), "\n"))
}

func dumpNode(b *strings.Builder, n Node, depth, level int) {
	indent := strings.Repeat("  ", level)
	b.WriteString(indent)
	b.WriteString(DescribeNode(n))
	b.WriteByte('\n')

	inputs := n.Inputs()
	if len(inputs) == 0 {
		return
	}
	if depth <= 0 {
		b.WriteString(indent)
		b.WriteString("  ...\n")
		return
	}
	for _, in := range inputs {
		dumpNode(b, in, depth-1, level+1)
	}
}

// DescribeNode renders the single-line description used by Dump.
func DescribeNode(n Node) string {
	var b strings.Builder
	b.WriteString(string(n.Opcode()))
	if s := n.Specifier(); s != SpecifierNone {
		b.WriteByte('.')
		b.WriteString(string(s))
	}
	b.WriteByte(' ')
	if len(n.Inputs()) == 0 {
		b.WriteString(n.Format().String())
	} else {
		b.WriteString(SignatureOf(n).String())
	}

	switch v := n.(type) {
	case *Variable:
		fmt.Fprintf(&b, " name=%s", v.Name)
	case *Constant:
		fmt.Fprintf(&b, " value=%s", v.Value)
	case *Table:
		fmt.Fprintf(&b, " table=%s%v", v.Name, v.Dimensions)
	case *Call:
		fmt.Fprintf(&b, " fn=%s", v.Fn.Name)
	}

	if attrs := describeAttributes(n.Attributes()); attrs != "" {
		b.WriteString(" [")
		b.WriteString(attrs)
		b.WriteByte(']')
	}
	return b.String()
}

func describeAttributes(a Attributes) string {
	var parts []string
	if a.Silent {
		parts = append(parts, "silent")
	}
	if a.RoundingMode != RoundUnset {
		parts = append(parts, "rounding="+a.RoundingMode.String())
	}
	if a.Commutated {
		parts = append(parts, "commutated")
	}
	if a.Likely != LikelyUnknown {
		parts = append(parts, "likely="+a.Likely.String())
	}
	if a.Tag != "" {
		parts = append(parts, "tag="+a.Tag)
	}
	return strings.Join(parts, " ")
}

// MarshalCanonical produces canonical JSON for hashing.
// Object keys are sorted by UTF-16 code units, strings are NFC normalized and
// HTML characters are not escaped. Only string, int, int64, bool, []any and
// map[string]any are accepted; floats must be encoded by the caller.
func MarshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(val)
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		return marshalCanonicalArray(val)
	case []string:
		arr := make([]any, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return marshalCanonicalArray(arr)
	case map[string]any:
		return marshalCanonicalObject(val)
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func marshalCanonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func marshalCanonicalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// compareUTF16 orders strings by UTF-16 code units.
// Go's default string comparison uses UTF-8 which produces a different order.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
