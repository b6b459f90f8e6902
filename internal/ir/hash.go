package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainNode   = "mlcg/node/v1"
	DomainOutput = "mlcg/output/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NodeHash computes the content hash of the graph rooted at n.
// Structurally identical graphs hash identically regardless of node identity;
// shared subexpressions are hashed once.
func NodeHash(n Node) (string, error) {
	h := nodeHasher{memo: make(map[Node]string)}
	return h.hash(n)
}

// MustNodeHash is like NodeHash but panics on error.
// Use only in tests or when the graph is known to be valid.
func MustNodeHash(n Node) string {
	id, err := NodeHash(n)
	if err != nil {
		panic(err)
	}
	return id
}

// OutputHash computes the content hash of generated text.
func OutputHash(language, text string) string {
	return hashWithDomain(DomainOutput, []byte(language+"\x00"+text))
}

type nodeHasher struct {
	memo map[Node]string
}

func (h nodeHasher) hash(n Node) (string, error) {
	if id, ok := h.memo[n]; ok {
		return id, nil
	}

	inputs := make([]any, 0, len(n.Inputs()))
	for i, in := range n.Inputs() {
		id, err := h.hash(in)
		if err != nil {
			return "", fmt.Errorf("input %d: %w", i, err)
		}
		inputs = append(inputs, id)
	}

	attrs := n.Attributes()
	obj := map[string]any{
		"opcode":     string(n.Opcode()),
		"specifier":  string(n.Specifier()),
		"format":     n.Format().String(),
		"inputs":     inputs,
		"silent":     attrs.Silent,
		"rounding":   attrs.RoundingMode.String(),
		"commutated": attrs.Commutated,
		"likely":     attrs.Likely.String(),
		"tag":        attrs.Tag,
	}
	switch v := n.(type) {
	case *Variable:
		obj["name"] = v.Name
	case *Constant:
		obj["value"] = canonicalValue(v.Value)
	case *Table:
		obj["name"] = v.Name
		dims := make([]any, len(v.Dimensions))
		for i, d := range v.Dimensions {
			dims[i] = d
		}
		obj["dimensions"] = dims
		data := make([]any, len(v.Data))
		for i, x := range v.Data {
			data[i] = FloatValue(x).Hex()
		}
		obj["data"] = data
	case *Call:
		obj["function"] = v.Fn.Name
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("NodeHash: failed to marshal %s: %w", n.Opcode(), err)
	}
	id := hashWithDomain(DomainNode, canonical)
	h.memo[n] = id
	return id, nil
}

// canonicalValue encodes constants as strings; floats use the exact
// hexadecimal form.
func canonicalValue(v Value) any {
	switch val := v.(type) {
	case FloatValue:
		return "f:" + val.Hex()
	case IntValue:
		return "i:" + val.String()
	case ExceptionValue:
		return "e:" + val.String()
	}
	return fmt.Sprintf("?:%v", v)
}
