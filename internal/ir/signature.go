package ir

import "strings"

// Signature is the ordered tuple (output, input1, input2, ...).
type Signature []Format

// SignatureOf computes the type signature of n from its own format and the
// formats of its direct inputs.
func SignatureOf(n Node) Signature {
	inputs := n.Inputs()
	sig := make(Signature, 0, len(inputs)+1)
	sig = append(sig, n.Format())
	for _, in := range inputs {
		sig = append(sig, in.Format())
	}
	return sig
}

// Output returns the output format.
func (s Signature) Output() Format {
	if len(s) == 0 {
		return Format{}
	}
	return s[0]
}

// Arity returns the number of inputs.
func (s Signature) Arity() int {
	if len(s) == 0 {
		return 0
	}
	return len(s) - 1
}

// Equal reports exact equality position by position.
func (s Signature) Equal(other Signature) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders "out <- (in1, in2)".
func (s Signature) String() string {
	if len(s) == 0 {
		return "()"
	}
	ins := make([]string, 0, len(s)-1)
	for _, f := range s[1:] {
		ins = append(ins, f.String())
	}
	return s[0].String() + " <- (" + strings.Join(ins, ", ") + ")"
}

// ParseSignature parses a list of format names, output first.
func ParseSignature(names []string) (Signature, error) {
	sig := make(Signature, 0, len(names))
	for _, name := range names {
		f, err := ParseFormat(name)
		if err != nil {
			return nil, err
		}
		sig = append(sig, f)
	}
	return sig, nil
}
