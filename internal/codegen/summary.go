package codegen

import "github.com/roach88/mlcg/internal/ir"

// Pattern is one (language, opcode, specifier, condition, type match) entry
// of a code-generation table. Predicates are compared by identity.
type Pattern struct {
	Language  Language
	Opcode    ir.Opcode
	Specifier ir.Specifier
	Condition *Condition
	Signature *TypeMatch
}

// Key returns the table key of the pattern.
func (p Pattern) Key() Key {
	return Key{Opcode: p.Opcode, Specifier: p.Specifier}
}

type summaryKey struct {
	lang Language
	key  Key
}

// Summary is the supported-operation summary of a processor hierarchy: the
// set of every pattern registered by the processor or any ancestor.
//
// It is a structural mirror of table shape, not a ranked list, and it never
// yields an operator. It agrees with dispatch: a node is supported per the
// summary exactly when Processor.Resolve succeeds.
type Summary struct {
	set   map[Pattern]struct{}
	byKey map[summaryKey][]Pattern
	order []Pattern
}

// newSummary builds the union of the code-generation tables of chain.
func newSummary(chain []*Processor) *Summary {
	s := &Summary{
		set:   make(map[Pattern]struct{}),
		byKey: make(map[summaryKey][]Pattern),
	}
	for _, proc := range chain {
		for _, lang := range proc.tableLanguages() {
			table := proc.tables[lang]
			for _, k := range table.Keys() {
				for _, branch := range table.Branches(k) {
					for _, rule := range branch.Rules {
						s.add(Pattern{
							Language:  lang,
							Opcode:    k.Opcode,
							Specifier: k.Specifier,
							Condition: branch.Condition,
							Signature: rule.Signature,
						})
					}
				}
			}
		}
	}
	return s
}

func (s *Summary) add(p Pattern) {
	if _, ok := s.set[p]; ok {
		return
	}
	s.set[p] = struct{}{}
	sk := summaryKey{lang: p.Language, key: p.Key()}
	s.byKey[sk] = append(s.byKey[sk], p)
	s.order = append(s.order, p)
}

// Supports reports exact membership of p.
func (s *Summary) Supports(p Pattern) bool {
	_, ok := s.set[p]
	return ok
}

// IsSupported reports whether some pattern for n's key in lang has a
// condition holding on n and a type match accepting n's signature.
func (s *Summary) IsSupported(n ir.Node, lang Language) bool {
	patterns := s.byKey[summaryKey{lang: lang, key: KeyOf(n)}]
	if len(patterns) == 0 {
		return false
	}
	sig := ir.SignatureOf(n)
	for _, p := range patterns {
		if p.Condition.Holds(n) && p.Signature.Matches(n, sig) {
			return true
		}
	}
	return false
}

// Patterns returns every pattern in first-registered order.
func (s *Summary) Patterns() []Pattern {
	out := make([]Pattern, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of distinct patterns.
func (s *Summary) Len() int {
	return len(s.order)
}
