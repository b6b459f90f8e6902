// Package codegen implements the retargetable instruction-selection and
// lowering engine.
//
// A Processor owns one code-generation Table per output language, an
// analogous approximation-table map, and an ordered list of declared parent
// processors. Dispatching a node walks the processor itself, then every
// ancestor of its flattened hierarchy, and renders the first matching
// Operator. There is no fallback rendering: a node no processor in the chain
// can handle aborts generation with an UNSUPPORTED_OPERATION error.
//
// ARCHITECTURE:
//
// Tables are nested ordered lists, keyed by (opcode, specifier):
//
//	opcode -> specifier -> [Branch{Condition, [Rule{TypeMatch, value}]}]
//
// Lookup walks branches in declared order. Within a branch whose condition
// holds, rules are tried in declared order and the first type match wins.
// A branch whose condition holds but whose rules all fail does not end the
// walk; the next branch is tried. Ordering is the only disambiguation
// mechanism: tables never search for a most-specific match.
//
// Hierarchy flattening is breadth-first over declared parents, deduplicated
// in first-discovered order. The order is part of the contract: table
// precedence across processors depends on it.
//
// The Summary is the union of every (language, opcode, specifier, condition,
// type match) pattern of a processor and its ancestors. It is computed once
// at construction and answers support queries without materializing an
// operator. Predicates are compared by identity, so equivalent predicates
// declared by different processors stay distinct entries.
//
// CONCURRENCY:
//
// Processors and tables are immutable after construction and safe for
// concurrent dispatch. CodeObject and Generator are caller-owned and must be
// used from one goroutine.
package codegen
