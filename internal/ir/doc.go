// Package ir provides the typed intermediate representation consumed by the
// lowering engine.
//
// The package holds the node contract (opcode, specifier, output format,
// ordered inputs, attributes), the concrete node types used to build
// expression graphs, numeric formats and type signatures, a bounded
// structural dump used in diagnostics, content hashing, and the compiled
// form of target descriptions.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key constraints:
//   - Nodes are immutable once handed to a generator. Builders mutate in place
//     and return the same pointer so graphs can be assembled fluently.
//   - A node may be an input of several parents (shared subexpression). Every
//     dispatch decision reads one node and its direct inputs only.
//   - Formats are comparable values: == is exact format equality.
package ir
