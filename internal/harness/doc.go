// Package harness runs lowering scenarios: small node graphs lowered through
// a target, with expectations on the generated text and on which processor
// resolved each node.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: fma_negate_binary64
//	description: "Negated FMA lowers to a negated libm call"
//	target: generic
//	language: c
//	specs:
//	  - targets/kv_fma.cue
//	inputs: { x: binary64, y: binary64, z: binary64 }
//	lets:
//	  prod: { op: Multiplication, format: binary64, args: [{var: x}, {var: y}] }
//	steps:
//	  - result: r
//	    expr:
//	      op: FusedMultiplyAdd
//	      specifier: Negate
//	      format: binary64
//	      args: [{var: x}, {var: y}, {var: z}]
//	assertions:
//	  - type: output_contains
//	    text: "-fma(x, y, z)"
//	  - type: resolved_by
//	    opcode: FusedMultiplyAdd
//	    processor: generic
//
// A step may end the scenario with expect_error, naming the lowering error
// code it must fail with. A failed step leaves no output.
//
// # Assertion Types
//
//   - output_contains: Verifies the generated text contains a fragment
//   - resolved_by: Verifies an opcode was resolved by a given processor
//   - resolution_order: Verifies opcodes were resolved in order
//   - resolution_count: Verifies an opcode was resolved exactly N times
//   - supported: Verifies the supported-operation summary answer for a node
//
// # Deterministic Testing
//
// Every run uses a fixed run id (scenario.run_id or "test-run-default") and
// a fresh in-memory run log, so the trace read back from the log is
// identical across runs and can be compared with golden snapshots.
package harness
