// Package store provides SQLite-backed durable storage for lowering runs.
//
// The store is an append-only log with:
//   - Runs: one record per lowered scenario (target, language, status,
//     generated text and its content hash)
//   - Resolutions: the dispatch decisions of a run, one per lowered
//     operation, naming the processor whose table supplied the operator
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), never timestamps. Queries
// order by seq ASC, id ASC COLLATE BINARY so listings are identical across
// reopenings.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Output and node hashes are computed in internal/ir/hash.go with SHA-256
// and domain separation.
package store
