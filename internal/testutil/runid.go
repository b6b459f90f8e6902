package testutil

// DefaultRunID is returned by a FixedRunID created without an id.
const DefaultRunID = "test-run-default"

// FixedRunID hands out one run id for every lowering run.
//
// Golden snapshots embed the run id, so scenarios lowered with the same
// FixedRunID produce byte-identical snapshots. It satisfies
// store.IDGenerator and is safe for concurrent use.
type FixedRunID struct {
	id string
}

// NewFixedRunID returns a generator yielding id, or DefaultRunID when id is
// empty. Scenarios set it with:
//
//	run_id: "fma-negate-0001"
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed id.
func (g *FixedRunID) Generate() string {
	return g.id
}
