package ir

// Version constants for the IR and the generator.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// GeneratorVersion is the mlcg generator version.
	GeneratorVersion = "0.1.0"
)
