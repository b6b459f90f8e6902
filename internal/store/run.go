package store

// Run status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one recorded lowering unit: a scenario lowered through one target
// into one language. Failed runs carry no output.
type Run struct {
	ID         string   `json:"id"`
	Seq        int64    `json:"seq"`
	Scenario   string   `json:"scenario"`
	Target     string   `json:"target"`
	Language   string   `json:"language"`
	IRVersion  string   `json:"ir_version"`
	Status     string   `json:"status"`
	ErrorCode  string   `json:"error_code,omitempty"`
	Error      string   `json:"error,omitempty"`
	Output     string   `json:"output,omitempty"`
	OutputHash string   `json:"output_hash,omitempty"`
	StepHashes []string `json:"step_hashes"` // content hash of each lowered root
}

// Resolution is one recorded dispatch decision of a run.
type Resolution struct {
	RunID     string `json:"run_id"`
	Seq       int64  `json:"seq"` // position within the run, from 1
	Step      string `json:"step"`
	Opcode    string `json:"opcode"`
	Specifier string `json:"specifier,omitempty"`
	Signature string `json:"signature"`
	Language  string `json:"language"`
	Processor string `json:"processor"`
	Operator  string `json:"operator"`
}

// ProcessorCount is the number of resolutions a processor supplied.
type ProcessorCount struct {
	Processor string `json:"processor"`
	Count     int    `json:"count"`
}
