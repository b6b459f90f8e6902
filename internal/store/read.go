package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/mlcg/internal/queryir"
	"github.com/roach88/mlcg/internal/querysql"
)

// Schema lists the queryable columns of the run log, in scan order.
var Schema = queryir.Schema{
	"runs": {
		"id", "seq", "scenario", "target", "language", "ir_version",
		"status", "error_code", "error", "output", "output_hash", "step_hashes",
	},
	"resolutions": {
		"run_id", "seq", "step", "opcode", "specifier", "signature", "language", "processor", "operator",
	},
}

// RunFilter selects runs. Empty fields match any value.
type RunFilter struct {
	ID       string
	Scenario string
	Target   string
	Language string
	Status   string
}

func (f RunFilter) predicate() queryir.Predicate {
	return queryir.AllOf(
		queryir.EqualsIfSet("id", f.ID),
		queryir.EqualsIfSet("scenario", f.Scenario),
		queryir.EqualsIfSet("target", f.Target),
		queryir.EqualsIfSet("language", f.Language),
		queryir.EqualsIfSet("status", f.Status),
	)
}

// ResolutionFilter selects resolutions. Empty fields match any value; Run
// restricts the result to resolutions of matching runs.
type ResolutionFilter struct {
	RunID     string
	Opcode    string
	Specifier string
	Processor string
	Run       RunFilter
}

func (f ResolutionFilter) predicate() queryir.Predicate {
	return queryir.AllOf(
		queryir.EqualsIfSet("run_id", f.RunID),
		queryir.EqualsIfSet("opcode", f.Opcode),
		queryir.EqualsIfSet("specifier", f.Specifier),
		queryir.EqualsIfSet("processor", f.Processor),
	)
}

// query validates and compiles q, then runs it.
func (s *Store) query(ctx context.Context, q queryir.Query) (*sql.Rows, error) {
	if res := queryir.Validate(q, Schema); !res.Valid {
		return nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}
	text, params, err := querysql.Compile(q)
	if err != nil {
		return nil, err
	}
	return s.db.QueryContext(ctx, text, params...)
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	runs, err := s.FindRuns(ctx, RunFilter{ID: id})
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, sql.ErrNoRows
	}
	return runs[0], nil
}

// ListRuns returns all runs with deterministic ordering: seq ASC, id ASC.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return s.FindRuns(ctx, RunFilter{})
}

// FindRuns returns the runs matching f, ordered by seq then id.
//
// Returns an empty slice (not nil) if none match.
func (s *Store) FindRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	rows, err := s.query(ctx, queryir.Select{
		From:    "runs",
		Columns: Schema["runs"],
		Filter:  f.predicate(),
		OrderBy: []string{"seq", "id"},
	})
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// ReadResolutions returns the resolutions of a run in dispatch order.
//
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadResolutions(ctx context.Context, runID string) ([]Resolution, error) {
	return s.FindResolutions(ctx, ResolutionFilter{RunID: runID})
}

// FindResolutions returns the resolutions matching f, in run order and
// then dispatch order.
//
// Returns an empty slice (not nil) if none match.
func (s *Store) FindResolutions(ctx context.Context, f ResolutionFilter) ([]Resolution, error) {
	var q queryir.Query = queryir.Select{
		From:    "resolutions",
		Columns: Schema["resolutions"],
		Filter:  f.predicate(),
		OrderBy: []string{"seq"},
	}
	if f.RunID == "" || f.Run != (RunFilter{}) {
		// Runs order the result across runs.
		q = queryir.Join{
			Left: queryir.Select{
				From:    "runs",
				Filter:  f.Run.predicate(),
				OrderBy: []string{"seq"},
			},
			Right: q.(queryir.Select),
			On:    queryir.FieldEquals{Field: "id", Other: "run_id"},
		}
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
	}
	defer rows.Close()

	resolutions := []Resolution{}
	for rows.Next() {
		var r Resolution
		if err := rows.Scan(
			&r.RunID, &r.Seq, &r.Step, &r.Opcode, &r.Specifier,
			&r.Signature, &r.Language, &r.Processor, &r.Operator,
		); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		resolutions = append(resolutions, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolutions: %w", err)
	}

	return resolutions, nil
}

// ProcessorUsage counts resolutions per processor across all runs, most
// used first and ties broken by name.
func (s *Store) ProcessorUsage(ctx context.Context) ([]ProcessorCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT processor, COUNT(*) AS n
		FROM resolutions
		GROUP BY processor
		ORDER BY n DESC, processor COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query processor usage: %w", err)
	}
	defer rows.Close()

	usage := []ProcessorCount{}
	for rows.Next() {
		var pc ProcessorCount
		if err := rows.Scan(&pc.Processor, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan processor usage: %w", err)
		}
		usage = append(usage, pc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processor usage: %w", err)
	}

	return usage, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

var (
	_ rowScanner = (*sql.Row)(nil)
	_ rowScanner = (*sql.Rows)(nil)
)

// scanRun scans one runs row.
func scanRun(row rowScanner) (Run, error) {
	var run Run
	var hashesJSON string

	if err := row.Scan(
		&run.ID, &run.Seq, &run.Scenario, &run.Target, &run.Language, &run.IRVersion,
		&run.Status, &run.ErrorCode, &run.Error, &run.Output, &run.OutputHash, &hashesJSON,
	); err != nil {
		return Run{}, err
	}

	if err := json.Unmarshal([]byte(hashesJSON), &run.StepHashes); err != nil {
		return Run{}, fmt.Errorf("unmarshal step hashes: %w", err)
	}

	return run, nil
}
