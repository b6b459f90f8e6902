package store

import (
	"context"
	"fmt"

	"github.com/roach88/mlcg/internal/ir"
)

// WriteRun records a run and its resolutions in a single transaction.
//
// The run is stamped with the next seq of the store clock unless it already
// carries one; the assigned seq is returned. Uses ON CONFLICT(id) DO NOTHING
// for idempotency: rewriting a recorded run leaves the first record intact.
// Resolutions are renumbered from 1 in the order given.
func (s *Store) WriteRun(ctx context.Context, run Run, resolutions []Resolution) (int64, error) {
	if run.ID == "" {
		return 0, fmt.Errorf("write run: id is required")
	}
	if run.Status != StatusOK && run.Status != StatusFailed {
		return 0, fmt.Errorf("write run: invalid status %q", run.Status)
	}
	if run.Seq == 0 {
		run.Seq = s.clock.Next()
	}

	hashes := run.StepHashes
	if hashes == nil {
		hashes = []string{}
	}
	hashesJSON, err := ir.MarshalCanonical(hashes)
	if err != nil {
		return 0, fmt.Errorf("write run: step hashes: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, scenario, target, language, ir_version, status, error_code, error, output, output_hash, step_hashes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Seq,
		run.Scenario,
		run.Target,
		run.Language,
		run.IRVersion,
		run.Status,
		run.ErrorCode,
		run.Error,
		run.Output,
		run.OutputHash,
		string(hashesJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("write run: insert: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("write run: rows affected: %w", err)
	}
	if inserted == 0 {
		// Already recorded - keep the original seq and resolutions
		var seq int64
		if err := tx.QueryRowContext(ctx, `SELECT seq FROM runs WHERE id = ?`, run.ID).Scan(&seq); err != nil {
			return 0, fmt.Errorf("write run: select existing: %w", err)
		}
		return seq, tx.Commit()
	}

	for i, r := range resolutions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO resolutions
			(run_id, seq, step, opcode, specifier, signature, language, processor, operator)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			int64(i+1),
			r.Step,
			r.Opcode,
			r.Specifier,
			r.Signature,
			r.Language,
			r.Processor,
			r.Operator,
		)
		if err != nil {
			return 0, fmt.Errorf("write run: resolution %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write run: commit: %w", err)
	}

	return run.Seq, nil
}
