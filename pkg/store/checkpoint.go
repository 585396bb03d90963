package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"mutaforge/pkg/model"
)

// Checkpoint is the single JSON document written after each round
// (spec.md §4.5 resumption, §8 property 6), holding everything the
// planner needs to reconstruct its queue deterministically.
type Checkpoint struct {
	Targets        []model.Target                `json:"targets"`
	ActiveTests    []model.TestCase               `json:"active_tests"`
	MutantStatuses map[int64]model.MutantStatus   `json:"mutant_statuses"`
	CoverageSnaps  []model.CoverageSnapshot       `json:"coverage_snapshots"`
	Budget         model.BudgetCounter            `json:"budget_counters"`
	Round          int                            `json:"round"`
}

// CheckpointRepo persists the single checkpoint row.
type CheckpointRepo struct {
	db *sql.DB
}

// Save serializes and overwrites the checkpoint, called once per round by
// the planner's single writer goroutine.
func (r *CheckpointRepo) Save(ctx context.Context, savedAt int64, cp Checkpoint) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, payload, saved_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at`,
		payload, savedAt)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load reads back the checkpoint. ok is false if no checkpoint has been
// written yet (fresh run, not a resume).
func (r *CheckpointRepo) Load(ctx context.Context) (cp Checkpoint, ok bool, err error) {
	var payload []byte
	row := r.db.QueryRowContext(ctx, `SELECT payload FROM checkpoints WHERE id=1`)
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("load checkpoint: %w", err)
	}
	if err := json.Unmarshal(payload, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cp, true, nil
}
