package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"mutaforge/pkg/model"
)

// RunRepo persists model.EvaluationRun and model.CoverageSnapshot rows.
type RunRepo struct {
	db *sql.DB
}

// InsertRun appends an evaluation run, the Mutation Evaluator's one
// append-only write per mutant attempt.
func (r *RunRepo) InsertRun(ctx context.Context, run model.EvaluationRun) (int64, error) {
	outcomes, err := json.Marshal(run.Outcomes)
	if err != nil {
		return 0, fmt.Errorf("marshal outcomes: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO evaluation_runs (mutant_id, outcomes, wall_time, exit_code, result)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		run.MutantID, outcomes, run.WallTime, run.ExitCode, string(run.Result)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert evaluation run for mutant %d: %w", run.MutantID, err)
	}
	return id, nil
}

// UpsertCoverage records a per-target, per-round coverage snapshot.
func (r *RunRepo) UpsertCoverage(ctx context.Context, snap model.CoverageSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO coverage_snapshots (class_fqn, method_name, param_types, round,
			line_coverage, branch_coverage, killed, survived, tests_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (class_fqn, method_name, param_types, round) DO UPDATE SET
			line_coverage = EXCLUDED.line_coverage,
			branch_coverage = EXCLUDED.branch_coverage,
			killed = EXCLUDED.killed,
			survived = EXCLUDED.survived,
			tests_count = EXCLUDED.tests_count`,
		snap.Target.ClassFQN, snap.Target.MethodName, paramTypesKey(snap.Target.ParamTypes), snap.Round,
		snap.LineCoverage, snap.BranchCoverage, snap.Killed, snap.Survived, snap.TestsCount)
	if err != nil {
		return fmt.Errorf("upsert coverage for %s round %d: %w", snap.Target.String(), snap.Round, err)
	}
	return nil
}

// LatestCoverage returns the most recent coverage snapshot for a target, or
// the zero value if none exists yet.
func (r *RunRepo) LatestCoverage(ctx context.Context, id model.TargetID) (model.CoverageSnapshot, bool, error) {
	snap := model.CoverageSnapshot{Target: id}
	row := r.db.QueryRowContext(ctx, `
		SELECT round, line_coverage, branch_coverage, killed, survived, tests_count
		FROM coverage_snapshots
		WHERE class_fqn=$1 AND method_name=$2 AND param_types=$3
		ORDER BY round DESC LIMIT 1`,
		id.ClassFQN, id.MethodName, paramTypesKey(id.ParamTypes))

	err := row.Scan(&snap.Round, &snap.LineCoverage, &snap.BranchCoverage, &snap.Killed, &snap.Survived, &snap.TestsCount)
	if err == sql.ErrNoRows {
		return model.CoverageSnapshot{}, false, nil
	}
	if err != nil {
		return model.CoverageSnapshot{}, false, fmt.Errorf("latest coverage for %s: %w", id.String(), err)
	}
	return snap, true, nil
}
